// Copyright 2025 The TapTun Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ethernet parses and serializes the Ethernet and ARP wire formats used by the tap2tun translator.
//
// All functions are stateless and operate on caller-supplied buffers: parsing never copies payload bytes, and
// serialization validates the destination capacity fully before writing anything, so a failed call never leaves a
// partially written buffer behind.
package ethernet

import (
	"fmt"
	"net"

	"github.com/taptun-dev/taptun-sdk/network"
)

// An Ethernet frame starts with the following fixed 14-byte header (network byte order):
//
//	0              6             12         14
//	+--------------+--------------+----------+
//	| dst MAC (6B) | src MAC (6B) | type (2B)|
//	+--------------+--------------+----------+
const (
	HeaderLen = 14 // length of the fixed Ethernet header, without 802.1Q tags

	dstMACOffset    = 0
	srcMACOffset    = 6
	etherTypeOffset = 12
)

// EtherType identifies the protocol carried in an Ethernet frame's payload.
type EtherType uint16

const (
	// TypeIPv4 is the ethertype of an IPv4 packet.
	TypeIPv4 EtherType = 0x0800
	// TypeARP is the ethertype of an ARP message.
	TypeARP EtherType = 0x0806
	// TypeIPv6 is the ethertype of an IPv6 packet.
	TypeIPv6 EtherType = 0x86DD
)

// String returns the conventional name of well-known ethertypes, or the hex value otherwise.
func (t EtherType) String() string {
	switch t {
	case TypeIPv4:
		return "IPv4"
	case TypeARP:
		return "ARP"
	case TypeIPv6:
		return "IPv6"
	default:
		return fmt.Sprintf("0x%04x", uint16(t))
	}
}

// MAC is a 6-byte Ethernet hardware address. The zero value means "no address".
type MAC [6]byte

// Broadcast is the all-ones Ethernet broadcast address.
var Broadcast = MAC{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// IsZero reports whether m is the all-zero address.
func (m MAC) IsZero() bool {
	return m == MAC{}
}

// String returns the address in the usual colon-separated hex form, e.g. "02:00:00:00:00:01".
func (m MAC) String() string {
	return net.HardwareAddr(m[:]).String()
}

// ParseMAC parses a colon- or dash-separated 48-bit hardware address.
func ParseMAC(s string) (MAC, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return MAC{}, fmt.Errorf("%w: %v", network.ErrInvalidParameter, err)
	}
	if len(hw) != 6 {
		return MAC{}, fmt.Errorf("%w: %q is not a 48-bit hardware address", network.ErrInvalidParameter, s)
	}
	return MAC(hw), nil
}

// Header is the parsed fixed Ethernet header.
type Header struct {
	Dst  MAC
	Src  MAC
	Type EtherType
}

// ParseHeader parses the fixed 14-byte Ethernet header at the start of frame. It returns
// [network.ErrMalformedFrame] if frame is shorter than [HeaderLen].
//
// The frame's payload is frame[HeaderLen:]; ParseHeader does not copy it.
func ParseHeader(frame []byte) (Header, error) {
	if len(frame) < HeaderLen {
		return Header{}, fmt.Errorf("%w: frame is %d bytes, need at least %d", network.ErrMalformedFrame, len(frame), HeaderLen)
	}
	var h Header
	copy(h.Dst[:], frame[dstMACOffset:])
	copy(h.Src[:], frame[srcMACOffset:])
	h.Type = EtherType(uint16(frame[etherTypeOffset])<<8 | uint16(frame[etherTypeOffset+1]))
	return h, nil
}

// PutHeader serializes h into the first [HeaderLen] bytes of b. It returns [network.ErrBufferTooSmall] without
// writing anything if b cannot hold the full header.
func PutHeader(b []byte, h Header) error {
	if len(b) < HeaderLen {
		return fmt.Errorf("%w: need %d bytes for the ethernet header, have %d", network.ErrBufferTooSmall, HeaderLen, len(b))
	}
	copy(b[dstMACOffset:], h.Dst[:])
	copy(b[srcMACOffset:], h.Src[:])
	b[etherTypeOffset] = byte(h.Type >> 8)
	b[etherTypeOffset+1] = byte(h.Type)
	return nil
}
