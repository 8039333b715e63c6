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

package ethernet

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/taptun-dev/taptun-sdk/network"
)

// From [RFC 826], an ARP message for the Ethernet/IPv4 profile is the following fixed 28-byte body
// (network byte order):
//
//	0         2          4     5     6      8               14              18              24            28
//	+---------+----------+-----+-----+------+---------------+---------------+---------------+-------------+
//	| hw type | proto ty | hln | pln |  op  | sender MAC 6B | sender IP  4B | target MAC 6B | target IP 4B|
//	+---------+----------+-----+-----+------+---------------+---------------+---------------+-------------+
//
// Only hardware type 1 (Ethernet) with protocol type 0x0800 (IPv4) is supported; this is the only
// combination the translator ever needs on a TAP link.
//
// [RFC 826]: https://datatracker.ietf.org/doc/html/rfc826
const (
	// MessageLen is the length of the fixed ARP body for the Ethernet/IPv4 profile.
	MessageLen = 28
	// ARPFrameLen is the length of a complete, minimum-size Ethernet frame carrying an ARP message.
	ARPFrameLen = HeaderLen + MessageLen

	arpHardwareEthernet = uint16(1)
	arpProtocolIPv4     = uint16(0x0800)
	arpHardwareAddrLen  = byte(6)
	arpProtocolAddrLen  = byte(4)

	arpHardwareTypeOffset = 0
	arpProtocolTypeOffset = 2
	arpHardwareLenOffset  = 4
	arpProtocolLenOffset  = 5
	arpOperationOffset    = 6
	arpSenderMACOffset    = 8
	arpSenderIPOffset     = 14
	arpTargetMACOffset    = 18
	arpTargetIPOffset     = 24
)

// Operation is the ARP operation code.
type Operation uint16

const (
	// OperationRequest asks the owner of the target IP to reply with its hardware address.
	OperationRequest Operation = 1
	// OperationReply announces the sender's IP-to-hardware mapping.
	OperationReply Operation = 2
)

// String implements [fmt.Stringer].
func (op Operation) String() string {
	switch op {
	case OperationRequest:
		return "request"
	case OperationReply:
		return "reply"
	default:
		return fmt.Sprintf("op(%d)", uint16(op))
	}
}

// Message is a parsed ARP message for the Ethernet/IPv4 profile.
type Message struct {
	Operation Operation
	SenderMAC MAC
	SenderIP  netip.Addr
	TargetMAC MAC
	TargetIP  netip.Addr
}

// ParseMessage parses the ARP body in payload (an Ethernet frame's payload, after the 14-byte header).
//
// It returns [network.ErrMalformedARP] if payload is shorter than [MessageLen], or if the hardware/protocol
// type and length fields do not identify the Ethernet/IPv4 profile. Trailing padding bytes, which Ethernet
// requires on short frames, are ignored.
func ParseMessage(payload []byte) (Message, error) {
	if len(payload) < MessageLen {
		return Message{}, fmt.Errorf("%w: body is %d bytes, need at least %d", network.ErrMalformedARP, len(payload), MessageLen)
	}
	if ht := binary.BigEndian.Uint16(payload[arpHardwareTypeOffset:]); ht != arpHardwareEthernet {
		return Message{}, fmt.Errorf("%w: unsupported hardware type %d", network.ErrMalformedARP, ht)
	}
	if pt := binary.BigEndian.Uint16(payload[arpProtocolTypeOffset:]); pt != arpProtocolIPv4 {
		return Message{}, fmt.Errorf("%w: unsupported protocol type 0x%04x", network.ErrMalformedARP, pt)
	}
	if payload[arpHardwareLenOffset] != arpHardwareAddrLen || payload[arpProtocolLenOffset] != arpProtocolAddrLen {
		return Message{}, fmt.Errorf("%w: unsupported address lengths %d/%d",
			network.ErrMalformedARP, payload[arpHardwareLenOffset], payload[arpProtocolLenOffset])
	}

	var m Message
	m.Operation = Operation(binary.BigEndian.Uint16(payload[arpOperationOffset:]))
	copy(m.SenderMAC[:], payload[arpSenderMACOffset:])
	m.SenderIP = netip.AddrFrom4([4]byte(payload[arpSenderIPOffset : arpSenderIPOffset+4]))
	copy(m.TargetMAC[:], payload[arpTargetMACOffset:])
	m.TargetIP = netip.AddrFrom4([4]byte(payload[arpTargetIPOffset : arpTargetIPOffset+4]))
	return m, nil
}

// PutMessage serializes m into the first [MessageLen] bytes of b. It returns [network.ErrBufferTooSmall]
// without writing anything if b cannot hold the full body, and [network.ErrInvalidParameter] if either address
// of m is not IPv4.
func PutMessage(b []byte, m Message) error {
	if len(b) < MessageLen {
		return fmt.Errorf("%w: need %d bytes for the arp body, have %d", network.ErrBufferTooSmall, MessageLen, len(b))
	}
	if !m.SenderIP.Is4() || !m.TargetIP.Is4() {
		return fmt.Errorf("%w: arp addresses must be IPv4", network.ErrInvalidParameter)
	}

	binary.BigEndian.PutUint16(b[arpHardwareTypeOffset:], arpHardwareEthernet)
	binary.BigEndian.PutUint16(b[arpProtocolTypeOffset:], arpProtocolIPv4)
	b[arpHardwareLenOffset] = arpHardwareAddrLen
	b[arpProtocolLenOffset] = arpProtocolAddrLen
	binary.BigEndian.PutUint16(b[arpOperationOffset:], uint16(m.Operation))
	copy(b[arpSenderMACOffset:], m.SenderMAC[:])
	sip := m.SenderIP.As4()
	copy(b[arpSenderIPOffset:], sip[:])
	copy(b[arpTargetMACOffset:], m.TargetMAC[:])
	tip := m.TargetIP.As4()
	copy(b[arpTargetIPOffset:], tip[:])
	return nil
}

// PutReplyFrame serializes a complete Ethernet+ARP reply frame into b, announcing that senderIP is reachable
// at senderMAC, addressed to the requester targetMAC/targetIP. The frame is exactly [ARPFrameLen] bytes, the
// protocol minimum, with no padding; its length is returned.
//
// It returns [network.ErrBufferTooSmall] without writing anything if b cannot hold the full frame.
func PutReplyFrame(b []byte, senderMAC MAC, senderIP netip.Addr, targetMAC MAC, targetIP netip.Addr) (int, error) {
	return putARPFrame(b, targetMAC, Message{
		Operation: OperationReply,
		SenderMAC: senderMAC,
		SenderIP:  senderIP,
		TargetMAC: targetMAC,
		TargetIP:  targetIP,
	})
}

// PutRequestFrame serializes a complete broadcast Ethernet+ARP request frame into b, asking the owner of
// targetIP to reply to senderMAC/senderIP. The frame is exactly [ARPFrameLen] bytes; its length is returned.
func PutRequestFrame(b []byte, senderMAC MAC, senderIP netip.Addr, targetIP netip.Addr) (int, error) {
	return putARPFrame(b, Broadcast, Message{
		Operation: OperationRequest,
		SenderMAC: senderMAC,
		SenderIP:  senderIP,
		TargetMAC: MAC{},
		TargetIP:  targetIP,
	})
}

func putARPFrame(b []byte, dst MAC, m Message) (int, error) {
	if len(b) < ARPFrameLen {
		return 0, fmt.Errorf("%w: need %d bytes for an arp frame, have %d", network.ErrBufferTooSmall, ARPFrameLen, len(b))
	}
	if err := PutHeader(b, Header{Dst: dst, Src: m.SenderMAC, Type: TypeARP}); err != nil {
		return 0, err
	}
	if err := PutMessage(b[HeaderLen:], m); err != nil {
		return 0, err
	}
	return ARPFrameLen, nil
}
