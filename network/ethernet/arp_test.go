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
	"net"
	"net/netip"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/require"

	"github.com/taptun-dev/taptun-sdk/network"
)

func TestParseMessage(t *testing.T) {
	frame := serializeFrameForTest(t,
		&layers.Ethernet{
			DstMAC:       net.HardwareAddr(Broadcast[:]),
			SrcMAC:       net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff},
			EthernetType: layers.EthernetTypeARP,
		},
		&layers.ARP{
			AddrType:          layers.LinkTypeEthernet,
			Protocol:          layers.EthernetTypeIPv4,
			HwAddressSize:     6,
			ProtAddressSize:   4,
			Operation:         layers.ARPRequest,
			SourceHwAddress:   []byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff},
			SourceProtAddress: []byte{10, 0, 0, 1},
			DstHwAddress:      make([]byte, 6),
			DstProtAddress:    []byte{10, 0, 0, 2},
		},
	)
	require.Len(t, frame, ARPFrameLen)

	m, err := ParseMessage(frame[HeaderLen:])
	require.NoError(t, err)
	require.Equal(t, OperationRequest, m.Operation)
	require.Equal(t, MAC{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}, m.SenderMAC)
	require.Equal(t, netip.MustParseAddr("10.0.0.1"), m.SenderIP)
	require.True(t, m.TargetMAC.IsZero())
	require.Equal(t, netip.MustParseAddr("10.0.0.2"), m.TargetIP)
}

// Ethernet pads short frames; trailing bytes after the 28-byte body must not break parsing.
func TestParseMessageIgnoresPadding(t *testing.T) {
	body := make([]byte, MessageLen)
	require.NoError(t, PutMessage(body, Message{
		Operation: OperationReply,
		SenderMAC: MAC{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		SenderIP:  netip.MustParseAddr("10.0.0.2"),
		TargetMAC: MAC{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff},
		TargetIP:  netip.MustParseAddr("10.0.0.1"),
	}))

	padded := append(body, make([]byte, 18)...)
	m, err := ParseMessage(padded)
	require.NoError(t, err)
	require.Equal(t, OperationReply, m.Operation)
	require.Equal(t, netip.MustParseAddr("10.0.0.2"), m.SenderIP)
}

func TestParseMessageRejectsMalformedBodies(t *testing.T) {
	valid := make([]byte, MessageLen)
	require.NoError(t, PutMessage(valid, Message{
		Operation: OperationRequest,
		SenderMAC: MAC{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		SenderIP:  netip.MustParseAddr("10.0.0.2"),
		TargetIP:  netip.MustParseAddr("10.0.0.1"),
	}))

	corrupt := func(mutate func(b []byte)) []byte {
		b := append([]byte(nil), valid...)
		mutate(b)
		return b
	}

	tests := []struct {
		name string
		body []byte
	}{
		{"empty", nil},
		{"truncated", valid[:MessageLen-1]},
		{"hardware type", corrupt(func(b []byte) { b[1] = 6 })},         // IEEE 802 instead of Ethernet
		{"protocol type", corrupt(func(b []byte) { b[2] = 0x86 })},      // IPv6-ish
		{"hardware length", corrupt(func(b []byte) { b[4] = 8 })},       // EUI-64
		{"protocol length", corrupt(func(b []byte) { b[5] = 16 })},      // IPv6 address size
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseMessage(tc.body)
			require.ErrorIs(t, err, network.ErrMalformedARP)
		})
	}
}

func TestPutReplyFrame(t *testing.T) {
	ourMAC := MAC{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	ourIP := netip.MustParseAddr("10.0.0.2")
	peerMAC := MAC{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}
	peerIP := netip.MustParseAddr("10.0.0.1")

	b := make([]byte, ARPFrameLen)
	n, err := PutReplyFrame(b, ourMAC, ourIP, peerMAC, peerIP)
	require.NoError(t, err)
	require.Equal(t, ARPFrameLen, n)

	decoded := gopacket.NewPacket(b[:n], layers.LayerTypeEthernet, gopacket.Default)
	eth, ok := decoded.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	require.True(t, ok)
	require.Equal(t, net.HardwareAddr(peerMAC[:]), eth.DstMAC)
	require.Equal(t, net.HardwareAddr(ourMAC[:]), eth.SrcMAC)
	require.Equal(t, layers.EthernetTypeARP, eth.EthernetType)

	arp, ok := decoded.Layer(layers.LayerTypeARP).(*layers.ARP)
	require.True(t, ok)
	require.Equal(t, uint16(layers.ARPReply), arp.Operation)
	require.Equal(t, []byte(ourMAC[:]), arp.SourceHwAddress)
	require.Equal(t, []byte{10, 0, 0, 2}, arp.SourceProtAddress)
	require.Equal(t, []byte(peerMAC[:]), arp.DstHwAddress)
	require.Equal(t, []byte{10, 0, 0, 1}, arp.DstProtAddress)
}

func TestPutRequestFrame(t *testing.T) {
	ourMAC := MAC{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}

	b := make([]byte, ARPFrameLen)
	n, err := PutRequestFrame(b, ourMAC, netip.MustParseAddr("10.0.0.2"), netip.MustParseAddr("10.0.0.1"))
	require.NoError(t, err)
	require.Equal(t, ARPFrameLen, n)

	h, err := ParseHeader(b[:n])
	require.NoError(t, err)
	require.Equal(t, Broadcast, h.Dst)
	require.Equal(t, ourMAC, h.Src)
	require.Equal(t, TypeARP, h.Type)

	m, err := ParseMessage(b[HeaderLen:n])
	require.NoError(t, err)
	require.Equal(t, OperationRequest, m.Operation)
	require.Equal(t, ourMAC, m.SenderMAC)
	require.Equal(t, netip.MustParseAddr("10.0.0.2"), m.SenderIP)
	require.True(t, m.TargetMAC.IsZero())
	require.Equal(t, netip.MustParseAddr("10.0.0.1"), m.TargetIP)
}

func TestPutReplyFrameRejectsSmallBufferWithoutWriting(t *testing.T) {
	b := make([]byte, ARPFrameLen-1)
	_, err := PutReplyFrame(b, MAC{0x02}, netip.MustParseAddr("10.0.0.2"), MAC{0x04}, netip.MustParseAddr("10.0.0.1"))
	require.ErrorIs(t, err, network.ErrBufferTooSmall)
	require.Equal(t, make([]byte, ARPFrameLen-1), b)
}

func TestPutMessageRejectsNonIPv4Addresses(t *testing.T) {
	b := make([]byte, MessageLen)
	err := PutMessage(b, Message{
		Operation: OperationReply,
		SenderIP:  netip.MustParseAddr("2001:db8::1"),
		TargetIP:  netip.MustParseAddr("10.0.0.1"),
	})
	require.ErrorIs(t, err, network.ErrInvalidParameter)
}

func TestOperationString(t *testing.T) {
	require.Equal(t, "request", OperationRequest.String())
	require.Equal(t, "reply", OperationReply.String())
	require.Equal(t, "op(9)", Operation(9).String())
}
