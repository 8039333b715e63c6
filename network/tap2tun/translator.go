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

package tap2tun

import (
	"fmt"
	"net/netip"

	"github.com/taptun-dev/taptun-sdk/network"
	"github.com/taptun-dev/taptun-sdk/network/ethernet"
)

// Stats are the translator's monotonically increasing packet counters. Counters only move on successful
// operations; calls that return an error leave them untouched.
type Stats struct {
	// L2ToL3 counts Ethernet frames translated into IP packets.
	L2ToL3 uint64
	// L3ToL2 counts IP packets framed for the link.
	L3ToL2 uint64
	// ARPHandled counts ARP messages consumed internally and never forwarded as IP.
	ARPHandled uint64
}

// Translator converts between Ethernet frames and raw IP packets for one virtual interface, answering ARP
// locally so that a pure-L3 environment can keep an L2-only path usable.
//
// To use a Translator:
//  1. Create it with [NewTranslator] and the interface's MAC address, then call [Translator.SetOurIP] once the
//     interface's IPv4 address is known (required for answering ARP requests).
//  2. Feed frames arriving from the link into [Translator.EthernetToIP] and forward the returned IP payloads
//     upward; feed outbound IP packets into [Translator.IPToEthernet] and send the returned frames to the link.
//  3. After inbound traffic, drain [Translator.PopARPReply] and transmit those frames on the link. The
//     translator never writes to the link itself.
//
// A Translator is NOT safe for concurrent use. It is designed for single-threaded, synchronous operation: no
// call blocks, no call retains a caller-supplied buffer past its return, and callers that share an instance
// across goroutines must serialize every method call themselves ([Bridge] does exactly that).
type Translator struct {
	ourMAC ethernet.MAC
	// ourIP is the interface's IPv4 address; the zero Addr until SetOurIP is called. ARP requests are only
	// answered while it is set.
	ourIP netip.Addr
	// gatewayMAC is the link peer's hardware address; the zero MAC until learned or set. Learning is
	// first-writer-wins: once non-zero only SetGatewayMAC or ResetGatewayMAC change it, so a single spoofed
	// frame cannot churn an established mapping.
	gatewayMAC ethernet.MAC
	// gatewayIP, when set, restricts MAC learning to ARP messages sent by that address, and is the target of
	// GatewayProbeFrame.
	gatewayIP netip.Addr

	stats   Stats
	replies arpReplyQueue
	closed  bool
}

// NewTranslator creates a Translator for a virtual interface with the given hardware address. The all-zero MAC
// is rejected with [network.ErrInvalidParameter].
func NewTranslator(ourMAC ethernet.MAC) (*Translator, error) {
	if ourMAC.IsZero() {
		return nil, fmt.Errorf("%w: our MAC address must not be all-zero", network.ErrInvalidParameter)
	}
	return &Translator{ourMAC: ourMAC}, nil
}

// Close releases the ARP reply queue and marks the translator unusable: every later call other than Close
// returns [network.ErrClosed]. Closing an already-closed translator is a no-op.
func (t *Translator) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.replies.clear()
	return nil
}

// EthernetToIP consumes one Ethernet frame from the link and translates it for the IP layer.
//
// The result has three variants:
//   - (n, false, nil): frame carried IPv4 or IPv6; n payload bytes were copied into out and must be forwarded
//     upward.
//   - (0, true, nil): frame was consumed internally (ARP) and there is nothing to forward. A generated reply,
//     if any, is waiting in the queue behind [Translator.PopARPReply].
//   - (0, false, err): frame could not be translated; out is untouched.
//
// ARP requests targeting the configured interface address are answered with a queued reply frame; if the reply
// queue is full the reply is dropped silently, a deliberate bounded-memory trade-off for this diagnostic side
// channel. Any valid ARP message can additionally trigger gateway-MAC learning, see [Translator.GatewayMAC].
//
// The payload copy is all-or-nothing: if out cannot hold the complete IP payload, EthernetToIP fails with
// [network.ErrBufferTooSmall] before writing anything. An ethertype other than ARP, IPv4 or IPv6 fails with
// [network.ErrUnsupportedProtocol] so callers can account for undeliverable traffic separately.
func (t *Translator) EthernetToIP(frame []byte, out []byte) (int, bool, error) {
	if t.closed {
		return 0, false, network.ErrClosed
	}
	hdr, err := ethernet.ParseHeader(frame)
	if err != nil {
		return 0, false, err
	}

	switch hdr.Type {
	case ethernet.TypeARP:
		msg, err := ethernet.ParseMessage(frame[ethernet.HeaderLen:])
		if err != nil {
			return 0, false, err
		}
		t.handleARP(msg)
		t.stats.ARPHandled++
		return 0, true, nil

	case ethernet.TypeIPv4, ethernet.TypeIPv6:
		payload := frame[ethernet.HeaderLen:]
		if len(payload) > len(out) {
			return 0, false, fmt.Errorf("%w: ip payload is %d bytes, output buffer holds %d",
				network.ErrBufferTooSmall, len(payload), len(out))
		}
		n := copy(out, payload)
		t.stats.L2ToL3++
		return n, false, nil

	default:
		return 0, false, fmt.Errorf("%w: ethertype %v", network.ErrUnsupportedProtocol, hdr.Type)
	}
}

func (t *Translator) handleARP(msg ethernet.Message) {
	// First-writer-wins learning: any ARP message with a usable sender mapping fills the gateway MAC slot,
	// restricted to the configured gateway address when one is set.
	if t.gatewayMAC.IsZero() && !msg.SenderMAC.IsZero() {
		if !t.gatewayIP.IsValid() || msg.SenderIP == t.gatewayIP {
			t.gatewayMAC = msg.SenderMAC
		}
	}

	if msg.Operation == ethernet.OperationRequest && t.ourIP.IsValid() && msg.TargetIP == t.ourIP {
		var reply [ethernet.ARPFrameLen]byte
		n, err := ethernet.PutReplyFrame(reply[:], t.ourMAC, t.ourIP, msg.SenderMAC, msg.SenderIP)
		if err != nil {
			return
		}
		t.replies.push(reply[:n])
	}
}

// IPToEthernet frames one outbound IP packet for the link, addressing it to the learned (or configured)
// gateway MAC with the interface's own MAC as source. The ethertype is inferred from the packet's version
// nibble; a first nibble other than 4 or 6 fails with [network.ErrMalformedFrame].
//
// IPToEthernet fails with [network.ErrDeviceNotActive] while no gateway MAC is known; the caller should retry
// after an ARP exchange has occurred (see [Translator.GatewayProbeFrame]). The write is all-or-nothing: if out
// cannot hold header plus payload, it fails with [network.ErrBufferTooSmall] before writing anything. On
// success it returns the total frame length.
func (t *Translator) IPToEthernet(packet []byte, out []byte) (int, error) {
	if t.closed {
		return 0, network.ErrClosed
	}
	if t.gatewayMAC.IsZero() {
		return 0, fmt.Errorf("%w: gateway MAC has not been learned", network.ErrDeviceNotActive)
	}
	if len(packet) == 0 {
		return 0, fmt.Errorf("%w: empty ip packet", network.ErrMalformedFrame)
	}

	var etherType ethernet.EtherType
	switch version := packet[0] >> 4; version {
	case 4:
		etherType = ethernet.TypeIPv4
	case 6:
		etherType = ethernet.TypeIPv6
	default:
		return 0, fmt.Errorf("%w: ip version %d", network.ErrMalformedFrame, version)
	}

	frameLen := ethernet.HeaderLen + len(packet)
	if frameLen > len(out) {
		return 0, fmt.Errorf("%w: frame is %d bytes, output buffer holds %d", network.ErrBufferTooSmall, frameLen, len(out))
	}
	if err := ethernet.PutHeader(out, ethernet.Header{Dst: t.gatewayMAC, Src: t.ourMAC, Type: etherType}); err != nil {
		return 0, err
	}
	copy(out[ethernet.HeaderLen:], packet)
	t.stats.L3ToL2++
	return frameLen, nil
}

// SetOurIP configures the interface's IPv4 address, overwriting any previous value. The translator only
// answers ARP requests once this is set. Unlike MAC learning, the address is caller-authoritative and may
// legitimately change across reconnects. Non-IPv4 addresses are rejected with [network.ErrInvalidParameter].
func (t *Translator) SetOurIP(ip netip.Addr) error {
	if t.closed {
		return network.ErrClosed
	}
	if !ip.Unmap().Is4() {
		return fmt.Errorf("%w: %v is not an IPv4 address", network.ErrInvalidParameter, ip)
	}
	t.ourIP = ip.Unmap()
	return nil
}

// SetGatewayIP configures the gateway's IPv4 address, overwriting any previous value. While set, it restricts
// gateway-MAC learning to ARP messages sent by this address and is the target of [Translator.GatewayProbeFrame].
func (t *Translator) SetGatewayIP(ip netip.Addr) error {
	if t.closed {
		return network.ErrClosed
	}
	if !ip.Unmap().Is4() {
		return fmt.Errorf("%w: %v is not an IPv4 address", network.ErrInvalidParameter, ip)
	}
	t.gatewayIP = ip.Unmap()
	return nil
}

// SetGatewayMAC overrides the gateway hardware address. This is the only way to change a mapping that has
// already been learned; passive learning never overwrites it. The all-zero MAC is rejected, use
// [Translator.ResetGatewayMAC] to forget the mapping instead.
func (t *Translator) SetGatewayMAC(mac ethernet.MAC) error {
	if t.closed {
		return network.ErrClosed
	}
	if mac.IsZero() {
		return fmt.Errorf("%w: gateway MAC must not be all-zero", network.ErrInvalidParameter)
	}
	t.gatewayMAC = mac
	return nil
}

// ResetGatewayMAC forgets the learned gateway hardware address, re-arming first-writer-wins learning.
func (t *Translator) ResetGatewayMAC() error {
	if t.closed {
		return network.ErrClosed
	}
	t.gatewayMAC = ethernet.MAC{}
	return nil
}

// OurMAC returns the interface hardware address the translator was created with.
func (t *Translator) OurMAC() ethernet.MAC {
	return t.ourMAC
}

// HasGatewayMAC reports whether a gateway hardware address has been learned or configured.
func (t *Translator) HasGatewayMAC() bool {
	return !t.gatewayMAC.IsZero()
}

// GatewayMAC returns the learned or configured gateway hardware address. The boolean is false while no
// mapping exists.
func (t *Translator) GatewayMAC() (ethernet.MAC, bool) {
	return t.gatewayMAC, !t.gatewayMAC.IsZero()
}

// Stats returns a snapshot of the translator's counters. It is safe to call at any time; before any traffic
// has been processed all counters are zero.
func (t *Translator) Stats() Stats {
	return t.stats
}

// HasPendingARPReply reports whether at least one generated ARP reply frame is waiting to be sent.
func (t *Translator) HasPendingARPReply() bool {
	return t.replies.len() > 0
}

// PendingARPReplies returns the number of generated ARP reply frames waiting to be sent.
func (t *Translator) PendingARPReplies() int {
	return t.replies.len()
}

// PopARPReply removes the oldest generated ARP reply from the queue and copies it into out, returning the
// frame length. The frame is complete and ready for direct transmission on the link.
//
// It returns [network.ErrWouldBlock] when the queue is empty. If out is too small for the frame, it returns
// [network.ErrBufferTooSmall] and leaves the frame queued so the caller can retry with a larger buffer.
func (t *Translator) PopARPReply(out []byte) (int, error) {
	if t.closed {
		return 0, network.ErrClosed
	}
	if t.replies.len() == 0 {
		return 0, network.ErrWouldBlock
	}
	if n := t.replies.frontLen(); n > len(out) {
		return 0, fmt.Errorf("%w: queued frame is %d bytes, output buffer holds %d", network.ErrBufferTooSmall, n, len(out))
	}
	return t.replies.pop(out), nil
}

// GatewayProbeFrame serializes a broadcast ARP request for the configured gateway IP into out and returns the
// frame length. Transmitting the frame on the link invites an ARP reply, and with it a gateway-MAC learning
// event, without waiting for the peer to speak first.
//
// Both the interface IP and the gateway IP must be configured; otherwise it fails with
// [network.ErrDeviceNotActive].
func (t *Translator) GatewayProbeFrame(out []byte) (int, error) {
	if t.closed {
		return 0, network.ErrClosed
	}
	if !t.ourIP.IsValid() || !t.gatewayIP.IsValid() {
		return 0, fmt.Errorf("%w: our IP and the gateway IP must be configured before probing", network.ErrDeviceNotActive)
	}
	return ethernet.PutRequestFrame(out, t.ourMAC, t.ourIP, t.gatewayIP)
}
