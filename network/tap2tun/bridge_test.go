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
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taptun-dev/taptun-sdk/network"
	"github.com/taptun-dev/taptun-sdk/network/ethernet"
)

// fakeDevice is a channel-backed packet device: Read takes from in, Write delivers to out. Closing it
// unblocks a pending Read with io.EOF.
type fakeDevice struct {
	in   chan []byte
	out  chan []byte
	mtu  int
	once sync.Once
	done chan struct{}
}

var (
	_ network.IPDevice   = (*fakeDevice)(nil)
	_ network.LinkDevice = (*fakeDevice)(nil)
)

func newFakeDevice(mtu int) *fakeDevice {
	return &fakeDevice{
		in:   make(chan []byte, 16),
		out:  make(chan []byte, 64),
		mtu:  mtu,
		done: make(chan struct{}),
	}
}

func (d *fakeDevice) Close() error {
	d.once.Do(func() { close(d.done) })
	return nil
}

func (d *fakeDevice) MTU() int { return d.mtu }

func (d *fakeDevice) Read(p []byte) (int, error) {
	select {
	case b := <-d.in:
		return copy(p, b), nil
	case <-d.done:
		return 0, io.EOF
	}
}

func (d *fakeDevice) Write(p []byte) (int, error) {
	select {
	case <-d.done:
		return 0, network.ErrClosed
	default:
	}
	d.out <- append([]byte(nil), p...)
	return len(p), nil
}

// recv waits for one packet from the device's output with a timeout, so a broken bridge fails the test
// instead of hanging it.
func recv(t *testing.T, d *fakeDevice) []byte {
	t.Helper()
	select {
	case b := <-d.out:
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for output")
		return nil
	}
}

func startBridge(t *testing.T, link, ip *fakeDevice, tr *Translator) chan error {
	t.Helper()
	result := make(chan error, 1)
	go func() { result <- Bridge(link, ip, tr) }()
	t.Cleanup(func() {
		link.Close()
		ip.Close()
		select {
		case <-result:
		case <-time.After(2 * time.Second):
			t.Error("bridge did not stop after both devices closed")
		}
	})
	return result
}

func TestBridgeValidatesArguments(t *testing.T) {
	tr := newTestTranslator(t)
	d := newFakeDevice(1500)
	require.ErrorIs(t, Bridge(nil, d, tr), network.ErrInvalidParameter)
	require.ErrorIs(t, Bridge(d, nil, tr), network.ErrInvalidParameter)
	require.ErrorIs(t, Bridge(d, d, nil), network.ErrInvalidParameter)
}

func TestBridgeAnswersARPOnLink(t *testing.T) {
	tr := newTestTranslator(t)
	link := newFakeDevice(1500)
	ip := newFakeDevice(1500)
	startBridge(t, link, ip, tr)

	link.in <- arpRequestFrame(t, gatewayMAC, gatewayIP, testIP)

	reply := recv(t, link)
	h, err := ethernet.ParseHeader(reply)
	require.NoError(t, err)
	require.Equal(t, gatewayMAC, h.Dst)
	require.Equal(t, ethernet.TypeARP, h.Type)
	m, err := ethernet.ParseMessage(reply[ethernet.HeaderLen:])
	require.NoError(t, err)
	require.Equal(t, ethernet.OperationReply, m.Operation)
	require.Equal(t, testIP, m.SenderIP)
}

func TestBridgeForwardsBothDirections(t *testing.T) {
	tr := newTestTranslator(t)
	require.NoError(t, tr.SetGatewayMAC(gatewayMAC))
	link := newFakeDevice(1500)
	ip := newFakeDevice(1500)
	startBridge(t, link, ip, tr)

	// Link to IP: the frame's payload comes out on the IP side.
	payload := ipv4Payload(80)
	for i := range payload[1:] {
		payload[i+1] = byte(i)
	}
	link.in <- ipv4Frame(t, gatewayMAC, testMAC, payload)
	require.Equal(t, payload, recv(t, ip))

	// IP to link: the packet comes out framed for the gateway.
	ip.in <- payload
	frame := recv(t, link)
	h, err := ethernet.ParseHeader(frame)
	require.NoError(t, err)
	require.Equal(t, gatewayMAC, h.Dst)
	require.Equal(t, testMAC, h.Src)
	require.Equal(t, payload, frame[ethernet.HeaderLen:])
}

func TestBridgeProbesWhileGatewayUnknown(t *testing.T) {
	tr := newTestTranslator(t)
	require.NoError(t, tr.SetGatewayIP(gatewayIP))
	link := newFakeDevice(1500)
	ip := newFakeDevice(1500)
	startBridge(t, link, ip, tr)

	// Outbound traffic before any ARP exchange: the packet is dropped, a broadcast probe goes out instead.
	ip.in <- ipv4Payload(40)
	probe := recv(t, link)
	h, err := ethernet.ParseHeader(probe)
	require.NoError(t, err)
	require.Equal(t, ethernet.Broadcast, h.Dst)
	require.Equal(t, ethernet.TypeARP, h.Type)
	m, err := ethernet.ParseMessage(probe[ethernet.HeaderLen:])
	require.NoError(t, err)
	require.Equal(t, ethernet.OperationRequest, m.Operation)
	require.Equal(t, gatewayIP, m.TargetIP)
	require.Zero(t, tr.Stats().L3ToL2)
}

func TestBridgeDropsUntranslatableFrames(t *testing.T) {
	tr := newTestTranslator(t)
	require.NoError(t, tr.SetGatewayMAC(gatewayMAC))
	link := newFakeDevice(1500)
	ip := newFakeDevice(1500)
	startBridge(t, link, ip, tr)

	// An unsupported ethertype must not kill the bridge.
	lldp := make([]byte, 64)
	require.NoError(t, ethernet.PutHeader(lldp, ethernet.Header{Dst: ethernet.Broadcast, Src: gatewayMAC, Type: ethernet.EtherType(0x88cc)}))
	link.in <- lldp

	payload := ipv4Payload(60)
	link.in <- ipv4Frame(t, gatewayMAC, testMAC, payload)
	require.Equal(t, payload, recv(t, ip))
}

func TestBridgeReturnsNilOnClose(t *testing.T) {
	tr := newTestTranslator(t)
	link := newFakeDevice(1500)
	ip := newFakeDevice(1500)
	result := make(chan error, 1)
	go func() { result <- Bridge(link, ip, tr) }()

	link.Close()
	ip.Close()
	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not return")
	}
}
