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

package main

import (
	"fmt"
	"net"

	"github.com/taptun-dev/taptun-sdk/network"
)

// udpIPDevice is a [network.IPDevice] over a connected UDP socket: one datagram carries exactly one raw IP
// packet. This is the minimal form of the queue-based tunnel transports the translator exists to serve.
type udpIPDevice struct {
	conn *net.UDPConn
	mtu  int
}

var _ network.IPDevice = (*udpIPDevice)(nil)

func newUDPIPDevice(peer string, mtu int) (*udpIPDevice, error) {
	addr, err := net.ResolveUDPAddr("udp", peer)
	if err != nil {
		return nil, fmt.Errorf("invalid peer address %q: %w", peer, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to peer %q: %w", peer, err)
	}
	return &udpIPDevice{conn: conn, mtu: mtu}, nil
}

func (d *udpIPDevice) Close() error {
	return d.conn.Close()
}

func (d *udpIPDevice) MTU() int {
	return d.mtu
}

func (d *udpIPDevice) Read(p []byte) (int, error) {
	return d.conn.Read(p)
}

func (d *udpIPDevice) Write(p []byte) (int, error) {
	if len(p) > d.mtu {
		return 0, network.ErrMsgSize
	}
	return d.conn.Write(p)
}
