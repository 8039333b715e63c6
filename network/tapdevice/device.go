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

// Package tapdevice adapts an OS TAP interface, or any other Ethernet frame stream, to the
// [network.LinkDevice] interface, and tracks the per-device configuration and I/O statistics that platform
// shims report upward.
//
// On Linux, [Open] creates and configures a real TAP interface. On every platform, [New] wraps an existing
// [io.ReadWriteCloser] whose Read/Write calls move whole Ethernet frames, which is also how tests drive this
// package without privileges.
package tapdevice

import (
	"fmt"
	"io"
	"net/netip"
	"sync/atomic"

	"github.com/taptun-dev/taptun-sdk/network"
	"github.com/taptun-dev/taptun-sdk/network/ethernet"
)

const (
	// MinMTU is the smallest accepted MTU, the IPv4 minimum reassembly size.
	MinMTU = 576
	// MaxMTU is the largest accepted MTU.
	MaxMTU = 65535
	// DefaultMTU is used when the configuration leaves the MTU at zero.
	DefaultMTU = 1500
)

// Config describes one TAP interface. The address fields mirror what the surrounding platform gives the
// interface; the IPv6 prefix is tracked only, ARP never consumes it (IPv6 neighbor discovery is a different
// mechanism and out of scope here).
type Config struct {
	// Name of the interface, e.g. "taptun0". Empty lets the platform pick one.
	Name string
	// MTU of the interface, excluding the Ethernet header. Zero means DefaultMTU.
	MTU int
	// IPv4 address and netmask to assign, e.g. 10.0.0.2/24. The zero Prefix assigns nothing.
	IPv4 netip.Prefix
	// IPv6 address and prefix length to assign. The zero Prefix assigns nothing.
	IPv6 netip.Prefix
}

// Validate reports [network.ErrInvalidParameter] if the configuration holds an out-of-range MTU, a non-IPv4
// address in IPv4, or a non-IPv6 address in IPv6.
func (c Config) Validate() error {
	if c.MTU != 0 && (c.MTU < MinMTU || c.MTU > MaxMTU) {
		return fmt.Errorf("%w: MTU %d is outside [%d, %d]", network.ErrInvalidParameter, c.MTU, MinMTU, MaxMTU)
	}
	if c.IPv4.IsValid() && !c.IPv4.Addr().Unmap().Is4() {
		return fmt.Errorf("%w: %v is not an IPv4 prefix", network.ErrInvalidParameter, c.IPv4)
	}
	if c.IPv6.IsValid() && (!c.IPv6.Addr().Is6() || c.IPv6.Addr().Is4In6()) {
		return fmt.Errorf("%w: %v is not an IPv6 prefix", network.ErrInvalidParameter, c.IPv6)
	}
	return nil
}

func (c Config) mtu() int {
	if c.MTU == 0 {
		return DefaultMTU
	}
	return c.MTU
}

// DeviceStats are a device's monotonically increasing I/O counters.
type DeviceStats struct {
	BytesRead      uint64
	BytesWritten   uint64
	PacketsRead    uint64
	PacketsWritten uint64
}

// Device is a [network.LinkDevice] over an Ethernet frame stream.
//
// Unlike the translator it feeds, a Device is safe to use from one reading and one writing goroutine at the
// same time, which is how a bridge drives it.
type Device struct {
	rwc    io.ReadWriteCloser
	config Config
	closed atomic.Bool

	bytesRead      atomic.Uint64
	bytesWritten   atomic.Uint64
	packetsRead    atomic.Uint64
	packetsWritten atomic.Uint64
}

// Compilation guard against interface implementation
var _ network.LinkDevice = (*Device)(nil)

// New wraps rwc, whose Read and Write must move one whole Ethernet frame per call, as a [network.LinkDevice]
// with the given configuration.
func New(rwc io.ReadWriteCloser, config Config) (*Device, error) {
	if rwc == nil {
		return nil, fmt.Errorf("%w: rwc is required", network.ErrInvalidParameter)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Device{rwc: rwc, config: config}, nil
}

// Close implements [network.LinkDevice]. It closes the underlying frame stream; later Reads return [io.EOF]
// and Writes return [network.ErrClosed].
func (d *Device) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	return d.rwc.Close()
}

// MTU implements [network.LinkDevice]. The largest valid frame is MTU()+14 bytes.
func (d *Device) MTU() int {
	return d.config.mtu()
}

// Config returns the configuration the device was opened with.
func (d *Device) Config() Config {
	return d.config
}

// Read implements [network.LinkDevice]. It reads one Ethernet frame into p.
func (d *Device) Read(p []byte) (int, error) {
	if d.closed.Load() {
		return 0, io.EOF
	}
	n, err := d.rwc.Read(p)
	if n > 0 {
		d.bytesRead.Add(uint64(n))
		d.packetsRead.Add(1)
	}
	return n, err
}

// Write implements [network.LinkDevice]. It writes one Ethernet frame. Frames whose payload exceeds the MTU
// fail with [network.ErrMsgSize] before touching the underlying stream.
func (d *Device) Write(p []byte) (int, error) {
	if d.closed.Load() {
		return 0, network.ErrClosed
	}
	if len(p) > d.config.mtu()+ethernet.HeaderLen {
		return 0, network.ErrMsgSize
	}
	n, err := d.rwc.Write(p)
	if n > 0 {
		d.bytesWritten.Add(uint64(n))
		d.packetsWritten.Add(1)
	}
	return n, err
}

// Stats returns a snapshot of the device's I/O counters.
func (d *Device) Stats() DeviceStats {
	return DeviceStats{
		BytesRead:      d.bytesRead.Load(),
		BytesWritten:   d.bytesWritten.Load(),
		PacketsRead:    d.packetsRead.Load(),
		PacketsWritten: d.packetsWritten.Load(),
	}
}
