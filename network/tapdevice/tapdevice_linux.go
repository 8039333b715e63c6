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

//go:build linux

package tapdevice

import (
	"fmt"
	"net/netip"

	"github.com/songgao/water"
	"github.com/vishvananda/netlink"
)

// Open creates a TAP interface per config, assigns its addresses and MTU, and brings the link up. It requires
// CAP_NET_ADMIN.
func Open(config Config) (d *Device, err error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	tap, err := water.New(water.Config{
		DeviceType: water.TAP,
		PlatformSpecificParams: water.PlatformSpecificParams{
			Name:    config.Name,
			Persist: false,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create TAP device: %w", err)
	}
	defer func() {
		if err != nil {
			tap.Close()
		}
	}()
	// The kernel may have picked or adjusted the name.
	config.Name = tap.Name()

	link, err := netlink.LinkByName(config.Name)
	if err != nil {
		return nil, fmt.Errorf("newly created TAP device %q not found: %w", config.Name, err)
	}
	for _, prefix := range []string{prefixString(config.IPv4), prefixString(config.IPv6)} {
		if prefix == "" {
			continue
		}
		addr, err := netlink.ParseAddr(prefix)
		if err != nil {
			return nil, fmt.Errorf("address %q is not valid: %w", prefix, err)
		}
		if err := netlink.AddrAdd(link, addr); err != nil {
			return nil, fmt.Errorf("failed to add %q to TAP device %q: %w", prefix, config.Name, err)
		}
	}
	if err := netlink.LinkSetMTU(link, config.mtu()); err != nil {
		return nil, fmt.Errorf("failed to set MTU of TAP device %q: %w", config.Name, err)
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return nil, fmt.Errorf("failed to bring TAP device %q up: %w", config.Name, err)
	}

	return New(tap, config)
}

func prefixString(p netip.Prefix) string {
	if !p.IsValid() {
		return ""
	}
	return p.String()
}
