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
	"net/netip"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/taptun-dev/taptun-sdk/network/ethernet"
	"github.com/taptun-dev/taptun-sdk/network/tap2tun"
	"github.com/taptun-dev/taptun-sdk/network/tapdevice"
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Bridge a TAP interface to a UDP peer carrying raw IP packets",
	Long: `Create a TAP interface and forward its traffic to a UDP peer, one raw IP packet per
datagram. ARP on the TAP side is answered locally; the gateway MAC is learned from the
first relevant ARP message (or probed when --gateway-ip is set).

Examples:
  taptun bridge --tap-name taptun0 --ipv4 10.0.0.2/24 --mac 02:00:00:00:00:01 --peer 192.0.2.1:7000
  taptun bridge -c /etc/taptun/config.yml`,
	RunE: runBridge,
}

func init() {
	bridgeCmd.Flags().String("tap-name", "taptun0", "TAP interface name")
	bridgeCmd.Flags().Int("mtu", tapdevice.DefaultMTU, "TAP interface MTU")
	bridgeCmd.Flags().String("ipv4", "", "IPv4 address/prefix for the TAP interface, e.g. 10.0.0.2/24")
	bridgeCmd.Flags().String("ipv6", "", "optional IPv6 address/prefix for the TAP interface")
	bridgeCmd.Flags().String("mac", "", "MAC address of the TAP interface, e.g. 02:00:00:00:00:01")
	bridgeCmd.Flags().String("gateway-ip", "", "optional gateway IPv4 address, restricts MAC learning and enables probing")
	bridgeCmd.Flags().String("peer", "", "UDP peer moving raw IP packets, host:port")
	must(viper.BindPFlag("tap.name", bridgeCmd.Flags().Lookup("tap-name")))
	must(viper.BindPFlag("tap.mtu", bridgeCmd.Flags().Lookup("mtu")))
	must(viper.BindPFlag("tap.ipv4", bridgeCmd.Flags().Lookup("ipv4")))
	must(viper.BindPFlag("tap.ipv6", bridgeCmd.Flags().Lookup("ipv6")))
	must(viper.BindPFlag("tap.mac", bridgeCmd.Flags().Lookup("mac")))
	must(viper.BindPFlag("gateway.ip", bridgeCmd.Flags().Lookup("gateway-ip")))
	must(viper.BindPFlag("peer", bridgeCmd.Flags().Lookup("peer")))
	rootCmd.AddCommand(bridgeCmd)
}

func runBridge(_ *cobra.Command, _ []string) error {
	translator, err := newTranslatorFromConfig()
	if err != nil {
		return err
	}
	defer translator.Close()

	config := tapdevice.Config{
		Name: viper.GetString("tap.name"),
		MTU:  viper.GetInt("tap.mtu"),
	}
	if s := viper.GetString("tap.ipv4"); s != "" {
		if config.IPv4, err = netip.ParsePrefix(s); err != nil {
			return fmt.Errorf("invalid tap.ipv4: %w", err)
		}
		if err := translator.SetOurIP(config.IPv4.Addr()); err != nil {
			return err
		}
	}
	if s := viper.GetString("tap.ipv6"); s != "" {
		if config.IPv6, err = netip.ParsePrefix(s); err != nil {
			return fmt.Errorf("invalid tap.ipv6: %w", err)
		}
	}

	peer := viper.GetString("peer")
	if peer == "" {
		return fmt.Errorf("peer is required")
	}

	tap, err := tapdevice.Open(config)
	if err != nil {
		return err
	}
	defer tap.Close()

	ipDev, err := newUDPIPDevice(peer, tap.MTU())
	if err != nil {
		return err
	}
	defer ipDev.Close()

	log.WithFields(logrus.Fields{
		"tap":  tap.Config().Name,
		"peer": peer,
		"mtu":  tap.MTU(),
	}).Info("bridge started")

	// Closing both devices is what makes Bridge return.
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		s := <-sigc
		log.WithField("signal", s).Info("shutting down")
		tap.Close()
		ipDev.Close()
	}()

	err = tap2tun.Bridge(tap, ipDev, translator)

	stats := translator.Stats()
	devStats := tap.Stats()
	log.WithFields(logrus.Fields{
		"l2_to_l3":        stats.L2ToL3,
		"l3_to_l2":        stats.L3ToL2,
		"arp_handled":     stats.ARPHandled,
		"bytes_read":      devStats.BytesRead,
		"bytes_written":   devStats.BytesWritten,
		"packets_read":    devStats.PacketsRead,
		"packets_written": devStats.PacketsWritten,
	}).Info("bridge stopped")
	return err
}

// newTranslatorFromConfig builds a Translator from the tap.mac and gateway.ip settings.
func newTranslatorFromConfig() (*tap2tun.Translator, error) {
	macStr := viper.GetString("tap.mac")
	if macStr == "" {
		return nil, fmt.Errorf("tap.mac is required")
	}
	mac, err := ethernet.ParseMAC(macStr)
	if err != nil {
		return nil, err
	}
	translator, err := tap2tun.NewTranslator(mac)
	if err != nil {
		return nil, err
	}
	if s := viper.GetString("gateway.ip"); s != "" {
		gw, err := netip.ParseAddr(s)
		if err != nil {
			translator.Close()
			return nil, fmt.Errorf("invalid gateway.ip: %w", err)
		}
		if err := translator.SetGatewayIP(gw); err != nil {
			translator.Close()
			return nil, err
		}
	}
	return translator, nil
}
