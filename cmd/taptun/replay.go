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
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/taptun-dev/taptun-sdk/network/ethernet"
	"github.com/taptun-dev/taptun-sdk/network/tap2tun"
)

var replayCmd = &cobra.Command{
	Use:   "replay <input.pcap> <output.pcap>",
	Short: "Replay captured Ethernet frames through the translator",
	Long: `Read Ethernet frames from a pcap capture, run each one through the translator, and
write the extracted raw IP packets to an output pcap (linktype RAW). ARP traffic is
consumed the same way a live bridge would consume it; generated replies are counted
and discarded.

Example:
  taptun replay --mac 02:00:00:00:00:01 --our-ip 10.0.0.2 tap.pcap ip.pcap`,
	Args: cobra.ExactArgs(2),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().String("mac", "02:00:00:00:00:01", "MAC address the capture was taken with")
	replayCmd.Flags().String("our-ip", "", "IPv4 address to answer ARP requests for")
	replayCmd.Flags().String("gateway-ip", "", "optional gateway IPv4 address, restricts MAC learning")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	translator, err := newReplayTranslator(cmd)
	if err != nil {
		return err
	}
	defer translator.Close()

	in, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer in.Close()
	reader, err := pcapgo.NewReader(in)
	if err != nil {
		return fmt.Errorf("failed to read capture %q: %w", args[0], err)
	}
	if lt := reader.LinkType(); lt != layers.LinkTypeEthernet {
		return fmt.Errorf("capture %q has link type %v, need %v", args[0], lt, layers.LinkTypeEthernet)
	}

	out, err := os.Create(args[1])
	if err != nil {
		return err
	}
	defer out.Close()
	writer := pcapgo.NewWriter(out)
	if err := writer.WriteFileHeader(reader.Snaplen(), layers.LinkTypeRaw); err != nil {
		return err
	}

	packet := make([]byte, int(reader.Snaplen()))
	reply := make([]byte, ethernet.ARPFrameLen)
	var dropped, replies int
	for {
		frame, ci, err := reader.ReadPacketData()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read frame: %w", err)
		}

		n, handled, terr := translator.EthernetToIP(frame, packet)
		if handled {
			for {
				if _, err := translator.PopARPReply(reply); err != nil {
					break
				}
				replies++
			}
			continue
		}
		if terr != nil {
			log.WithError(terr).Debug("dropping frame")
			dropped++
			continue
		}
		ci.CaptureLength = n
		ci.Length = n
		if err := writer.WritePacket(ci, packet[:n]); err != nil {
			return err
		}
	}

	stats := translator.Stats()
	fields := logrus.Fields{
		"l2_to_l3":    stats.L2ToL3,
		"arp_handled": stats.ARPHandled,
		"arp_replies": replies,
		"dropped":     dropped,
	}
	if mac, ok := translator.GatewayMAC(); ok {
		fields["gateway_mac"] = mac.String()
	}
	log.WithFields(fields).Info("replay finished")
	return nil
}

func newReplayTranslator(cmd *cobra.Command) (*tap2tun.Translator, error) {
	macStr, _ := cmd.Flags().GetString("mac")
	mac, err := ethernet.ParseMAC(macStr)
	if err != nil {
		return nil, err
	}
	translator, err := tap2tun.NewTranslator(mac)
	if err != nil {
		return nil, err
	}
	if s, _ := cmd.Flags().GetString("our-ip"); s != "" {
		ip, err := netip.ParseAddr(s)
		if err != nil {
			translator.Close()
			return nil, fmt.Errorf("invalid our-ip: %w", err)
		}
		if err := translator.SetOurIP(ip); err != nil {
			translator.Close()
			return nil, err
		}
	}
	if s, _ := cmd.Flags().GetString("gateway-ip"); s != "" {
		ip, err := netip.ParseAddr(s)
		if err != nil {
			translator.Close()
			return nil, fmt.Errorf("invalid gateway-ip: %w", err)
		}
		if err := translator.SetGatewayIP(ip); err != nil {
			translator.Close()
			return nil, err
		}
	}
	return translator, nil
}
