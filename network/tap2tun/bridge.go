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
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/taptun-dev/taptun-sdk/network"
	"github.com/taptun-dev/taptun-sdk/network/ethernet"
)

// Bridge forwards traffic bidirectionally between the Ethernet-framed link and the IP device ip, translating
// every packet through t, until an error or EOF occurs on either device.
//
// A successful Bridge returns err == nil, not err == EOF: it does not consider EOF from either device to be an
// error. Once Bridge has started, the only way to stop forwarding traffic is to close one of the devices (or
// otherwise make it return an error or EOF); Bridge returns after both directions have stopped.
//
// Bridge takes over the caller's serialization duty for t: all translator calls are funneled through one
// mutex, so the same instance must not be used elsewhere while a Bridge is running. Generated ARP replies are
// drained to the link after every inbound frame, and while the gateway MAC is still unknown outbound packets
// are dropped and replaced with a gateway probe when the translator is configured for one. Per-frame
// translation failures (malformed or unsupported traffic from the wire) drop the offending frame and keep the
// bridge running.
func Bridge(link network.LinkDevice, ip network.IPDevice, t *Translator) error {
	if link == nil || ip == nil || t == nil {
		return fmt.Errorf("%w: link, ip and t are required", network.ErrInvalidParameter)
	}

	var mu sync.Mutex // serializes every access to t
	var wg sync.WaitGroup
	errs := make(chan error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		errs <- pumpLinkToIP(link, ip, t, &mu)
	}()
	go func() {
		defer wg.Done()
		errs <- pumpIPToLink(link, ip, t, &mu)
	}()
	wg.Wait()

	var failure error
	for i := 0; i < 2; i++ {
		err := <-errs
		if err == nil || errors.Is(err, io.EOF) || errors.Is(err, network.ErrClosed) {
			continue // normal shutdown of one side
		}
		failure = errors.Join(failure, err)
	}
	return failure
}

func pumpLinkToIP(link network.LinkDevice, ip network.IPDevice, t *Translator, mu *sync.Mutex) error {
	frame := make([]byte, link.MTU()+ethernet.HeaderLen)
	packet := make([]byte, ip.MTU())
	reply := make([]byte, maxReplyFrameLen)

	for {
		n, err := link.Read(frame)
		if err != nil {
			return err
		}

		mu.Lock()
		pn, handled, terr := t.EthernetToIP(frame[:n], packet)
		mu.Unlock()

		if handled {
			if err := flushARPReplies(link, t, mu, reply); err != nil {
				return err
			}
			continue
		}
		if terr != nil {
			// Wire traffic we cannot translate is dropped; only device failures stop the bridge.
			continue
		}
		if _, err := ip.Write(packet[:pn]); err != nil {
			return err
		}
	}
}

func pumpIPToLink(link network.LinkDevice, ip network.IPDevice, t *Translator, mu *sync.Mutex) error {
	packet := make([]byte, ip.MTU())
	frame := make([]byte, ip.MTU()+ethernet.HeaderLen)

	for {
		n, err := ip.Read(packet)
		if err != nil {
			return err
		}

		mu.Lock()
		fn, terr := t.IPToEthernet(packet[:n], frame)
		if errors.Is(terr, network.ErrDeviceNotActive) {
			// No gateway MAC yet: drop the packet and solicit one instead, if the translator knows whom
			// to ask. The upper layers will retransmit.
			fn, terr = t.GatewayProbeFrame(frame)
		}
		mu.Unlock()

		if terr != nil {
			continue
		}
		if _, err := link.Write(frame[:fn]); err != nil {
			return err
		}
	}
}

func flushARPReplies(link network.LinkDevice, t *Translator, mu *sync.Mutex, reply []byte) error {
	for {
		mu.Lock()
		n, err := t.PopARPReply(reply)
		mu.Unlock()
		if errors.Is(err, network.ErrWouldBlock) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := link.Write(reply[:n]); err != nil {
			return err
		}
	}
}
