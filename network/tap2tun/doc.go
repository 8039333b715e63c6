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

/*
Package tap2tun translates between Ethernet-framed (layer 2) traffic and raw IP (layer 3) packets, so that an
L2-only path such as a TAP interface can be serviced by an environment that only moves IP packets, such as a
queue-based tunnel API.

The [Translator] strips and prepends Ethernet headers, and services ARP entirely in user space: requests for the
interface's own IPv4 address are answered from a small internal reply queue, and the link peer's ("gateway")
hardware address is learned from the first relevant ARP message observed. The translator performs no I/O of its
own; callers move frames and packets between it and their devices, and drain the ARP reply queue, at their own
pace. [Bridge] implements that pump for the common two-device case.
*/
package tap2tun
