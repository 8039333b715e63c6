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
The network package defines interfaces and portable errors for moving packets between the link layer (OSI layer 2)
and the network layer (OSI layer 3). Use the [LinkDevice] interface to read and write Ethernet frames, and the
[IPDevice] interface to read and write raw IP packets, from physical or virtual network devices.

The sub-packages provide the pieces that connect the two layers: [network/ethernet] parses and serializes Ethernet
and ARP wire formats, [network/tap2tun] translates between framed and unframed traffic while answering ARP locally,
and [network/tapdevice] adapts an OS TAP interface to the [LinkDevice] interface.
*/
package network
