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

package network

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

// Portable analogs of some common errors.
//
// Errors returned from this package and all sub-packages can be tested against these errors using [errors.Is].
var (
	// ErrClosed is the error returned by any call on a network device or translator that has already been closed.
	// This can be wrapped in another error, and should normally be tested using errors.Is(err, network.ErrClosed).
	ErrClosed = fmt.Errorf("the network device is closed: %w", os.ErrClosed)

	// ErrInvalidParameter is the error returned when a caller-supplied argument is out of range or otherwise
	// unusable, for example a nil buffer, an all-zero MAC address, a non-IPv4 address where one is required, or an
	// MTU or prefix length outside its valid range.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrMalformedFrame is the error returned when an input buffer is too short to contain the fixed Ethernet
	// header, or when an IP packet's version nibble is neither 4 nor 6.
	ErrMalformedFrame = errors.New("malformed ethernet frame")

	// ErrMalformedARP is the error returned when an ARP payload is shorter than the fixed 28-byte body for
	// IPv4-over-Ethernet, or when its hardware/protocol type fields identify anything other than that profile.
	ErrMalformedARP = errors.New("malformed arp message")

	// ErrBufferTooSmall is the error returned when a caller-supplied output buffer cannot hold the full result.
	// Capacity is always validated before any byte is written, so a failed call never leaves a partial result in
	// the output buffer.
	ErrBufferTooSmall = errors.New("output buffer is too small")

	// ErrDeviceNotActive is the error returned by an operation that needs state the instance does not have yet,
	// such as framing an outbound packet before a gateway MAC has been learned or configured. The caller is
	// expected to retry once the missing state is available.
	ErrDeviceNotActive = errors.New("device is not active yet")

	// ErrWouldBlock is returned by pull-style operations when no data is available right now. It is a signal, not
	// a failure; callers normally poll again later.
	ErrWouldBlock = fmt.Errorf("no data available: %w", syscall.EWOULDBLOCK)

	// ErrUnsupportedProtocol is the error returned when a frame carries an ethertype the translator cannot
	// handle. It is distinct from the "handled internally" result so that callers can count or log untranslatable
	// traffic separately from consumed ARP traffic.
	ErrUnsupportedProtocol = errors.New("unsupported protocol")

	// ErrMsgSize is the error returned by a Write on a network device when the message is bigger than the
	// maximum message size the device can process.
	ErrMsgSize = fmt.Errorf("packet size is too big: %w", syscall.EMSGSIZE)
)
