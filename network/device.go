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

// IPDevice is a generic network device that reads and writes raw IP packets (OSI layer 3). It extends the
// [io.ReadWriteCloser] interface.
//
// Some examples of IPDevices are a TUN virtual network adapter, or the IP side of a user-space network stack.
type IPDevice interface {
	// Close closes this device. Any future Read will return io.EOF and Write will return ErrClosed.
	Close() error

	// Read reads one IP packet from this device into p, returning the number of bytes read. It blocks until a
	// full IP packet has been received. Note that an IP packet might be fragmented, and we will not reassemble
	// it. Instead, we will simply return the fragmented packets to the caller.
	//
	// If len(p) is smaller than the incoming IP packet, only len(p) bytes will be copied to p, the excess bytes
	// are discarded (this aligns with the socket recvfrom function), and nil error will be returned. You can use
	// MTU to get the maximum size of the packets.
	Read(p []byte) (int, error)

	// Write writes one IP packet p to this device and returns the number of bytes written. Write will return
	// (0, ErrMsgSize) if len(p) > MTU(). This aligns with the socket sendto function.
	//
	// If the returned error is nil, the entire packet has been written to the destination; partial writes are
	// reported with a non-nil error.
	Write(p []byte) (int, error)

	// MTU returns the size of the Maximum Transmission Unit for this device, which is the maximum size of a
	// single IP packet that can be received/sent.
	MTU() int
}

// LinkDevice is a generic network device that reads and writes whole Ethernet frames (OSI layer 2). It has the
// same shape as [IPDevice], but every buffer passed through it includes the 14-byte Ethernet header.
//
// Some examples of LinkDevices are a TAP virtual network adapter, or the frame side of a tunnel transport that
// moves Ethernet frames over a queue.
type LinkDevice interface {
	// Close closes this device. Any future Read will return io.EOF and Write will return ErrClosed.
	Close() error

	// Read reads one Ethernet frame from this device into p, returning the number of bytes read. It blocks until
	// a full frame has been received. If len(p) is smaller than the incoming frame, only len(p) bytes will be
	// copied to p and the excess bytes are discarded.
	Read(p []byte) (int, error)

	// Write writes one Ethernet frame p to this device. Write will return (0, ErrMsgSize) if the frame payload
	// exceeds the device MTU.
	Write(p []byte) (int, error)

	// MTU returns the size of the Maximum Transmission Unit for this device. The MTU does not include the
	// Ethernet header: the largest valid frame is MTU()+14 bytes.
	MTU() int
}
