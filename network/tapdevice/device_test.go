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

package tapdevice

import (
	"io"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taptun-dev/taptun-sdk/network"
)

// loopbackStream echoes the last written frame back to the next Read. One frame per call, like a TAP fd.
type loopbackStream struct {
	frame  []byte
	closed bool
}

func (s *loopbackStream) Read(p []byte) (int, error) {
	if s.closed {
		return 0, io.EOF
	}
	if s.frame == nil {
		return 0, io.EOF
	}
	n := copy(p, s.frame)
	s.frame = nil
	return n, nil
}

func (s *loopbackStream) Write(p []byte) (int, error) {
	if s.closed {
		return 0, io.ErrClosedPipe
	}
	s.frame = append([]byte(nil), p...)
	return len(p), nil
}

func (s *loopbackStream) Close() error {
	s.closed = true
	return nil
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		valid  bool
	}{
		{"zero value", Config{}, true},
		{"default MTU", Config{MTU: 1500}, true},
		{"minimum MTU", Config{MTU: MinMTU}, true},
		{"maximum MTU", Config{MTU: MaxMTU}, true},
		{"MTU too small", Config{MTU: 100}, false},
		{"MTU too large", Config{MTU: 70000}, false},
		{"IPv4 prefix", Config{IPv4: netip.MustParsePrefix("10.0.0.2/24")}, true},
		{"IPv6 in IPv4 field", Config{IPv4: netip.MustParsePrefix("2001:db8::1/64")}, false},
		{"IPv6 prefix", Config{IPv6: netip.MustParsePrefix("2001:db8::1/64")}, true},
		{"IPv4 in IPv6 field", Config{IPv6: netip.MustParsePrefix("10.0.0.2/24")}, false},
		{"4-in-6 in IPv6 field", Config{IPv6: netip.MustParsePrefix("::ffff:10.0.0.2/96")}, false},
		{"both families", Config{IPv4: netip.MustParsePrefix("10.0.0.2/24"), IPv6: netip.MustParsePrefix("fd00::2/64")}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.config.Validate()
			if tc.valid {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, network.ErrInvalidParameter)
			}
		})
	}
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, Config{})
	require.ErrorIs(t, err, network.ErrInvalidParameter)

	_, err = New(&loopbackStream{}, Config{MTU: 100})
	require.ErrorIs(t, err, network.ErrInvalidParameter)
}

func TestDeviceCountsTraffic(t *testing.T) {
	d, err := New(&loopbackStream{}, Config{Name: "test0"})
	require.NoError(t, err)
	defer d.Close()
	require.Equal(t, DefaultMTU, d.MTU())
	require.Equal(t, "test0", d.Config().Name)

	frame := make([]byte, 42)
	n, err := d.Write(frame)
	require.NoError(t, err)
	require.Equal(t, 42, n)

	buf := make([]byte, 1514)
	n, err = d.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 42, n)

	stats := d.Stats()
	require.Equal(t, DeviceStats{
		BytesRead:      42,
		BytesWritten:   42,
		PacketsRead:    1,
		PacketsWritten: 1,
	}, stats)
}

func TestDeviceRejectsOversizedFrames(t *testing.T) {
	d, err := New(&loopbackStream{}, Config{MTU: MinMTU})
	require.NoError(t, err)
	defer d.Close()

	// MTU plus the Ethernet header is the limit.
	n, err := d.Write(make([]byte, MinMTU+14))
	require.NoError(t, err)
	require.Equal(t, MinMTU+14, n)

	_, err = d.Write(make([]byte, MinMTU+15))
	require.ErrorIs(t, err, network.ErrMsgSize)

	// The rejected frame never reached the stream and was not counted.
	require.Equal(t, uint64(1), d.Stats().PacketsWritten)
}

func TestDeviceClose(t *testing.T) {
	stream := &loopbackStream{}
	d, err := New(stream, Config{})
	require.NoError(t, err)

	require.NoError(t, d.Close())
	require.True(t, stream.closed)
	require.NoError(t, d.Close())

	_, err = d.Read(make([]byte, 1514))
	require.ErrorIs(t, err, io.EOF)
	_, err = d.Write(make([]byte, 42))
	require.ErrorIs(t, err, network.ErrClosed)
}
