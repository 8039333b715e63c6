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

//go:build !linux

package tapdevice

import (
	"errors"
	"fmt"
	"runtime"
)

// Open is only implemented on Linux. Other platforms hand their frame streams to [New] directly, the way the
// mobile VPN shims pass an established tunnel file descriptor down.
func Open(config Config) (*Device, error) {
	return nil, fmt.Errorf("%w: opening a TAP device is not supported on %v", errors.ErrUnsupported, runtime.GOOS)
}
