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

// Package slicepool provides a Pool of slices of a fixed length, to reduce pressure on the garbage collector
// from buffers that are allocated and released at a high rate.
package slicepool

import (
	"sync"
)

// Pool wraps a [sync.Pool] of *[]byte. To encourage correct usage, all copies of a Pool refer to the same
// underlying pool, and slices are only accessible through [LazySlice].
type Pool struct {
	pool *sync.Pool
}

// MakePool returns a Pool of slices with the specified length.
func MakePool(sliceLen int) Pool {
	return Pool{
		pool: &sync.Pool{
			New: func() any {
				slice := make([]byte, sliceLen)
				// Return a pointer, to avoid allocating a new interface box on every Put.
				return &slice
			},
		},
	}
}

// LazySlice returns an unacquired [LazySlice] tied to this Pool.
func (p *Pool) LazySlice() LazySlice {
	return LazySlice{pool: p.pool}
}

// LazySlice holds 0 or 1 slices from a particular Pool. Acquire and Release must be called in matched pairs;
// the zero state (no slice held) tolerates a Release without a preceding Acquire, which simplifies cleanup
// paths.
type LazySlice struct {
	slice *[]byte
	pool  *sync.Pool
}

// Acquire borrows a slice from the pool and returns it. It must not be called again before Release.
func (b *LazySlice) Acquire() []byte {
	if b.slice != nil {
		panic("slice is already acquired")
	}
	b.slice = b.pool.Get().(*[]byte)
	return *b.slice
}

// Release returns the borrowed slice to the pool, if one is held. The caller must not use the slice after
// this point.
func (b *LazySlice) Release() {
	if b.slice != nil {
		b.pool.Put(b.slice)
		b.slice = nil
	}
}
