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
	"github.com/taptun-dev/taptun-sdk/internal/slicepool"
)

const (
	// replyQueueCapacity bounds the memory an ARP-request flood can pin in the reply queue.
	replyQueueCapacity = 16

	// maxReplyFrameLen is the largest frame the queue can hold. Queued frames are complete Ethernet+ARP
	// replies; the translator always generates the 42-byte minimum, the bound leaves room for padded frames.
	maxReplyFrameLen = 60
)

// replyBufferPool provides the queue's frame storage, so that a flood of requests recycles the same handful of
// buffers instead of churning the garbage collector.
var replyBufferPool = slicepool.MakePool(maxReplyFrameLen)

type queuedReply struct {
	slice slicepool.LazySlice
	buf   []byte
	n     int
}

// arpReplyQueue is a fixed-capacity FIFO of complete, ready-to-send Ethernet frames. It is owned exclusively
// by a Translator; frames are copied in on push, so no caller-supplied buffer is ever retained.
type arpReplyQueue struct {
	entries [replyQueueCapacity]queuedReply
	head    int
	count   int
}

func (q *arpReplyQueue) len() int {
	return q.count
}

// push copies frame into the queue. It reports false, dropping the frame, when the queue is at capacity:
// rejecting the newest entry keeps the queued replies for the earliest requesters, which are the ones still
// waiting on a retry timer.
func (q *arpReplyQueue) push(frame []byte) bool {
	if q.count == replyQueueCapacity || len(frame) > maxReplyFrameLen {
		return false
	}
	e := &q.entries[(q.head+q.count)%replyQueueCapacity]
	e.slice = replyBufferPool.LazySlice()
	e.buf = e.slice.Acquire()
	e.n = copy(e.buf, frame)
	q.count++
	return true
}

// frontLen returns the length of the oldest queued frame. It must only be called when the queue is non-empty.
func (q *arpReplyQueue) frontLen() int {
	return q.entries[q.head].n
}

// pop copies the oldest queued frame into out and releases its storage, returning the frame length. The caller
// must ensure the queue is non-empty and out has at least frontLen() bytes.
func (q *arpReplyQueue) pop(out []byte) int {
	e := &q.entries[q.head]
	n := copy(out, e.buf[:e.n])
	e.slice.Release()
	e.buf = nil
	e.n = 0
	q.head = (q.head + 1) % replyQueueCapacity
	q.count--
	return n
}

// clear releases every queued frame back to the pool.
func (q *arpReplyQueue) clear() {
	for q.count > 0 {
		e := &q.entries[q.head]
		e.slice.Release()
		e.buf = nil
		e.n = 0
		q.head = (q.head + 1) % replyQueueCapacity
		q.count--
	}
}
