// Package pipeline implements the engine's concurrency and resource
// model: two single-producer/single-consumer ring buffers (ingress,
// egress) around one single-threaded core mutator. Nothing outside the
// core goroutine ever touches engine state directly.
//
// The ring buffer itself is generic over its element type so the same
// claim/publish/consume implementation carries coreapi.Command on
// ingress and events.Event on egress without duplication.
package pipeline

import (
	"errors"
	"runtime"
	"sync/atomic"
)

// ErrBufferFull is returned when the ring buffer has no free slot after
// spinning for a bounded number of iterations.
var ErrBufferFull = errors.New("pipeline: ring buffer is full")

type ringSlot[T any] struct {
	seq   uint64
	value T
	_     [40]byte // pad toward a 64-byte cache line
}

// RingBuffer is a fixed-size, power-of-two-sized circular buffer with a
// CAS-claimed write cursor and a single reader cursor. One RingBuffer
// instance is used single-producer/single-consumer in this package, but
// the write side stays CAS-based rather than a bare increment, because
// NotifyDisconnect's synthetic CancelAllFor can be submitted from a
// second goroutine concurrently with the normal submission path.
type RingBuffer[T any] struct {
	size      uint64
	mask      uint64
	slots     []ringSlot[T]
	cursor    uint64 // highest claimed sequence
	readSeq   uint64 // next sequence the consumer expects
	gatingSeq uint64 // highest sequence the consumer has released
}

// NewRingBuffer creates a ring buffer with the given power-of-two size.
func NewRingBuffer[T any](size uint64) *RingBuffer[T] {
	if size == 0 || size&(size-1) != 0 {
		panic("pipeline: ring buffer size must be a power of 2")
	}
	return &RingBuffer[T]{
		size:    size,
		mask:    size - 1,
		slots:   make([]ringSlot[T], size),
		readSeq: 1,
	}
}

const maxClaimSpins = 10000

// Claim reserves the next sequence number for writing, spinning briefly
// if the buffer is full before giving up with ErrBufferFull.
func (rb *RingBuffer[T]) Claim() (uint64, error) {
	for spins := 0; spins < maxClaimSpins; spins++ {
		current := atomic.LoadUint64(&rb.cursor)
		next := current + 1

		available := atomic.LoadUint64(&rb.gatingSeq) + rb.size
		if next > available {
			runtime.Gosched()
			continue
		}
		if atomic.CompareAndSwapUint64(&rb.cursor, current, next) {
			return next, nil
		}
	}
	return 0, ErrBufferFull
}

// Publish writes value into the slot for seq and marks it ready. seq
// must come from a prior successful Claim.
func (rb *RingBuffer[T]) Publish(seq uint64, value T) {
	slot := &rb.slots[seq&rb.mask]
	slot.value = value
	atomic.StoreUint64(&slot.seq, seq)
}

// Next blocks (spin-waiting, yielding between checks) until the next
// sequence in order is published, or until done is closed, in which case
// it returns the zero value and ok=false. done is checked before the
// slot on every iteration, including the first, so a closed done stops
// consumption immediately even when further entries are already
// published and ready: a dying consumer must not keep draining the ring.
func (rb *RingBuffer[T]) Next(done <-chan struct{}) (value T, ok bool) {
	seq := rb.readSeq
	slot := &rb.slots[seq&rb.mask]

	for {
		select {
		case <-done:
			var zero T
			return zero, false
		default:
		}
		if atomic.LoadUint64(&slot.seq) == seq {
			break
		}
		runtime.Gosched()
	}

	value = slot.value
	rb.readSeq++
	atomic.StoreUint64(&rb.gatingSeq, seq)
	return value, true
}
