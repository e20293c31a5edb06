package mailbox

import "sync"

// Broadcast is a single-slot mailbox read by every receiver once per
// publication. The publisher may not publish again until AwaitAcks has
// observed every receiver's acknowledgement.
type Broadcast[T any] struct {
	mu      sync.Mutex
	cond    *sync.Cond
	value   T
	gen     uint64
	ready   bool
	closed  bool
	acks    int
	waiting int
}

// NewBroadcast returns an empty, open broadcast mailbox.
func NewBroadcast[T any]() *Broadcast[T] {
	b := &Broadcast[T]{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Publish stores v, advances the generation and wakes every receiver.
func (b *Broadcast[T]) Publish(v T) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}
	if b.ready {
		return 0, ErrCycleInProgress
	}
	b.value = v
	b.gen++
	b.ready = true
	b.acks = 0
	b.cond.Broadcast()
	return b.gen, nil
}

// Receive blocks until a value newer than lastGen is published or the
// mailbox is closed. A successful receive counts as one acknowledgement.
// ok is false once the mailbox is closed.
func (b *Broadcast[T]) Receive(lastGen uint64) (v T, gen uint64, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.waiting++
	b.cond.Broadcast()
	for !b.closed && !(b.ready && b.gen > lastGen) {
		b.cond.Wait()
	}
	b.waiting--

	if b.closed {
		var zero T
		return zero, lastGen, false
	}
	b.acks++
	b.cond.Broadcast()
	return b.value, b.gen, true
}

// AwaitAcks blocks until n receivers have acknowledged the current value,
// then clears the slot and zeroes the counter so the next Publish can
// proceed.
func (b *Broadcast[T]) AwaitAcks(n int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for !b.closed && b.acks < n {
		b.cond.Wait()
	}
	if b.closed {
		return ErrClosed
	}
	b.ready = false
	b.acks = 0
	return nil
}

// AwaitReceivers blocks until at least n goroutines are parked in Receive.
func (b *Broadcast[T]) AwaitReceivers(n int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for !b.closed && b.waiting < n {
		b.cond.Wait()
	}
	if b.closed {
		return ErrClosed
	}
	return nil
}

// Generation returns the generation of the most recent publication.
func (b *Broadcast[T]) Generation() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gen
}

// Close marks the mailbox shut down and wakes every blocked goroutine.
// Close is idempotent.
func (b *Broadcast[T]) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.cond.Broadcast()
}
