package mailbox

import "sync"

// Rendezvous is a single-slot mailbox. Put blocks while the slot is full and
// Take blocks while it is empty, so values never overwrite one another.
type Rendezvous[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	value  T
	full   bool
	closed bool
}

// NewRendezvous returns an empty, open rendezvous mailbox.
func NewRendezvous[T any]() *Rendezvous[T] {
	r := &Rendezvous[T]{}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Put waits for the slot to be free, then stores v and wakes the consumer.
func (r *Rendezvous[T]) Put(v T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for !r.closed && r.full {
		r.cond.Wait()
	}
	if r.closed {
		return ErrClosed
	}
	r.value = v
	r.full = true
	r.cond.Broadcast()
	return nil
}

// Take waits for a value, empties the slot and wakes any waiting producer.
// A value stored before Close is still delivered.
func (r *Rendezvous[T]) Take() (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for !r.closed && !r.full {
		r.cond.Wait()
	}
	if !r.full {
		var zero T
		return zero, ErrClosed
	}
	v := r.value
	var zero T
	r.value = zero
	r.full = false
	r.cond.Broadcast()
	return v, nil
}

// Close wakes every blocked goroutine; subsequent Puts fail.
func (r *Rendezvous[T]) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cond.Broadcast()
}
