// Package mailbox provides the two single-slot primitives the dispatcher and
// its workers synchronize through.
//
// A Broadcast carries one value from a single publisher to a fixed set of
// receivers and counts their acknowledgements. A Rendezvous carries values
// from many producers to one consumer, one at a time.
package mailbox

import "errors"

var (
	// ErrClosed is returned by any operation on a closed mailbox.
	ErrClosed = errors.New("mailbox closed")

	// ErrCycleInProgress is returned by Publish while the previous value is
	// still waiting for acknowledgements.
	ErrCycleInProgress = errors.New("publish cycle still in progress")
)
