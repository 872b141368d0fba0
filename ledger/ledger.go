// Package ledger provides the state handles lent to the executor: a
// working Overlay that buffers one block's writes over a read view,
// and the committed stores it is layered on (MemStore, PebbleStore).
//
// Stores hand out point-in-time Views. A View never observes later
// commits, so the admission oracle can run against one concurrently
// with block execution.
package ledger

import (
	"bytes"
	"errors"

	"github.com/blockberries/stf"
	"github.com/blockberries/stf/types"
)

// ErrClosed is returned by operations on a closed store or view.
var ErrClosed = errors.New("ledger: closed")

// View is a point-in-time read-only snapshot of committed state.
type View interface {
	stf.StateReader

	// Release frees the snapshot. The view must not be used after.
	Release()
}

// Store is committed ledger storage.
type Store interface {
	// View returns a snapshot of the latest committed state.
	View() (View, error)

	// Commit atomically applies a change set and records header as
	// the last committed header.
	Commit(cs ChangeSet, header types.Header) error

	// LastHeader returns the last committed header, if any.
	LastHeader() (types.Header, bool, error)

	Close() error
}

// Change is a single write. A nil Value deletes the key.
type Change struct {
	Key   []byte
	Value []byte
}

// ChangeSet is an ordered list of writes, sorted by key.
type ChangeSet []Change

// prefixEnd returns the smallest key greater than every key with the
// given prefix, or nil if there is none.
func prefixEnd(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xFF {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
