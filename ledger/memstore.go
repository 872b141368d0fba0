package ledger

import (
	"bytes"
	"sync"

	iradix "github.com/hashicorp/go-immutable-radix"

	"github.com/blockberries/stf/types"
)

// MemStore is an in-memory Store backed by an immutable radix tree.
// Views share structure with the tree they were taken from, so taking
// one is O(1) and never blocks a commit.
type MemStore struct {
	mu     sync.RWMutex
	tree   *iradix.Tree
	header *types.Header
	closed bool
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{tree: iradix.New()}
}

// View returns a snapshot of the current tree.
func (m *MemStore) View() (View, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	return &memView{tree: m.tree}, nil
}

// Commit applies cs in one radix transaction.
func (m *MemStore) Commit(cs ChangeSet, header types.Header) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	txn := m.tree.Txn()
	for _, c := range cs {
		if c.Value == nil {
			txn.Delete(c.Key)
			continue
		}
		txn.Insert(c.Key, c.Value)
	}
	m.tree = txn.Commit()
	m.header = &header
	return nil
}

// LastHeader returns the last committed header.
func (m *MemStore) LastHeader() (types.Header, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.header == nil {
		return types.Header{}, false, nil
	}
	return *m.header, true, nil
}

// Close marks the store closed.
func (m *MemStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

type memView struct {
	tree *iradix.Tree
}

func (v *memView) Get(key []byte) ([]byte, error) {
	val, ok := v.tree.Get(key)
	if !ok {
		return nil, nil
	}
	return bytes.Clone(val.([]byte)), nil
}

func (v *memView) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	var err error
	v.tree.Root().WalkPrefix(prefix, func(k []byte, val interface{}) bool {
		err = fn(k, val.([]byte))
		return err != nil
	})
	return err
}

func (v *memView) Release() {}
