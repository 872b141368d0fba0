package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/blockberries/cramberry/pkg/cramberry"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/blockberries/stf/types"
)

var (
	// State keys live under "state:", metadata under "meta:".
	statePrefix = []byte("state:")
	lastHeadKey = []byte("meta:lastheader")
)

// PebbleStore is a persistent Store backed by PebbleDB.
type PebbleStore struct {
	mu sync.RWMutex
	db *pebble.DB
}

var _ Store = (*PebbleStore)(nil)

// PebbleOptions configures OpenPebble.
type PebbleOptions struct {
	// InMemory keeps all files in memory (tests).
	InMemory bool
}

// OpenPebble opens or creates a PebbleDB-backed store at dir.
func OpenPebble(dir string, opts PebbleOptions) (*PebbleStore, error) {
	popts := &pebble.Options{}
	if opts.InMemory {
		popts.FS = vfs.NewMem()
	}
	db, err := pebble.Open(dir, popts)
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", dir, err)
	}
	log.InfoS(context.Background(), "Opened pebble ledger", "dir", dir, "in_memory", opts.InMemory)
	return &PebbleStore{db: db}, nil
}

// View returns a pebble snapshot of the state keyspace.
func (p *PebbleStore) View() (View, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.db == nil {
		return nil, ErrClosed
	}
	return &pebbleView{snap: p.db.NewSnapshot()}, nil
}

// Commit writes cs and the header in one synced batch.
func (p *PebbleStore) Commit(cs ChangeSet, header types.Header) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return ErrClosed
	}

	batch := p.db.NewBatch()
	defer batch.Close()

	for _, c := range cs {
		key := stateKey(c.Key)
		var err error
		if c.Value == nil {
			err = batch.Delete(key, nil)
		} else {
			err = batch.Set(key, c.Value, nil)
		}
		if err != nil {
			return fmt.Errorf("stage %x: %w", c.Key, err)
		}
	}

	data, err := cramberry.Marshal(header)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	if err := batch.Set(lastHeadKey, data, nil); err != nil {
		return fmt.Errorf("stage header: %w", err)
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// LastHeader reads the last committed header.
func (p *PebbleStore) LastHeader() (types.Header, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.db == nil {
		return types.Header{}, false, ErrClosed
	}

	data, closer, err := p.db.Get(lastHeadKey)
	if errors.Is(err, pebble.ErrNotFound) {
		return types.Header{}, false, nil
	}
	if err != nil {
		return types.Header{}, false, err
	}
	defer closer.Close()

	var h types.Header
	if err := cramberry.Unmarshal(data, &h); err != nil {
		return types.Header{}, false, fmt.Errorf("decode header: %w", err)
	}
	return h, true, nil
}

// Close closes the database.
func (p *PebbleStore) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

func stateKey(key []byte) []byte {
	out := make([]byte, 0, len(statePrefix)+len(key))
	return append(append(out, statePrefix...), key...)
}

type pebbleView struct {
	snap *pebble.Snapshot
}

func (v *pebbleView) Get(key []byte) ([]byte, error) {
	val, closer, err := v.snap.Get(stateKey(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return bytes.Clone(val), nil
}

func (v *pebbleView) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	lower := stateKey(prefix)
	upper := prefixEnd(lower)

	iter, err := v.snap.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: upper,
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		key := bytes.Clone(iter.Key()[len(statePrefix):])
		if err := fn(key, bytes.Clone(iter.Value())); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (v *pebbleView) Release() {
	v.snap.Close()
}
