package ledger

import (
	"bytes"
	"slices"
	"strings"

	"github.com/blockberries/stf"
)

// Overlay is a mutable stf.State that buffers writes over a read-only
// base. Reads see the buffered writes first. Overlay is not safe for
// concurrent use; the executor owns it for the duration of a block.
type Overlay struct {
	base stf.StateReader
	// nil value marks a deletion.
	writes map[string][]byte
}

var _ stf.State = (*Overlay)(nil)

// NewOverlay creates an empty overlay over base.
func NewOverlay(base stf.StateReader) *Overlay {
	return &Overlay{base: base, writes: make(map[string][]byte)}
}

// Get returns the buffered value for key, falling back to the base.
func (o *Overlay) Get(key []byte) ([]byte, error) {
	if v, ok := o.writes[string(key)]; ok {
		if v == nil {
			return nil, nil
		}
		return bytes.Clone(v), nil
	}
	return o.base.Get(key)
}

// Set buffers a write. A nil value is stored as empty.
func (o *Overlay) Set(key, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	o.writes[string(key)] = bytes.Clone(value)
	return nil
}

// Delete buffers a deletion.
func (o *Overlay) Delete(key []byte) error {
	o.writes[string(key)] = nil
	return nil
}

// Iterate merges the base and the buffered writes in key order.
func (o *Overlay) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	keys := o.sortedKeys(prefix)

	var i int
	// emit visits buffered keys below limit (all remaining if nil).
	emit := func(limit []byte) error {
		for ; i < len(keys); i++ {
			k := []byte(keys[i])
			if limit != nil && bytes.Compare(k, limit) >= 0 {
				return nil
			}
			if v := o.writes[keys[i]]; v != nil {
				if err := fn(k, v); err != nil {
					return err
				}
			}
		}
		return nil
	}

	err := o.base.Iterate(prefix, func(key, value []byte) error {
		if err := emit(key); err != nil {
			return err
		}
		if _, shadowed := o.writes[string(key)]; shadowed {
			return nil
		}
		return fn(key, value)
	})
	if err != nil {
		return err
	}
	return emit(nil)
}

func (o *Overlay) sortedKeys(prefix []byte) []string {
	p := string(prefix)
	keys := make([]string, 0, len(o.writes))
	for k := range o.writes {
		if strings.HasPrefix(k, p) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

// ChangeSet returns the buffered writes sorted by key.
func (o *Overlay) ChangeSet() ChangeSet {
	keys := o.sortedKeys(nil)
	cs := make(ChangeSet, 0, len(keys))
	for _, k := range keys {
		cs = append(cs, Change{Key: []byte(k), Value: o.writes[k]})
	}
	return cs
}

// Len returns the number of buffered writes.
func (o *Overlay) Len() int { return len(o.writes) }

// Reset discards all buffered writes.
func (o *Overlay) Reset() {
	clear(o.writes)
}
