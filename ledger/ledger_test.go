package ledger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/blockberries/stf/types"
	"github.com/stretchr/testify/require"
)

// storeFactories lets every store test run against both backends.
var storeFactories = map[string]func(t *testing.T) Store{
	"mem": func(t *testing.T) Store {
		return NewMemStore()
	},
	"pebble": func(t *testing.T) Store {
		s, err := OpenPebble("ledger", PebbleOptions{InMemory: true})
		require.NoError(t, err)
		return s
	},
}

func collect(t *testing.T, r interface {
	Iterate([]byte, func(k, v []byte) error) error
}, prefix string) []string {
	t.Helper()
	var out []string
	err := r.Iterate([]byte(prefix), func(k, v []byte) error {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestStoreCommitAndView(t *testing.T) {
	for name, open := range storeFactories {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()

			_, ok, err := s.LastHeader()
			require.NoError(t, err)
			require.False(t, ok)

			h1 := types.Header{Number: 1, StateRoot: types.Hash{0x01}}
			require.NoError(t, s.Commit(ChangeSet{
				{Key: []byte("a/1"), Value: []byte("x")},
				{Key: []byte("a/2"), Value: []byte("y")},
				{Key: []byte("b/1"), Value: []byte("z")},
			}, h1))

			before, err := s.View()
			require.NoError(t, err)
			defer before.Release()

			h2 := types.Header{Number: 2}
			require.NoError(t, s.Commit(ChangeSet{
				{Key: []byte("a/1"), Value: nil},
				{Key: []byte("a/3"), Value: []byte("w")},
			}, h2))

			// The earlier view is unaffected by the later commit.
			require.Equal(t, []string{"a/1=x", "a/2=y"}, collect(t, before, "a/"))

			after, err := s.View()
			require.NoError(t, err)
			defer after.Release()

			v, err := after.Get([]byte("a/1"))
			require.NoError(t, err)
			require.Nil(t, v)
			require.Equal(t, []string{"a/2=y", "a/3=w"}, collect(t, after, "a/"))
			require.Equal(t, []string{"a/2=y", "a/3=w", "b/1=z"}, collect(t, after, ""))

			last, ok, err := s.LastHeader()
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, h2.Hash(), last.Hash())
		})
	}
}

func TestStoreClosed(t *testing.T) {
	for name, open := range storeFactories {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			require.NoError(t, s.Close())
			_, err := s.View()
			require.ErrorIs(t, err, ErrClosed)
		})
	}
}

func TestOverlayReadsThroughAndShadows(t *testing.T) {
	base := NewMemStore()
	require.NoError(t, base.Commit(ChangeSet{
		{Key: []byte("k/1"), Value: []byte("base1")},
		{Key: []byte("k/3"), Value: []byte("base3")},
		{Key: []byte("k/5"), Value: []byte("base5")},
	}, types.Header{}))
	view, err := base.View()
	require.NoError(t, err)

	o := NewOverlay(view)
	require.NoError(t, o.Set([]byte("k/0"), []byte("new0")))
	require.NoError(t, o.Set([]byte("k/3"), []byte("new3")))
	require.NoError(t, o.Set([]byte("k/4"), []byte("new4")))
	require.NoError(t, o.Delete([]byte("k/5")))
	require.NoError(t, o.Set([]byte("z"), []byte("other")))

	v, err := o.Get([]byte("k/1"))
	require.NoError(t, err)
	require.Equal(t, []byte("base1"), v)

	v, err = o.Get([]byte("k/5"))
	require.NoError(t, err)
	require.Nil(t, v)

	require.Equal(t,
		[]string{"k/0=new0", "k/1=base1", "k/3=new3", "k/4=new4"},
		collect(t, o, "k/"))

	cs := o.ChangeSet()
	require.Len(t, cs, 5)
	require.Equal(t, "k/0", string(cs[0].Key))
	require.Nil(t, cs[3].Value)

	o.Reset()
	require.Zero(t, o.Len())
	require.Equal(t,
		[]string{"k/1=base1", "k/3=base3", "k/5=base5"},
		collect(t, o, "k/"))
}

func TestOverlayIterateStopsOnError(t *testing.T) {
	o := NewOverlay(NewOverlay(emptyReader{}))
	require.NoError(t, o.Set([]byte("a"), []byte("1")))
	require.NoError(t, o.Set([]byte("b"), []byte("2")))

	boom := errors.New("boom")
	var seen int
	err := o.Iterate(nil, func(k, v []byte) error {
		seen++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, seen)
}

func TestPrefixEnd(t *testing.T) {
	require.Equal(t, []byte("state;"), prefixEnd([]byte("state:")))
	require.Equal(t, []byte{0x02}, prefixEnd([]byte{0x01, 0xFF}))
	require.Nil(t, prefixEnd([]byte{0xFF, 0xFF}))
	require.Nil(t, prefixEnd(nil))
}

type emptyReader struct{}

func (emptyReader) Get([]byte) ([]byte, error) { return nil, nil }

func (emptyReader) Iterate([]byte, func(k, v []byte) error) error { return nil }
