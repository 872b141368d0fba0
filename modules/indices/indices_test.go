package indices

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockberries/stf"
	"github.com/blockberries/stf/ledger"
	"github.com/blockberries/stf/types"
)

func newState(t *testing.T) *ledger.Overlay {
	t.Helper()
	v, err := ledger.NewMemStore().View()
	require.NoError(t, err)
	return ledger.NewOverlay(v)
}

func TestRegisterAndLookup(t *testing.T) {
	st := newState(t)
	alice, bob := types.AccountID{0x0A}, types.AccountID{0x0B}

	i, err := Register(st, alice)
	require.NoError(t, err)
	require.Equal(t, uint32(0), i)

	i, err = Register(st, bob)
	require.NoError(t, err)
	require.Equal(t, uint32(1), i)

	// Registering again keeps the existing index.
	i, err = Register(st, alice)
	require.NoError(t, err)
	require.Equal(t, uint32(0), i)

	got, err := Module{}.Lookup(st, types.AddressFromIndex(1))
	require.NoError(t, err)
	require.Equal(t, bob, got)

	got, err = Module{}.Lookup(st, types.AddressFromID(alice))
	require.NoError(t, err)
	require.Equal(t, alice, got)
}

func TestLookupUnknownIndex(t *testing.T) {
	_, err := Module{}.Lookup(newState(t), types.AddressFromIndex(9))
	require.ErrorIs(t, err, stf.ErrInvalidAccountIndex)

	_, err = Module{}.Lookup(newState(t), types.Address{})
	require.ErrorIs(t, err, stf.ErrInvalidAccountIndex)
}
