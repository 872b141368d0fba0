package balances

import (
	"context"
	"testing"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/stf"
	"github.com/blockberries/stf/ledger"
	"github.com/blockberries/stf/modules/indices"
	"github.com/blockberries/stf/types"
)

func newState(t *testing.T) *ledger.Overlay {
	t.Helper()
	v, err := ledger.NewMemStore().View()
	require.NoError(t, err)
	return ledger.NewOverlay(v)
}

func balance(t *testing.T, st stf.StateReader, who types.AccountID) uint64 {
	t.Helper()
	b, err := FreeBalance(st, who)
	require.NoError(t, err)
	return b
}

func TestTransferCall(t *testing.T) {
	st := newState(t)
	alice, bob := types.AccountID{0x0A}, types.AccountID{0x0B}
	require.NoError(t, Deposit(st, alice, 111))

	m := New(indices.Module{})
	err := m.Dispatch(context.Background(), st, fn.Some(alice),
		TransferCall(types.AddressFromID(bob), 69))
	require.NoError(t, err)

	require.Equal(t, uint64(42), balance(t, st, alice))
	require.Equal(t, uint64(69), balance(t, st, bob))

	// The new destination received an index.
	_, ok, err := indices.IndexOf(st, bob)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestTransferToIndex(t *testing.T) {
	st := newState(t)
	alice, bob := types.AccountID{0x0A}, types.AccountID{0x0B}
	require.NoError(t, Deposit(st, alice, 10))
	require.NoError(t, Deposit(st, bob, 1))

	idx, ok, err := indices.IndexOf(st, bob)
	require.NoError(t, err)
	require.True(t, ok)

	m := New(indices.Module{})
	require.NoError(t, m.Dispatch(context.Background(), st, fn.Some(alice),
		TransferCall(types.AddressFromIndex(idx), 5)))
	require.Equal(t, uint64(6), balance(t, st, bob))
}

func TestTransferInsufficient(t *testing.T) {
	st := newState(t)
	alice := types.AccountID{0x0A}
	require.NoError(t, Deposit(st, alice, 5))

	err := Transfer(st, alice, types.AccountID{0x0B}, 6)
	require.ErrorIs(t, err, stf.ErrInsufficientBalance)
	require.Equal(t, uint64(5), balance(t, st, alice))
}

func TestTransferRequiresSignedOrigin(t *testing.T) {
	m := New(indices.Module{})
	err := m.Dispatch(context.Background(), newState(t), fn.None[types.AccountID](),
		TransferCall(types.AddressFromID(types.AccountID{0x0B}), 1))
	require.ErrorIs(t, err, stf.ErrBadOrigin)
}
