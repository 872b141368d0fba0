package executive_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/blockberries/stf/executive"
	"github.com/blockberries/stf/ledger"
	"github.com/blockberries/stf/modules/balances"
	"github.com/blockberries/stf/modules/feemanager"
	"github.com/blockberries/stf/runtime"
	"github.com/blockberries/stf/system"
	"github.com/blockberries/stf/types"
)

// begin opens a block on top of the chain head and returns its
// working state.
func begin(t *testing.T, c *chain) *ledger.Overlay {
	t.Helper()
	st := c.overlay()
	require.NoError(t, c.rt.InitializeBlock(context.Background(), st, c.nextHeader()))
	return st
}

func TestApplyExtrinsicTransfer(t *testing.T) {
	c := newChain(t, runtime.Config{})
	st := begin(t, c)

	outcome, err := c.rt.ApplyExtrinsic(context.Background(), st,
		sign(t, alice, 0, 1, transfer(bob, 69)))
	require.NoError(t, err)
	require.True(t, outcome.OK(), outcome.String())

	// 111 - 69 - fee of 10.
	require.Equal(t, uint64(32), freeBalance(t, st, alice))
	require.Equal(t, uint64(69), freeBalance(t, st, bob))
	require.Equal(t, uint64(1), nonce(t, st, alice))
	require.Equal(t, uint32(1), extrinsicIndex(t, st))
}

func TestApplyExtrinsicZeroFee(t *testing.T) {
	g := testGenesis()
	g.Fees.BaseFee = 0
	c := newChainWithGenesis(t, runtime.Config{}, g)
	st := begin(t, c)

	outcome, err := c.rt.ApplyExtrinsic(context.Background(), st,
		sign(t, alice, 0, 1, transfer(bob, 69)))
	require.NoError(t, err)
	require.True(t, outcome.OK())
	require.Equal(t, uint64(42), freeBalance(t, st, alice))
	require.Equal(t, uint64(69), freeBalance(t, st, bob))
}

func TestApplyExtrinsicBadNonce(t *testing.T) {
	c := newChain(t, runtime.Config{})
	st := begin(t, c)

	_, err := c.rt.ApplyExtrinsic(context.Background(), st,
		sign(t, alice, 42, 1, transfer(bob, 69)))
	require.ErrorIs(t, err, types.ApplyFuture)

	require.Zero(t, extrinsicIndex(t, st))
	require.Equal(t, uint64(111), freeBalance(t, st, alice))
	require.Zero(t, nonce(t, st, alice))

	// Advance the nonce, then replay nonce 0.
	_, err = c.rt.ApplyExtrinsic(context.Background(), st,
		sign(t, alice, 0, 1, transfer(bob, 1)))
	require.NoError(t, err)
	_, err = c.rt.ApplyExtrinsic(context.Background(), st,
		sign(t, alice, 0, 1, transfer(bob, 1)))
	require.ErrorIs(t, err, types.ApplyStale)
	require.Equal(t, uint32(1), extrinsicIndex(t, st))
}

func TestApplyExtrinsicNonceProperty(t *testing.T) {
	c := newChain(t, runtime.Config{})
	who := id(alice)

	rapid.Check(t, func(rt *rapid.T) {
		st := begin(t, c)

		// Put alice at a random stored nonce.
		stored := rapid.Uint64Range(0, 5).Draw(rt, "stored")
		for i := uint64(0); i < stored; i++ {
			require.NoError(rt, system.IncAccountNonce(st, who))
		}
		n := rapid.Uint64Range(0, 10).Draw(rt, "nonce")

		_, err := c.rt.ApplyExtrinsic(context.Background(), st,
			sign(t, alice, n, 1, system.Remark(nil)))

		got, nerr := system.AccountNonce(st, who)
		require.NoError(rt, nerr)
		switch {
		case n < stored:
			require.ErrorIs(rt, err, types.ApplyStale)
			require.Equal(rt, stored, got)
		case n > stored:
			require.ErrorIs(rt, err, types.ApplyFuture)
			require.Equal(rt, stored, got)
		default:
			require.NoError(rt, err)
			require.Equal(rt, n+1, got)
		}
	})
}

func TestApplyExtrinsicCantPay(t *testing.T) {
	c := newChain(t, runtime.Config{})
	st := begin(t, c)

	// Bob has nothing to pay the fee with.
	_, err := c.rt.ApplyExtrinsic(context.Background(), st,
		sign(t, bob, 0, 1, system.Remark(nil)))
	require.ErrorIs(t, err, types.ApplyCantPay)
	require.Zero(t, nonce(t, st, bob))

	// Acceleration multiplies the fee: 10 * 12 > 111.
	_, err = c.rt.ApplyExtrinsic(context.Background(), st,
		sign(t, alice, 0, 12, system.Remark(nil)))
	require.ErrorIs(t, err, types.ApplyCantPay)
	require.Equal(t, uint64(111), freeBalance(t, st, alice))
}

func TestApplyExtrinsicNotAllow(t *testing.T) {
	c := newChain(t, runtime.Config{})
	st := begin(t, c)

	// No weight configured for timestamp.set.
	_, err := c.rt.ApplyExtrinsic(context.Background(), st,
		sign(t, alice, 0, 1, types.Call{Module: "timestamp", Method: "set"}))
	require.ErrorIs(t, err, types.ApplyNotAllow)

	// Zero acceleration.
	_, err = c.rt.ApplyExtrinsic(context.Background(), st,
		sign(t, alice, 0, 0, system.Remark(nil)))
	require.ErrorIs(t, err, types.ApplyNotAllow)

	// Paused module.
	require.NoError(t, feemanager.SetSwitch(st, types.Switch{Paused: []string{"system"}}))
	_, err = c.rt.ApplyExtrinsic(context.Background(), st,
		sign(t, alice, 0, 1, system.Remark(nil)))
	require.ErrorIs(t, err, types.ApplyNotAllow)

	require.Zero(t, nonce(t, st, alice))
	require.Equal(t, uint64(111), freeBalance(t, st, alice))
	require.Zero(t, extrinsicIndex(t, st))
}

func TestApplyExtrinsicBadSignature(t *testing.T) {
	c := newChain(t, runtime.Config{})
	st := begin(t, c)

	_, err := c.rt.ApplyExtrinsic(context.Background(), st, types.Extrinsic{0xFF, 0xFF, 0xFF, 0xFF, 0xFF})
	require.ErrorIs(t, err, types.ApplyBadSignature)

	// Unknown index.
	xt, err := signIndexed(alice, 99, 0, 1, system.Remark(nil))
	require.NoError(t, err)
	_, err = c.rt.ApplyExtrinsic(context.Background(), st, xt)
	require.ErrorIs(t, err, types.ApplyBadSignature)
}

func TestApplyExtrinsicIndexZero(t *testing.T) {
	c := newChain(t, runtime.Config{})
	st := begin(t, c)

	// Alice holds index 0 from genesis and can both sign and be paid
	// through it.
	xt, err := signIndexed(alice, 0, 0, 1, balances.TransferCall(types.AddressFromIndex(0), 5))
	require.NoError(t, err)
	outcome, err := c.rt.ApplyExtrinsic(context.Background(), st, xt)
	require.NoError(t, err)
	require.True(t, outcome.OK(), outcome.String())
	require.Equal(t, uint64(101), freeBalance(t, st, alice))
	require.Equal(t, uint64(1), nonce(t, st, alice))
}

func TestApplyExtrinsicDispatchFailureStillCharges(t *testing.T) {
	c := newChain(t, runtime.Config{})
	st := begin(t, c)

	// Transfer more than the balance left after the fee.
	outcome, err := c.rt.ApplyExtrinsic(context.Background(), st,
		sign(t, alice, 0, 1, transfer(bob, 110)))
	require.NoError(t, err)
	require.False(t, outcome.OK())
	require.Contains(t, outcome.Reason, "insufficient balance")

	require.Equal(t, uint64(101), freeBalance(t, st, alice))
	require.Equal(t, uint64(1), nonce(t, st, alice))
	require.Equal(t, uint32(1), extrinsicIndex(t, st))

	events, err := system.Events(st)
	require.NoError(t, err)
	require.Equal(t, system.EventExtrinsicFailed, events[len(events)-1].Kind)
}

func TestApplyExtrinsicBlockSizeBoundary(t *testing.T) {
	first := unsignedRemark(t, 10)
	second := unsignedRemark(t, 200)
	limit := uint32(len(first) + len(second))

	// Exactly at the ceiling.
	c := newChain(t, runtime.Config{MaxTransactionsSize: limit})
	st := begin(t, c)
	_, err := c.rt.ApplyExtrinsic(context.Background(), st, first)
	require.NoError(t, err)
	_, err = c.rt.ApplyExtrinsic(context.Background(), st, second)
	require.NoError(t, err)

	// One byte over.
	c = newChain(t, runtime.Config{MaxTransactionsSize: limit - 1})
	st = begin(t, c)
	_, err = c.rt.ApplyExtrinsic(context.Background(), st, first)
	require.NoError(t, err)
	_, err = c.rt.ApplyExtrinsic(context.Background(), st, second)
	require.ErrorIs(t, err, types.ApplyFullBlock)

	total, err := system.AllExtrinsicsLen(st)
	require.NoError(t, err)
	require.Equal(t, uint32(len(first)), total)
	require.Equal(t, uint32(1), extrinsicIndex(t, st))
}

func TestApplyExtrinsicFullBlockHasNoSideEffects(t *testing.T) {
	c := newChain(t, runtime.Config{MaxTransactionsSize: 64})
	st := begin(t, c)

	_, err := c.rt.ApplyExtrinsic(context.Background(), st,
		sign(t, alice, 0, 1, system.Remark(make([]byte, 64))))
	require.ErrorIs(t, err, types.ApplyFullBlock)
	require.Zero(t, nonce(t, st, alice))
	require.Equal(t, uint64(111), freeBalance(t, st, alice))
}

func TestMaxTransactionsSizeDefault(t *testing.T) {
	require.Equal(t, uint32(4*1024*1024), executive.MaxTransactionsSize)
}

func TestCheckFee(t *testing.T) {
	call := types.Call{Module: "balances", Method: "transfer"}
	weights := map[string]uint64{"balances.transfer": 1}

	require.Equal(t, uint64(1), executive.CheckFee(call, types.Switch{}, weights).UnwrapOr(0))
	require.True(t, executive.CheckFee(call, types.Switch{Global: true}, weights).IsNone())
	require.True(t, executive.CheckFee(call, types.Switch{Paused: []string{"balances"}}, weights).IsNone())
	require.True(t, executive.CheckFee(types.Call{Module: "balances", Method: "burn"}, types.Switch{}, weights).IsNone())
}

func unsignedRemark(t *testing.T, size int) types.Extrinsic {
	return unsigned(t, system.Remark(make([]byte, size)))
}
