package executive_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/blockberries/stf/modules/feemanager"
	"github.com/blockberries/stf/runtime"
	"github.com/blockberries/stf/system"
	"github.com/blockberries/stf/types"
)

func TestValidateTransaction(t *testing.T) {
	c := newChain(t, runtime.Config{})
	ctx := context.Background()

	// Move alice's stored nonce to 2.
	c.author(
		sign(t, alice, 0, 1, system.Remark(nil)),
		sign(t, alice, 1, 1, system.Remark(nil)),
	)
	view := c.view()
	who := id(alice)

	t.Run("ready", func(t *testing.T) {
		v := c.rt.ValidateTransaction(ctx, view, sign(t, alice, 2, 3, system.Remark(nil)))
		require.True(t, v.Accepted(), v.String())
		require.Equal(t, uint64(3), v.Priority)
		require.Equal(t, [][]byte{types.Tag{Signer: who, Nonce: 2}.Encode()}, v.Provides)
		require.Empty(t, v.Requires)
		require.Equal(t, uint64(types.LongevityForever), v.Longevity)
	})

	t.Run("future", func(t *testing.T) {
		v := c.rt.ValidateTransaction(ctx, view, sign(t, alice, 4, 1, system.Remark(nil)))
		require.True(t, v.Accepted(), v.String())
		require.Equal(t, [][]byte{types.Tag{Signer: who, Nonce: 4}.Encode()}, v.Provides)
		require.Equal(t, [][]byte{types.Tag{Signer: who, Nonce: 3}.Encode()}, v.Requires)
	})

	t.Run("stale", func(t *testing.T) {
		v := c.rt.ValidateTransaction(ctx, view, sign(t, alice, 1, 1, system.Remark(nil)))
		require.Equal(t, types.Invalid(types.CodeStale), v)
	})

	t.Run("zero acceleration", func(t *testing.T) {
		v := c.rt.ValidateTransaction(ctx, view, sign(t, alice, 2, 0, system.Remark(nil)))
		require.Equal(t, types.Invalid(types.CodeAccelerationError), v)
	})

	t.Run("unsigned", func(t *testing.T) {
		v := c.rt.ValidateTransaction(ctx, view, unsigned(t, system.Remark(nil)))
		require.Equal(t, types.Invalid(types.CodeAccelerationError), v)
	})

	t.Run("unknown index", func(t *testing.T) {
		xt, err := signIndexed(alice, 99, 2, 1, system.Remark(nil))
		require.NoError(t, err)
		v := c.rt.ValidateTransaction(ctx, view, xt)
		require.Equal(t, types.Unknown(types.CodeInvalidIndex), v)
	})

	t.Run("known index", func(t *testing.T) {
		// Alice was endowed first at genesis and holds index 0.
		xt, err := signIndexed(alice, 0, 2, 1, system.Remark(nil))
		require.NoError(t, err)
		require.True(t, c.rt.ValidateTransaction(ctx, view, xt).Accepted())
	})

	t.Run("bad signature", func(t *testing.T) {
		xt, err := signIndexed(bob, 0, 2, 1, system.Remark(nil))
		require.NoError(t, err)
		v := c.rt.ValidateTransaction(ctx, view, xt)
		require.Equal(t, types.Invalid(types.CodeBadSignature), v)
	})

	t.Run("undecodable", func(t *testing.T) {
		v := c.rt.ValidateTransaction(ctx, view, types.Extrinsic{0xFF, 0xFF, 0xFF, 0xFF, 0xFF})
		require.Equal(t, types.Invalid(types.CodeUnknownError), v)
	})

	t.Run("not allowed", func(t *testing.T) {
		v := c.rt.ValidateTransaction(ctx, view,
			sign(t, alice, 2, 1, types.Call{Module: "timestamp", Method: "set"}))
		require.Equal(t, types.Invalid(types.CodeNotAllow), v)
	})

	t.Run("cannot pay", func(t *testing.T) {
		v := c.rt.ValidateTransaction(ctx, view, sign(t, bob, 0, 1, system.Remark(nil)))
		require.Equal(t, types.Invalid(types.CodeCantPay), v)
	})
}

func TestValidateTransactionPausedSwitch(t *testing.T) {
	c := newChain(t, runtime.Config{})
	st := c.overlay()
	require.NoError(t, feemanager.SetSwitch(st, types.Switch{Global: true}))

	v := c.rt.ValidateTransaction(context.Background(), st, sign(t, alice, 0, 1, system.Remark(nil)))
	require.Equal(t, types.Invalid(types.CodeNotAllow), v)
}

func TestValidateTransactionDoesNotMutate(t *testing.T) {
	c := newChain(t, runtime.Config{})
	ctx := context.Background()
	st := c.overlay()

	xts := []types.Extrinsic{
		sign(t, alice, 0, 1, transfer(bob, 1)),
		sign(t, alice, 1, 2, transfer(bob, 1)),
		sign(t, alice, 5, 1, system.Remark(nil)),
		sign(t, bob, 0, 1, system.Remark(nil)),
		unsigned(t, system.Remark(nil)),
	}

	rapid.Check(t, func(rt *rapid.T) {
		first := make([]types.TransactionValidity, len(xts))
		for i, xt := range xts {
			first[i] = c.rt.ValidateTransaction(ctx, st, xt)
		}
		order := rapid.Permutation([]int{0, 1, 2, 3, 4}).Draw(rt, "order")
		for _, i := range order {
			require.Equal(rt, first[i], c.rt.ValidateTransaction(ctx, st, xts[i]))
		}
		require.Zero(rt, st.Len())
	})
}
