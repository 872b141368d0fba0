package stftest

import (
	"context"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/stf"
	"github.com/blockberries/stf/modules/balances"
	"github.com/blockberries/stf/system"
	"github.com/blockberries/stf/types"
)

// RunComplianceSuite runs a standard lifecycle suite against a runtime
// connection. The factory must return a fresh connection over empty
// storage, configured without required inherents, for each call.
func RunComplianceSuite(t *testing.T, factory func(t *testing.T) stf.Runtime) {
	t.Helper()

	t.Run("genesis_handshake", func(t *testing.T) {
		h := NewHarness(t, factory(t))
		resp := h.GenesisDefault()
		require.Equal(t, uint64(0), resp.LastHeader.Number)
		require.True(t, resp.Capabilities.Has(types.CapBlockAuthoring))
		require.False(t, resp.LastHeader.StateRoot.IsZero())
	})

	t.Run("genesis_deterministic", func(t *testing.T) {
		r1 := NewHarness(t, factory(t)).GenesisDefault()
		r2 := NewHarness(t, factory(t)).GenesisDefault()
		require.Equal(t, r1.LastHeader.Hash(), r2.LastHeader.Hash())
	})

	t.Run("author_commit_cycle", func(t *testing.T) {
		h := NewHarness(t, factory(t))
		h.GenesisDefault()

		for i := uint64(1); i <= 5; i++ {
			parent := h.Head()
			b := h.Author()
			require.Equal(t, i, b.Header.Number)
			require.Equal(t, parent.Hash(), b.Header.ParentHash)
			require.Equal(t, b.Header, h.Head())
		}
	})

	t.Run("authored_blocks_import", func(t *testing.T) {
		author := NewHarness(t, factory(t))
		author.GenesisDefault()
		replica := NewHarness(t, factory(t))
		replica.GenesisDefault()

		blocks := []types.Block{
			author.Author(Sign(t, Alice, 0, 1, Transfer(Bob, 100))),
			author.Author(),
			author.Author(
				Sign(t, Bob, 0, 2, Transfer(Alice, 7)),
				Sign(t, Alice, 1, 1, system.Remark([]byte("hello"))),
			),
		}
		for _, b := range blocks {
			got := replica.Import(b)
			if diff := cmp.Diff(b.Header, got); diff != "" {
				t.Fatalf("block %d header mismatch (-authored +imported):\n%s",
					b.Header.Number, diff)
			}
		}
		require.Equal(t, author.FreeBalance(AccountOf(Bob)), replica.FreeBalance(AccountOf(Bob)))
		require.Equal(t, uint64(2), replica.Nonce(AccountOf(Alice)))
	})

	t.Run("halt_discards_block", func(t *testing.T) {
		author := NewHarness(t, factory(t))
		author.GenesisDefault()
		replica := NewHarness(t, factory(t))
		replica.GenesisDefault()

		good := author.Author(Sign(t, Alice, 0, 1, Transfer(Bob, 5)))
		bad := good
		bad.Header.StateRoot = types.Hash{0x01}

		err := replica.Runtime().ExecuteBlock(context.Background(), bad)
		halt, ok := stf.IsHalt(err)
		require.True(t, ok, "expected halt, got %v", err)
		require.Equal(t, stf.FaultStateRoot, halt.Kind)
		require.Equal(t, uint64(1), halt.Height)

		// Nothing from the halted block is visible and the good
		// block still imports.
		require.Equal(t, uint64(0), replica.Nonce(AccountOf(Alice)))
		replica.Import(good)
		require.Equal(t, uint64(1), replica.Nonce(AccountOf(Alice)))
	})

	t.Run("apply_error_keeps_block_open", func(t *testing.T) {
		h := NewHarness(t, factory(t))
		h.GenesisDefault()
		ctx := context.Background()

		require.NoError(t, h.Runtime().InitializeBlock(ctx, h.NextHeader()))
		_, err := h.Runtime().ApplyExtrinsic(ctx, Sign(t, Alice, 3, 1, system.Remark(nil)))
		require.ErrorIs(t, err, types.ApplyFuture)

		outcome, err := h.Runtime().ApplyExtrinsic(ctx, Sign(t, Alice, 0, 1, system.Remark(nil)))
		require.NoError(t, err)
		require.True(t, outcome.OK())

		_, err = h.Runtime().FinalizeBlock(ctx)
		require.NoError(t, err)
		h.Commit()
		require.Equal(t, uint64(1), h.Nonce(AccountOf(Alice)))
	})

	t.Run("validate_sees_committed_state", func(t *testing.T) {
		h := NewHarness(t, factory(t))
		h.GenesisDefault()

		xt := Sign(t, Alice, 0, 4, system.Remark(nil))
		v := h.MustAccept(xt)
		require.Equal(t, uint64(4), v.Priority)

		h.Author(xt)
		require.Equal(t, types.Invalid(types.CodeStale), h.MustReject(xt))
	})

	t.Run("concurrent_validate_after_handshake", func(t *testing.T) {
		h := NewHarness(t, factory(t))
		h.GenesisDefault()
		xt := Sign(t, Alice, 0, 1, Transfer(Bob, 1))

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v, err := h.Runtime().ValidateTransaction(context.Background(), xt)
				if err != nil {
					t.Errorf("concurrent ValidateTransaction failed: %v", err)
					return
				}
				if !v.Accepted() {
					t.Errorf("concurrent ValidateTransaction: %s", v)
				}
			}()
		}
		wg.Wait()
	})

	t.Run("concurrent_query_after_handshake", func(t *testing.T) {
		h := NewHarness(t, factory(t))
		h.GenesisDefault()
		who := AccountOf(Alice)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := h.Runtime().Query(context.Background(), types.StateQuery{
					Path: types.QueryFreeBalance,
					Data: who[:],
				})
				if err != nil {
					t.Errorf("concurrent Query failed: %v", err)
				}
			}()
		}
		wg.Wait()
	})

	t.Run("query_returns_number", func(t *testing.T) {
		h := NewHarness(t, factory(t))
		h.GenesisDefault()
		h.Author()
		h.Author()

		who := AccountOf(Alice)
		res := h.Query(types.QueryFreeBalance, who[:])
		require.Equal(t, uint64(2), res.Number)
		require.Equal(t, balances.QueryKey(who), res.Key)

		res = h.Query(types.QueryBestHeader, nil)
		require.Equal(t, uint64(2), res.Number)
		require.NotEmpty(t, res.Value)
	})

	t.Run("fees_are_burned", func(t *testing.T) {
		h := NewHarness(t, factory(t))
		h.GenesisDefault()
		before := h.FreeBalance(AccountOf(Alice))

		h.Author(Sign(t, Alice, 0, 1, Transfer(Bob, 10)))

		// Base fee 1 per weight plus nothing per byte.
		require.Equal(t, before-10-1, h.FreeBalance(AccountOf(Alice)))
	})
}
