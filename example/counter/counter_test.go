package counter_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockberries/stf"
	"github.com/blockberries/stf/example/counter"
	"github.com/blockberries/stf/ledger"
	"github.com/blockberries/stf/runtime"
	"github.com/blockberries/stf/server"
	"github.com/blockberries/stf/system"
	stftest "github.com/blockberries/stf/testing"
	"github.com/blockberries/stf/types"
)

// pool collects the calls proposed by the offchain hook.
type pool struct {
	mu    sync.Mutex
	calls []types.Call
}

func (p *pool) submit(_ context.Context, call types.Call) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
}

func (p *pool) drain() []types.Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.calls
	p.calls = nil
	return out
}

func genesis() types.GenesisConfig {
	g := stftest.DefaultGenesis()
	g.Fees.Weights = append(g.Fees.Weights, types.MethodWeight{Method: "counter.increment", Weight: 1})
	return g
}

func setup(t *testing.T, mod *counter.Module) (*stftest.Harness, ledger.Store) {
	t.Helper()
	rt, err := runtime.New(runtime.Config{Extra: []stf.Module{mod}})
	require.NoError(t, err)
	store := ledger.NewMemStore()
	h := stftest.NewHarness(t, server.New(rt, store, nil))
	h.Genesis(genesis())
	return h, store
}

func readCount(t *testing.T, store ledger.Store) uint64 {
	t.Helper()
	v, err := store.View()
	require.NoError(t, err)
	defer v.Release()
	n, err := counter.Count(v)
	require.NoError(t, err)
	return n
}

func TestCounter_Compliance(t *testing.T) {
	stftest.RunComplianceSuite(t, func(t *testing.T) stf.Runtime {
		rt, err := runtime.New(runtime.Config{Extra: []stf.Module{counter.New(nil)}})
		require.NoError(t, err)
		return server.New(rt, ledger.NewMemStore(), nil)
	})
}

func TestCounter_Increment(t *testing.T) {
	h, store := setup(t, counter.New(nil))

	h.Author(stftest.Sign(t, stftest.Alice, 0, 1, counter.IncrementCall(3)))
	h.Author(stftest.Sign(t, stftest.Bob, 0, 1, counter.IncrementCall(7)))
	require.Equal(t, uint64(10), readCount(t, store))

	v, err := store.View()
	require.NoError(t, err)
	defer v.Release()
	events, err := system.Events(v)
	require.NoError(t, err)

	var found bool
	for _, ev := range events {
		if ev.Kind != counter.EventIncremented {
			continue
		}
		found = true
		by, _ := ev.Attr("by")
		count, _ := ev.Attr("count")
		require.Equal(t, "7", by)
		require.Equal(t, "10", count)
	}
	require.True(t, found)
}

func TestCounter_ZeroIncrementFails(t *testing.T) {
	h, store := setup(t, counter.New(nil))

	// The failed dispatch is still charged and bumps the nonce.
	h.Author(stftest.Sign(t, stftest.Alice, 0, 1, counter.IncrementCall(0)))
	require.Equal(t, uint64(0), readCount(t, store))
	require.Equal(t, uint64(1), h.Nonce(stftest.AccountOf(stftest.Alice)))
}

func TestCounter_NotChargeableWithoutWeight(t *testing.T) {
	rt, err := runtime.New(runtime.Config{Extra: []stf.Module{counter.New(nil)}})
	require.NoError(t, err)
	h := stftest.NewHarness(t, server.New(rt, ledger.NewMemStore(), nil))
	h.GenesisDefault()

	verdict := h.MustReject(stftest.Sign(t, stftest.Alice, 0, 1, counter.IncrementCall(1)))
	require.Equal(t, types.ValidityInvalid, verdict.Kind)
	require.Equal(t, types.CodeNotAllow, verdict.Code)
}

func TestCounter_OffchainProposals(t *testing.T) {
	p := &pool{}
	mod := counter.New(p.submit)
	h, store := setup(t, mod)

	rt := h.Runtime()
	require.True(t, rt.Capabilities().Has(types.CapOffchainWorker))

	for nonce := uint64(0); nonce < 3; nonce++ {
		require.NoError(t, rt.OffchainWorker(context.Background(), h.Head().Number))
		calls := p.drain()
		require.Len(t, calls, 1)

		xt := stftest.Sign(t, stftest.Alice, nonce, 1, calls[0])
		h.MustAccept(xt)
		h.Author(xt)
	}
	require.Equal(t, uint64(3), readCount(t, store))
}
