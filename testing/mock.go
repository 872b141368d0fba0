// Package stftest provides test utilities for runtime modules and
// node integrations, including a configurable mock module, a test
// harness, and a lifecycle compliance test suite.
package stftest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/blockberries/stf"
	"github.com/blockberries/stf/types"
)

// Compile-time check that MockModule satisfies all hook interfaces.
var (
	_ stf.Initializer    = (*MockModule)(nil)
	_ stf.Finalizer      = (*MockModule)(nil)
	_ stf.Dispatchable   = (*MockModule)(nil)
	_ stf.OffchainWorker = (*MockModule)(nil)
)

// MockModule is a configurable runtime module. All hooks are
// configurable via function fields; unconfigured hooks succeed and
// do nothing.
type MockModule struct {
	// ModuleName routes calls to this module. Defaults to "mock".
	ModuleName string

	OnInitializeFn func(context.Context, stf.State, uint64) error
	OnFinalizeFn   func(context.Context, stf.State, uint64) error
	DispatchFn     func(context.Context, stf.State, fn.Option[types.AccountID], types.Call) error
	GenerateFn     func(context.Context, uint64)

	// Call counters (atomic for concurrent access).
	InitializeCalls atomic.Int64
	FinalizeCalls   atomic.Int64
	DispatchCalls   atomic.Int64
	GenerateCalls   atomic.Int64

	mu        sync.Mutex
	offchains []uint64
}

// Name implements stf.Module.
func (m *MockModule) Name() string {
	if m.ModuleName == "" {
		return "mock"
	}
	return m.ModuleName
}

func (m *MockModule) OnInitialize(ctx context.Context, st stf.State, number uint64) error {
	m.InitializeCalls.Add(1)
	if m.OnInitializeFn != nil {
		return m.OnInitializeFn(ctx, st, number)
	}
	return nil
}

func (m *MockModule) OnFinalize(ctx context.Context, st stf.State, number uint64) error {
	m.FinalizeCalls.Add(1)
	if m.OnFinalizeFn != nil {
		return m.OnFinalizeFn(ctx, st, number)
	}
	return nil
}

func (m *MockModule) Dispatch(ctx context.Context, st stf.State, origin fn.Option[types.AccountID], call types.Call) error {
	m.DispatchCalls.Add(1)
	if m.DispatchFn != nil {
		return m.DispatchFn(ctx, st, origin, call)
	}
	return nil
}

func (m *MockModule) GenerateExtrinsics(ctx context.Context, number uint64) {
	m.GenerateCalls.Add(1)
	m.mu.Lock()
	m.offchains = append(m.offchains, number)
	m.mu.Unlock()
	if m.GenerateFn != nil {
		m.GenerateFn(ctx, number)
	}
}

// OffchainNumbers returns the block numbers GenerateExtrinsics was
// called with, in call order.
func (m *MockModule) OffchainNumbers() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint64(nil), m.offchains...)
}
