// Package server hosts a runtime over a ledger store, enforcing the
// block lifecycle and staging each block's writes until Commit.
package server

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// lifecycleState represents a state in the block lifecycle.
type lifecycleState uint32

const (
	// stateInit: Waiting for Handshake. No other calls allowed.
	stateInit lifecycleState = iota
	// stateReady: Handshake complete, no block in flight.
	// Concurrent calls allowed: ValidateTransaction, Query,
	// OffchainWorker. Sequential calls allowed: ExecuteBlock,
	// InitializeBlock.
	stateReady
	// stateBuilding: InitializeBlock returned. ApplyExtrinsic and
	// FinalizeBlock are the only valid sequential calls.
	stateBuilding
	// stateExecuting: a sequential call is running.
	stateExecuting
	// stateExecuted: ExecuteBlock or FinalizeBlock returned. Commit
	// is the only valid next sequential call.
	stateExecuted
	// stateCommitting: Commit has been called. Waiting for it
	// to return.
	stateCommitting
)

func (s lifecycleState) String() string {
	switch s {
	case stateInit:
		return "Init"
	case stateReady:
		return "Ready"
	case stateBuilding:
		return "Building"
	case stateExecuting:
		return "Executing"
	case stateExecuted:
		return "Executed"
	case stateCommitting:
		return "Committing"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// LifecycleGuard enforces the block lifecycle. Misuse is a programming
// error in the node and panics.
type LifecycleGuard struct {
	state atomic.Uint32
	// Held for the duration of every sequential call.
	seqMu sync.Mutex
	// Tracks whether Handshake has completed (for concurrent
	// call gating).
	handshakeDone atomic.Bool
}

// NewLifecycleGuard creates a guard in the Init state.
func NewLifecycleGuard() *LifecycleGuard {
	g := &LifecycleGuard{}
	g.state.Store(uint32(stateInit))
	return g
}

// State returns the current lifecycle state.
func (g *LifecycleGuard) State() string {
	return lifecycleState(g.state.Load()).String()
}

// AcquireHandshake transitions Init → Ready.
// Panics if not in Init state.
func (g *LifecycleGuard) AcquireHandshake() {
	if !g.state.CompareAndSwap(uint32(stateInit), uint32(stateReady)) {
		panic(fmt.Sprintf("github.com/blockberries/stf: Handshake called in state %s (expected Init)",
			lifecycleState(g.state.Load())))
	}
}

// CompleteHandshake marks handshake as done, enabling concurrent calls.
func (g *LifecycleGuard) CompleteHandshake() {
	g.handshakeDone.Store(true)
}

// FailHandshake rolls back state to Init if handshake fails.
func (g *LifecycleGuard) FailHandshake() {
	g.state.Store(uint32(stateInit))
}

// acquire takes the sequential lock and moves from expected to
// Executing, panicking on any other state.
func (g *LifecycleGuard) acquire(call string, expected lifecycleState) {
	g.seqMu.Lock()
	if state := lifecycleState(g.state.Load()); state != expected {
		g.seqMu.Unlock()
		panic(fmt.Sprintf("github.com/blockberries/stf: %s called in state %s (expected %s)",
			call, state, expected))
	}
	g.state.Store(uint32(stateExecuting))
}

// release moves to next and drops the sequential lock.
func (g *LifecycleGuard) release(next lifecycleState) {
	g.state.Store(uint32(next))
	g.seqMu.Unlock()
}

// AcquireExecute transitions Ready → Executing for block import.
// Blocks if another sequential operation is in progress.
func (g *LifecycleGuard) AcquireExecute() { g.acquire("ExecuteBlock", stateReady) }

// CompleteExecute transitions Executing → Executed.
func (g *LifecycleGuard) CompleteExecute() { g.release(stateExecuted) }

// FailExecute transitions Executing → Ready. The block in flight
// is abandoned.
func (g *LifecycleGuard) FailExecute() { g.release(stateReady) }

// AcquireInitialize transitions Ready → Executing for authoring.
func (g *LifecycleGuard) AcquireInitialize() { g.acquire("InitializeBlock", stateReady) }

// CompleteInitialize transitions Executing → Building.
func (g *LifecycleGuard) CompleteInitialize() { g.release(stateBuilding) }

// AcquireApply transitions Building → Executing.
func (g *LifecycleGuard) AcquireApply() { g.acquire("ApplyExtrinsic", stateBuilding) }

// CompleteApply transitions Executing → Building.
func (g *LifecycleGuard) CompleteApply() { g.release(stateBuilding) }

// AcquireFinalize transitions Building → Executing.
func (g *LifecycleGuard) AcquireFinalize() { g.acquire("FinalizeBlock", stateBuilding) }

// AcquireCommit transitions Executed → Committing.
// Panics if not in Executed state.
func (g *LifecycleGuard) AcquireCommit() {
	g.seqMu.Lock()
	if state := lifecycleState(g.state.Load()); state != stateExecuted {
		g.seqMu.Unlock()
		panic(fmt.Sprintf("github.com/blockberries/stf: Commit called in state %s (expected Executed)", state))
	}
	g.state.Store(uint32(stateCommitting))
}

// CompleteCommit transitions Committing → Ready.
func (g *LifecycleGuard) CompleteCommit() { g.release(stateReady) }

// CheckConcurrent verifies that concurrent calls are allowed
// (any state after Handshake). Panics if handshake has not completed.
func (g *LifecycleGuard) CheckConcurrent() {
	if !g.handshakeDone.Load() {
		panic("github.com/blockberries/stf: concurrent call before Handshake completed")
	}
}

// IsReady returns true if the guard is in the Ready state.
func (g *LifecycleGuard) IsReady() bool {
	return lifecycleState(g.state.Load()) == stateReady
}
