// Package stf defines the boundary of the block state-transition
// function: the state handle it is lent, the module hooks it drives
// in a fixed order, the fee collaborators it consults, and the
// runtime connection the surrounding node talks to.
//
// The executor never reaches for process-wide state. Every operation
// receives an explicit state handle owned by the caller for the
// duration of one block or one validation call.
package stf

import (
	"context"
	"errors"

	"github.com/blockberries/stf/types"
	"github.com/lightningnetwork/lnd/fn/v2"
)

var (
	// ErrInvalidAccountIndex is returned when an indexed address is
	// not (yet) known. A transaction carrying it may become valid
	// later.
	ErrInvalidAccountIndex = errors.New("invalid account index")

	// ErrInsufficientBalance is returned by a payment strategy when
	// the payer cannot cover the fee.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrBadOrigin is returned by a dispatchable when the call was
	// made from the wrong origin (signed vs. unsigned).
	ErrBadOrigin = errors.New("bad origin")

	// ErrUnknownCall is returned when no module handles a call.
	ErrUnknownCall = errors.New("unknown call")
)

// StateReader is a read-only view of ledger state. The admission
// oracle only ever receives a StateReader.
type StateReader interface {
	// Get returns the value stored at key, or nil if absent.
	Get(key []byte) ([]byte, error)

	// Iterate visits every key with the given prefix in ascending
	// byte order. Returning an error stops iteration.
	Iterate(prefix []byte, fn func(key, value []byte) error) error
}

// State is a mutable ledger handle lent to the executor.
type State interface {
	StateReader

	Set(key, value []byte) error
	Delete(key []byte) error
}

// Module is a runtime module. Optional behavior is discovered via
// type assertion: Initializer, Finalizer, OffchainWorker and
// Dispatchable.
type Module interface {
	// Name is the module's routing key for calls.
	Name() string
}

// Initializer runs at the start of every block.
type Initializer interface {
	// OnInitialize is called after the block's header fields are
	// recorded. An error is a fatal fault.
	OnInitialize(ctx context.Context, st State, number uint64) error
}

// Finalizer runs at the end of every block.
type Finalizer interface {
	// OnFinalize is called after all extrinsics are applied. An
	// error is a fatal fault.
	OnFinalize(ctx context.Context, st State, number uint64) error
}

// OffchainWorker generates extrinsics outside block execution.
type OffchainWorker interface {
	GenerateExtrinsics(ctx context.Context, number uint64)
}

// Dispatchable executes calls addressed to the module.
type Dispatchable interface {
	Module

	// Dispatch executes call on behalf of origin (None for an
	// unsigned inherent). A returned error is a business-logic
	// failure: the extrinsic stays applied and the outcome is Fail.
	Dispatch(ctx context.Context, st State, origin fn.Option[types.AccountID], call types.Call) error
}

// Lookup resolves an address to an account id.
type Lookup interface {
	// Lookup returns ErrInvalidAccountIndex for an unknown index.
	Lookup(st StateReader, addr types.Address) (types.AccountID, error)
}

// FeeConfig exposes the governance-controlled fee configuration.
// Both values are read-only inputs for one evaluation.
type FeeConfig interface {
	Switch(st StateReader) (types.Switch, error)
	MethodCallWeight(st StateReader) (map[string]uint64, error)
}

// Payment is the fee strategy.
type Payment interface {
	// CheckPayment verifies that who can pay without charging.
	CheckPayment(st StateReader, who types.AccountID, encodedLen int, weight uint64, acceleration uint32) error

	// MakePayment computes the fee and debits it from who.
	MakePayment(st State, who types.AccountID, encodedLen int, weight uint64, acceleration uint32) error
}

// Runtime is the contract between the surrounding node and the
// state-transition function. Both the in-process connection and the
// gRPC client implement it.
//
// The node guarantees the following call order:
//  1. Handshake is called exactly once, before anything else.
//  2. Either ExecuteBlock (import) or InitializeBlock, ApplyExtrinsic*
//     and FinalizeBlock (authoring) run for one block.
//  3. Commit is called exactly once after each executed or finalized
//     block.
//  4. ValidateTransaction, Query and OffchainWorker may be called
//     concurrently at any time after Handshake.
type Runtime interface {
	Handshake(ctx context.Context, req types.HandshakeRequest) (types.HandshakeResponse, error)

	// ExecuteBlock imports a block produced elsewhere. A *HaltError
	// means the block must be rejected and never retried as-is.
	ExecuteBlock(ctx context.Context, block types.Block) error

	InitializeBlock(ctx context.Context, header types.Header) error
	ApplyExtrinsic(ctx context.Context, xt types.Extrinsic) (types.ApplyOutcome, error)
	FinalizeBlock(ctx context.Context) (types.Header, error)

	// Commit persists the state of the last executed or finalized
	// block and returns its header.
	Commit(ctx context.Context) (types.Header, error)

	// ValidateTransaction gate-checks a transaction for the pool.
	// This method MUST be safe for concurrent use.
	ValidateTransaction(ctx context.Context, xt types.Extrinsic) (types.TransactionValidity, error)

	Query(ctx context.Context, req types.StateQuery) (types.StateQueryResult, error)
	OffchainWorker(ctx context.Context, number uint64) error

	// Capabilities returns the capabilities discovered at handshake.
	Capabilities() types.Capabilities

	Close() error
}
