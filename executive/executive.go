// Package executive implements the block state-transition function:
// the block executor with its integrity checks, the admission gate
// and dispatcher every extrinsic passes through, and the read-only
// admission oracle used by the transaction pool.
//
// An Executive holds no chain state. Every operation receives the
// state handle it works on, and modules run in the order they were
// configured.
package executive

import (
	"context"
	"errors"
	"fmt"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/blockberries/stf"
	"github.com/blockberries/stf/types"
)

// MaxTransactionsSize is the default ceiling on the total encoded
// size of the extrinsics in one block.
const MaxTransactionsSize uint32 = 4 * 1024 * 1024

// Config wires an Executive.
type Config struct {
	// Modules in the order their hooks run. The order is fixed for
	// the lifetime of the chain.
	Modules []stf.Module

	// Lookup resolves signer addresses.
	Lookup stf.Lookup

	// Fees supplies the fee switch and the method weight table.
	Fees stf.FeeConfig

	// Payment checks and charges fees.
	Payment stf.Payment

	// MaxTransactionsSize overrides the block byte ceiling. Zero
	// means MaxTransactionsSize.
	MaxTransactionsSize uint32
}

// Executive executes blocks and validates transactions.
type Executive struct {
	cfg      Config
	dispatch map[string]stf.Dispatchable
}

// New creates an Executive from cfg.
func New(cfg Config) (*Executive, error) {
	if cfg.Lookup == nil || cfg.Fees == nil || cfg.Payment == nil {
		return nil, errors.New("executive: Lookup, Fees and Payment are required")
	}
	if cfg.MaxTransactionsSize == 0 {
		cfg.MaxTransactionsSize = MaxTransactionsSize
	}

	dispatch := make(map[string]stf.Dispatchable)
	seen := make(map[string]struct{}, len(cfg.Modules))
	for _, m := range cfg.Modules {
		name := m.Name()
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("executive: duplicate module %q", name)
		}
		seen[name] = struct{}{}
		if d, ok := m.(stf.Dispatchable); ok {
			dispatch[name] = d
		}
	}

	return &Executive{cfg: cfg, dispatch: dispatch}, nil
}

// Modules returns the configured modules in hook order.
func (e *Executive) Modules() []stf.Module {
	return e.cfg.Modules
}

// OffchainWorker runs every module's offchain extrinsic generation
// for block n, in order.
func (e *Executive) OffchainWorker(ctx context.Context, n uint64) {
	for _, m := range e.cfg.Modules {
		if w, ok := m.(stf.OffchainWorker); ok {
			w.GenerateExtrinsics(ctx, n)
		}
	}
}

// dispatchCall routes call to its module. The returned error is a
// business-logic failure.
func (e *Executive) dispatchCall(ctx context.Context, st stf.State,
	origin fn.Option[types.AccountID], call types.Call) error {

	d, ok := e.dispatch[call.Module]
	if !ok {
		return fmt.Errorf("%w: %s", stf.ErrUnknownCall, call.ID())
	}
	return d.Dispatch(ctx, st, origin, call)
}
