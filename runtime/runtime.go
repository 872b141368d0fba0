// Package runtime assembles the chain's modules into an executive in
// their fixed order and builds the genesis state.
package runtime

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/blockberries/stf"
	"github.com/blockberries/stf/executive"
	"github.com/blockberries/stf/merkle"
	"github.com/blockberries/stf/modules/balances"
	"github.com/blockberries/stf/modules/feemanager"
	"github.com/blockberries/stf/modules/indices"
	"github.com/blockberries/stf/modules/timestamp"
	"github.com/blockberries/stf/system"
	"github.com/blockberries/stf/types"
)

// Config configures the runtime.
type Config struct {
	// RequireTimestamp makes every block carry a timestamp.set
	// inherent.
	RequireTimestamp bool

	// MaxTransactionsSize overrides the block byte ceiling.
	MaxTransactionsSize uint32

	// Extra modules run after the built-in ones, in order.
	Extra []stf.Module
}

// Runtime is the assembled state-transition function.
type Runtime struct {
	*executive.Executive

	Indices  indices.Module
	Balances *balances.Module
	Fees     feemanager.Module
}

// New assembles the runtime. The built-in module order is system,
// timestamp, indices, balances, feemanager.
func New(cfg Config) (*Runtime, error) {
	r := &Runtime{
		Indices: indices.Module{},
		Fees:    feemanager.Module{},
	}
	r.Balances = balances.New(r.Indices)

	modules := []stf.Module{
		system.Module{},
		timestamp.Module{Require: cfg.RequireTimestamp},
		r.Indices,
		r.Balances,
		r.Fees,
	}
	modules = append(modules, cfg.Extra...)

	exec, err := executive.New(executive.Config{
		Modules:             modules,
		Lookup:              r.Indices,
		Fees:                r.Fees,
		Payment:             r.Fees,
		MaxTransactionsSize: cfg.MaxTransactionsSize,
	})
	if err != nil {
		return nil, err
	}
	r.Executive = exec
	return r, nil
}

// BuildGenesis writes the genesis state into st and returns the
// genesis header. The header hash is recorded as block zero.
func (r *Runtime) BuildGenesis(ctx context.Context, st stf.State, g types.GenesisConfig) (types.Header, error) {
	if err := system.Initialize(st, 0, types.Hash{}, merkle.ExtrinsicsRoot(nil)); err != nil {
		return types.Header{}, err
	}
	if err := feemanager.Configure(st, g.Fees); err != nil {
		return types.Header{}, fmt.Errorf("genesis fees: %w", err)
	}
	if err := timestamp.SetGenesis(st, g.GenesisTime); err != nil {
		return types.Header{}, fmt.Errorf("genesis time: %w", err)
	}
	for _, acct := range g.Accounts {
		if err := balances.Deposit(st, acct.ID, acct.Balance); err != nil {
			return types.Header{}, fmt.Errorf("genesis account %s: %w", acct.ID, err)
		}
	}
	if err := system.NoteFinishedExtrinsics(st); err != nil {
		return types.Header{}, err
	}
	h, err := system.Finalize(ctx, st)
	if err != nil {
		return types.Header{}, fmt.Errorf("genesis finalize: %w", err)
	}
	log.InfoS(ctx, "Built genesis",
		"chain_id", g.ChainID,
		"accounts", len(g.Accounts),
		"hash", h.Hash())
	return h, nil
}

// Query codes.
const (
	QueryOK       uint32 = 0
	QueryNotFound uint32 = 1
	QueryBadPath  uint32 = 2
	QueryBadData  uint32 = 3
)

// Query reads committed module state.
func (r *Runtime) Query(st stf.StateReader, q types.StateQuery) (types.StateQueryResult, error) {
	var key []byte
	switch q.Path {
	case types.QueryAccountNonce, types.QueryFreeBalance:
		if len(q.Data) != len(types.AccountID{}) {
			return types.StateQueryResult{Code: QueryBadData, Info: "want 20-byte account id"}, nil
		}
		who := types.AccountID(q.Data)
		if q.Path == types.QueryAccountNonce {
			key = system.NonceQueryKey(who)
		} else {
			key = balances.QueryKey(who)
		}
	case types.QueryIndexLookup:
		if len(q.Data) != 4 {
			return types.StateQueryResult{Code: QueryBadData, Info: "want 4-byte index"}, nil
		}
		key = indices.QueryKey(binary.BigEndian.Uint32(q.Data))
	default:
		return types.StateQueryResult{Code: QueryBadPath, Info: fmt.Sprintf("unknown path %q", q.Path)}, nil
	}

	v, err := st.Get(key)
	if err != nil {
		return types.StateQueryResult{}, err
	}
	if v == nil {
		return types.StateQueryResult{Code: QueryNotFound, Key: key}, nil
	}
	return types.StateQueryResult{Code: QueryOK, Key: key, Value: v}, nil
}
