// Package balances keeps free balances and implements transfers.
package balances

import (
	"context"
	"fmt"
	"math"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/blockberries/stf"
	"github.com/blockberries/stf/modules/indices"
	"github.com/blockberries/stf/system"
	"github.com/blockberries/stf/types"
)

// ModuleName is the routing key of the balances module.
const ModuleName = "balances"

// Event kinds.
const (
	EventTransfer   = "balances.Transfer"
	EventNewAccount = "balances.NewAccount"
)

var prefixFree = []byte("balances:free/")

func freeKey(who types.AccountID) []byte {
	return append(append([]byte{}, prefixFree...), who[:]...)
}

// TransferArgs are the arguments of balances.transfer.
type TransferArgs struct {
	Dest  types.Address `cramberry:"1"`
	Value uint64        `cramberry:"2"`
}

// Module is the balances module.
type Module struct {
	Lookup stf.Lookup
}

var _ stf.Dispatchable = (*Module)(nil)

// New creates the balances module resolving destinations with lookup.
func New(lookup stf.Lookup) *Module {
	return &Module{Lookup: lookup}
}

// Name implements stf.Module.
func (m *Module) Name() string { return ModuleName }

// Dispatch implements stf.Dispatchable.
func (m *Module) Dispatch(_ context.Context, st stf.State,
	origin fn.Option[types.AccountID], call types.Call) error {

	switch call.Method {
	case "transfer":
		who, err := origin.UnwrapOrErr(stf.ErrBadOrigin)
		if err != nil {
			return err
		}
		var args TransferArgs
		if err := call.DecodeArgs(&args); err != nil {
			return err
		}
		dest, err := m.Lookup.Lookup(st, args.Dest)
		if err != nil {
			return err
		}
		return Transfer(st, who, dest, args.Value)

	default:
		return fmt.Errorf("%w: %s", stf.ErrUnknownCall, call.ID())
	}
}

// FreeBalance returns who's free balance.
func FreeBalance(st stf.StateReader, who types.AccountID) (uint64, error) {
	return system.GetUint64(st, freeKey(who))
}

// Withdraw debits value from who.
func Withdraw(st stf.State, who types.AccountID, value uint64) error {
	free, err := FreeBalance(st, who)
	if err != nil {
		return err
	}
	if free < value {
		return fmt.Errorf("%w: have %d, need %d", stf.ErrInsufficientBalance, free, value)
	}
	return system.PutUint64(st, freeKey(who), free-value)
}

// Deposit credits value to who, creating the account (and assigning
// it an index) if it did not exist.
func Deposit(st stf.State, who types.AccountID, value uint64) error {
	existing, err := st.Get(freeKey(who))
	if err != nil {
		return err
	}
	free, err := FreeBalance(st, who)
	if err != nil {
		return err
	}
	if free > math.MaxUint64-value {
		return fmt.Errorf("balance overflow for %s", who)
	}
	if err := system.PutUint64(st, freeKey(who), free+value); err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	if _, err := indices.Register(st, who); err != nil {
		return err
	}
	return system.DepositEvent(st, EventNewAccount, system.Attr("who", who))
}

// Transfer moves value from src to dest.
func Transfer(st stf.State, src, dest types.AccountID, value uint64) error {
	if err := Withdraw(st, src, value); err != nil {
		return err
	}
	if err := Deposit(st, dest, value); err != nil {
		return err
	}
	return system.DepositEvent(st, EventTransfer,
		system.Attr("from", src), system.Attr("to", dest),
		system.Attr("value", value))
}

// TransferCall builds a balances.transfer call.
func TransferCall(dest types.Address, value uint64) types.Call {
	call, _ := types.NewCall(ModuleName, "transfer", &TransferArgs{Dest: dest, Value: value}) // args are always serializable
	return call
}

// QueryKey returns the state key of who's free balance, for queries.
func QueryKey(who types.AccountID) []byte { return freeKey(who) }
