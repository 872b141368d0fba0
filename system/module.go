package system

import (
	"context"
	"fmt"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/blockberries/stf"
	"github.com/blockberries/stf/types"
)

// RemarkArgs are the arguments of system.remark.
type RemarkArgs struct {
	Data []byte `cramberry:"1"`
}

// Module exposes the system calls to the dispatcher.
type Module struct{}

var _ stf.Dispatchable = Module{}

// Name implements stf.Module.
func (Module) Name() string { return ModuleName }

// Dispatch implements stf.Dispatchable.
func (Module) Dispatch(_ context.Context, st stf.State,
	origin fn.Option[types.AccountID], call types.Call) error {

	switch call.Method {
	case "remark":
		var args RemarkArgs
		if err := call.DecodeArgs(&args); err != nil {
			return err
		}
		attrs := []types.EventAttribute{Attr("len", uint64(len(args.Data)))}
		origin.WhenSome(func(who types.AccountID) {
			attrs = append(attrs, Attr("who", who))
		})
		return DepositEvent(st, EventRemarked, attrs...)

	default:
		return fmt.Errorf("%w: %s", stf.ErrUnknownCall, call.ID())
	}
}

// Remark builds a system.remark call.
func Remark(data []byte) types.Call {
	call, _ := types.NewCall(ModuleName, "remark", &RemarkArgs{Data: data}) // args are always serializable
	return call
}

// NonceQueryKey returns the state key of who's nonce, for queries.
func NonceQueryKey(who types.AccountID) []byte { return accountNonceKey(who) }
