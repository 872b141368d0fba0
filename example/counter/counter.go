// Package counter is an example runtime module. It keeps a single
// counter that signed extrinsics increment, and its offchain hook
// proposes an increment for every imported block.
package counter

import (
	"context"
	"errors"
	"fmt"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/blockberries/stf"
	"github.com/blockberries/stf/system"
	"github.com/blockberries/stf/types"
)

// ModuleName routes counter calls.
const ModuleName = "counter"

// EventIncremented is deposited by every successful increment.
const EventIncremented = "counter.Incremented"

var keyCount = []byte("counter:count")

var errZeroIncrement = errors.New("counter: zero increment")

// IncrementArgs are the arguments of counter.increment.
type IncrementArgs struct {
	By uint64 `cramberry:"1"`
}

// Module is the counter module. Submit, when set, receives the calls
// generated by the offchain hook.
type Module struct {
	Submit func(ctx context.Context, call types.Call)
}

var (
	_ stf.Dispatchable   = (*Module)(nil)
	_ stf.OffchainWorker = (*Module)(nil)
)

// New returns a counter module that hands generated calls to submit.
func New(submit func(ctx context.Context, call types.Call)) *Module {
	return &Module{Submit: submit}
}

// Name implements stf.Module.
func (*Module) Name() string { return ModuleName }

// Dispatch implements stf.Dispatchable.
func (*Module) Dispatch(_ context.Context, st stf.State,
	origin fn.Option[types.AccountID], call types.Call) error {

	switch call.Method {
	case "increment":
		var args IncrementArgs
		if err := call.DecodeArgs(&args); err != nil {
			return err
		}
		if args.By == 0 {
			return errZeroIncrement
		}
		n, err := Count(st)
		if err != nil {
			return err
		}
		if n+args.By < n {
			return fmt.Errorf("counter: overflow at %d", n)
		}
		if err := system.PutUint64(st, keyCount, n+args.By); err != nil {
			return err
		}

		attrs := []types.EventAttribute{
			system.Attr("by", args.By),
			system.Attr("count", n+args.By),
		}
		origin.WhenSome(func(who types.AccountID) {
			attrs = append(attrs, system.Attr("who", who))
		})
		return system.DepositEvent(st, EventIncremented, attrs...)

	default:
		return fmt.Errorf("%w: %s", stf.ErrUnknownCall, call.ID())
	}
}

// GenerateExtrinsics implements stf.OffchainWorker.
func (m *Module) GenerateExtrinsics(ctx context.Context, number uint64) {
	if m.Submit == nil {
		return
	}
	log.DebugS(ctx, "Proposing increment", "number", number)
	m.Submit(ctx, IncrementCall(1))
}

// Count returns the current counter value.
func Count(st stf.StateReader) (uint64, error) {
	return system.GetUint64(st, keyCount)
}

// IncrementCall builds a counter.increment call.
func IncrementCall(by uint64) types.Call {
	call, _ := types.NewCall(ModuleName, "increment", &IncrementArgs{By: by}) // args are always serializable
	return call
}
