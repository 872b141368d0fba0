// Package timestamp maintains the block timestamp, set once per block
// by an unsigned inherent.
package timestamp

import (
	"context"
	"errors"
	"fmt"

	"github.com/blockberries/cramberry/pkg/cramberry"
	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/blockberries/stf"
	"github.com/blockberries/stf/system"
	"github.com/blockberries/stf/types"
)

// ModuleName is the routing key of the timestamp module.
const ModuleName = "timestamp"

// DigestKind is the kind of the digest item carrying the timestamp.
const DigestKind = "timestamp"

var (
	// ErrAlreadySet is returned when the timestamp is set twice in a
	// block.
	ErrAlreadySet = errors.New("timestamp must be updated only once in the block")

	// ErrNotSet is returned at finalization when a required timestamp
	// was not set.
	ErrNotSet = errors.New("timestamp must be updated once in the block")

	// ErrNotMonotonic is returned when the new timestamp is earlier
	// than the previous one.
	ErrNotMonotonic = errors.New("timestamp must increment monotonically")
)

var (
	keyNow       = []byte("timestamp:now")
	keyDidUpdate = []byte("timestamp:did_update")
)

// SetArgs are the arguments of timestamp.set.
type SetArgs struct {
	Now types.Timestamp `cramberry:"1"`
}

// Module is the timestamp module.
type Module struct {
	// Require makes finalization fail in any block that did not set
	// the timestamp.
	Require bool
}

var (
	_ stf.Dispatchable = Module{}
	_ stf.Finalizer    = Module{}
)

// Name implements stf.Module.
func (Module) Name() string { return ModuleName }

// Dispatch implements stf.Dispatchable.
func (Module) Dispatch(_ context.Context, st stf.State,
	origin fn.Option[types.AccountID], call types.Call) error {

	if call.Method != "set" {
		return fmt.Errorf("%w: %s", stf.ErrUnknownCall, call.ID())
	}
	if origin.IsSome() {
		return stf.ErrBadOrigin
	}
	var args SetArgs
	if err := call.DecodeArgs(&args); err != nil {
		return err
	}
	return Set(st, args.Now)
}

// Set records now as the block timestamp.
func Set(st stf.State, now types.Timestamp) error {
	updated, err := st.Get(keyDidUpdate)
	if err != nil {
		return err
	}
	if updated != nil {
		return ErrAlreadySet
	}

	prev, err := Now(st)
	if err != nil {
		return err
	}
	if now.Before(prev) {
		return fmt.Errorf("%w: %v before %v", ErrNotMonotonic,
			now.ToTime(), prev.ToTime())
	}

	data, err := cramberry.Marshal(now)
	if err != nil {
		return err
	}
	if err := st.Set(keyNow, data); err != nil {
		return err
	}
	if err := st.Set(keyDidUpdate, []byte{1}); err != nil {
		return err
	}
	return system.DepositLog(st, types.DigestItem{Kind: DigestKind, Data: data})
}

// SetGenesis records the genesis time without marking the timestamp
// as set for the current block.
func SetGenesis(st stf.State, now types.Timestamp) error {
	return system.PutValue(st, keyNow, now)
}

// Now returns the last recorded timestamp.
func Now(st stf.StateReader) (types.Timestamp, error) {
	var ts types.Timestamp
	_, err := system.GetValue(st, keyNow, &ts)
	return ts, err
}

// OnFinalize implements stf.Finalizer.
func (m Module) OnFinalize(_ context.Context, st stf.State, _ uint64) error {
	updated, err := st.Get(keyDidUpdate)
	if err != nil {
		return err
	}
	if updated == nil && m.Require {
		return ErrNotSet
	}
	return st.Delete(keyDidUpdate)
}

// SetCall builds a timestamp.set call.
func SetCall(now types.Timestamp) types.Call {
	call, _ := types.NewCall(ModuleName, "set", &SetArgs{Now: now}) // args are always serializable
	return call
}
