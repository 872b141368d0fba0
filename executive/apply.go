package executive

import (
	"context"
	"fmt"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/blockberries/stf"
	"github.com/blockberries/stf/extrinsic"
	"github.com/blockberries/stf/system"
	"github.com/blockberries/stf/types"
)

// ApplyExtrinsic applies one extrinsic while authoring a block. The
// raw bytes are noted so FinalizeBlock can derive the extrinsics
// root.
//
// A types.ApplyError means the extrinsic was not admitted and state
// is unchanged. Any other error is a storage fault.
func (e *Executive) ApplyExtrinsic(ctx context.Context, st stf.State, xt types.Extrinsic) (types.ApplyOutcome, error) {
	return e.applyWithLen(ctx, st, xt, len(xt), true)
}

// applyWithLen runs the admission gate and, if the extrinsic is
// admitted, dispatches it. Checks run cheapest first and stop at the
// first failure.
func (e *Executive) applyWithLen(ctx context.Context, st stf.State, xt types.Extrinsic,
	encodedLen int, note bool) (types.ApplyOutcome, error) {

	checked, err := extrinsic.Check(st, e.cfg.Lookup, xt)
	switch {
	case err == nil:
	case extrinsic.IsResolutionError(err):
		log.TraceS(ctx, "Extrinsic failed resolution", "err", err)
		return types.ApplyOutcome{}, types.ApplyBadSignature
	default:
		return types.ApplyOutcome{}, fmt.Errorf("resolve extrinsic: %w", err)
	}

	total, err := system.AllExtrinsicsLen(st)
	if err != nil {
		return types.ApplyOutcome{}, err
	}
	if uint64(total)+uint64(encodedLen) > uint64(e.cfg.MaxTransactionsSize) {
		return types.ApplyOutcome{}, types.ApplyFullBlock
	}

	if err := e.admitSigned(ctx, st, checked, encodedLen); err != nil {
		return types.ApplyOutcome{}, err
	}

	// Commit point: nothing below rejects the extrinsic.

	if note {
		if err := system.NoteExtrinsic(st, xt); err != nil {
			return types.ApplyOutcome{}, err
		}
	}

	outcome := types.OutcomeSuccess
	if err := e.dispatchCall(ctx, st, checked.Signer, checked.Call); err != nil {
		outcome = types.OutcomeFail(err.Error())
	}
	if err := system.NoteAppliedExtrinsic(st, outcome, uint32(encodedLen)); err != nil {
		return types.ApplyOutcome{}, err
	}
	return outcome, nil
}

// admitSigned checks the nonce of a signed extrinsic and charges its
// fee, then advances the nonce. Unsigned extrinsics pass untouched.
func (e *Executive) admitSigned(ctx context.Context, st stf.State, checked extrinsic.Checked, encodedLen int) error {
	if !checked.IsSigned() {
		return nil
	}
	who := checked.Signer.UnsafeFromSome()
	nonce := checked.Nonce.UnsafeFromSome()

	expected, err := system.AccountNonce(st, who)
	if err != nil {
		return err
	}
	switch {
	case nonce < expected:
		return types.ApplyStale
	case nonce > expected:
		return types.ApplyFuture
	}

	acc := checked.Acceleration.UnwrapOr(0)
	if acc == 0 {
		return types.ApplyNotAllow
	}
	weight, err := e.checkFee(st, checked.Call)
	if err != nil {
		return err
	}
	w, err := weight.UnwrapOrErr(types.ApplyNotAllow)
	if err != nil {
		return err
	}

	if err := e.cfg.Payment.MakePayment(st, who, encodedLen, w, acc); err != nil {
		log.TraceS(ctx, "Payment failed", "who", who, "err", err)
		return types.ApplyCantPay
	}

	return system.IncAccountNonce(st, who)
}

// checkFee returns the weight of call under the current fee
// configuration, or None if the call may not be charged.
func (e *Executive) checkFee(st stf.StateReader, call types.Call) (fn.Option[uint64], error) {
	sw, err := e.cfg.Fees.Switch(st)
	if err != nil {
		return fn.None[uint64](), fmt.Errorf("read fee switch: %w", err)
	}
	weights, err := e.cfg.Fees.MethodCallWeight(st)
	if err != nil {
		return fn.None[uint64](), fmt.Errorf("read method weights: %w", err)
	}
	return CheckFee(call, sw, weights), nil
}

// CheckFee returns the weight of call if it is chargeable under sw
// and weights, or None if the call is not allowed.
func CheckFee(call types.Call, sw types.Switch, weights map[string]uint64) fn.Option[uint64] {
	if sw.IsPaused(call.Module) {
		return fn.None[uint64]()
	}
	w, ok := weights[call.ID()]
	if !ok {
		return fn.None[uint64]()
	}
	return fn.Some(w)
}
