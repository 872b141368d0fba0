package executive

import (
	"context"
	"errors"

	"github.com/blockberries/stf"
	"github.com/blockberries/stf/extrinsic"
	"github.com/blockberries/stf/system"
	"github.com/blockberries/stf/types"
)

// ValidateTransaction decides whether xt is admissible to the pool
// against the state visible through st, and how it orders relative to
// other transactions of the same signer. It never writes and is safe
// for concurrent use on a snapshot.
func (e *Executive) ValidateTransaction(ctx context.Context, st stf.StateReader, xt types.Extrinsic) types.TransactionValidity {
	encodedLen := len(xt)

	checked, err := extrinsic.Check(st, e.cfg.Lookup, xt)
	switch {
	case errors.Is(err, stf.ErrInvalidAccountIndex):
		// The index may become known later.
		return types.Unknown(types.CodeInvalidIndex)
	case errors.Is(err, extrinsic.ErrBadSignature):
		return types.Invalid(types.CodeBadSignature)
	case extrinsic.IsResolutionError(err):
		log.DebugS(ctx, "Transaction failed resolution", "err", err)
		return types.Invalid(types.CodeUnknownError)
	case err != nil:
		return e.unknown(ctx, err)
	}

	acc := checked.Acceleration.UnwrapOr(0)
	if acc == 0 {
		return types.Invalid(types.CodeAccelerationError)
	}
	if !checked.IsSigned() {
		return types.Invalid(types.CodeMissingSender)
	}
	who := checked.Signer.UnsafeFromSome()
	nonce := checked.Nonce.UnsafeFromSome()

	expected, err := system.AccountNonce(st, who)
	if err != nil {
		return e.unknown(ctx, err)
	}
	if nonce < expected {
		return types.Invalid(types.CodeStale)
	}

	valid := types.TransactionValidity{
		Kind:      types.ValidityValid,
		Priority:  uint64(acc),
		Provides:  [][]byte{types.Tag{Signer: who, Nonce: nonce}.Encode()},
		Longevity: types.LongevityForever,
	}
	if nonce > expected {
		valid.Requires = [][]byte{types.Tag{Signer: who, Nonce: nonce - 1}.Encode()}
	}

	weight, err := e.checkFee(st, checked.Call)
	if err != nil {
		return e.unknown(ctx, err)
	}
	if weight.IsNone() {
		return types.Invalid(types.CodeNotAllow)
	}
	err = e.cfg.Payment.CheckPayment(st, who, encodedLen, weight.UnsafeFromSome(), acc)
	if err != nil {
		return types.Invalid(types.CodeCantPay)
	}
	return valid
}

// unknown reports a storage failure as a retry-later verdict.
func (e *Executive) unknown(ctx context.Context, err error) types.TransactionValidity {
	log.ErrorS(ctx, "Transaction validation could not read state", err)
	return types.Unknown(types.CodeUnknownError)
}
