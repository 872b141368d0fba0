// Package extrinsic resolves raw extrinsics into checked form: it
// decodes them, resolves the signer address and verifies the
// signature. Resolution never writes to state.
package extrinsic

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/blockberries/stf"
	"github.com/blockberries/stf/types"
)

var (
	// ErrUndecodable is returned for bytes that are not an extrinsic.
	ErrUndecodable = errors.New("undecodable extrinsic")

	// ErrBadSignature is returned when the signature does not verify
	// against the resolved signer.
	ErrBadSignature = errors.New("bad signature")
)

// SignatureSize is the length of a compact recoverable signature.
const SignatureSize = 65

// Checked is an extrinsic whose signature, if any, has been verified.
// Signer, Nonce and Acceleration are all present for a signed
// extrinsic and all absent for an unsigned one.
type Checked struct {
	Signer       fn.Option[types.AccountID]
	Nonce        fn.Option[uint64]
	Acceleration fn.Option[uint32]
	Call         types.Call
}

// IsSigned reports whether the extrinsic was signed.
func (c Checked) IsSigned() bool {
	return c.Signer.IsSome()
}

// Check decodes xt and verifies it against st. Unknown account
// indices yield stf.ErrInvalidAccountIndex. Any error that is not a
// resolution failure comes from reading st.
func Check(st stf.StateReader, lookup stf.Lookup, xt types.Extrinsic) (Checked, error) {
	u, err := types.DecodeExtrinsic(xt)
	if err != nil {
		return Checked{}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	return CheckDecoded(st, lookup, u)
}

// CheckDecoded verifies an already decoded extrinsic.
func CheckDecoded(st stf.StateReader, lookup stf.Lookup, u types.UncheckedExtrinsic) (Checked, error) {
	if !u.IsSigned() {
		return Checked{Call: u.Call}, nil
	}
	sig := u.Signature

	signer, err := lookup.Lookup(st, sig.Signer)
	if err != nil {
		return Checked{}, err
	}

	if len(sig.Signature) != SignatureSize {
		return Checked{}, fmt.Errorf("%w: signature is %d bytes",
			ErrBadSignature, len(sig.Signature))
	}

	payload := types.SigningPayload{
		Nonce:        sig.Nonce,
		Call:         u.Call,
		Acceleration: sig.Acceleration,
	}.Hash()

	pub, _, err := ecdsa.RecoverCompact(sig.Signature, payload[:])
	if err != nil {
		return Checked{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if types.AccountIDFromPubKey(pub.SerializeCompressed()) != signer {
		return Checked{}, fmt.Errorf("%w: signer mismatch", ErrBadSignature)
	}

	return Checked{
		Signer:       fn.Some(signer),
		Nonce:        fn.Some(sig.Nonce),
		Acceleration: fn.Some(sig.Acceleration),
		Call:         u.Call,
	}, nil
}

// Sign builds a signed extrinsic. signer is the address placed in the
// extrinsic and must resolve to the account of priv.
func Sign(priv *btcec.PrivateKey, signer types.Address, nonce uint64,
	acceleration uint32, call types.Call) (types.Extrinsic, error) {

	payload := types.SigningPayload{
		Nonce:        nonce,
		Call:         call,
		Acceleration: acceleration,
	}.Hash()

	u := types.UncheckedExtrinsic{
		Signature: &types.ExtrinsicSignature{
			Signer:       signer,
			Signature:    ecdsa.SignCompact(priv, payload[:], true),
			Nonce:        nonce,
			Acceleration: acceleration,
		},
		Call: call,
	}
	return u.Encode()
}

// Unsigned builds an unsigned (inherent) extrinsic.
func Unsigned(call types.Call) (types.Extrinsic, error) {
	return types.UncheckedExtrinsic{Call: call}.Encode()
}

// IsResolutionError reports whether err from Check means the
// extrinsic itself is bad, as opposed to a failed state read.
func IsResolutionError(err error) bool {
	return errors.Is(err, ErrUndecodable) ||
		errors.Is(err, ErrBadSignature) ||
		errors.Is(err, stf.ErrInvalidAccountIndex)
}

// AccountID returns the account id controlled by priv.
func AccountID(priv *btcec.PrivateKey) types.AccountID {
	return types.AccountIDFromPubKey(priv.PubKey().SerializeCompressed())
}
