package types

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/blockberries/cramberry/pkg/cramberry"
)

// AddressKind discriminates an Address.
type AddressKind uint8

const (
	// AddressNone is the zero, unresolvable address.
	AddressNone AddressKind = 0
	// AddressID names an account directly.
	AddressID AddressKind = 1
	// AddressIndex names an account by its compact index.
	AddressIndex AddressKind = 2
)

// Address names the signer of an extrinsic, either directly by
// account id or by a compact account index that must be looked up.
// Kind selects which of ID and Index is meaningful.
type Address struct {
	Kind  AddressKind `cramberry:"1"`
	ID    AccountID   `cramberry:"2"`
	Index uint32      `cramberry:"3"`
}

// AddressFromID builds a direct address.
func AddressFromID(id AccountID) Address {
	return Address{Kind: AddressID, ID: id}
}

// AddressFromIndex builds an indexed address.
func AddressFromIndex(index uint32) Address {
	return Address{Kind: AddressIndex, Index: index}
}

func (a Address) String() string {
	switch a.Kind {
	case AddressID:
		return a.ID.String()
	case AddressIndex:
		return fmt.Sprintf("index:%d", a.Index)
	default:
		return "<empty>"
	}
}

// Call is a decoded callable operation routed to a module.
type Call struct {
	Module string `cramberry:"1"`
	Method string `cramberry:"2"`
	Args   []byte `cramberry:"3"`
}

// ID returns the "module.method" identifier used as the key of the
// fee weight table.
func (c Call) ID() string {
	return c.Module + "." + c.Method
}

// NewCall encodes args and builds a call.
func NewCall(module, method string, args any) (Call, error) {
	var data []byte
	if args != nil {
		var err error
		data, err = cramberry.Marshal(args)
		if err != nil {
			return Call{}, fmt.Errorf("encode %s.%s args: %w", module, method, err)
		}
	}
	return Call{Module: module, Method: method, Args: data}, nil
}

// DecodeArgs decodes the call arguments into v.
func (c Call) DecodeArgs(v any) error {
	if err := cramberry.Unmarshal(c.Args, v); err != nil {
		return fmt.Errorf("decode %s args: %w", c.ID(), err)
	}
	return nil
}

// ExtrinsicSignature carries the signed part of a transaction.
type ExtrinsicSignature struct {
	Signer Address `cramberry:"1"`
	// 65-byte compact recoverable secp256k1 signature over the
	// signing payload hash.
	Signature []byte `cramberry:"2"`
	Nonce     uint64 `cramberry:"3"`
	// User-chosen fee multiplier, also used as pool priority.
	Acceleration uint32 `cramberry:"4"`
}

// UncheckedExtrinsic is the decoded, not yet verified, form of a
// raw extrinsic. A nil Signature marks an unsigned inherent.
type UncheckedExtrinsic struct {
	Signature *ExtrinsicSignature `cramberry:"1"`
	Call      Call                `cramberry:"2"`
}

// IsSigned reports whether the extrinsic carries a signature.
func (u UncheckedExtrinsic) IsSigned() bool {
	return u.Signature != nil
}

// Encode serializes the extrinsic.
func (u UncheckedExtrinsic) Encode() (Extrinsic, error) {
	data, err := cramberry.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("encode extrinsic: %w", err)
	}
	return data, nil
}

// ErrNonCanonical is returned for bytes that decode but are not the
// canonical encoding of the result.
var ErrNonCanonical = errors.New("non-canonical extrinsic encoding")

// DecodeExtrinsic parses a raw extrinsic. The bytes must be the
// canonical encoding of an extrinsic naming a call.
func DecodeExtrinsic(xt Extrinsic) (UncheckedExtrinsic, error) {
	var u UncheckedExtrinsic
	if err := cramberry.Unmarshal(xt, &u); err != nil {
		return UncheckedExtrinsic{}, fmt.Errorf("decode extrinsic: %w", err)
	}
	if u.Call.Module == "" || u.Call.Method == "" {
		return UncheckedExtrinsic{}, fmt.Errorf("decode extrinsic: empty call %q", u.Call.ID())
	}
	if u.Signature != nil && u.Signature.Signer.Kind == AddressNone {
		return UncheckedExtrinsic{}, errors.New("decode extrinsic: signed without signer")
	}
	again, err := cramberry.Marshal(u)
	if err != nil {
		return UncheckedExtrinsic{}, fmt.Errorf("decode extrinsic: %w", err)
	}
	if !bytes.Equal(again, xt) {
		return UncheckedExtrinsic{}, ErrNonCanonical
	}
	return u, nil
}

// SigningPayload is the message a signer commits to.
type SigningPayload struct {
	Nonce        uint64 `cramberry:"1"`
	Call         Call   `cramberry:"2"`
	Acceleration uint32 `cramberry:"3"`
}

// Hash returns the digest that is signed.
func (p SigningPayload) Hash() Hash {
	data, _ := cramberry.Marshal(p) // payload is always serializable
	return HashBytes(data)
}
