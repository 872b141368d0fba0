package types

import (
	"fmt"
	"math"

	"github.com/blockberries/cramberry/pkg/cramberry"
)

// ValidityKind discriminates a TransactionValidity verdict.
type ValidityKind uint8

const (
	// ValidityValid means the transaction is admissible now or once
	// its Requires tags are provided.
	ValidityValid ValidityKind = 1
	// ValidityInvalid means the transaction must be dropped.
	ValidityInvalid ValidityKind = 2
	// ValidityUnknown means the verdict cannot be decided yet; the
	// pool should retry later.
	ValidityUnknown ValidityKind = 3
)

func (k ValidityKind) String() string {
	switch k {
	case ValidityValid:
		return "Valid"
	case ValidityInvalid:
		return "Invalid"
	case ValidityUnknown:
		return "Unknown"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// ValidityCode explains an Invalid or Unknown verdict. Non-negative
// codes mirror ApplyError values.
type ValidityCode int8

const (
	CodeBadSignature      = ValidityCode(ApplyBadSignature)
	CodeStale             = ValidityCode(ApplyStale)
	CodeCantPay           = ValidityCode(ApplyCantPay)
	CodeNotAllow          ValidityCode = -1
	CodeInvalidIndex      ValidityCode = -10
	CodeMissingSender     ValidityCode = -20
	CodeAccelerationError ValidityCode = -30
	CodeUnknownError      ValidityCode = -127
)

// LongevityForever is the longevity of a valid transaction that
// never expires on its own.
const LongevityForever = math.MaxUint64

// TransactionValidity is the admission oracle's verdict, consumed
// by the pool for queuing and ordering.
type TransactionValidity struct {
	Kind ValidityKind `cramberry:"1"`
	// Set for Invalid and Unknown.
	Code ValidityCode `cramberry:"2"`
	// The remaining fields are set for Valid. Higher priority first.
	Priority  uint64   `cramberry:"3"`
	Requires  [][]byte `cramberry:"4"`
	Provides  [][]byte `cramberry:"5"`
	Longevity uint64   `cramberry:"6"`
}

// Invalid builds an Invalid verdict.
func Invalid(code ValidityCode) TransactionValidity {
	return TransactionValidity{Kind: ValidityInvalid, Code: code}
}

// Unknown builds an Unknown verdict.
func Unknown(code ValidityCode) TransactionValidity {
	return TransactionValidity{Kind: ValidityUnknown, Code: code}
}

// Accepted returns true if the verdict is Valid.
func (v TransactionValidity) Accepted() bool { return v.Kind == ValidityValid }

func (v TransactionValidity) String() string {
	if v.Kind == ValidityValid {
		return fmt.Sprintf("Valid{priority=%d requires=%d provides=%d}",
			v.Priority, len(v.Requires), len(v.Provides))
	}
	return fmt.Sprintf("%s(%d)", v.Kind, v.Code)
}

// Tag is the ordering dependency a signed transaction provides or
// requires: the (signer, nonce) pair.
type Tag struct {
	Signer AccountID `cramberry:"1"`
	Nonce  uint64    `cramberry:"2"`
}

// Encode returns the tag's canonical bytes.
func (t Tag) Encode() []byte {
	data, _ := cramberry.Marshal(t) // tag is always serializable
	return data
}
