package stf

import (
	"errors"
	"fmt"
)

// FaultKind classifies a fatal fault detected while executing a
// block.
type FaultKind uint8

const (
	FaultUnknown FaultKind = iota
	// FaultParentHash: the block is block zero, or its parent hash
	// differs from the recorded hash of the previous block.
	FaultParentHash
	// FaultExtrinsicsRoot: the header's extrinsics root does not
	// commit to the block's extrinsics.
	FaultExtrinsicsRoot
	// FaultDigestLength: the computed digest has a different number
	// of items than the header's.
	FaultDigestLength
	// FaultDigestItem: a computed digest item differs from the
	// header's item at the same position.
	FaultDigestItem
	// FaultStateRoot: the computed state root differs from the
	// header's.
	FaultStateRoot
	// FaultInadmissibleExtrinsic: an extrinsic inside an imported
	// block failed admission.
	FaultInadmissibleExtrinsic
	// FaultHook: a module initialize or finalize hook failed.
	FaultHook
	// FaultStorage: the ledger handle returned an error.
	FaultStorage
)

func (k FaultKind) String() string {
	switch k {
	case FaultParentHash:
		return "ParentHash"
	case FaultExtrinsicsRoot:
		return "ExtrinsicsRoot"
	case FaultDigestLength:
		return "DigestLength"
	case FaultDigestItem:
		return "DigestItem"
	case FaultStateRoot:
		return "StateRoot"
	case FaultInadmissibleExtrinsic:
		return "InadmissibleExtrinsic"
	case FaultHook:
		return "Hook"
	case FaultStorage:
		return "Storage"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// ParseFaultKind is the inverse of FaultKind.String. Unrecognized
// names map to FaultUnknown.
func ParseFaultKind(s string) FaultKind {
	for k := FaultParentHash; k <= FaultStorage; k++ {
		if k.String() == s {
			return k
		}
	}
	return FaultUnknown
}

// HaltError signals that a block is invalid in a way that must never
// be accepted. The working state of the block has to be discarded.
//
// When the node receives a HaltError from ExecuteBlock, it must
// reject the block and not proceed to Commit.
type HaltError struct {
	Kind   FaultKind
	Reason string
	Height uint64
	// Cause is the underlying error, if any (an ApplyError for
	// FaultInadmissibleExtrinsic, a storage error for FaultStorage).
	Cause error
}

func (e *HaltError) Error() string {
	return fmt.Sprintf("HALT at height %d: %s: %s", e.Height, e.Kind, e.Reason)
}

func (e *HaltError) Unwrap() error { return e.Cause }

// NewHaltError creates a new HaltError.
func NewHaltError(height uint64, kind FaultKind, reason string) *HaltError {
	return &HaltError{Height: height, Kind: kind, Reason: reason}
}

// WrapHalt creates a HaltError caused by err.
func WrapHalt(height uint64, kind FaultKind, reason string, err error) *HaltError {
	return &HaltError{Height: height, Kind: kind, Reason: reason, Cause: err}
}

// IsHalt checks whether an error is a HaltError and returns it.
func IsHalt(err error) (*HaltError, bool) {
	var h *HaltError
	if errors.As(err, &h) {
		return h, true
	}
	return nil, false
}
