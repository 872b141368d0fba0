// Package types defines the data model of the block state-transition
// function: blocks, headers, extrinsics, outcomes and verdicts.
//
// These are plain Go structs with cramberry struct tags for
// deterministic binary serialization. Every consensus-relevant
// encoding (extrinsics, headers, ordering tags, stored values) goes
// through cramberry so that independent nodes agree bit for bit.
package types

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Hash is a 32-byte blake2b-256 digest.
type Hash [32]byte

// String returns the hex encoding of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether the hash is all zero bytes.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Bytes returns a copy of the hash as a slice.
func (h Hash) Bytes() []byte {
	return h[:]
}

// HashBytes returns the blake2b-256 digest of data.
func HashBytes(data []byte) Hash {
	return Hash(blake2b.Sum256(data))
}

// AccountID is the 20-byte identity of an account, derived from
// the signer's public key.
type AccountID [20]byte

// String returns the hex encoding of the account id.
func (a AccountID) String() string {
	return hex.EncodeToString(a[:])
}

// AccountIDFromPubKey derives an account id from a serialized
// compressed public key.
func AccountIDFromPubKey(compressed []byte) AccountID {
	h := blake2b.Sum256(compressed)
	var id AccountID
	copy(id[:], h[:len(id)])
	return id
}

// Extrinsic is an opaque encoded unit of block input, either a
// signed transaction or an unsigned inherent.
type Extrinsic []byte

// Hash returns the blake2b-256 digest of the encoded extrinsic.
func (x Extrinsic) Hash() Hash {
	return HashBytes(x)
}

// QueryPath is a structured key for state queries
// (e.g., "/balances/free").
type QueryPath string

// BlockID uniquely identifies a point in the chain.
type BlockID struct {
	Number uint64 `cramberry:"1"`
	Hash   Hash   `cramberry:"2"`
}
