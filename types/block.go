package types

import (
	"bytes"

	"github.com/blockberries/cramberry/pkg/cramberry"
)

// DigestItem is a single log entry emitted during block execution.
type DigestItem struct {
	Kind string `cramberry:"1"`
	Data []byte `cramberry:"2"`
}

// Equal reports whether two digest items are identical.
func (d DigestItem) Equal(o DigestItem) bool {
	return d.Kind == o.Kind && bytes.Equal(d.Data, o.Data)
}

// Digest is the ordered sequence of log entries a block's execution
// is expected to emit.
type Digest struct {
	Logs []DigestItem `cramberry:"1"`
}

// Push appends a log entry.
func (d *Digest) Push(item DigestItem) {
	d.Logs = append(d.Logs, item)
}

// Header commits to a block's position in the chain, its extrinsics
// and the state that results from executing them.
type Header struct {
	Number         uint64 `cramberry:"1"`
	ParentHash     Hash   `cramberry:"2"`
	StateRoot      Hash   `cramberry:"3"`
	ExtrinsicsRoot Hash   `cramberry:"4"`
	Digest         Digest `cramberry:"5"`
}

// Hash returns the blake2b-256 digest of the encoded header.
func (h Header) Hash() Hash {
	data, _ := cramberry.Marshal(h) // header is always serializable
	return HashBytes(data)
}

// ID returns the block identifier for this header.
func (h Header) ID() BlockID {
	return BlockID{Number: h.Number, Hash: h.Hash()}
}

// Block is a header plus its ordered extrinsics. It is immutable
// once constructed and consumed by value by the executor.
type Block struct {
	Header     Header      `cramberry:"1"`
	Extrinsics []Extrinsic `cramberry:"2"`
}

// EncodedExtrinsics returns the raw extrinsic bytes in block order.
func (b Block) EncodedExtrinsics() [][]byte {
	out := make([][]byte, len(b.Extrinsics))
	for i, xt := range b.Extrinsics {
		out[i] = xt
	}
	return out
}
