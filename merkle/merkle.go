// Package merkle computes the binary Merkle commitments carried in a
// block header: the extrinsics root over the ordered extrinsic list
// and the state root over the sorted ledger key/value pairs.
package merkle

import (
	"bytes"
	"encoding/binary"

	"github.com/blockberries/stf"
	"github.com/blockberries/stf/types"
)

var (
	nodePrefix = []byte("node")
	leafPrefix = []byte("leaf")
)

func hash(data []byte) []byte {
	h := types.HashBytes(data)
	return h[:]
}

// node folds the leaf hashes into a root, splitting at the ceiling
// midpoint. An empty list commits to the zero hash.
func node(leaves [][]byte) []byte {
	if len(leaves) == 0 {
		return make([]byte, 32)
	}
	if len(leaves) == 1 {
		return leaves[0]
	}
	mid := (len(leaves) + 1) / 2

	var buf bytes.Buffer
	buf.Write(nodePrefix)
	buf.Write(node(leaves[:mid]))
	buf.Write(node(leaves[mid:]))
	return hash(buf.Bytes())
}

func leaf(blob []byte) []byte {
	return hash(append(append([]byte{}, leafPrefix...), blob...))
}

// Root returns the binary Merkle root of the blobs in order.
func Root(blobs [][]byte) types.Hash {
	leaves := make([][]byte, len(blobs))
	for i, b := range blobs {
		leaves[i] = leaf(b)
	}
	return types.Hash(node(leaves))
}

// ExtrinsicsRoot returns the commitment to an ordered extrinsic list.
func ExtrinsicsRoot(xts [][]byte) types.Hash {
	return Root(xts)
}

// Trace returns the sibling hashes proving the blob at index, from
// the root down.
func Trace(blobs [][]byte, index int) [][]byte {
	leaves := make([][]byte, len(blobs))
	for i, b := range blobs {
		leaves[i] = leaf(b)
	}
	return trace(leaves, index)
}

func trace(leaves [][]byte, index int) [][]byte {
	if len(leaves) <= 1 {
		return nil
	}
	mid := (len(leaves) + 1) / 2
	if index < mid {
		return append([][]byte{node(leaves[mid:])}, trace(leaves[:mid], index)...)
	}
	return append([][]byte{node(leaves[:mid])}, trace(leaves[mid:], index-mid)...)
}

// Verify checks a proof produced by Trace for a list of size n.
func Verify(root types.Hash, blob []byte, index, n int, proof [][]byte) bool {
	cur, ok := verify(leaf(blob), index, n, proof)
	return ok && len(cur) == 32 && types.Hash(cur) == root
}

func verify(l []byte, index, n int, proof [][]byte) ([]byte, bool) {
	if n <= 1 {
		return l, len(proof) == 0
	}
	if len(proof) == 0 {
		return nil, false
	}
	mid := (n + 1) / 2
	var buf bytes.Buffer
	buf.Write(nodePrefix)
	if index < mid {
		sub, ok := verify(l, index, mid, proof[1:])
		if !ok {
			return nil, false
		}
		buf.Write(sub)
		buf.Write(proof[0])
	} else {
		sub, ok := verify(l, index-mid, n-mid, proof[1:])
		if !ok {
			return nil, false
		}
		buf.Write(proof[0])
		buf.Write(sub)
	}
	return hash(buf.Bytes()), true
}

// StateRoot returns the commitment to every key/value pair visible
// through st. Leaves are ordered by key.
func StateRoot(st stf.StateReader) (types.Hash, error) {
	var blobs [][]byte
	err := st.Iterate(nil, func(key, value []byte) error {
		blobs = append(blobs, stateLeaf(key, value))
		return nil
	})
	if err != nil {
		return types.Hash{}, err
	}
	return Root(blobs), nil
}

func stateLeaf(key, value []byte) []byte {
	vh := types.HashBytes(value)
	out := make([]byte, 0, 4+len(key)+len(vh))
	out = binary.BigEndian.AppendUint32(out, uint32(len(key)))
	out = append(out, key...)
	return append(out, vh[:]...)
}
