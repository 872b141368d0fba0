package system

import (
	"encoding/binary"
	"fmt"

	"github.com/blockberries/cramberry/pkg/cramberry"

	"github.com/blockberries/stf"
	"github.com/blockberries/stf/types"
)

// Storage keys. Every key is prefixed with the module name so that
// modules never collide.
var (
	keyNumber         = []byte("system:number")
	keyParentHash     = []byte("system:parent_hash")
	keyExtrinsicsRoot = []byte("system:extrinsics_root")
	keyPhase          = []byte("system:phase")
	keyExtrinsicIndex = []byte("system:extrinsic_index")
	keyExtrinsicCount = []byte("system:extrinsic_count")
	keyAllExtrinsics  = []byte("system:all_extrinsics_len")
	keyDigest         = []byte("system:digest")
	keyEventCount     = []byte("system:event_count")

	prefixBlockHash     = []byte("system:block_hash/")
	prefixAccountNonce  = []byte("system:account_nonce/")
	prefixExtrinsicData = []byte("system:extrinsic_data/")
	prefixEvent         = []byte("system:event/")
)

func withUint64(prefix []byte, n uint64) []byte {
	return binary.BigEndian.AppendUint64(append([]byte{}, prefix...), n)
}

func withUint32(prefix []byte, n uint32) []byte {
	return binary.BigEndian.AppendUint32(append([]byte{}, prefix...), n)
}

func blockHashKey(n uint64) []byte { return withUint64(prefixBlockHash, n) }

func accountNonceKey(who types.AccountID) []byte {
	return append(append([]byte{}, prefixAccountNonce...), who[:]...)
}

func extrinsicDataKey(i uint32) []byte { return withUint32(prefixExtrinsicData, i) }

func eventKey(i uint32) []byte { return withUint32(prefixEvent, i) }

// GetUint64 reads a big-endian integer, returning zero if absent.
func GetUint64(st stf.StateReader, key []byte) (uint64, error) {
	v, err := st.Get(key)
	if err != nil || v == nil {
		return 0, err
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("value at %q is %d bytes, want 8", key, len(v))
	}
	return binary.BigEndian.Uint64(v), nil
}

// PutUint64 writes a big-endian integer.
func PutUint64(st stf.State, key []byte, n uint64) error {
	return st.Set(key, binary.BigEndian.AppendUint64(nil, n))
}

func getUint32(st stf.StateReader, key []byte) (uint32, bool, error) {
	v, err := st.Get(key)
	if err != nil || v == nil {
		return 0, false, err
	}
	if len(v) != 4 {
		return 0, false, fmt.Errorf("value at %q is %d bytes, want 4", key, len(v))
	}
	return binary.BigEndian.Uint32(v), true, nil
}

func putUint32(st stf.State, key []byte, n uint32) error {
	return st.Set(key, binary.BigEndian.AppendUint32(nil, n))
}

func getHash(st stf.StateReader, key []byte) (types.Hash, bool, error) {
	v, err := st.Get(key)
	if err != nil || v == nil {
		return types.Hash{}, false, err
	}
	if len(v) != len(types.Hash{}) {
		return types.Hash{}, false, fmt.Errorf("value at %q is %d bytes, want 32", key, len(v))
	}
	return types.Hash(v), true, nil
}

func putHash(st stf.State, key []byte, h types.Hash) error {
	return st.Set(key, h[:])
}

// GetValue decodes a cramberry value into v. It reports false if the
// key is absent.
func GetValue(st stf.StateReader, key []byte, v any) (bool, error) {
	data, err := st.Get(key)
	if err != nil || data == nil {
		return false, err
	}
	if err := cramberry.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

// PutValue stores the cramberry encoding of v.
func PutValue(st stf.State, key []byte, v any) error {
	data, err := cramberry.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return st.Set(key, data)
}

// take reads and deletes key.
func take(st stf.State, key []byte) ([]byte, error) {
	v, err := st.Get(key)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return v, st.Delete(key)
}

// clearPrefix deletes every key under prefix.
func clearPrefix(st stf.State, prefix []byte) error {
	var keys [][]byte
	err := st.Iterate(prefix, func(k, _ []byte) error {
		keys = append(keys, append([]byte{}, k...))
		return nil
	})
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := st.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
