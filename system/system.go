// Package system keeps the per-block books: the block number, parent
// hash and extrinsics root of the block being built, the recorded
// hashes of past blocks, account nonces, the extrinsic index and
// running byte total, noted extrinsic data, events and the digest.
//
// All functions take the state handle explicitly. Per-block
// temporaries are removed by Finalize before the state root is
// computed, so they never leak into the commitment.
package system

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/blockberries/cramberry/pkg/cramberry"
	"github.com/btcsuite/btclog/v2"

	"github.com/blockberries/stf"
	"github.com/blockberries/stf/merkle"
	"github.com/blockberries/stf/types"
)

// ModuleName is the routing key of the system module.
const ModuleName = "system"

// Event kinds deposited by the bookkeeper.
const (
	EventExtrinsicSuccess = "system.ExtrinsicSuccess"
	EventExtrinsicFailed  = "system.ExtrinsicFailed"
	EventRemarked         = "system.Remarked"
)

// PhaseFinalization is the event phase after all extrinsics have been
// applied.
const PhaseFinalization int32 = -1

// Initialize records the header fields of the block about to be
// executed and resets the per-block books. It does not record a
// block hash; Finalize does that once the header is complete.
func Initialize(st stf.State, number uint64, parentHash, extrinsicsRoot types.Hash) error {
	if err := PutUint64(st, keyNumber, number); err != nil {
		return err
	}
	if err := putHash(st, keyParentHash, parentHash); err != nil {
		return err
	}
	if err := putHash(st, keyExtrinsicsRoot, extrinsicsRoot); err != nil {
		return err
	}
	if err := putUint32(st, keyExtrinsicIndex, 0); err != nil {
		return err
	}
	if err := setPhase(st, 0); err != nil {
		return err
	}
	if err := st.Delete(keyDigest); err != nil {
		return err
	}
	return clearEvents(st)
}

// BlockNumber returns the number of the block being executed.
func BlockNumber(st stf.StateReader) (uint64, error) {
	return GetUint64(st, keyNumber)
}

// ParentHash returns the parent hash of the block being executed.
func ParentHash(st stf.StateReader) (types.Hash, error) {
	h, _, err := getHash(st, keyParentHash)
	return h, err
}

// BlockHash returns the recorded hash of block n.
func BlockHash(st stf.StateReader, n uint64) (types.Hash, bool, error) {
	return getHash(st, blockHashKey(n))
}

// SetBlockHash records the hash of block n.
func SetBlockHash(st stf.State, n uint64, h types.Hash) error {
	return putHash(st, blockHashKey(n), h)
}

// AccountNonce returns the next expected nonce of who.
func AccountNonce(st stf.StateReader, who types.AccountID) (uint64, error) {
	return GetUint64(st, accountNonceKey(who))
}

// IncAccountNonce advances who's nonce by one.
func IncAccountNonce(st stf.State, who types.AccountID) error {
	n, err := AccountNonce(st, who)
	if err != nil {
		return err
	}
	return PutUint64(st, accountNonceKey(who), n+1)
}

// ExtrinsicIndex returns the index of the next extrinsic to apply.
func ExtrinsicIndex(st stf.StateReader) (uint32, error) {
	i, _, err := getUint32(st, keyExtrinsicIndex)
	return i, err
}

// AllExtrinsicsLen returns the encoded length of all extrinsics
// applied so far in this block.
func AllExtrinsicsLen(st stf.StateReader) (uint32, error) {
	n, _, err := getUint32(st, keyAllExtrinsics)
	return n, err
}

// ExtrinsicCount returns the number of applied extrinsics, once
// NoteFinishedExtrinsics has run.
func ExtrinsicCount(st stf.StateReader) (uint32, bool, error) {
	return getUint32(st, keyExtrinsicCount)
}

// NoteExtrinsic stores the raw bytes of the extrinsic about to be
// applied at the current extrinsic index.
func NoteExtrinsic(st stf.State, data []byte) error {
	i, err := ExtrinsicIndex(st)
	if err != nil {
		return err
	}
	return st.Set(extrinsicDataKey(i), data)
}

// NoteAppliedExtrinsic records the outcome of the extrinsic at the
// current index, advances the index and adds encodedLen to the
// running byte total.
func NoteAppliedExtrinsic(st stf.State, outcome types.ApplyOutcome, encodedLen uint32) error {
	if outcome.OK() {
		err := DepositEvent(st, EventExtrinsicSuccess)
		if err != nil {
			return err
		}
	} else {
		err := DepositEvent(st, EventExtrinsicFailed,
			types.EventAttribute{Key: "reason", Value: outcome.Reason})
		if err != nil {
			return err
		}
	}

	i, err := ExtrinsicIndex(st)
	if err != nil {
		return err
	}
	total, err := AllExtrinsicsLen(st)
	if err != nil {
		return err
	}
	if err := putUint32(st, keyAllExtrinsics, total+encodedLen); err != nil {
		return err
	}
	if err := putUint32(st, keyExtrinsicIndex, i+1); err != nil {
		return err
	}
	return setPhase(st, int32(i+1))
}

// NoteFinishedExtrinsics records the number of applied extrinsics and
// switches the event phase to finalization.
func NoteFinishedExtrinsics(st stf.State) error {
	i, err := ExtrinsicIndex(st)
	if err != nil {
		return err
	}
	if err := putUint32(st, keyExtrinsicCount, i); err != nil {
		return err
	}
	if err := st.Delete(keyExtrinsicIndex); err != nil {
		return err
	}
	return setPhase(st, PhaseFinalization)
}

// DeriveExtrinsics computes the extrinsics root from the noted
// extrinsic data and removes the data.
func DeriveExtrinsics(st stf.State) error {
	count, _, err := ExtrinsicCount(st)
	if err != nil {
		return err
	}
	xts := make([][]byte, 0, count)
	for i := uint32(0); i < count; i++ {
		data, err := take(st, extrinsicDataKey(i))
		if err != nil {
			return err
		}
		if data == nil {
			return fmt.Errorf("no extrinsic data noted at index %d", i)
		}
		xts = append(xts, data)
	}
	return putHash(st, keyExtrinsicsRoot, merkle.ExtrinsicsRoot(xts))
}

// Finalize removes the per-block temporaries, computes the state root
// and returns the complete header. The header hash is then recorded
// as the hash of this block number.
func Finalize(ctx context.Context, st stf.State) (types.Header, error) {
	for _, k := range [][]byte{keyExtrinsicCount, keyAllExtrinsics, keyPhase, keyExtrinsicIndex} {
		if err := st.Delete(k); err != nil {
			return types.Header{}, err
		}
	}
	if err := clearPrefix(st, prefixExtrinsicData); err != nil {
		return types.Header{}, err
	}

	var h types.Header
	n, err := GetUint64(st, keyNumber)
	if err != nil {
		return h, err
	}
	h.Number = n
	if h.ParentHash, _, err = getHash(st, keyParentHash); err != nil {
		return h, err
	}
	if h.ExtrinsicsRoot, _, err = getHash(st, keyExtrinsicsRoot); err != nil {
		return h, err
	}
	if _, err := GetValue(st, keyDigest, &h.Digest); err != nil {
		return h, err
	}
	for _, k := range [][]byte{keyNumber, keyParentHash, keyExtrinsicsRoot, keyDigest} {
		if err := st.Delete(k); err != nil {
			return h, err
		}
	}

	if h.StateRoot, err = merkle.StateRoot(st); err != nil {
		return h, fmt.Errorf("compute state root: %w", err)
	}
	if err := SetBlockHash(st, h.Number, h.Hash()); err != nil {
		return h, err
	}

	log.DebugS(ctx, "Finalized header",
		slog.Uint64("number", h.Number),
		btclog.Hex6("extrinsics_root", h.ExtrinsicsRoot[:]),
		btclog.Hex6("state_root", h.StateRoot[:]),
		slog.Int("digest_items", len(h.Digest.Logs)))
	return h, nil
}

// DepositLog appends an item to the digest of the block being built.
func DepositLog(st stf.State, item types.DigestItem) error {
	var d types.Digest
	if _, err := GetValue(st, keyDigest, &d); err != nil {
		return err
	}
	d.Push(item)
	return PutValue(st, keyDigest, d)
}

// Digest returns the digest accumulated so far.
func Digest(st stf.StateReader) (types.Digest, error) {
	var d types.Digest
	_, err := GetValue(st, keyDigest, &d)
	return d, err
}

// DepositEvent appends an event in the current phase.
func DepositEvent(st stf.State, kind string, attrs ...types.EventAttribute) error {
	phase, err := Phase(st)
	if err != nil {
		return err
	}
	n, _, err := getUint32(st, keyEventCount)
	if err != nil {
		return err
	}
	ev := types.Event{Phase: phase, Kind: kind, Attributes: attrs}
	if err := PutValue(st, eventKey(n), ev); err != nil {
		return err
	}
	return putUint32(st, keyEventCount, n+1)
}

// Events returns the events deposited since the last Initialize.
func Events(st stf.StateReader) ([]types.Event, error) {
	var out []types.Event
	err := st.Iterate(prefixEvent, func(_, v []byte) error {
		var ev types.Event
		if err := cramberry.Unmarshal(v, &ev); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		out = append(out, ev)
		return nil
	})
	return out, err
}

// Phase returns the event phase: the index of the extrinsic being
// applied, or PhaseFinalization.
func Phase(st stf.StateReader) (int32, error) {
	p, _, err := getUint32(st, keyPhase)
	return int32(p), err
}

func setPhase(st stf.State, p int32) error {
	return putUint32(st, keyPhase, uint32(p))
}

func clearEvents(st stf.State) error {
	if err := st.Delete(keyEventCount); err != nil {
		return err
	}
	return clearPrefix(st, prefixEvent)
}

// Attr builds an event attribute with a formatted value.
func Attr(key string, value any) types.EventAttribute {
	switch v := value.(type) {
	case string:
		return types.EventAttribute{Key: key, Value: v}
	case uint64:
		return types.EventAttribute{Key: key, Value: strconv.FormatUint(v, 10)}
	case fmt.Stringer:
		return types.EventAttribute{Key: key, Value: v.String()}
	default:
		return types.EventAttribute{Key: key, Value: fmt.Sprint(v)}
	}
}
