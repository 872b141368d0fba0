package executive

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/btcsuite/btclog/v2"
	"github.com/davecgh/go-spew/spew"

	"github.com/blockberries/stf"
	"github.com/blockberries/stf/merkle"
	"github.com/blockberries/stf/system"
	"github.com/blockberries/stf/types"
)

// Fault messages for extrinsics that fail admission inside a block.
var inadmissibleReason = map[types.ApplyError]string{
	types.ApplyCantPay:      "All extrinsics should have sender able to pay their fees",
	types.ApplyBadSignature: "All extrinsics should be properly signed",
	types.ApplyStale:        "All extrinsics should have the correct nonce",
	types.ApplyFuture:       "All extrinsics should have the correct nonce",
	types.ApplyFullBlock:    "Extrinsics should not exceed block limit",
	types.ApplyNotAllow:     "Extrinsics should not allow for this call",
}

// InitializeBlock records the header fields of the block about to be
// built or executed and runs every module's initialize hook.
func (e *Executive) InitializeBlock(ctx context.Context, st stf.State, header types.Header) error {
	n := header.Number
	if err := system.Initialize(st, n, header.ParentHash, header.ExtrinsicsRoot); err != nil {
		return stf.WrapHalt(n, stf.FaultStorage, "initialize system", err)
	}
	for _, m := range e.cfg.Modules {
		h, ok := m.(stf.Initializer)
		if !ok {
			continue
		}
		if err := h.OnInitialize(ctx, st, n); err != nil {
			return stf.WrapHalt(n, stf.FaultHook,
				fmt.Sprintf("%s initialize: %v", m.Name(), err), err)
		}
	}
	return nil
}

// ExecuteBlock imports a block produced elsewhere. It returns the
// computed header, which matches the block's header in digest and
// state root. Any *stf.HaltError means the block is invalid and st
// must be discarded.
func (e *Executive) ExecuteBlock(ctx context.Context, st stf.State, block types.Block) (types.Header, error) {
	n := block.Header.Number
	ctx = btclog.WithCtx(ctx, slog.Uint64("block", n))

	if err := e.InitializeBlock(ctx, st, block.Header); err != nil {
		return types.Header{}, err
	}
	if err := e.initialChecks(st, block); err != nil {
		return types.Header{}, err
	}

	for i, xt := range block.Extrinsics {
		outcome, err := e.applyWithLen(ctx, st, xt, len(xt), false)
		if err != nil {
			return types.Header{}, e.inadmissible(ctx, n, i, err)
		}
		if !outcome.OK() {
			log.DebugS(ctx, "Extrinsic failed",
				slog.Int("index", i),
				slog.String("reason", outcome.Reason))
		}
	}

	if err := e.finishExtrinsics(ctx, st, n); err != nil {
		return types.Header{}, err
	}
	return e.finalChecks(ctx, st, block.Header)
}

// FinalizeBlock completes a block built with InitializeBlock and
// ApplyExtrinsic and returns its header.
func (e *Executive) FinalizeBlock(ctx context.Context, st stf.State) (types.Header, error) {
	n, err := system.BlockNumber(st)
	if err != nil {
		return types.Header{}, stf.WrapHalt(n, stf.FaultStorage, "read block number", err)
	}
	if err := e.finishExtrinsics(ctx, st, n); err != nil {
		return types.Header{}, err
	}
	if err := system.DeriveExtrinsics(st); err != nil {
		return types.Header{}, stf.WrapHalt(n, stf.FaultStorage, "derive extrinsics", err)
	}
	h, err := system.Finalize(ctx, st)
	if err != nil {
		return types.Header{}, stf.WrapHalt(n, stf.FaultStorage, "finalize", err)
	}
	return h, nil
}

// finishExtrinsics closes the extrinsic phase and runs every module's
// finalize hook.
func (e *Executive) finishExtrinsics(ctx context.Context, st stf.State, n uint64) error {
	if err := system.NoteFinishedExtrinsics(st); err != nil {
		return stf.WrapHalt(n, stf.FaultStorage, "note finished extrinsics", err)
	}
	for _, m := range e.cfg.Modules {
		h, ok := m.(stf.Finalizer)
		if !ok {
			continue
		}
		if err := h.OnFinalize(ctx, st, n); err != nil {
			return stf.WrapHalt(n, stf.FaultHook,
				fmt.Sprintf("%s finalize: %v", m.Name(), err), err)
		}
	}
	return nil
}

func (e *Executive) initialChecks(st stf.StateReader, block types.Block) error {
	h := block.Header
	if h.Number == 0 {
		return stf.NewHaltError(h.Number, stf.FaultParentHash, "Parent hash should be valid.")
	}
	parent, ok, err := system.BlockHash(st, h.Number-1)
	if err != nil {
		return stf.WrapHalt(h.Number, stf.FaultStorage, "read parent hash", err)
	}
	if !ok || parent != h.ParentHash {
		return stf.NewHaltError(h.Number, stf.FaultParentHash, "Parent hash should be valid.")
	}

	if merkle.ExtrinsicsRoot(block.EncodedExtrinsics()) != h.ExtrinsicsRoot {
		return stf.NewHaltError(h.Number, stf.FaultExtrinsicsRoot,
			"Transaction trie root must be valid.")
	}
	return nil
}

func (e *Executive) finalChecks(ctx context.Context, st stf.State, header types.Header) (types.Header, error) {
	n := header.Number
	computed, err := system.Finalize(ctx, st)
	if err != nil {
		return types.Header{}, stf.WrapHalt(n, stf.FaultStorage, "finalize", err)
	}

	if len(header.Digest.Logs) != len(computed.Digest.Logs) {
		e.dumpMismatch(ctx, header.Digest, computed.Digest)
		return types.Header{}, stf.NewHaltError(n, stf.FaultDigestLength,
			"Number of digest items must match that calculated.")
	}
	for i, item := range header.Digest.Logs {
		if !item.Equal(computed.Digest.Logs[i]) {
			e.dumpMismatch(ctx, header.Digest, computed.Digest)
			return types.Header{}, stf.NewHaltError(n, stf.FaultDigestItem,
				"Digest item must match that calculated.")
		}
	}

	if header.StateRoot != computed.StateRoot {
		log.ErrorS(ctx, "State root mismatch", nil,
			btclog.Hex6("expected", header.StateRoot[:]),
			btclog.Hex6("computed", computed.StateRoot[:]))
		return types.Header{}, stf.NewHaltError(n, stf.FaultStateRoot,
			"Storage root must match that calculated.")
	}
	return computed, nil
}

func (e *Executive) dumpMismatch(ctx context.Context, expected, computed types.Digest) {
	log.ErrorS(ctx, "Digest mismatch", nil,
		btclog.Fmt("expected", "%s", spew.Sdump(expected)),
		btclog.Fmt("computed", "%s", spew.Sdump(computed)))
}

// inadmissible turns an admission failure inside a block into a halt.
func (e *Executive) inadmissible(ctx context.Context, n uint64, index int, err error) error {
	if h, ok := stf.IsHalt(err); ok {
		return h
	}
	applyErr, ok := err.(types.ApplyError)
	if !ok {
		return stf.WrapHalt(n, stf.FaultStorage,
			fmt.Sprintf("apply extrinsic %d", index), err)
	}
	log.ErrorS(ctx, "Inadmissible extrinsic in block", err,
		slog.Int("index", index))
	return stf.WrapHalt(n, stf.FaultInadmissibleExtrinsic, inadmissibleReason[applyErr], applyErr)
}
