package stftest

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/stf"
	"github.com/blockberries/stf/extrinsic"
	"github.com/blockberries/stf/modules/balances"
	"github.com/blockberries/stf/types"
)

// Harness drives a runtime connection through the block lifecycle
// and tracks the committed head.
type Harness struct {
	t    *testing.T
	rt   stf.Runtime
	head types.Header
}

// NewHarness creates a test harness around rt.
func NewHarness(t *testing.T, rt stf.Runtime) *Harness {
	t.Helper()
	return &Harness{t: t, rt: rt}
}

// Runtime returns the underlying connection for direct access.
func (h *Harness) Runtime() stf.Runtime {
	return h.rt
}

// Head returns the last committed header.
func (h *Harness) Head() types.Header {
	return h.head
}

// Genesis performs a genesis handshake.
func (h *Harness) Genesis(genesis types.GenesisConfig) types.HandshakeResponse {
	h.t.Helper()
	resp, err := h.rt.Handshake(context.Background(), types.HandshakeRequest{
		Genesis: &genesis,
	})
	require.NoError(h.t, err, "Handshake (genesis)")
	require.NotNil(h.t, resp.LastHeader)
	h.head = *resp.LastHeader
	return resp
}

// GenesisDefault performs a genesis handshake with DefaultGenesis.
func (h *Harness) GenesisDefault() types.HandshakeResponse {
	h.t.Helper()
	return h.Genesis(DefaultGenesis())
}

// Restart performs a resuming handshake at the given block.
func (h *Harness) Restart(block types.BlockID) types.HandshakeResponse {
	h.t.Helper()
	resp, err := h.rt.Handshake(context.Background(), types.HandshakeRequest{
		LastCommitted: &block,
	})
	require.NoError(h.t, err, "Handshake (restart)")
	h.head = *resp.LastHeader
	return resp
}

// NextHeader is the header passed to InitializeBlock when authoring
// on top of the head.
func (h *Harness) NextHeader() types.Header {
	return types.Header{Number: h.head.Number + 1, ParentHash: h.head.Hash()}
}

// Author builds, finalizes and commits a block containing xts. Every
// extrinsic must be admitted.
func (h *Harness) Author(xts ...types.Extrinsic) types.Block {
	h.t.Helper()
	ctx := context.Background()

	require.NoError(h.t, h.rt.InitializeBlock(ctx, h.NextHeader()))
	for i, xt := range xts {
		_, err := h.rt.ApplyExtrinsic(ctx, xt)
		require.NoError(h.t, err, "ApplyExtrinsic #%d", i)
	}
	header, err := h.rt.FinalizeBlock(ctx)
	require.NoError(h.t, err, "FinalizeBlock")
	h.Commit()
	return types.Block{Header: header, Extrinsics: xts}
}

// Import executes and commits a block produced elsewhere.
func (h *Harness) Import(block types.Block) types.Header {
	h.t.Helper()
	require.NoError(h.t, h.rt.ExecuteBlock(context.Background(), block),
		"ExecuteBlock (number=%d)", block.Header.Number)
	return h.Commit()
}

// Commit commits the last executed or finalized block.
func (h *Harness) Commit() types.Header {
	h.t.Helper()
	header, err := h.rt.Commit(context.Background())
	require.NoError(h.t, err, "Commit")
	h.head = header
	return header
}

// Validate submits a transaction to the admission oracle.
func (h *Harness) Validate(xt types.Extrinsic) types.TransactionValidity {
	h.t.Helper()
	v, err := h.rt.ValidateTransaction(context.Background(), xt)
	require.NoError(h.t, err, "ValidateTransaction")
	return v
}

// Query reads committed state.
func (h *Harness) Query(path types.QueryPath, data []byte) types.StateQueryResult {
	h.t.Helper()
	result, err := h.rt.Query(context.Background(), types.StateQuery{
		Path: path,
		Data: data,
	})
	require.NoError(h.t, err, "Query")
	return result
}

// FreeBalance queries the free balance of who, zero if absent.
func (h *Harness) FreeBalance(who types.AccountID) uint64 {
	h.t.Helper()
	return h.queryUint64(types.QueryFreeBalance, who)
}

// Nonce queries the account nonce of who, zero if absent.
func (h *Harness) Nonce(who types.AccountID) uint64 {
	h.t.Helper()
	return h.queryUint64(types.QueryAccountNonce, who)
}

func (h *Harness) queryUint64(path types.QueryPath, who types.AccountID) uint64 {
	h.t.Helper()
	res := h.Query(path, who[:])
	if res.Code != 0 {
		return 0
	}
	require.Len(h.t, res.Value, 8)
	return binary.BigEndian.Uint64(res.Value)
}

// MustAccept asserts that xt is valid for the pool.
func (h *Harness) MustAccept(xt types.Extrinsic) types.TransactionValidity {
	h.t.Helper()
	v := h.Validate(xt)
	require.True(h.t, v.Accepted(), "expected valid, got %s", v)
	return v
}

// MustReject asserts that xt is not valid for the pool.
func (h *Harness) MustReject(xt types.Extrinsic) types.TransactionValidity {
	h.t.Helper()
	v := h.Validate(xt)
	require.False(h.t, v.Accepted(), "expected rejection, got %s", v)
	return v
}

// --- Helper Factories ---

// Key derives a deterministic test key from a seed byte.
func Key(seed byte) *btcec.PrivateKey {
	var b [32]byte
	b[0] = 0x01
	b[31] = seed
	priv, _ := btcec.PrivKeyFromBytes(b[:])
	return priv
}

// Test accounts endowed by DefaultGenesis.
var (
	Alice = Key(1)
	Bob   = Key(2)
)

// AccountOf returns the account id controlled by priv.
func AccountOf(priv *btcec.PrivateKey) types.AccountID {
	return extrinsic.AccountID(priv)
}

// DefaultGenesis returns a genesis endowing Alice and Bob with a
// flat base fee of 1 for transfers and remarks.
func DefaultGenesis() types.GenesisConfig {
	return types.GenesisConfig{
		ChainID:     "test-chain",
		GenesisTime: types.TimeToTimestamp(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		Accounts: []types.GenesisAccount{
			{ID: AccountOf(Alice), Balance: 1_000_000},
			{ID: AccountOf(Bob), Balance: 1_000_000},
		},
		Fees: types.FeeParams{
			BaseFee: 1,
			Weights: []types.MethodWeight{
				{Method: "balances.transfer", Weight: 1},
				{Method: "system.remark", Weight: 1},
			},
		},
	}
}

// Sign builds a signed extrinsic from priv's own address.
func Sign(t *testing.T, priv *btcec.PrivateKey, nonce uint64, acceleration uint32, call types.Call) types.Extrinsic {
	t.Helper()
	xt, err := extrinsic.Sign(priv, types.AddressFromID(AccountOf(priv)), nonce, acceleration, call)
	require.NoError(t, err)
	return xt
}

// Unsigned builds an unsigned inherent.
func Unsigned(t *testing.T, call types.Call) types.Extrinsic {
	t.Helper()
	xt, err := extrinsic.Unsigned(call)
	require.NoError(t, err)
	return xt
}

// Transfer builds a balances.transfer call to the account of to.
func Transfer(to *btcec.PrivateKey, value uint64) types.Call {
	return balances.TransferCall(types.AddressFromID(AccountOf(to)), value)
}
