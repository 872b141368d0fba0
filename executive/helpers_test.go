package executive_test

import (
	"context"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/stf"
	"github.com/blockberries/stf/extrinsic"
	"github.com/blockberries/stf/ledger"
	"github.com/blockberries/stf/merkle"
	"github.com/blockberries/stf/modules/balances"
	"github.com/blockberries/stf/runtime"
	"github.com/blockberries/stf/system"
	"github.com/blockberries/stf/types"
)

// key derives a deterministic test key from a seed byte.
func key(seed byte) *btcec.PrivateKey {
	var b [32]byte
	b[31] = seed
	b[0] = 0x01
	priv, _ := btcec.PrivKeyFromBytes(b[:])
	return priv
}

var (
	alice = key(1)
	bob   = key(2)
)

func id(priv *btcec.PrivateKey) types.AccountID { return extrinsic.AccountID(priv) }

// testGenesis endows alice with 111 and charges a flat base fee of 10
// per unit weight for transfers and remarks.
func testGenesis() types.GenesisConfig {
	return types.GenesisConfig{
		ChainID: "test",
		Accounts: []types.GenesisAccount{
			{ID: id(alice), Balance: 111},
		},
		Fees: types.FeeParams{
			BaseFee: 10,
			Weights: []types.MethodWeight{
				{Method: "balances.transfer", Weight: 1},
				{Method: "system.remark", Weight: 1},
			},
		},
	}
}

// chain is a runtime over a committed in-memory ledger.
type chain struct {
	t     *testing.T
	rt    *runtime.Runtime
	store *ledger.MemStore
	head  types.Header
}

func newChain(t *testing.T, cfg runtime.Config) *chain {
	return newChainWithGenesis(t, cfg, testGenesis())
}

func newChainWithGenesis(t *testing.T, cfg runtime.Config, g types.GenesisConfig) *chain {
	t.Helper()
	rt, err := runtime.New(cfg)
	require.NoError(t, err)

	c := &chain{t: t, rt: rt, store: ledger.NewMemStore()}
	st := c.overlay()
	h, err := rt.BuildGenesis(context.Background(), st, g)
	require.NoError(t, err)
	c.commit(st, h)
	return c
}

func (c *chain) overlay() *ledger.Overlay {
	c.t.Helper()
	v, err := c.store.View()
	require.NoError(c.t, err)
	return ledger.NewOverlay(v)
}

func (c *chain) commit(st *ledger.Overlay, h types.Header) {
	c.t.Helper()
	require.NoError(c.t, c.store.Commit(st.ChangeSet(), h))
	c.head = h
}

// nextHeader is the header InitializeBlock receives when authoring on
// top of the current head.
func (c *chain) nextHeader() types.Header {
	return types.Header{Number: c.head.Number + 1, ParentHash: c.head.Hash()}
}

// author builds a block from xts, requiring every one to be admitted,
// and commits it.
func (c *chain) author(xts ...types.Extrinsic) types.Block {
	c.t.Helper()
	ctx := context.Background()
	st := c.overlay()
	require.NoError(c.t, c.rt.InitializeBlock(ctx, st, c.nextHeader()))
	for _, xt := range xts {
		_, err := c.rt.ApplyExtrinsic(ctx, st, xt)
		require.NoError(c.t, err)
	}
	h, err := c.rt.FinalizeBlock(ctx, st)
	require.NoError(c.t, err)
	c.commit(st, h)
	return types.Block{Header: h, Extrinsics: xts}
}

// importBlock executes a block and commits it on success.
func (c *chain) importBlock(b types.Block) (types.Header, error) {
	c.t.Helper()
	st := c.overlay()
	h, err := c.rt.ExecuteBlock(context.Background(), st, b)
	if err != nil {
		return h, err
	}
	c.commit(st, h)
	return h, nil
}

func (c *chain) view() stf.StateReader {
	c.t.Helper()
	v, err := c.store.View()
	require.NoError(c.t, err)
	return v
}

func sign(t *testing.T, priv *btcec.PrivateKey, nonce uint64, acc uint32, call types.Call) types.Extrinsic {
	t.Helper()
	xt, err := extrinsic.Sign(priv, types.AddressFromID(id(priv)), nonce, acc, call)
	require.NoError(t, err)
	return xt
}

func unsigned(t *testing.T, call types.Call) types.Extrinsic {
	t.Helper()
	xt, err := extrinsic.Unsigned(call)
	require.NoError(t, err)
	return xt
}

func transfer(to *btcec.PrivateKey, value uint64) types.Call {
	return balances.TransferCall(types.AddressFromID(id(to)), value)
}

func freeBalance(t *testing.T, st stf.StateReader, priv *btcec.PrivateKey) uint64 {
	t.Helper()
	b, err := balances.FreeBalance(st, id(priv))
	require.NoError(t, err)
	return b
}

func nonce(t *testing.T, st stf.StateReader, priv *btcec.PrivateKey) uint64 {
	t.Helper()
	n, err := system.AccountNonce(st, id(priv))
	require.NoError(t, err)
	return n
}

func extrinsicIndex(t *testing.T, st stf.StateReader) uint32 {
	t.Helper()
	i, err := system.ExtrinsicIndex(st)
	require.NoError(t, err)
	return i
}

func signIndexed(priv *btcec.PrivateKey, index uint32, nonce uint64, acc uint32, call types.Call) (types.Extrinsic, error) {
	return extrinsic.Sign(priv, types.AddressFromIndex(index), nonce, acc, call)
}

func extrinsicsRoot(b types.Block) types.Hash {
	return merkle.ExtrinsicsRoot(b.EncodedExtrinsics())
}
