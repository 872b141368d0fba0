package types_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/blockberries/stf/types"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/cramberry/pkg/cramberry"
)

// roundTrip marshals v, unmarshals into a new T, and returns it.
func roundTrip[T any](t *testing.T, v T) T {
	t.Helper()
	data, err := cramberry.Marshal(v)
	require.NoError(t, err)
	var out T
	require.NoError(t, cramberry.Unmarshal(data, &out))
	return out
}

func TestTimestamp_RoundTrip(t *testing.T) {
	ts := types.TimeToTimestamp(time.Date(2024, 6, 15, 12, 30, 45, 123456789, time.UTC))
	got := roundTrip(t, ts)
	require.Equal(t, ts, got)

	goTime := got.ToTime()
	require.Equal(t, 2024, goTime.Year())
	require.Equal(t, 123456789, goTime.Nanosecond())

	later := types.Timestamp{Seconds: ts.Seconds, Nanos: ts.Nanos + 1}
	require.True(t, ts.Before(later))
	require.False(t, later.Before(ts))
	require.False(t, ts.Before(ts))
}

func TestExtrinsic_SignedRoundTrip(t *testing.T) {
	call, err := types.NewCall("balances", "transfer", &struct {
		Value uint64 `cramberry:"1"`
	}{Value: 69})
	require.NoError(t, err)

	u := types.UncheckedExtrinsic{
		Signature: &types.ExtrinsicSignature{
			Signer:       types.AddressFromIndex(7),
			Signature:    bytes.Repeat([]byte{0xAB}, 65),
			Nonce:        3,
			Acceleration: 2,
		},
		Call: call,
	}
	xt, err := u.Encode()
	require.NoError(t, err)

	got, err := types.DecodeExtrinsic(xt)
	require.NoError(t, err)
	require.True(t, got.IsSigned())
	require.Equal(t, types.AddressFromIndex(7), got.Signature.Signer)
	require.Equal(t, uint64(3), got.Signature.Nonce)
	require.Equal(t, "balances.transfer", got.Call.ID())

	var args struct {
		Value uint64 `cramberry:"1"`
	}
	require.NoError(t, got.Call.DecodeArgs(&args))
	require.Equal(t, uint64(69), args.Value)
}

func TestExtrinsic_Unsigned(t *testing.T) {
	u := types.UncheckedExtrinsic{Call: types.Call{Module: "system", Method: "remark"}}
	xt, err := u.Encode()
	require.NoError(t, err)

	got, err := types.DecodeExtrinsic(xt)
	require.NoError(t, err)
	require.False(t, got.IsSigned())
}

func TestDecodeExtrinsic_Garbage(t *testing.T) {
	_, err := types.DecodeExtrinsic(types.Extrinsic{0xFF, 0xFF, 0xFF, 0xFF, 0xFF})
	require.Error(t, err)
}

func TestAddress_IndexZeroRoundTrip(t *testing.T) {
	addr := types.AddressFromIndex(0)
	require.Equal(t, addr, roundTrip(t, addr))
	require.Equal(t, "index:0", roundTrip(t, addr).String())

	u := types.UncheckedExtrinsic{
		Signature: &types.ExtrinsicSignature{
			Signer:       addr,
			Signature:    bytes.Repeat([]byte{0x01}, 65),
			Acceleration: 1,
		},
		Call: types.Call{Module: "balances", Method: "transfer"},
	}
	xt, err := u.Encode()
	require.NoError(t, err)

	got, err := types.DecodeExtrinsic(xt)
	require.NoError(t, err)
	require.Equal(t, types.AddressIndex, got.Signature.Signer.Kind)
	require.Equal(t, uint32(0), got.Signature.Signer.Index)

	id := types.AddressFromID(types.AccountID{})
	require.Equal(t, id, roundTrip(t, id))
}

func TestDecodeExtrinsic_RejectsNonExtrinsics(t *testing.T) {
	canonical, err := types.UncheckedExtrinsic{
		Call: types.Call{Module: "system", Method: "remark", Args: []byte{1}},
	}.Encode()
	require.NoError(t, err)
	_, err = types.DecodeExtrinsic(canonical)
	require.NoError(t, err)

	noCall, err := types.UncheckedExtrinsic{}.Encode()
	require.NoError(t, err)

	noSigner, err := types.UncheckedExtrinsic{
		Signature: &types.ExtrinsicSignature{Signature: []byte{1}, Acceleration: 1},
		Call:      types.Call{Module: "system", Method: "remark"},
	}.Encode()
	require.NoError(t, err)

	tests := map[string]types.Extrinsic{
		"empty":     {},
		"nil":       nil,
		"garbage":   {0x00, 0xde, 0xad},
		"padded":    append(append(types.Extrinsic{}, canonical...), 0x00, 0x00),
		"no call":   noCall,
		"no signer": noSigner,
	}
	for name, xt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := types.DecodeExtrinsic(xt)
			require.Error(t, err)
		})
	}
}

func TestHeaderHash(t *testing.T) {
	h := types.Header{
		Number:     1,
		ParentHash: types.Hash{0x01},
		StateRoot:  types.Hash{0x02},
	}
	h.Digest.Push(types.DigestItem{Kind: "timestamp", Data: []byte{1}})

	require.Equal(t, h.Hash(), roundTrip(t, h).Hash())

	other := h
	other.Digest = types.Digest{Logs: []types.DigestItem{{Kind: "timestamp", Data: []byte{2}}}}
	require.NotEqual(t, h.Hash(), other.Hash())
	require.Equal(t, types.BlockID{Number: 1, Hash: h.Hash()}, h.ID())
}

func TestSigningPayloadCommitsToAcceleration(t *testing.T) {
	call := types.Call{Module: "system", Method: "remark"}
	a := types.SigningPayload{Nonce: 1, Call: call, Acceleration: 1}
	b := types.SigningPayload{Nonce: 1, Call: call, Acceleration: 2}
	require.NotEqual(t, a.Hash(), b.Hash())
}

func TestAccountIDFromPubKey(t *testing.T) {
	a := types.AccountIDFromPubKey([]byte{0x02, 0x01})
	b := types.AccountIDFromPubKey([]byte{0x02, 0x02})
	require.NotEqual(t, a, b)
	require.Len(t, a.String(), 40)
}

func TestTagEncodingDistinguishesNonce(t *testing.T) {
	who := types.AccountID{0xAA}
	require.NotEqual(t,
		types.Tag{Signer: who, Nonce: 1}.Encode(),
		types.Tag{Signer: who, Nonce: 2}.Encode())
	require.Equal(t,
		types.Tag{Signer: who, Nonce: 1}.Encode(),
		types.Tag{Signer: who, Nonce: 1}.Encode())
}

func TestSwitchIsPaused(t *testing.T) {
	s := types.Switch{Paused: []string{"balances"}}
	require.True(t, s.IsPaused("balances"))
	require.False(t, s.IsPaused("system"))

	s.Global = true
	require.True(t, s.IsPaused("system"))
}

func TestValidityString(t *testing.T) {
	require.Equal(t, "Invalid(-30)", types.Invalid(types.CodeAccelerationError).String())
	require.Equal(t, "Unknown(-10)", types.Unknown(types.CodeInvalidIndex).String())
	require.False(t, types.Invalid(types.CodeStale).Accepted())
	require.Equal(t, types.ValidityCode(1), types.CodeStale)
	require.Equal(t, types.ValidityCode(3), types.CodeCantPay)
}

func TestHandshakeResponse_RoundTrip(t *testing.T) {
	v := types.HandshakeResponse{
		LastHeader:   &types.Header{Number: 5, StateRoot: types.Hash{0x09}},
		Capabilities: types.CapBlockAuthoring | types.CapOffchainWorker,
	}
	got := roundTrip(t, v)
	require.Equal(t, v.LastHeader.Hash(), got.LastHeader.Hash())
	require.True(t, got.Capabilities.Has(types.CapOffchainWorker))
	require.Equal(t, "BlockAuthoring|OffchainWorker", got.Capabilities.String())
}

// TestDeterminism verifies that the same struct always produces
// the same bytes (cramberry's core guarantee).
func TestDeterminism(t *testing.T) {
	v := types.Block{
		Header: types.Header{
			Number:     42,
			ParentHash: types.Hash{0xFF},
			Digest:     types.Digest{Logs: []types.DigestItem{{Kind: "a", Data: []byte("b")}}},
		},
		Extrinsics: []types.Extrinsic{[]byte("a"), []byte("b")},
	}
	data1, err := cramberry.Marshal(v)
	require.NoError(t, err)
	data2, err := cramberry.Marshal(v)
	require.NoError(t, err)
	require.Equal(t, data1, data2)
}
