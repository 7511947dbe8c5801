package swapdata

import (
	"math/big"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lnswap-io/swapclient-go/common"
)

func sampleSwap() *SwapData {
	txo := ethcommon.HexToHash("0x8888888888888888888888888888888888888888888888888888888888888888")
	return NewSwapData(
		ethcommon.HexToAddress("0x1111111111111111111111111111111111111111"),
		ethcommon.HexToAddress("0x2222222222222222222222222222222222222222"),
		ethcommon.HexToAddress("0x3333333333333333333333333333333333333333"),
		big.NewInt(250_000),
		ethcommon.HexToHash("0x4444444444444444444444444444444444444444444444444444444444444444"),
		PackData(1_700_000_600, 42, 3, KindChainNonced, true, false, 6),
		big.NewInt(1000),
		big.NewInt(50),
		&txo,
	)
}

func TestPackDataRoundTrip(t *testing.T) {
	cases := []struct {
		expiry        uint64
		nonce         uint64
		confirmations uint16
		kind          Kind
		payIn, payOut bool
		index         uint8
	}{
		{0, 0, 0, KindHTLC, false, false, 0},
		{1_700_000_600, 42, 3, KindChainNonced, true, false, 6},
		{^uint64(0), ^uint64(0), 65535, KindChainTxID, true, true, 255},
		{1, 2, 1, KindChain, false, true, 1},
	}

	for _, c := range cases {
		data := PackData(c.expiry, c.nonce, c.confirmations, c.kind, c.payIn, c.payOut, c.index)
		assert.Equal(t, c.expiry, Expiry(data))
		assert.Equal(t, c.nonce, Nonce(data))
		assert.Equal(t, c.confirmations, Confirmations(data))
		assert.Equal(t, c.kind, DataKind(data))
		assert.Equal(t, c.payIn, PayIn(data))
		assert.Equal(t, c.payOut, PayOut(data))
		assert.Equal(t, c.index, Index(data))
	}
}

func TestCommitHashDeterministic(t *testing.T) {
	a := sampleSwap()
	b := sampleSwap()

	ha, err := a.CommitHash()
	require.NoError(t, err)
	hb, err := b.CommitHash()
	require.NoError(t, err)

	assert.NotEqual(t, ethcommon.Hash{}, ha)
	assert.Equal(t, ha, hb)

	// changing the amount or the packed data changes the digest
	b.Amount = big.NewInt(250_001)
	hc, err := b.CommitHash()
	require.NoError(t, err)
	assert.NotEqual(t, ha, hc)

	b = sampleSwap()
	b.Data = PackData(1_700_000_600, 43, 3, KindChainNonced, true, false, 6)
	hd, err := b.CommitHash()
	require.NoError(t, err)
	assert.NotEqual(t, ha, hd)
}

func TestHashForOnchain(t *testing.T) {
	script := common.HexStrToByteSlice("0014aabbccddeeff00112233445566778899aabbccdd")

	h1 := HashForOnchain(script, 100_000, 7)
	h2 := HashForOnchain(script, 100_000, 7)
	assert.Equal(t, h1, h2)

	assert.NotEqual(t, h1, HashForOnchain(script, 100_001, 7))
	assert.NotEqual(t, h1, HashForOnchain(script, 100_000, 8))
	assert.NotEqual(t, h1, HashForOnchain(script[:len(script)-1], 100_000, 7))
}

func TestSerializeRoundTrip(t *testing.T) {
	s := sampleSwap()

	raw, err := s.Serialize()
	require.NoError(t, err)

	parsed, err := FromSerialized(raw)
	require.NoError(t, err)

	assert.True(t, s.Equals(parsed))

	hs, err := s.CommitHash()
	require.NoError(t, err)
	hp, err := parsed.CommitHash()
	require.NoError(t, err)
	assert.Equal(t, hs, hp)
}

func TestSerializeNilTxoHash(t *testing.T) {
	s := sampleSwap()
	s.TxoHash = nil

	raw, err := s.Serialize()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"txoHash":null`)

	parsed, err := FromSerialized(raw)
	require.NoError(t, err)
	assert.Nil(t, parsed.TxoHash)
	assert.True(t, s.Equals(parsed))
}

func TestFromSerializedRejectsUnknownType(t *testing.T) {
	_, err := FromSerialized([]byte(`{"type":"solana"}`))
	assert.Error(t, err)
}

func TestFactoryTable(t *testing.T) {
	table := NewFactoryTable()
	require.Contains(t, table, TypeEVM)

	s := sampleSwap()
	raw, err := s.Serialize()
	require.NoError(t, err)

	parsed, err := table[TypeEVM](raw)
	require.NoError(t, err)
	assert.True(t, s.Equals(parsed))
}

func TestEquals(t *testing.T) {
	a := sampleSwap()
	b := sampleSwap()
	assert.True(t, a.Equals(b))

	b.Claimer = ethcommon.HexToAddress("0x9999999999999999999999999999999999999999")
	assert.False(t, a.Equals(b))

	b = sampleSwap()
	b.TxoHash = nil
	assert.False(t, a.Equals(b))

	assert.False(t, a.Equals(nil))
}
