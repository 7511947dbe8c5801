package pricing

import (
	"context"
	"math/big"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tokenA      = ethcommon.HexToAddress("0x000000000000000000000000000000000000000a")
	tokenFixed  = ethcommon.HexToAddress("0x000000000000000000000000000000000000000b")
	tokenIgnore = ethcommon.HexToAddress("0x000000000000000000000000000000000000000c")
)

type stubAPI struct {
	price *big.Int
	calls int
}

func (s *stubAPI) FetchPrice(ctx context.Context, pair string) (*big.Int, error) {
	s.calls++
	return s.price, nil
}

func testTokens() map[ethcommon.Address]TokenInfo {
	return map[ethcommon.Address]TokenInfo{
		tokenA:      {Pair: "ETH-BTC", Decimals: 6},
		tokenFixed:  {Pair: "$fixed-1000", Decimals: 0},
		tokenIgnore: {Pair: PairIgnore, Decimals: 6},
	}
}

func TestGetFromBtcAndBack(t *testing.T) {
	// 2000 milli-sats per whole token unit
	api := &stubAPI{price: big.NewInt(2000)}
	oracle := NewOracle(api, testTokens(), big.NewInt(10_000))

	// 100 sats -> 100 * 10^6 * 1000 / 2000 = 50_000_000 base units
	out, err := oracle.GetFromBtc(context.Background(), big.NewInt(100), tokenA)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(50_000_000), out)

	back, err := oracle.GetToBtc(context.Background(), out, tokenA)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), back)
}

func TestFixedPair(t *testing.T) {
	api := &stubAPI{price: big.NewInt(999)} // must not be consulted
	oracle := NewOracle(api, testTokens(), big.NewInt(10_000))

	// price pegged at 1000 milli-sats, decimals 0: 5 sats -> 5 units
	out, err := oracle.GetFromBtc(context.Background(), big.NewInt(5), tokenFixed)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(5), out)
	assert.Zero(t, api.calls)
}

func TestPriceCache(t *testing.T) {
	api := &stubAPI{price: big.NewInt(2000)}
	oracle := NewOracle(api, testTokens(), big.NewInt(10_000))

	for i := 0; i < 5; i++ {
		_, err := oracle.GetFromBtc(context.Background(), big.NewInt(100), tokenA)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, api.calls)
}

func TestIsValidAmountSend(t *testing.T) {
	api := &stubAPI{price: big.NewInt(1000)}
	oracle := NewOracle(api, testTokens(), big.NewInt(10_000)) // 1% tolerance

	sats := big.NewInt(100_000)
	baseFee := big.NewInt(100)
	feePPM := big.NewInt(10_000) // 1%

	// totalSats = 100000*1.01 + 100 = 101100
	// expected  = 101100 * 10^6 * 1000 / 1000 = 101_100_000_000
	expected := big.NewInt(101_100_000_000)

	ok, err := oracle.IsValidAmountSend(context.Background(), sats, baseFee, feePPM, expected, tokenA)
	require.NoError(t, err)
	assert.True(t, ok)

	// exactly at the 1% tolerance boundary
	atLimit := new(big.Int).Div(new(big.Int).Mul(expected, big.NewInt(1_010_000)), big.NewInt(1_000_000))
	ok, err = oracle.IsValidAmountSend(context.Background(), sats, baseFee, feePPM, atLimit, tokenA)
	require.NoError(t, err)
	assert.True(t, ok)

	// 2% over: rejected
	tooMuch := new(big.Int).Div(new(big.Int).Mul(expected, big.NewInt(1_020_000)), big.NewInt(1_000_000))
	ok, err = oracle.IsValidAmountSend(context.Background(), sats, baseFee, feePPM, tooMuch, tokenA)
	require.NoError(t, err)
	assert.False(t, ok)

	// paying less than expected is always fine
	ok, err = oracle.IsValidAmountSend(context.Background(), sats, baseFee, feePPM, big.NewInt(1), tokenA)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsValidAmountReceive(t *testing.T) {
	api := &stubAPI{price: big.NewInt(1000)}
	oracle := NewOracle(api, testTokens(), big.NewInt(10_000))

	sats := big.NewInt(100_000)
	baseFee := big.NewInt(100)
	feePPM := big.NewInt(10_000)

	// totalSats = 100000*0.99 - 100 = 98900
	expected := big.NewInt(98_900_000_000)

	ok, err := oracle.IsValidAmountReceive(context.Background(), sats, baseFee, feePPM, expected, tokenA)
	require.NoError(t, err)
	assert.True(t, ok)

	// receiving 2% less than expected: rejected
	tooLittle := new(big.Int).Div(new(big.Int).Mul(expected, big.NewInt(980_000)), big.NewInt(1_000_000))
	ok, err = oracle.IsValidAmountReceive(context.Background(), sats, baseFee, feePPM, tooLittle, tokenA)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIgnorePair(t *testing.T) {
	api := &stubAPI{price: big.NewInt(1000)}
	oracle := NewOracle(api, testTokens(), big.NewInt(0))

	ok, err := oracle.IsValidAmountSend(context.Background(), big.NewInt(1), big.NewInt(0), big.NewInt(0), big.NewInt(999_999_999), tokenIgnore)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, api.calls)
}

func TestDecimalToScaled(t *testing.T) {
	v, err := decimalToScaled("0.052", 11)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(5_200_000_000), v)

	v, err = decimalToScaled("17", 3)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(17_000), v)

	_, err = decimalToScaled("abc", 3)
	assert.Error(t, err)
}
