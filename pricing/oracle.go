package pricing

import (
	"context"
	"math/big"
	"strings"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/golang-lru/v2/expirable"
	logger "github.com/sirupsen/logrus"

	"github.com/lnswap-io/swapclient-go/swaperrs"
)

// Pseudo-pairs: "$fixed-<n>" pegs a token at n milli-sats per unit without
// hitting the index; "$ignore" disables amount validation for the token.
const (
	PairFixedPrefix = "$fixed-"
	PairIgnore      = "$ignore"
)

const (
	CacheTTL       = 10 * time.Second
	priceCacheSize = 64
)

var (
	millionBig = big.NewInt(1_000_000)
	thousand   = big.NewInt(1000)
)

// PriceAPI serves the BTC-denominated index price of a pair, scaled to
// milli-sats per whole token.
type PriceAPI interface {
	FetchPrice(ctx context.Context, pair string) (*big.Int, error)
}

// TokenInfo maps a token address to its index pair and decimals.
type TokenInfo struct {
	Pair     string
	Decimals int
}

// Oracle converts between satoshis and token base units and validates
// intermediary pricing against a ppm tolerance.
type Oracle struct {
	api               PriceAPI
	tokens            map[ethcommon.Address]TokenInfo
	maxAllowedDiffPPM *big.Int

	cache *expirable.LRU[string, *big.Int]
}

func NewOracle(api PriceAPI, tokens map[ethcommon.Address]TokenInfo, maxAllowedDiffPPM *big.Int) *Oracle {
	return &Oracle{
		api:               api,
		tokens:            tokens,
		maxAllowedDiffPPM: maxAllowedDiffPPM,
		cache:             expirable.NewLRU[string, *big.Int](priceCacheSize, nil, CacheTTL),
	}
}

func (o *Oracle) tokenInfo(token ethcommon.Address) (TokenInfo, error) {
	info, ok := o.tokens[token]
	if !ok {
		return TokenInfo{}, swaperrs.InvalidArgument("unknown token " + token.Hex())
	}
	return info, nil
}

// price returns milli-sats per whole token, cached for 10 s.
func (o *Oracle) price(ctx context.Context, pair string) (*big.Int, error) {
	if strings.HasPrefix(pair, PairFixedPrefix) {
		fixed, ok := new(big.Int).SetString(strings.TrimPrefix(pair, PairFixedPrefix), 10)
		if !ok {
			return nil, swaperrs.InvalidArgument("bad fixed pair " + pair)
		}
		return fixed, nil
	}

	if cached, ok := o.cache.Get(pair); ok {
		return cached, nil
	}

	price, err := o.api.FetchPrice(ctx, pair)
	if err != nil {
		return nil, err
	}
	o.cache.Add(pair, price)

	logger.WithFields(logger.Fields{
		"pair":  pair,
		"price": price,
	}).Debug("fetched index price")

	return price, nil
}

// GetFromBtc converts satoshis to token base units at milli-sat precision:
// sats * 10^decimals * 1000 / price.
func (o *Oracle) GetFromBtc(ctx context.Context, sats *big.Int, token ethcommon.Address) (*big.Int, error) {
	info, err := o.tokenInfo(token)
	if err != nil {
		return nil, err
	}
	price, err := o.price(ctx, info.Pair)
	if err != nil {
		return nil, err
	}

	out := new(big.Int).Mul(sats, pow10(info.Decimals))
	out.Mul(out, thousand)
	return out.Div(out, price), nil
}

// GetToBtc is the inverse conversion, token base units to satoshis.
func (o *Oracle) GetToBtc(ctx context.Context, amount *big.Int, token ethcommon.Address) (*big.Int, error) {
	info, err := o.tokenInfo(token)
	if err != nil {
		return nil, err
	}
	price, err := o.price(ctx, info.Pair)
	if err != nil {
		return nil, err
	}

	out := new(big.Int).Mul(amount, price)
	out.Div(out, pow10(info.Decimals))
	return out.Div(out, thousand), nil
}

// IsValidAmountSend checks the token amount the intermediary charges for
// sending sats: totalSats = sats*(1e6+ppm)/1e6 + baseFee, and the paid token
// amount may exceed the converted total by at most maxAllowedDiffPPM.
func (o *Oracle) IsValidAmountSend(
	ctx context.Context,
	sats, baseFeeSats, feePPM *big.Int,
	paidToken *big.Int,
	token ethcommon.Address,
) (bool, error) {
	info, err := o.tokenInfo(token)
	if err != nil {
		return false, err
	}
	if info.Pair == PairIgnore {
		return true, nil
	}

	totalSats := new(big.Int).Add(millionBig, feePPM)
	totalSats.Mul(totalSats, sats)
	totalSats.Div(totalSats, millionBig)
	totalSats.Add(totalSats, baseFeeSats)

	expected, err := o.GetFromBtc(ctx, totalSats, token)
	if err != nil {
		return false, err
	}

	return withinTolerance(paidToken, expected, o.maxAllowedDiffPPM), nil
}

// IsValidAmountReceive is the receive-side check with the fee subtracted:
// totalSats = sats*(1e6-ppm)/1e6 - baseFee; the received token amount may
// fall short of the converted total by at most maxAllowedDiffPPM.
func (o *Oracle) IsValidAmountReceive(
	ctx context.Context,
	sats, baseFeeSats, feePPM *big.Int,
	receivedToken *big.Int,
	token ethcommon.Address,
) (bool, error) {
	info, err := o.tokenInfo(token)
	if err != nil {
		return false, err
	}
	if info.Pair == PairIgnore {
		return true, nil
	}

	totalSats := new(big.Int).Sub(millionBig, feePPM)
	totalSats.Mul(totalSats, sats)
	totalSats.Div(totalSats, millionBig)
	totalSats.Sub(totalSats, baseFeeSats)

	expected, err := o.GetFromBtc(ctx, totalSats, token)
	if err != nil {
		return false, err
	}

	// shortfall relative to the expected amount
	diff := new(big.Int).Sub(expected, receivedToken)
	diff.Mul(diff, millionBig)
	diff.Div(diff, expected)
	return diff.Cmp(o.maxAllowedDiffPPM) <= 0, nil
}

// withinTolerance: (paid - expected)*1e6/expected <= maxPPM. A
// cheaper-than-expected amount is always valid.
func withinTolerance(paid, expected, maxPPM *big.Int) bool {
	diff := new(big.Int).Sub(paid, expected)
	diff.Mul(diff, millionBig)
	diff.Div(diff, expected)
	return diff.Cmp(maxPPM) <= 0
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
