package swapdata

import (
	"math/big"

	"github.com/holiman/uint256"
)

// Kind discriminates how a swap is settled on the bitcoin side.
type Kind uint8

const (
	KindHTLC Kind = iota
	KindChain
	KindChainNonced
	KindChainTxID
)

// Bit layout of the packed data word, lowest bit first:
//
//	0..63    expiry (unix seconds)
//	64..127  escrow nonce
//	128..143 required confirmations
//	144..151 kind
//	152..159 pay-in flag
//	160..167 pay-out flag
//	168..175 index (previous on-chain commitment number)
//
// The layout is part of the on-chain contract; the accessors below are the
// only place that knows the offsets.
const (
	shiftExpiry        = 0
	shiftNonce         = 64
	shiftConfirmations = 128
	shiftKind          = 144
	shiftPayIn         = 152
	shiftPayOut        = 160
	shiftIndex         = 168
)

// PackData assembles the packed 256-bit data word.
func PackData(
	expiry uint64,
	nonce uint64,
	confirmations uint16,
	kind Kind,
	payIn, payOut bool,
	index uint8,
) *big.Int {
	v := new(uint256.Int)

	or := func(val uint64, shift uint) {
		word := new(uint256.Int).Lsh(uint256.NewInt(val), shift)
		v.Or(v, word)
	}

	or(expiry, shiftExpiry)
	or(nonce, shiftNonce)
	or(uint64(confirmations), shiftConfirmations)
	or(uint64(kind), shiftKind)
	if payIn {
		or(1, shiftPayIn)
	}
	if payOut {
		or(1, shiftPayOut)
	}
	or(uint64(index), shiftIndex)

	return v.ToBig()
}

func extract(data *big.Int, shift uint, bits uint) uint64 {
	v, _ := uint256.FromBig(data)
	v = new(uint256.Int).Rsh(v, shift)
	mask := new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), bits), 1)
	return new(uint256.Int).And(v, mask).Uint64()
}

func Expiry(data *big.Int) uint64 {
	return extract(data, shiftExpiry, 64)
}

func Nonce(data *big.Int) uint64 {
	return extract(data, shiftNonce, 64)
}

func Confirmations(data *big.Int) uint16 {
	return uint16(extract(data, shiftConfirmations, 16))
}

func DataKind(data *big.Int) Kind {
	return Kind(extract(data, shiftKind, 8))
}

func PayIn(data *big.Int) bool {
	return extract(data, shiftPayIn, 8) != 0
}

func PayOut(data *big.Int) bool {
	return extract(data, shiftPayOut, 8) != 0
}

func Index(data *big.Int) uint8 {
	return uint8(extract(data, shiftIndex, 8))
}
