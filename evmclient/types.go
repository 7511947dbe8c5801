package evmclient

import (
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// UnsignedTx is a prepared contract interaction. Builders across the library
// hand these out so the caller decides which signer submits them and when.
type UnsignedTx struct {
	To       *ethcommon.Address
	Value    *big.Int
	Data     []byte
	GasLimit uint64
}

// FeeData mirrors the fee information exposed by the RPC node. On EIP-1559
// chains LastBaseFeePerGas is populated; legacy chains only carry GasPrice.
type FeeData struct {
	GasPrice          *big.Int
	MaxFeePerGas      *big.Int
	MaxPriorityFee    *big.Int
	LastBaseFeePerGas *big.Int
}

// EffectiveGasPrice is the per-gas price to use for fee estimates, preferring
// the EIP-1559 base fee over the legacy gas price.
func (f *FeeData) EffectiveGasPrice() *big.Int {
	if f.LastBaseFeePerGas != nil {
		return f.LastBaseFeePerGas
	}
	return f.GasPrice
}
