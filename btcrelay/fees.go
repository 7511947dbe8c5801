package btcrelay

import (
	"context"
	"math/big"
)

// EstimateSynchronizeFee prices catching the relay up to targetHeight:
// (target - current) headers at GasPerBlockHeader each, at the node's
// current gas price (EIP-1559 base fee preferred). Zero when the relay is
// already caught up.
func (c *Client) EstimateSynchronizeFee(ctx context.Context, targetHeight uint32) (*big.Int, error) {
	var current uint32
	tip, err := c.GetTip(ctx)
	if err != nil {
		return nil, err
	}
	if tip != nil {
		current = tip.Height
	}

	if current >= targetHeight {
		return new(big.Int), nil
	}

	feeData, err := c.evm.GetFeeData(ctx)
	if err != nil {
		return nil, err
	}

	headersNeeded := new(big.Int).SetUint64(uint64(targetHeight - current))
	gas := new(big.Int).Mul(headersNeeded, big.NewInt(GasPerBlockHeader))
	return gas.Mul(gas, feeData.EffectiveGasPrice()), nil
}
