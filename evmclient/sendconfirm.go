package evmclient

import (
	"context"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	logger "github.com/sirupsen/logrus"

	"github.com/lnswap-io/swapclient-go/swaperrs"
)

// SendAndConfirm signs and publishes a batch of prepared transactions with
// consecutive nonces. With parallel=false each tx waits for its receipt
// before the next is sent and a reverted receipt aborts the remainder; with
// parallel=true all txs are pipelined first and receipts are awaited at the
// end (when waitForReceipt is set).
func (c *Client) SendAndConfirm(
	ctx context.Context,
	signer Signer,
	txs []*UnsignedTx,
	waitForReceipt bool,
	parallel bool,
) ([]ethcommon.Hash, error) {
	if len(txs) == 0 {
		return nil, nil
	}

	chainID, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	nonce, err := c.backend.PendingNonceAt(ctx, signer.Address())
	if err != nil {
		return nil, err
	}
	feeData, err := c.GetFeeData(ctx)
	if err != nil {
		return nil, err
	}

	hashes := make([]ethcommon.Hash, 0, len(txs))
	signed := make([]*types.Transaction, 0, len(txs))

	for _, utx := range txs {
		tx, err := c.sendOne(ctx, signer, utx, chainID, nonce, feeData)
		if err != nil {
			return hashes, err
		}
		nonce++
		hashes = append(hashes, tx.Hash())
		signed = append(signed, tx)

		if !parallel && waitForReceipt {
			receipt, err := c.WaitForTransaction(ctx, tx.Hash())
			if err != nil {
				return hashes, err
			}
			if receipt.Status == types.ReceiptStatusFailed {
				return hashes, swaperrs.TxReverted(tx.Hash())
			}
		}
	}

	if parallel && waitForReceipt {
		for _, tx := range signed {
			receipt, err := c.WaitForTransaction(ctx, tx.Hash())
			if err != nil {
				return hashes, err
			}
			if receipt.Status == types.ReceiptStatusFailed {
				return hashes, swaperrs.TxReverted(tx.Hash())
			}
		}
	}

	return hashes, nil
}

func (c *Client) sendOne(
	ctx context.Context,
	signer Signer,
	utx *UnsignedTx,
	chainID *big.Int,
	nonce uint64,
	feeData *FeeData,
) (*types.Transaction, error) {
	value := utx.Value
	if value == nil {
		value = new(big.Int)
	}

	var tx *types.Transaction
	if feeData.LastBaseFeePerGas != nil {
		tx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: feeData.MaxPriorityFee,
			GasFeeCap: feeData.MaxFeePerGas,
			Gas:       utx.GasLimit,
			To:        utx.To,
			Value:     value,
			Data:      utx.Data,
		})
	} else {
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: feeData.GasPrice,
			Gas:      utx.GasLimit,
			To:       utx.To,
			Value:    value,
			Data:     utx.Data,
		})
	}

	tx, err := signer.SignTx(tx, chainID)
	if err != nil {
		return nil, err
	}
	if err := c.backend.SendTransaction(ctx, tx); err != nil {
		return nil, err
	}

	logger.WithFields(logger.Fields{
		"tx":    tx.Hash().Hex(),
		"nonce": nonce,
	}).Debug("tx published")

	return tx, nil
}
