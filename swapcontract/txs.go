package swapcontract

import (
	"context"
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/lnswap-io/swapclient-go/auth"
	"github.com/lnswap-io/swapclient-go/btcrpc"
	"github.com/lnswap-io/swapclient-go/evmclient"
	"github.com/lnswap-io/swapclient-go/headers"
	"github.com/lnswap-io/swapclient-go/swapdata"
	"github.com/lnswap-io/swapclient-go/swaperrs"
)

// RelaySynchronizer prepares the header submissions needed to advance the
// relay to the bitcoin tip, with the stored headers it will create.
type RelaySynchronizer interface {
	SyncToLatest(ctx context.Context) (*SyncResult, error)
}

type SyncResult struct {
	Txs             []*evmclient.UnsignedTx
	ComputedHeaders map[uint32]*headers.StoredHeader
}

func splitSig(sig []byte) (r, s [32]byte, v byte, err error) {
	if len(sig) != 65 {
		return r, s, 0, swaperrs.InvalidArgument("signature must be 65 bytes")
	}
	copy(r[:], sig[:32])
	copy(s[:], sig[32:64])
	return r, s, sig[64], nil
}

func (c *Client) txoHashOf(swap *swapdata.SwapData) [32]byte {
	if swap.TxoHash != nil {
		return [32]byte(*swap.TxoHash)
	}
	return [32]byte{}
}

// Init prepares the claimer-submitted initialize tx carrying the offerer's
// authorization signature.
func (c *Client) Init(swap *swapdata.SwapData, sig []byte, timeout uint64) (*evmclient.UnsignedTx, error) {
	r, s, v, err := splitSig(sig)
	if err != nil {
		return nil, err
	}

	data, err := packCall(selInitialize, argsInitialize,
		swap.ABITuple(), r, s, auth.PackTimeoutV(timeout, v), c.txoHashOf(swap))
	if err != nil {
		return nil, err
	}

	return &evmclient.UnsignedTx{
		To:       &c.cfg.ContractAddress,
		Data:     data,
		GasLimit: GasInit,
	}, nil
}

// InitPayIn prepares the offerer-submitted initialize where the escrow is
// funded inside the tx itself: native value is attached for the zero token,
// and an unlimited approval is prepended when the current ERC-20 allowance
// does not cover the amount.
func (c *Client) InitPayIn(ctx context.Context, swap *swapdata.SwapData, sig []byte, timeout uint64) ([]*evmclient.UnsignedTx, error) {
	r, s, v, err := splitSig(sig)
	if err != nil {
		return nil, err
	}

	data, err := packCall(selInitialize, argsInitialize,
		swap.ABITuple(), r, s, auth.PackTimeoutV(timeout, v), c.txoHashOf(swap))
	if err != nil {
		return nil, err
	}

	initTx := &evmclient.UnsignedTx{
		To:       &c.cfg.ContractAddress,
		Data:     data,
		GasLimit: GasInitPayIn,
	}

	var txs []*evmclient.UnsignedTx

	if swap.Token == (ethcommon.Address{}) {
		initTx.Value = new(big.Int).Set(swap.Amount)
	} else {
		allowance, err := c.Allowance(ctx, swap.Token, swap.Offerer)
		if err != nil {
			return nil, swaperrs.ErrCannotInitializeAta
		}
		if allowance.Cmp(swap.Amount) < 0 {
			approveTx, err := c.ApproveMax(swap.Token, swap.Offerer)
			if err != nil {
				return nil, err
			}
			txs = append(txs, approveTx)
		}
	}

	return append(txs, initTx), nil
}

// ClaimWithSecret prepares the one-tx HTLC claim. With checkExpiry set the
// claim is rejected when less than the claim grace period remains.
func (c *Client) ClaimWithSecret(swap *swapdata.SwapData, secret [32]byte, checkExpiry bool) (*evmclient.UnsignedTx, error) {
	if checkExpiry {
		grace := int64(c.cfg.claimGrace() / time.Second)
		if int64(swap.Expiry())-c.now().Unix() < grace {
			return nil, swaperrs.SwapDataVerification("not enough time to claim")
		}
	}

	data, err := packCall(selClaimWithSecret, argsClaimWithSecret, swap.ABITuple(), secret)
	if err != nil {
		return nil, err
	}

	return &evmclient.UnsignedTx{
		To:       &c.cfg.ContractAddress,
		Data:     data,
		GasLimit: GasClaimSecret,
	}, nil
}

// ClaimWithTxData prepares an SPV claim: the raw bitcoin tx, its merkle
// proof and the committed stored header. When the relay has not yet advanced
// to proof height + required confirmations - 1, the synchronizer (if given)
// contributes the catch-up submissions ahead of the claim; otherwise the
// claim fails with NotSynchronized.
func (c *Client) ClaimWithTxData(
	ctx context.Context,
	swap *swapdata.SwapData,
	txData []byte,
	vout uint32,
	proof *btcrpc.MerkleProof,
	committedHeader *headers.StoredHeader,
	synchronizer RelaySynchronizer,
) ([]*evmclient.UnsignedTx, error) {
	if c.relay == nil {
		return nil, swaperrs.InvalidArgument("no relay client configured")
	}

	required := proof.BlockHeight + uint32(swap.Confirmations()) - 1

	var current uint32
	tip, err := c.relay.GetTip(ctx)
	if err != nil {
		return nil, err
	}
	if tip != nil {
		current = tip.Height
	}

	var txs []*evmclient.UnsignedTx
	if current < required {
		if synchronizer == nil {
			return nil, swaperrs.NotSynchronized(required, current)
		}

		logger.WithFields(logger.Fields{
			"current":  current,
			"required": required,
		}).Debug("relay behind, synchronizing before claim")

		result, err := synchronizer.SyncToLatest(ctx)
		if err != nil {
			return nil, err
		}
		txs = append(txs, result.Txs...)

		if committedHeader == nil {
			committedHeader = result.ComputedHeaders[proof.BlockHeight]
		}
	}

	if committedHeader == nil {
		return nil, swaperrs.InvalidArgument("no committed header for proof height")
	}

	branch := make([][32]byte, len(proof.Merkle))
	for i, h := range proof.Merkle {
		branch[i] = [32]byte(h)
	}

	data, err := packCall(selClaimWithTxData, argsClaimWithTxData,
		swap.ABITuple(),
		proof.BlockHeight,
		new(big.Int).SetUint64(uint64(proof.Pos)),
		branch,
		committedHeader.Serialize(),
		txData,
		vout,
	)
	if err != nil {
		return nil, err
	}

	return append(txs, &evmclient.UnsignedTx{
		To:       &c.cfg.ContractAddress,
		Data:     data,
		GasLimit: GasClaimTxDataBase + GasClaimTxDataPerByte*uint64(len(txData)),
	}), nil
}

// Refund prepares the offerer's refund after expiry. The commitment is
// preflighted: anything but REFUNDABLE is rejected locally.
func (c *Client) Refund(ctx context.Context, swap *swapdata.SwapData) (*evmclient.UnsignedTx, error) {
	status, err := c.CommitStatusOf(ctx, swap, swap.Offerer)
	if err != nil {
		return nil, err
	}
	if status != StatusRefundable {
		return nil, swaperrs.SwapDataVerification("not refundable: " + status.String())
	}

	data, err := packCall(selRefund, argsRefund, swap.ABITuple())
	if err != nil {
		return nil, err
	}

	return &evmclient.UnsignedTx{
		To:       &c.cfg.ContractAddress,
		Data:     data,
		GasLimit: GasRefund,
	}, nil
}

// RefundWithAuth prepares a cooperative refund carrying the claimer's
// countersignature, valid before expiry.
func (c *Client) RefundWithAuth(swap *swapdata.SwapData, sig []byte, timeout uint64) (*evmclient.UnsignedTx, error) {
	r, s, v, err := splitSig(sig)
	if err != nil {
		return nil, err
	}

	data, err := packCall(selRefundWithAuth, argsRefundWithAuth,
		swap.ABITuple(), r, s, auth.PackTimeoutV(timeout, v))
	if err != nil {
		return nil, err
	}

	return &evmclient.UnsignedTx{
		To:       &c.cfg.ContractAddress,
		Data:     data,
		GasLimit: GasRefundWithAuth,
	}, nil
}
