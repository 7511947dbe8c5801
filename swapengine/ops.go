package swapengine

import (
	"context"
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/lnswap-io/swapclient-go/btcrpc"
	"github.com/lnswap-io/swapclient-go/evmclient"
	"github.com/lnswap-io/swapclient-go/headers"
	"github.com/lnswap-io/swapclient-go/swapcontract"
	"github.com/lnswap-io/swapclient-go/swaperrs"
)

// CreateSwap registers a freshly negotiated swap in PR_CREATED and persists
// it.
func (e *Engine) CreateSwap(
	paymentHash ethcommon.Hash,
	url, paymentRequest string,
	swapFee *big.Int,
	expiry uint64,
	feeRate string,
) (*Swap, error) {
	s := &Swap{
		PaymentHash:    paymentHash,
		URL:            url,
		PaymentRequest: paymentRequest,
		SwapFee:        swapFee,
		Expiry:         expiry,
		FeeRate:        feeRate,
		State:          StateCreated,
	}

	if err := e.persist(s); err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.swaps[paymentHash] = s
	e.mu.Unlock()

	return s, nil
}

// PurgeSwap drops a terminal swap from memory and storage.
func (e *Engine) PurgeSwap(s *Swap) error {
	unlock := e.lockKey(s.PaymentHash)
	defer unlock()

	if !s.State.IsTerminal() {
		return swaperrs.SwapDataVerification("swap not terminal")
	}

	if err := e.store.Remove(s.PaymentHash); err != nil {
		return err
	}

	e.mu.Lock()
	delete(e.swaps, s.PaymentHash)
	e.mu.Unlock()
	return nil
}

// Commit escrows the swap on chain using the stored init authorization.
func (e *Engine) Commit(ctx context.Context, s *Swap) error {
	unlock := e.lockKey(s.PaymentHash)
	defer unlock()

	if s.State != StatePaid {
		return swaperrs.SwapDataVerification("swap not in PR_PAID")
	}
	if s.Data == nil {
		return swaperrs.SwapDataVerification("swap data missing")
	}

	var unsigned []*evmclient.UnsignedTx
	if s.Data.IsPayIn() {
		payIn, err := e.contract.InitPayIn(ctx, s.Data, s.Signature, s.Timeout)
		if err != nil {
			return err
		}
		unsigned = payIn
	} else {
		tx, err := e.contract.Init(s.Data, s.Signature, s.Timeout)
		if err != nil {
			return err
		}
		unsigned = []*evmclient.UnsignedTx{tx}
	}

	hashes, err := e.evm.SendAndConfirm(ctx, e.signer, unsigned, true, false)
	if err != nil {
		return err
	}

	s.CommitTxID = hashes[len(hashes)-1].Hex()
	e.transition(s, StateCommitted)
	return nil
}

// ClaimWithSecret settles an HTLC swap with the payment preimage. A revert
// fails the attempt, not the swap.
func (e *Engine) ClaimWithSecret(ctx context.Context, s *Swap, secret [32]byte) error {
	unlock := e.lockKey(s.PaymentHash)
	defer unlock()

	if s.State != StateCommitted && s.State != StatePaid {
		return swaperrs.SwapDataVerification("swap not committed")
	}

	tx, err := e.contract.ClaimWithSecret(s.Data, secret, true)
	if err != nil {
		return err
	}

	hashes, err := e.evm.SendAndConfirm(ctx, e.signer, []*evmclient.UnsignedTx{tx}, true, false)
	if err != nil {
		logger.WithFields(logger.Fields{
			"paymentHash": s.PaymentHash.Hex(),
			"err":         err,
		}).Error("claim with secret failed")
		return err
	}

	s.Secret = &secret
	s.ClaimTxID = hashes[len(hashes)-1].Hex()
	e.transition(s, StateClaimed)
	return nil
}

// ClaimWithTxData settles an on-chain swap with an SPV proof, synchronizing
// the relay first when needed.
func (e *Engine) ClaimWithTxData(
	ctx context.Context,
	s *Swap,
	txData []byte,
	vout uint32,
	proof *btcrpc.MerkleProof,
	committedHeader *headers.StoredHeader,
	synchronizer swapcontract.RelaySynchronizer,
) error {
	unlock := e.lockKey(s.PaymentHash)
	defer unlock()

	if s.State != StateCommitted {
		return swaperrs.SwapDataVerification("swap not committed")
	}

	txs, err := e.contract.ClaimWithTxData(ctx, s.Data, txData, vout, proof, committedHeader, synchronizer)
	if err != nil {
		return err
	}

	hashes, err := e.evm.SendAndConfirm(ctx, e.signer, txs, true, false)
	if err != nil {
		return err
	}

	s.ClaimTxID = hashes[len(hashes)-1].Hex()
	e.transition(s, StateClaimed)
	return nil
}

// Refund reclaims an expired commitment as the offerer.
func (e *Engine) Refund(ctx context.Context, s *Swap) error {
	unlock := e.lockKey(s.PaymentHash)
	defer unlock()

	if s.Data == nil {
		return swaperrs.SwapDataVerification("swap data missing")
	}

	tx, err := e.contract.Refund(ctx, s.Data)
	if err != nil {
		return err
	}

	if _, err := e.evm.SendAndConfirm(ctx, e.signer, []*evmclient.UnsignedTx{tx}, true, false); err != nil {
		return err
	}

	e.transition(s, StateFailed)
	return nil
}

// RefundWithAuth reclaims a commitment cooperatively with the claimer's
// countersignature.
func (e *Engine) RefundWithAuth(ctx context.Context, s *Swap, sig []byte, timeout uint64) error {
	unlock := e.lockKey(s.PaymentHash)
	defer unlock()

	if s.Data == nil {
		return swaperrs.SwapDataVerification("swap data missing")
	}

	tx, err := e.contract.RefundWithAuth(s.Data, sig, timeout)
	if err != nil {
		return err
	}

	if _, err := e.evm.SendAndConfirm(ctx, e.signer, []*evmclient.UnsignedTx{tx}, true, false); err != nil {
		return err
	}

	e.transition(s, StateFailed)
	return nil
}

// PaymentUpdate reports confirmation progress to WaitForPayment callers.
type PaymentUpdate func(txID string, confirmations, target uint64)

// WaitForPayment polls the bitcoin payment tx until it reaches the swap's
// required confirmations, reporting progress on each poll. It fails when the
// swap reaches a terminal state first or the context is cancelled.
func (e *Engine) WaitForPayment(
	ctx context.Context,
	s *Swap,
	txID string,
	interval time.Duration,
	onUpdate PaymentUpdate,
) error {
	if s.Data == nil {
		return swaperrs.SwapDataVerification("swap data missing")
	}
	target := uint64(s.Data.Confirmations())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		confirmations, err := e.confirmations.TxConfirmations(ctx, txID)
		if err != nil {
			logger.WithFields(logger.Fields{
				"tx":  txID,
				"err": err,
			}).Warn("confirmation poll failed")
		} else {
			if onUpdate != nil {
				onUpdate(txID, confirmations, target)
			}
			if confirmations >= target {
				return nil
			}
		}

		if s.State.IsTerminal() {
			return swaperrs.SwapDataVerification("swap reached terminal state " + s.State.String())
		}

		select {
		case <-ctx.Done():
			return swaperrs.ErrCancelled
		case <-ticker.C:
		}
	}
}
