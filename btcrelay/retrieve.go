package btcrelay

import (
	"bytes"
	"context"
	"math/big"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	logger "github.com/sirupsen/logrus"

	"github.com/lnswap-io/swapclient-go/headers"
	"github.com/lnswap-io/swapclient-go/swaperrs"
)

// BitcoinChain is the slice of a bitcoin node RetrieveLatestKnownBlockLog
// needs to check whether a logged block still sits on the bitcoin main chain.
type BitcoinChain interface {
	IsInMainChain(ctx context.Context, blockHash *chainhash.Hash) (bool, error)
}

// RetrieveLogAndBlockheight walks the relay's log history backwards looking
// for the stored header of the given block hash. Returns nil when the relay
// has not reached the block's height (or requiredHeight when supplied), or
// when no log matches.
//
// Block hashes are little-endian both in chainhash.Hash and in the log
// topics, so the comparison is direct; only display needs reversing.
func (c *Client) RetrieveLogAndBlockheight(
	ctx context.Context,
	blockHash *chainhash.Hash,
	height uint32,
	requiredHeight *uint32,
) (*RetrievedHeader, error) {
	tip, err := c.GetTip(ctx)
	if err != nil {
		return nil, err
	}
	if tip == nil {
		return nil, nil
	}

	required := height
	if requiredHeight != nil && *requiredHeight > required {
		required = *requiredHeight
	}
	if tip.Height < required {
		logger.WithFields(logger.Fields{
			"tipHeight": tip.Height,
			"required":  required,
		}).Debug("relay behind required height")
		return nil, nil
	}

	var found *headers.StoredHeader
	err = c.scanBackwards(ctx, func(log *types.Log) (bool, error) {
		if !bytes.Equal(log.Topics[2][:], blockHash[:]) {
			return false, nil
		}

		stored, err := parseStoredFromLog(log)
		if err != nil {
			logger.WithFields(logger.Fields{"err": err}).Warn("undecodable relay log, skipping")
			return false, nil
		}

		// confirm the logged header is still on the relay's main chain
		commit, err := c.GetCommitmentAt(ctx, stored.BlockHeight)
		if err != nil {
			return false, err
		}
		if commit != log.Topics[1] {
			return false, nil
		}

		found = stored
		return true, nil
	})
	if err != nil || found == nil {
		return nil, err
	}

	return &RetrievedHeader{Stored: found, TipHeight: tip.Height}, nil
}

// RetrieveLogByCommitHash is the symmetric lookup keyed by the commitment
// hash. The commitment at the claimed height is read first: if it differs
// from the argument the header cannot be on the main chain and the scan is
// skipped entirely.
func (c *Client) RetrieveLogByCommitHash(
	ctx context.Context,
	commitHash ethcommon.Hash,
	blockHash *chainhash.Hash,
	height uint32,
) (*RetrievedHeader, error) {
	head, err := c.GetCommitmentAt(ctx, height)
	if err != nil {
		return nil, err
	}
	if head != commitHash {
		return nil, nil
	}

	tip, err := c.GetTip(ctx)
	if err != nil {
		return nil, err
	}
	if tip == nil {
		return nil, nil
	}

	var found *headers.StoredHeader
	err = c.scanBackwards(ctx, func(log *types.Log) (bool, error) {
		if log.Topics[1] != commitHash {
			return false, nil
		}
		if !bytes.Equal(log.Topics[2][:], blockHash[:]) {
			return false, nil
		}

		stored, err := parseStoredFromLog(log)
		if err != nil {
			logger.WithFields(logger.Fields{"err": err}).Warn("undecodable relay log, skipping")
			return false, nil
		}
		found = stored
		return true, nil
	})
	if err != nil || found == nil {
		return nil, err
	}

	return &RetrievedHeader{Stored: found, TipHeight: tip.Height}, nil
}

// RetrieveLatestKnownBlockLog finds the most recent logged header that is
// both on the bitcoin main chain (per the bitcoin RPC) and still committed
// on the relay. It is the starting point for catching a lagging relay up.
func (c *Client) RetrieveLatestKnownBlockLog(ctx context.Context, btc BitcoinChain) (*RetrievedHeader, error) {
	tip, err := c.GetTip(ctx)
	if err != nil {
		return nil, err
	}
	if tip == nil {
		return nil, nil
	}

	var found *headers.StoredHeader
	err = c.scanBackwards(ctx, func(log *types.Log) (bool, error) {
		blockHash, err := chainhash.NewHash(log.Topics[2][:])
		if err != nil {
			return false, nil
		}

		inMain, err := btc.IsInMainChain(ctx, blockHash)
		if err != nil {
			return false, err
		}
		if !inMain {
			return false, nil
		}

		stored, err := parseStoredFromLog(log)
		if err != nil {
			return false, nil
		}

		commit, err := c.GetCommitmentAt(ctx, stored.BlockHeight)
		if err != nil {
			return false, err
		}
		if commit != log.Topics[1] {
			return false, nil
		}

		found = stored
		return true, nil
	})
	if err != nil || found == nil {
		return nil, err
	}

	return &RetrievedHeader{Stored: found, TipHeight: tip.Height}, nil
}

// scanBackwards pages over the relay's logs newest-first in windows of
// LogBlocksLimit blocks, calling visit for each log until it reports done.
// It sleeps 500 ms between empty windows and honours ctx at every window.
func (c *Client) scanBackwards(ctx context.Context, visit func(*types.Log) (bool, error)) error {
	current, err := c.evm.Backend().BlockNumber(ctx)
	if err != nil {
		return err
	}

	limit := c.cfg.logBlocksLimit()
	to := current

	for {
		select {
		case <-ctx.Done():
			return swaperrs.ErrCancelled
		default:
		}

		var from uint64
		if to > limit {
			from = to - limit + 1
		}
		if from < c.cfg.ContractDeployBlock {
			from = c.cfg.ContractDeployBlock
		}

		logs, err := c.evm.Backend().FilterLogs(ctx, ethereum.FilterQuery{
			Addresses: []ethcommon.Address{c.cfg.ContractAddress},
			Topics:    [][]ethcommon.Hash{{StoreHeaderTopic, StoreForkHeaderTopic}},
			FromBlock: new(big.Int).SetUint64(from),
			ToBlock:   new(big.Int).SetUint64(to),
		})
		if err != nil {
			return err
		}

		for i := len(logs) - 1; i >= 0; i-- {
			if len(logs[i].Topics) < 3 {
				continue
			}
			done, err := visit(&logs[i])
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}

		if from <= c.cfg.ContractDeployBlock {
			return nil
		}
		to = from - 1

		if len(logs) == 0 {
			select {
			case <-ctx.Done():
				return swaperrs.ErrCancelled
			case <-time.After(ScanSleep):
			}
		}
	}
}

// parseStoredFromLog decodes the stored header bytes out of a StoreHeader or
// StoreForkHeader log.
func parseStoredFromLog(log *types.Log) (*headers.StoredHeader, error) {
	var headerBytes []byte

	switch log.Topics[0] {
	case StoreForkHeaderTopic:
		vals, err := argsForkEventData.Unpack(log.Data)
		if err != nil {
			return nil, err
		}
		headerBytes = vals[1].([]byte)
	default:
		vals, err := argsBytes.Unpack(log.Data)
		if err != nil {
			return nil, err
		}
		headerBytes = vals[0].([]byte)
	}

	return headers.ParseStoredHeader(headerBytes)
}
