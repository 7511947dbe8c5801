package evmclient

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	logger "github.com/sirupsen/logrus"

	"github.com/lnswap-io/swapclient-go/swaperrs"
)

// ReceiptPollInterval is how often WaitForTransaction re-checks for a receipt.
const ReceiptPollInterval = time.Second

// Backend is the slice of an ethereum JSON-RPC node this library consumes.
// *ethclient.Client satisfies it; tests use SimBackend.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account ethcommon.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash ethcommon.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, txHash ethcommon.Hash) (*types.Transaction, bool, error)
}

// Client wraps a Backend with the fee/receipt helpers shared by the relay and
// swap contract clients.
type Client struct {
	backend Backend
}

func NewClient(backend Backend) *Client {
	return &Client{backend: backend}
}

func Dial(url string) (*Client, error) {
	ethClient, err := ethclient.Dial(url)
	if err != nil {
		return nil, err
	}
	return NewClient(ethClient), nil
}

func (c *Client) Backend() Backend {
	return c.backend
}

// GetFeeData assembles fee information from the latest header plus the node's
// gas price suggestion.
func (c *Client) GetFeeData(ctx context.Context) (*FeeData, error) {
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}

	head, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, err
	}

	fd := &FeeData{GasPrice: gasPrice}
	if head.BaseFee != nil {
		fd.LastBaseFeePerGas = new(big.Int).Set(head.BaseFee)
		// double the base fee to survive short-term spikes
		fd.MaxFeePerGas = new(big.Int).Add(
			new(big.Int).Mul(head.BaseFee, big.NewInt(2)),
			big.NewInt(1_500_000_000),
		)
		fd.MaxPriorityFee = big.NewInt(1_500_000_000)
	}
	return fd, nil
}

// WaitForTransaction blocks until the tx has a receipt or ctx is done.
func (c *Client) WaitForTransaction(ctx context.Context, txHash ethcommon.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(ReceiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && err != ethereum.NotFound {
			logger.WithFields(logger.Fields{
				"tx":  txHash.Hex(),
				"err": err,
			}).Debug("receipt lookup failed, retrying")
		}

		select {
		case <-ctx.Done():
			return nil, swaperrs.ErrCancelled
		case <-ticker.C:
		}
	}
}
