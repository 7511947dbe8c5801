package evmclient

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// SimBackend is an in-memory Backend used in tests. Logs, receipts and call
// results are seeded by the test; every FilterLogs query is recorded so tests
// can assert on pagination behaviour.
type SimBackend struct {
	mu sync.Mutex

	ChainId  *big.Int
	Block    uint64
	BaseFee  *big.Int
	GasPrice *big.Int

	Logs     []types.Log
	Receipts map[ethcommon.Hash]*types.Receipt
	Txs      map[ethcommon.Hash]*types.Transaction

	// CallFn serves eth_call; tests dispatch on the 4-byte selector.
	CallFn func(call ethereum.CallMsg) ([]byte, error)

	Sent          []*types.Transaction
	FilterQueries []ethereum.FilterQuery

	// FailNonces marks nonces whose txs get a reverted receipt.
	FailNonces map[uint64]bool

	nonces map[ethcommon.Address]uint64
}

func NewSimBackend() *SimBackend {
	return &SimBackend{
		ChainId:    big.NewInt(1337),
		Block:      10_000,
		GasPrice:   big.NewInt(2_000_000_000),
		Receipts:   make(map[ethcommon.Hash]*types.Receipt),
		Txs:        make(map[ethcommon.Hash]*types.Transaction),
		FailNonces: make(map[uint64]bool),
		nonces:     make(map[ethcommon.Address]uint64),
	}
}

func (b *SimBackend) ChainID(ctx context.Context) (*big.Int, error) {
	return b.ChainId, nil
}

func (b *SimBackend) BlockNumber(ctx context.Context) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Block, nil
}

func (b *SimBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &types.Header{
		Number:  new(big.Int).SetUint64(b.Block),
		BaseFee: b.BaseFee,
	}, nil
}

func (b *SimBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return b.GasPrice, nil
}

func (b *SimBackend) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.FilterQueries = append(b.FilterQueries, q)

	var out []types.Log
	for _, l := range b.Logs {
		if q.FromBlock != nil && l.BlockNumber < q.FromBlock.Uint64() {
			continue
		}
		if q.ToBlock != nil && l.BlockNumber > q.ToBlock.Uint64() {
			continue
		}
		if len(q.Addresses) > 0 && !containsAddress(q.Addresses, l.Address) {
			continue
		}
		if len(q.Topics) > 0 && len(q.Topics[0]) > 0 {
			if len(l.Topics) == 0 || !containsHash(q.Topics[0], l.Topics[0]) {
				continue
			}
		}
		out = append(out, l)
	}
	return out, nil
}

func (b *SimBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if b.CallFn == nil {
		return nil, nil
	}
	return b.CallFn(call)
}

func (b *SimBackend) PendingNonceAt(ctx context.Context, account ethcommon.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nonces[account], nil
}

func (b *SimBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.Sent = append(b.Sent, tx)
	b.Txs[tx.Hash()] = tx

	sender, err := types.Sender(types.LatestSignerForChainID(b.ChainId), tx)
	if err == nil {
		b.nonces[sender] = tx.Nonce() + 1
	}

	// receipts default to success unless the test pre-seeded one or marked
	// the nonce as failing
	if _, ok := b.Receipts[tx.Hash()]; !ok {
		status := types.ReceiptStatusSuccessful
		if b.FailNonces[tx.Nonce()] {
			status = types.ReceiptStatusFailed
		}
		b.Receipts[tx.Hash()] = &types.Receipt{
			Status: status,
			TxHash: tx.Hash(),
		}
	}
	return nil
}

func (b *SimBackend) TransactionReceipt(ctx context.Context, txHash ethcommon.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	receipt, ok := b.Receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (b *SimBackend) TransactionByHash(ctx context.Context, txHash ethcommon.Hash) (*types.Transaction, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx, ok := b.Txs[txHash]
	if !ok {
		return nil, false, ethereum.NotFound
	}
	return tx, false, nil
}

// SeedReceipt lets tests pre-arrange the receipt for a tx hash, e.g. a
// reverted status.
func (b *SimBackend) SeedReceipt(txHash ethcommon.Hash, receipt *types.Receipt) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Receipts[txHash] = receipt
}

func containsAddress(addrs []ethcommon.Address, a ethcommon.Address) bool {
	for _, x := range addrs {
		if x == a {
			return true
		}
	}
	return false
}

func containsHash(hashes []ethcommon.Hash, h ethcommon.Hash) bool {
	for _, x := range hashes {
		if x == h {
			return true
		}
	}
	return false
}
