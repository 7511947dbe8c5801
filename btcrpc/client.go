package btcrpc

import (
	"context"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	logger "github.com/sirupsen/logrus"

	"github.com/lnswap-io/swapclient-go/swaperrs"
)

type Config struct {
	ServerAddr string // ip address of server
	Port       string // port of server
	Username   string
	Pwd        string
}

// MerkleProof locates a transaction inside a confirmed block: the block
// height, the tx position and the merkle branch up to the header's root.
type MerkleProof struct {
	BlockHeight uint32
	Pos         uint32
	Merkle      []chainhash.Hash
}

// Wrapper of the bitcoind rpc client exposing the few reads the swap client
// needs: headers, main-chain membership and merkle proofs.
type Client struct {
	client *rpcclient.Client
}

func NewClient(cfg *Config) (*Client, error) {
	// original bitcoin only supports HTTP POST mode, no TLS
	client, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         cfg.ServerAddr + ":" + cfg.Port,
		User:         cfg.Username,
		Pass:         cfg.Pwd,
		HTTPPostMode: true,
		DisableTLS:   true,
	}, nil)
	if err != nil {
		return nil, err
	}

	return &Client{client: client}, nil
}

func (c *Client) Close() {
	c.client.Shutdown()
}

// GetBlockHeader fetches a header and its height.
func (c *Client) GetBlockHeader(ctx context.Context, blockHash *chainhash.Hash) (*wire.BlockHeader, uint32, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, swaperrs.ErrCancelled
	}

	header, err := c.client.GetBlockHeader(blockHash)
	if err != nil {
		return nil, 0, err
	}
	verbose, err := c.client.GetBlockHeaderVerbose(blockHash)
	if err != nil {
		return nil, 0, err
	}
	return header, uint32(verbose.Height), nil
}

// IsInMainChain reports whether the block is on the active chain. bitcoind
// marks orphaned headers with confirmations == -1.
func (c *Client) IsInMainChain(ctx context.Context, blockHash *chainhash.Hash) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, swaperrs.ErrCancelled
	}

	verbose, err := c.client.GetBlockHeaderVerbose(blockHash)
	if err != nil {
		return false, err
	}
	return verbose.Confirmations >= 0, nil
}

// TxConfirmations returns the confirmation count of a transaction, 0 when
// still unconfirmed.
func (c *Client) TxConfirmations(ctx context.Context, txID string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, swaperrs.ErrCancelled
	}

	txHash, err := chainhash.NewHashFromStr(txID)
	if err != nil {
		return 0, err
	}
	verbose, err := c.client.GetRawTransactionVerbose(txHash)
	if err != nil {
		return 0, err
	}
	return verbose.Confirmations, nil
}

// GetMerkleProof builds the merkle branch proving the tx's inclusion in the
// block. Requires -txindex on the node for the block fetch by hash.
func (c *Client) GetMerkleProof(ctx context.Context, txID string, blockHash *chainhash.Hash) (*MerkleProof, error) {
	if err := ctx.Err(); err != nil {
		return nil, swaperrs.ErrCancelled
	}

	txHash, err := chainhash.NewHashFromStr(txID)
	if err != nil {
		return nil, err
	}

	block, err := c.client.GetBlock(blockHash)
	if err != nil {
		return nil, err
	}
	verbose, err := c.client.GetBlockHeaderVerbose(blockHash)
	if err != nil {
		return nil, err
	}

	hashes := make([]chainhash.Hash, 0, len(block.Transactions))
	pos := -1
	for i, tx := range block.Transactions {
		h := tx.TxHash()
		if h == *txHash {
			pos = i
		}
		hashes = append(hashes, h)
	}
	if pos < 0 {
		return nil, swaperrs.InvalidArgument("tx not found in block")
	}

	branch := ComputeMerkleBranch(hashes, uint32(pos))

	logger.WithFields(logger.Fields{
		"tx":     txID,
		"height": verbose.Height,
		"pos":    pos,
		"branch": len(branch),
	}).Debug("merkle proof assembled")

	return &MerkleProof{
		BlockHeight: uint32(verbose.Height),
		Pos:         uint32(pos),
		Merkle:      branch,
	}, nil
}

// ComputeMerkleBranch returns the sibling path from leaf pos up to the root.
// Odd levels duplicate their last element, matching bitcoin's merkle rules.
func ComputeMerkleBranch(hashes []chainhash.Hash, pos uint32) []chainhash.Hash {
	var branch []chainhash.Hash

	level := make([]chainhash.Hash, len(hashes))
	copy(level, hashes)

	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}

		branch = append(branch, level[pos^1])

		next := make([]chainhash.Hash, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, blockchain.HashMerkleBranches(&level[i], &level[i+1]))
		}
		level = next
		pos >>= 1
	}

	return branch
}
