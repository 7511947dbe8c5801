package evmclient

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer is the capability every transaction submitter needs. Optional
// behaviours (replacement notification, pending introspection) live on the
// narrow interfaces below; callers feature-test with a type assertion.
type Signer interface {
	Address() ethcommon.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
	// SignPersonal signs the EIP-191 personal envelope of msg and returns the
	// 65-byte [R || S || V] signature with V in {27, 28}.
	SignPersonal(msg []byte) ([]byte, error)
}

// TxReplacementNotifier is implemented by signers that want a callback when a
// pending transaction is about to be replaced.
type TxReplacementNotifier interface {
	OnBeforeTxReplace(oldTx, newTx ethcommon.Hash) error
}

// PendingChecker is implemented by signers that track their own mempool view.
type PendingChecker interface {
	IsTxPending(ctx context.Context, txHash ethcommon.Hash) (bool, error)
}

// LocalSigner signs with an in-process secp256k1 key.
type LocalSigner struct {
	key     *ecdsa.PrivateKey
	address ethcommon.Address
}

func NewLocalSigner(key *ecdsa.PrivateKey) *LocalSigner {
	return &LocalSigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

func (s *LocalSigner) Address() ethcommon.Address {
	return s.address
}

func (s *LocalSigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}

func (s *LocalSigner) SignPersonal(msg []byte) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(msg), s.key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}
