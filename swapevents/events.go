package swapevents

import (
	"context"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/lnswap-io/swapclient-go/swapdata"
)

// EventKind tags the swap contract's three log types. Consumers switch on
// the kind exhaustively instead of type-probing.
type EventKind int

const (
	KindInitialize EventKind = iota
	KindClaim
	KindRefund
)

// Event is one decoded swap contract log, keyed by payment hash.
type Event interface {
	Kind() EventKind
	PaymentHash() ethcommon.Hash
	Sequence() *big.Int
}

// InitializeEvent announces a new commitment. The full swap record is not in
// the log; FetchSwapData pulls it out of the init transaction's calldata on
// demand.
type InitializeEvent struct {
	Hash    ethcommon.Hash
	Seq     *big.Int
	TxoHash ethcommon.Hash
	Index   *big.Int

	FetchSwapData func(ctx context.Context) (*swapdata.SwapData, error)
}

func (e *InitializeEvent) Kind() EventKind             { return KindInitialize }
func (e *InitializeEvent) PaymentHash() ethcommon.Hash { return e.Hash }
func (e *InitializeEvent) Sequence() *big.Int          { return e.Seq }

// ClaimEvent carries the revealed secret.
type ClaimEvent struct {
	Hash   ethcommon.Hash
	Seq    *big.Int
	Secret [32]byte
}

func (e *ClaimEvent) Kind() EventKind             { return KindClaim }
func (e *ClaimEvent) PaymentHash() ethcommon.Hash { return e.Hash }
func (e *ClaimEvent) Sequence() *big.Int          { return e.Seq }

type RefundEvent struct {
	Hash ethcommon.Hash
	Seq  *big.Int
}

func (e *RefundEvent) Kind() EventKind             { return KindRefund }
func (e *RefundEvent) PaymentHash() ethcommon.Hash { return e.Hash }
func (e *RefundEvent) Sequence() *big.Int          { return e.Seq }
