package swapcontract

import (
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// CommitStatus is the client-side view of a swap's on-chain commitment slot.
type CommitStatus int

const (
	StatusNotCommitted CommitStatus = iota
	StatusCommitted
	StatusPaid
	StatusRefundable
	StatusExpired
)

func (s CommitStatus) String() string {
	switch s {
	case StatusNotCommitted:
		return "NOT_COMMITTED"
	case StatusCommitted:
		return "COMMITTED"
	case StatusPaid:
		return "PAID"
	case StatusRefundable:
		return "REFUNDABLE"
	case StatusExpired:
		return "EXPIRED"
	}
	return "UNKNOWN"
}

// PaidSentinel is the commitment value the contract writes once a swap has
// been claimed. Values below it encode the replay nonce; values above it are
// keccak commitments to live swaps.
var PaidSentinel = big.NewInt(0x100)

// DefaultRefundGracePeriod is how long before the swap expiry the offerer
// already treats the swap as expired.
const DefaultRefundGracePeriod = 600 * time.Second

// DefaultClaimGracePeriod rejects claims submitted too close to the expiry
// to confirm safely.
const DefaultClaimGracePeriod = 600 * time.Second

// Gas budgets. Fixed constants shared with intermediaries, not estimates.
const (
	GasInit               = 100_000
	GasInitPayIn          = 150_000
	GasApprove            = 80_000
	GasClaimSecret        = 150_000
	GasClaimTxDataBase    = 200_000
	GasClaimTxDataPerByte = 100
	GasRefund             = 100_000
	GasRefundWithAuth     = 120_000
	GasDeposit            = 80_000
	GasWithdraw           = 100_000
	GasNativeTransfer     = 21_000
	GasTokenTransfer      = 100_000
)

type Config struct {
	ContractAddress   ethcommon.Address
	RefundGracePeriod time.Duration
	ClaimGracePeriod  time.Duration
}

func (c *Config) refundGrace() time.Duration {
	if c.RefundGracePeriod == 0 {
		return DefaultRefundGracePeriod
	}
	return c.RefundGracePeriod
}

func (c *Config) claimGrace() time.Duration {
	if c.ClaimGracePeriod == 0 {
		return DefaultClaimGracePeriod
	}
	return c.ClaimGracePeriod
}
