package swapcontract

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/lnswap-io/swapclient-go/btcrelay"
	"github.com/lnswap-io/swapclient-go/evmclient"
	"github.com/lnswap-io/swapclient-go/swapdata"
)

// Client reads swap commitment state and prepares unsigned transactions for
// every swap transition. The relay client is only needed for SPV claims and
// may be nil otherwise.
type Client struct {
	evm   *evmclient.Client
	relay *btcrelay.Client
	cfg   *Config

	allowances allowanceCache

	// now is swappable in tests
	now func() time.Time
}

func NewClient(evm *evmclient.Client, relay *btcrelay.Client, cfg *Config) *Client {
	return &Client{
		evm:   evm,
		relay: relay,
		cfg:   cfg,
		now:   time.Now,
	}
}

func (c *Client) ContractAddress() ethcommon.Address {
	return c.cfg.ContractAddress
}

// SetClock overrides the client's clock, for tests.
func (c *Client) SetClock(now func() time.Time) {
	c.now = now
}

func (c *Client) call(ctx context.Context, to ethcommon.Address, data []byte) ([]byte, error) {
	return c.evm.Backend().CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
}

// GetCommitment reads the commitment word the contract stores at a payment
// hash.
func (c *Client) GetCommitment(ctx context.Context, paymentHash ethcommon.Hash) (*big.Int, error) {
	data, err := packCall(selGetCommitment, argsGetCommitment, [32]byte(paymentHash))
	if err != nil {
		return nil, err
	}
	raw, err := c.call(ctx, c.cfg.ContractAddress, data)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(raw), nil
}

// CommitStatusOf maps the on-chain commitment word to the caller's view of
// the swap. The refund grace period makes the offerer treat a swap as
// expired slightly before its actual expiry.
func (c *Client) CommitStatusOf(ctx context.Context, swap *swapdata.SwapData, caller ethcommon.Address) (CommitStatus, error) {
	onChain, err := c.GetCommitment(ctx, swap.PaymentHash)
	if err != nil {
		return StatusNotCommitted, err
	}

	commitHash, err := swap.CommitHash()
	if err != nil {
		return StatusNotCommitted, err
	}

	expired := c.isExpiredFor(swap, caller)

	switch {
	case onChain.Cmp(PaidSentinel) == 0:
		return StatusPaid, nil
	case onChain.Cmp(PaidSentinel) < 0:
		if expired {
			return StatusExpired, nil
		}
		return StatusNotCommitted, nil
	case onChain.Cmp(new(big.Int).SetBytes(commitHash[:])) == 0:
		if expired {
			return StatusRefundable, nil
		}
		return StatusCommitted, nil
	default:
		// some other (newer) swap occupies the slot
		logger.WithFields(logger.Fields{
			"paymentHash": swap.PaymentHash.Hex(),
		}).Debug("foreign commitment in slot")
		if expired {
			return StatusExpired, nil
		}
		return StatusNotCommitted, nil
	}
}

// isExpiredFor: only the offerer considers the swap expired, and it does so
// refundGrace before the actual deadline.
func (c *Client) isExpiredFor(swap *swapdata.SwapData, caller ethcommon.Address) bool {
	if caller != swap.Offerer {
		return false
	}
	grace := int64(c.cfg.refundGrace() / time.Second)
	return c.now().Unix() > int64(swap.Expiry())-grace
}
