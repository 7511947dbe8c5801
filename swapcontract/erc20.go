package swapcontract

import (
	"context"
	"math/big"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"

	"github.com/lnswap-io/swapclient-go/evmclient"
)

// allowanceCache remembers tokens already approved for the max allowance so
// repeated pay-in inits skip the allowance read.
type allowanceCache struct {
	m sync.Map // token|owner -> struct{}
}

func allowanceKey(token, owner ethcommon.Address) string {
	return token.Hex() + "|" + owner.Hex()
}

func (a *allowanceCache) isMaxApproved(token, owner ethcommon.Address) bool {
	_, ok := a.m.Load(allowanceKey(token, owner))
	return ok
}

func (a *allowanceCache) markMaxApproved(token, owner ethcommon.Address) {
	a.m.Store(allowanceKey(token, owner), struct{}{})
}

// Allowance reads the token allowance the owner granted the swap contract.
// A cached max approval short-circuits the RPC.
func (c *Client) Allowance(ctx context.Context, token, owner ethcommon.Address) (*big.Int, error) {
	if c.allowances.isMaxApproved(token, owner) {
		return new(big.Int).Set(math.MaxBig256), nil
	}

	data, err := packCall(selAllowance, argsAllowance, owner, c.cfg.ContractAddress)
	if err != nil {
		return nil, err
	}
	raw, err := c.call(ctx, token, data)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(raw), nil
}

// ApproveMax prepares an unlimited approval of the swap contract and records
// it in the cache.
func (c *Client) ApproveMax(token, owner ethcommon.Address) (*evmclient.UnsignedTx, error) {
	data, err := packCall(selApprove, argsTokenAmount, c.cfg.ContractAddress, math.MaxBig256)
	if err != nil {
		return nil, err
	}

	c.allowances.markMaxApproved(token, owner)

	return &evmclient.UnsignedTx{
		To:       &token,
		Data:     data,
		GasLimit: GasApprove,
	}, nil
}

// Deposit prepares a deposit into the swap contract's internal balance.
func (c *Client) Deposit(token ethcommon.Address, amount *big.Int) (*evmclient.UnsignedTx, error) {
	data, err := packCall(selDeposit, argsTokenAmount, token, amount)
	if err != nil {
		return nil, err
	}

	tx := &evmclient.UnsignedTx{
		To:       &c.cfg.ContractAddress,
		Data:     data,
		GasLimit: GasDeposit,
	}
	if token == (ethcommon.Address{}) {
		tx.Value = new(big.Int).Set(amount)
	}
	return tx, nil
}

// Withdraw prepares a withdrawal from the swap contract's internal balance.
func (c *Client) Withdraw(token ethcommon.Address, amount *big.Int) (*evmclient.UnsignedTx, error) {
	data, err := packCall(selWithdraw, argsTokenAmount, token, amount)
	if err != nil {
		return nil, err
	}

	return &evmclient.UnsignedTx{
		To:       &c.cfg.ContractAddress,
		Data:     data,
		GasLimit: GasWithdraw,
	}, nil
}

// Transfer prepares a plain transfer: a native value tx for the zero token,
// an ERC-20 transfer otherwise.
func (c *Client) Transfer(token, to ethcommon.Address, amount *big.Int) (*evmclient.UnsignedTx, error) {
	if token == (ethcommon.Address{}) {
		return &evmclient.UnsignedTx{
			To:       &to,
			Value:    new(big.Int).Set(amount),
			GasLimit: GasNativeTransfer,
		}, nil
	}

	data, err := packCall(selTransfer, argsTokenAmount, to, amount)
	if err != nil {
		return nil, err
	}

	return &evmclient.UnsignedTx{
		To:       &token,
		Data:     data,
		GasLimit: GasTokenTransfer,
	}, nil
}
