package swapcontract

import (
	"bytes"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/lnswap-io/swapclient-go/swapdata"
	"github.com/lnswap-io/swapclient-go/swaperrs"
)

// ParseInitCalldata decodes the swap record out of an initialize tx's
// calldata. Event consumers use it to fetch the full swap data referenced by
// an Initialize log.
func ParseInitCalldata(data []byte) (*swapdata.SwapData, error) {
	if len(data) < 4 || !bytes.Equal(data[:4], selInitialize) {
		return nil, swaperrs.InvalidArgument("not an initialize calldata")
	}

	vals, err := argsInitialize.Unpack(data[4:])
	if err != nil {
		return nil, err
	}

	tuple := abi.ConvertType(vals[0], new(swapdata.ABISwap)).(*swapdata.ABISwap)

	var txoHash *ethcommon.Hash
	if raw, ok := vals[4].([32]byte); ok && raw != ([32]byte{}) {
		h := ethcommon.Hash(raw)
		txoHash = &h
	}

	return tuple.ToSwapData(txoHash), nil
}
