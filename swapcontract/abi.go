package swapcontract

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/lnswap-io/swapclient-go/swapdata"
)

const swapTupleSig = "(address,address,address,uint256,bytes32,uint256,uint256,uint256)"

// Method selectors.
var (
	selGetCommitment   = selector("getCommitment(bytes32)")
	selInitialize      = selector("initialize(" + swapTupleSig + ",bytes32,bytes32,uint256,bytes32)")
	selClaimWithSecret = selector("claimWithSecret(" + swapTupleSig + ",bytes32)")
	selClaimWithTxData = selector("claimWithTxData(" + swapTupleSig + ",uint32,uint256,bytes32[],bytes,bytes,uint32)")
	selRefund          = selector("refund(" + swapTupleSig + ")")
	selRefundWithAuth  = selector("refundWithAuth(" + swapTupleSig + ",bytes32,bytes32,uint256)")
	selDeposit         = selector("deposit(address,uint256)")
	selWithdraw        = selector("withdraw(address,uint256)")

	// standard ERC-20 selectors
	selAllowance = selector("allowance(address,address)")
	selApprove   = selector("approve(address,uint256)")
	selTransfer  = selector("transfer(address,uint256)")
)

func selector(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

var (
	typeAddress    = mustType("address")
	typeUint32     = mustType("uint32")
	typeUint256    = mustType("uint256")
	typeBytes32    = mustType("bytes32")
	typeBytes32Arr = mustType("bytes32[]")
	typeBytes      = mustType("bytes")

	typeSwapTuple = swapdata.SwapTupleType()

	argsGetCommitment = abi.Arguments{{Type: typeBytes32}}
	argsInitialize    = abi.Arguments{
		{Type: typeSwapTuple}, {Type: typeBytes32}, {Type: typeBytes32},
		{Type: typeUint256}, {Type: typeBytes32},
	}
	argsClaimWithSecret = abi.Arguments{{Type: typeSwapTuple}, {Type: typeBytes32}}
	argsClaimWithTxData = abi.Arguments{
		{Type: typeSwapTuple}, {Type: typeUint32}, {Type: typeUint256},
		{Type: typeBytes32Arr}, {Type: typeBytes}, {Type: typeBytes}, {Type: typeUint32},
	}
	argsRefund         = abi.Arguments{{Type: typeSwapTuple}}
	argsRefundWithAuth = abi.Arguments{
		{Type: typeSwapTuple}, {Type: typeBytes32}, {Type: typeBytes32}, {Type: typeUint256},
	}
	argsTokenAmount = abi.Arguments{{Type: typeAddress}, {Type: typeUint256}}
	argsAllowance   = abi.Arguments{{Type: typeAddress}, {Type: typeAddress}}
)

func packCall(sel []byte, args abi.Arguments, values ...interface{}) ([]byte, error) {
	packed, err := args.Pack(values...)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, sel...), packed...), nil
}
