package btcrelay

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

// Event topics emitted by the relay contract. Block hashes in the topics are
// little-endian, exactly as the contract stores them.
var (
	StoreHeaderTopic     = crypto.Keccak256Hash([]byte("StoreHeader(bytes32,bytes32,bytes)"))
	StoreForkHeaderTopic = crypto.Keccak256Hash([]byte("StoreForkHeader(bytes32,bytes32,uint256,bytes)"))
)

// Method selectors of the relay entry points.
var (
	selSetInitialParent          = selector("setInitialParent(bytes,uint32,uint256,uint32,uint32[10])")
	selSubmitMainChainHeaders    = selector("submitMainChainHeaders(bytes,bytes)")
	selSubmitNewForkChainHeaders = selector("submitNewForkChainHeaders(bytes,bytes)")
	selSubmitForkChainHeaders    = selector("submitForkChainHeaders(uint256,bytes,bytes)")
	selGetTipData                = selector("getTipData()")
	selGetCommitHash             = selector("getCommitHash(uint256)")
	selForkCounter               = selector("forkCounter()")
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
	typeBytes     = mustType("bytes")
	typeUint256   = mustType("uint256")
	typeUint32    = mustType("uint32")
	typeUint32x10 = mustType("uint32[10]")

	argsInitialParent = abi.Arguments{
		{Type: typeBytes}, {Type: typeUint32}, {Type: typeUint256},
		{Type: typeUint32}, {Type: typeUint32x10},
	}
	argsSubmitHeaders     = abi.Arguments{{Type: typeBytes}, {Type: typeBytes}}
	argsSubmitForkHeaders = abi.Arguments{{Type: typeUint256}, {Type: typeBytes}, {Type: typeBytes}}
	argsUint256           = abi.Arguments{{Type: typeUint256}}
	argsBytes             = abi.Arguments{{Type: typeBytes}}
	argsForkEventData     = abi.Arguments{{Type: typeUint256}, {Type: typeBytes}}
)

func packCall(sel []byte, args abi.Arguments, values ...interface{}) ([]byte, error) {
	packed, err := args.Pack(values...)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, sel...), packed...), nil
}
