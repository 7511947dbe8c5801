package swapcontract

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/lnswap-io/swapclient-go/btcrelay"
	"github.com/lnswap-io/swapclient-go/common"
	"github.com/lnswap-io/swapclient-go/evmclient"
	"github.com/lnswap-io/swapclient-go/headers"
)

var relayAddr = ethcommon.HexToAddress("0x00000000000000000000000000000000000b7c01")

func randChainHash() chainhash.Hash {
	b := common.RandBytes32()
	h, _ := chainhash.NewHash(b[:])
	return *h
}

func storedAt(height uint32) *headers.StoredHeader {
	hdr := headers.NewHeader(0x20000000, randChainHash(), randChainHash(), 1_700_000_000, 0x17053894, height)
	return &headers.StoredHeader{
		Header:             *hdr,
		ChainWork:          uint256.NewInt(1000),
		LastDiffAdjustment: 1_699_999_000,
		BlockHeight:        height,
	}
}

// relayAt builds a relay client whose contract reports the given tip height.
// The backing stub distinguishes the tip read (argless call) from the
// per-height commitment read (one uint256 argument) by calldata length.
func relayAt(tipHeight uint32) *btcrelay.Client {
	backend := evmclient.NewSimBackend()
	backend.CallFn = func(call ethereum.CallMsg) ([]byte, error) {
		if len(call.Data) == 4 {
			packed := new(uint256.Int).Lsh(uint256.NewInt(uint64(tipHeight)), 224)
			packed.Or(packed, uint256.NewInt(1000))
			b := packed.Bytes32()
			return b[:], nil
		}
		h := ethcommon.HexToHash("0x0101010101010101010101010101010101010101010101010101010101010101")
		return h[:], nil
	}
	return btcrelay.NewClient(evmclient.NewClient(backend), &btcrelay.Config{ContractAddress: relayAddr})
}
