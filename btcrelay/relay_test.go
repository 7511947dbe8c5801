package btcrelay

import (
	"bytes"
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lnswap-io/swapclient-go/common"
	"github.com/lnswap-io/swapclient-go/evmclient"
	"github.com/lnswap-io/swapclient-go/headers"
	"github.com/lnswap-io/swapclient-go/swaperrs"
)

var relayAddr = ethcommon.HexToAddress("0x00000000000000000000000000000000000b7c01")

func randChainHash() chainhash.Hash {
	b := common.RandBytes32()
	h, _ := chainhash.NewHash(b[:])
	return *h
}

func makeStored(height uint32, work uint64) *headers.StoredHeader {
	hdr := headers.NewHeader(0x20000000, randChainHash(), randChainHash(), 1_700_000_000, 0x17053894, height)
	return &headers.StoredHeader{
		Header:             *hdr,
		ChainWork:          uint256.NewInt(work),
		LastDiffAdjustment: 1_699_999_000,
		BlockHeight:        height,
	}
}

func storeHeaderLog(t *testing.T, stored *headers.StoredHeader, blockNumber uint64) types.Log {
	data, err := argsBytes.Pack(stored.Serialize())
	require.NoError(t, err)

	blockHash := stored.Header.Hash()
	return types.Log{
		Address:     relayAddr,
		BlockNumber: blockNumber,
		Topics: []ethcommon.Hash{
			StoreHeaderTopic,
			stored.Hash(),
			ethcommon.BytesToHash(blockHash[:]),
		},
		Data: data,
	}
}

// relayCallFn dispatches eth_call by selector: tip slot, per-height
// commitments and the fork counter.
func relayCallFn(tipHeight uint32, tipWork uint64, commitments map[uint32]ethcommon.Hash, forkCounter uint64) func(ethereum.CallMsg) ([]byte, error) {
	return func(call ethereum.CallMsg) ([]byte, error) {
		switch {
		case bytes.Equal(call.Data[:4], selGetTipData):
			packed := new(uint256.Int).Lsh(uint256.NewInt(uint64(tipHeight)), 224)
			packed.Or(packed, uint256.NewInt(tipWork))
			b := packed.Bytes32()
			return b[:], nil
		case bytes.Equal(call.Data[:4], selGetCommitHash):
			height := uint32(new(big.Int).SetBytes(call.Data[4:36]).Uint64())
			commit := commitments[height]
			return commit[:], nil
		case bytes.Equal(call.Data[:4], selForkCounter):
			b := uint256.NewInt(forkCounter).Bytes32()
			return b[:], nil
		}
		return nil, nil
	}
}

func newTestClient(backend *evmclient.SimBackend) *Client {
	return NewClient(evmclient.NewClient(backend), &Config{ContractAddress: relayAddr})
}

func TestGetTip(t *testing.T) {
	backend := evmclient.NewSimBackend()
	stored := makeStored(860_000, 42_000)
	backend.CallFn = relayCallFn(860_000, 42_000, map[uint32]ethcommon.Hash{860_000: stored.Hash()}, 0)

	client := newTestClient(backend)

	tip, err := client.GetTip(context.Background())
	require.NoError(t, err)
	require.NotNil(t, tip)
	assert.Equal(t, uint32(860_000), tip.Height)
	assert.Equal(t, uint256.NewInt(42_000), tip.ChainWork)
	assert.Equal(t, stored.Hash(), tip.CommitHash)
}

func TestGetTipEmptyRelay(t *testing.T) {
	backend := evmclient.NewSimBackend()
	backend.CallFn = relayCallFn(0, 0, nil, 0)

	client := newTestClient(backend)

	tip, err := client.GetTip(context.Background())
	require.NoError(t, err)
	assert.Nil(t, tip)
}

// Three StoreHeader logs sit in the latest window; the scan must return the
// stored header of the queried block hash after verifying its commitment,
// all inside a single log window.
func TestRetrieveLogHit(t *testing.T) {
	backend := evmclient.NewSimBackend()
	backend.Block = 10_000

	s1 := makeStored(859_998, 100)
	s2 := makeStored(859_999, 200)
	s3 := makeStored(860_000, 300)
	backend.Logs = []types.Log{
		storeHeaderLog(t, s1, 9_000),
		storeHeaderLog(t, s2, 9_100),
		storeHeaderLog(t, s3, 9_200),
	}
	backend.CallFn = relayCallFn(860_000, 300, map[uint32]ethcommon.Hash{
		859_998: s1.Hash(),
		859_999: s2.Hash(),
		860_000: s3.Hash(),
	}, 0)

	client := newTestClient(backend)

	target := s3.Header.Hash()
	got, err := client.RetrieveLogAndBlockheight(context.Background(), &target, 860_000, nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, s3.Hash(), got.Stored.Hash())
	assert.Equal(t, uint32(860_000), got.TipHeight)
	assert.Len(t, backend.FilterQueries, 1)
}

func TestRetrieveLogRelayBehind(t *testing.T) {
	backend := evmclient.NewSimBackend()
	s := makeStored(860_000, 300)
	backend.CallFn = relayCallFn(860_000, 300, map[uint32]ethcommon.Hash{860_000: s.Hash()}, 0)

	client := newTestClient(backend)

	target := s.Header.Hash()
	required := uint32(860_010)
	got, err := client.RetrieveLogAndBlockheight(context.Background(), &target, 860_000, &required)
	require.NoError(t, err)
	assert.Nil(t, got)
	// short-circuited before any log query
	assert.Empty(t, backend.FilterQueries)
}

// The match sits four windows back: the scan pages three empty windows
// (sleeping 500 ms after each) before hitting it.
func TestRetrieveLogPagination(t *testing.T) {
	backend := evmclient.NewSimBackend()
	backend.Block = 9_999

	s := makeStored(860_000, 300)
	backend.Logs = []types.Log{storeHeaderLog(t, s, 100)}
	backend.CallFn = relayCallFn(860_000, 300, map[uint32]ethcommon.Hash{860_000: s.Hash()}, 0)

	client := newTestClient(backend)

	start := time.Now()
	target := s.Header.Hash()
	got, err := client.RetrieveLogAndBlockheight(context.Background(), &target, 860_000, nil)
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, s.Hash(), got.Stored.Hash())
	assert.Len(t, backend.FilterQueries, 4)
	assert.GreaterOrEqual(t, elapsed, 3*ScanSleep)
}

func TestRetrieveLogCancellation(t *testing.T) {
	backend := evmclient.NewSimBackend()
	backend.Block = 100_000

	s := makeStored(860_000, 300)
	backend.CallFn = relayCallFn(860_000, 300, map[uint32]ethcommon.Hash{860_000: s.Hash()}, 0)

	client := newTestClient(backend)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	target := s.Header.Hash()
	_, err := client.RetrieveLogAndBlockheight(ctx, &target, 860_000, nil)
	assert.ErrorIs(t, err, swaperrs.ErrCancelled)
}

func TestRetrieveLogByCommitHashShortCircuit(t *testing.T) {
	backend := evmclient.NewSimBackend()
	s := makeStored(860_000, 300)
	// commitment at the height differs from the queried hash
	backend.CallFn = relayCallFn(860_000, 300, map[uint32]ethcommon.Hash{860_000: s.Hash()}, 0)

	client := newTestClient(backend)

	other := ethcommon.HexToHash("0xdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef")
	target := s.Header.Hash()
	got, err := client.RetrieveLogByCommitHash(context.Background(), other, &target, 860_000)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, backend.FilterQueries)
}

type mainChainStub struct {
	inMain map[chainhash.Hash]bool
	calls  int
}

func (m *mainChainStub) IsInMainChain(ctx context.Context, blockHash *chainhash.Hash) (bool, error) {
	m.calls++
	return m.inMain[*blockHash], nil
}

// The newest log is off the bitcoin main chain (orphaned); the scan must
// fall back to the older one that both bitcoind and the relay agree on.
func TestRetrieveLatestKnownBlockLog(t *testing.T) {
	backend := evmclient.NewSimBackend()
	backend.Block = 10_000

	good := makeStored(859_999, 200)
	orphan := makeStored(860_000, 300)
	backend.Logs = []types.Log{
		storeHeaderLog(t, good, 9_000),
		storeHeaderLog(t, orphan, 9_500),
	}
	backend.CallFn = relayCallFn(860_000, 300, map[uint32]ethcommon.Hash{
		859_999: good.Hash(),
		860_000: orphan.Hash(),
	}, 0)

	btc := &mainChainStub{inMain: map[chainhash.Hash]bool{
		good.Header.Hash(): true,
	}}

	client := newTestClient(backend)

	got, err := client.RetrieveLatestKnownBlockLog(context.Background(), btc)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, good.Hash(), got.Stored.Hash())
	assert.Equal(t, 2, btc.calls)
}

func TestEstimateSynchronizeFee(t *testing.T) {
	backend := evmclient.NewSimBackend()
	s := makeStored(860_000, 300)
	backend.CallFn = relayCallFn(860_000, 300, map[uint32]ethcommon.Hash{860_000: s.Hash()}, 0)
	backend.GasPrice = big.NewInt(10)

	client := newTestClient(backend)

	// already caught up
	fee, err := client.EstimateSynchronizeFee(context.Background(), 860_000)
	require.NoError(t, err)
	assert.Zero(t, fee.Sign())

	// 10 headers behind, legacy gas price
	fee, err = client.EstimateSynchronizeFee(context.Background(), 860_010)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(10*GasPerBlockHeader*10), fee)

	// EIP-1559 base fee takes precedence
	backend.BaseFee = big.NewInt(7)
	fee, err = client.EstimateSynchronizeFee(context.Background(), 860_010)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(10*GasPerBlockHeader*7), fee)
}

func TestSaveInitialHeaderValidation(t *testing.T) {
	backend := evmclient.NewSimBackend()
	client := newTestClient(backend)

	s := makeStored(860_000, 300)
	_, err := client.SaveInitialHeader(&s.Header, 860_000, s.ChainWork, 1_699_999_000, make([]uint32, 9))
	assert.ErrorIs(t, err, swaperrs.ErrInvalidArgument)

	tx, err := client.SaveInitialHeader(&s.Header, 860_000, s.ChainWork, 1_699_999_000, make([]uint32, 10))
	require.NoError(t, err)
	assert.Equal(t, uint64(GasInitial), tx.GasLimit)
	assert.Equal(t, relayAddr, *tx.To)
}

func TestSaveMainHeaders(t *testing.T) {
	backend := evmclient.NewSimBackend()
	client := newTestClient(backend)

	prev := makeStored(860_000, 300)
	raws := []*headers.Header{
		headers.NewHeader(0x20000000, prev.Header.Hash(), randChainHash(), 1_700_000_600, 0x17053894, 1),
		headers.NewHeader(0x20000000, randChainHash(), randChainHash(), 1_700_001_200, 0x17053894, 2),
	}

	sub, err := client.SaveMainHeaders(raws, prev)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), sub.ForkID)
	assert.Len(t, sub.Computed, 2)
	assert.Equal(t, uint32(860_002), sub.LastStored.BlockHeight)
	assert.Equal(t, uint64(GasMainBase+2*GasMainPerHeader), sub.Tx.GasLimit)
}

// A fork whose precomputed tail outworks the tip is promoted: the returned
// fork id flips to zero while the calldata still targets the fork entry
// point.
func TestSaveForkHeadersPromotion(t *testing.T) {
	backend := evmclient.NewSimBackend()
	s := makeStored(860_000, 300)
	backend.CallFn = relayCallFn(860_000, 300, map[uint32]ethcommon.Hash{860_000: s.Hash()}, 7)

	client := newTestClient(backend)

	prev := makeStored(859_990, 100)
	raws := []*headers.Header{
		headers.NewHeader(0x20000000, prev.Header.Hash(), randChainHash(), 1_700_000_600, 0x17053894, 1),
	}

	// tip work far above the fork: keeps its id
	sub, err := client.SaveNewForkHeaders(context.Background(), raws, prev, uint256.NewInt(1).Lsh(uint256.NewInt(1), 100))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), sub.ForkID)

	// tip work below the fork tail: promoted to main
	sub, err = client.SaveNewForkHeaders(context.Background(), raws, prev, uint256.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), sub.ForkID)

	sub, err = client.SaveForkHeaders(raws, prev, 7, uint256.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), sub.ForkID)
	assert.True(t, bytes.Equal(sub.Tx.Data[:4], selSubmitForkChainHeaders))
}
