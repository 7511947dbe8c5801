package swapevents

import (
	"context"
	"math/big"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lnswap-io/swapclient-go/evmclient"
	"github.com/lnswap-io/swapclient-go/swapcontract"
	"github.com/lnswap-io/swapclient-go/swapdata"
)

var (
	contractAddr = ethcommon.HexToAddress("0x00000000000000000000000000000000000c0de5")
	paymentHash  = ethcommon.HexToHash("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
)

func newSource(backend *evmclient.SimBackend) *Source {
	return NewSource(evmclient.NewClient(backend), &Config{
		ContractAddress: contractAddr,
		PollInterval:    10 * time.Millisecond,
		StartBlock:      1,
	})
}

func claimLog(t *testing.T, secret [32]byte, blockNumber uint64) types.Log {
	data, err := argsClaimData.Pack(big.NewInt(1), secret)
	require.NoError(t, err)
	return types.Log{
		Address:     contractAddr,
		BlockNumber: blockNumber,
		Topics:      []ethcommon.Hash{ClaimTopic, paymentHash},
		Data:        data,
	}
}

func refundLog(t *testing.T, blockNumber uint64) types.Log {
	data, err := argsRefundData.Pack(big.NewInt(2))
	require.NoError(t, err)
	return types.Log{
		Address:     contractAddr,
		BlockNumber: blockNumber,
		Topics:      []ethcommon.Hash{RefundTopic, paymentHash},
		Data:        data,
	}
}

func initializeLog(t *testing.T, txoHash ethcommon.Hash, index int64, txHash ethcommon.Hash, blockNumber uint64) types.Log {
	data, err := argsInitializeData.Pack(big.NewInt(0), [32]byte(txoHash), big.NewInt(index))
	require.NoError(t, err)
	return types.Log{
		Address:     contractAddr,
		BlockNumber: blockNumber,
		Topics:      []ethcommon.Hash{InitializeTopic, paymentHash},
		TxHash:      txHash,
		Data:        data,
	}
}

func TestDecodeClaimAndRefund(t *testing.T) {
	backend := evmclient.NewSimBackend()
	source := newSource(backend)

	var secret [32]byte
	secret[0] = 0x42

	log := claimLog(t, secret, 10)
	ev, err := source.DecodeLog(&log)
	require.NoError(t, err)
	claim, ok := ev.(*ClaimEvent)
	require.True(t, ok)
	assert.Equal(t, KindClaim, claim.Kind())
	assert.Equal(t, paymentHash, claim.PaymentHash())
	assert.Equal(t, secret, claim.Secret)

	log = refundLog(t, 11)
	ev, err = source.DecodeLog(&log)
	require.NoError(t, err)
	assert.Equal(t, KindRefund, ev.Kind())
	assert.Equal(t, big.NewInt(2), ev.Sequence())
}

// The initialize event's fetcher loads the swap record back out of the init
// transaction's calldata.
func TestInitializeEventFetcher(t *testing.T) {
	backend := evmclient.NewSimBackend()

	contract := swapcontract.NewClient(evmclient.NewClient(backend), nil, &swapcontract.Config{
		ContractAddress: contractAddr,
	})

	swap := swapdata.NewSwapData(
		ethcommon.HexToAddress("0x1111111111111111111111111111111111111111"),
		ethcommon.HexToAddress("0x2222222222222222222222222222222222222222"),
		ethcommon.Address{},
		big.NewInt(77_000),
		paymentHash,
		swapdata.PackData(1_700_005_000, 9, 2, swapdata.KindHTLC, false, true, 3),
		big.NewInt(0), big.NewInt(0), nil,
	)

	sig := make([]byte, 65)
	sig[64] = 27
	initTx, err := contract.Init(swap, sig, 1_700_001_000)
	require.NoError(t, err)

	ethTx := types.NewTx(&types.LegacyTx{To: initTx.To, Data: initTx.Data, Gas: initTx.GasLimit})
	backend.Txs[ethTx.Hash()] = ethTx

	source := newSource(backend)
	log := initializeLog(t, ethcommon.Hash{}, 3, ethTx.Hash(), 12)

	ev, err := source.DecodeLog(&log)
	require.NoError(t, err)
	init, ok := ev.(*InitializeEvent)
	require.True(t, ok)
	assert.Equal(t, big.NewInt(3), init.Index)

	fetched, err := init.FetchSwapData(context.Background())
	require.NoError(t, err)
	assert.True(t, swap.Equals(fetched))
}

func TestPollDispatch(t *testing.T) {
	backend := evmclient.NewSimBackend()
	backend.Block = 100

	var secret [32]byte
	secret[0] = 1
	backend.Logs = []types.Log{claimLog(t, secret, 50)}

	source := newSource(backend)

	got := make(chan []Event, 1)
	source.RegisterListener(func(ctx context.Context, events []Event) error {
		select {
		case got <- events:
		default:
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go source.Start(ctx)

	select {
	case events := <-got:
		require.Len(t, events, 1)
		assert.Equal(t, KindClaim, events[0].Kind())
	case <-time.After(2 * time.Second):
		t.Fatal("no events dispatched")
	}
}

func TestUnregisterListener(t *testing.T) {
	backend := evmclient.NewSimBackend()
	source := newSource(backend)

	calls := 0
	reg := source.RegisterListener(func(ctx context.Context, events []Event) error {
		calls++
		return nil
	})

	source.Dispatch(context.Background(), []Event{&RefundEvent{Hash: paymentHash, Seq: big.NewInt(1)}})
	assert.Equal(t, 1, calls)

	source.UnregisterListener(reg)
	source.Dispatch(context.Background(), []Event{&RefundEvent{Hash: paymentHash, Seq: big.NewInt(1)}})
	assert.Equal(t, 1, calls)
}
