package btcrelay

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	logger "github.com/sirupsen/logrus"

	"github.com/lnswap-io/swapclient-go/evmclient"
	"github.com/lnswap-io/swapclient-go/headers"
	"github.com/lnswap-io/swapclient-go/swaperrs"
)

// Client reads and feeds the BTC relay contract: tip state, header
// submissions and the stored-header log history.
type Client struct {
	evm *evmclient.Client
	cfg *Config
}

func NewClient(evm *evmclient.Client, cfg *Config) *Client {
	return &Client{evm: evm, cfg: cfg}
}

func (c *Client) ContractAddress() ethcommon.Address {
	return c.cfg.ContractAddress
}

func (c *Client) call(ctx context.Context, data []byte) ([]byte, error) {
	return c.evm.Backend().CallContract(ctx, ethereum.CallMsg{
		To:   &c.cfg.ContractAddress,
		Data: data,
	}, nil)
}

// GetTip unpacks the relay tip slot: block height in the top 32 bits,
// cumulative chain work in the lower 224. Returns nil before the initial
// header is stored.
func (c *Client) GetTip(ctx context.Context) (*Tip, error) {
	raw, err := c.call(ctx, selGetTipData)
	if err != nil {
		return nil, err
	}

	packed := new(uint256.Int).SetBytes(raw)
	height := uint32(new(uint256.Int).Rsh(packed, 224).Uint64())
	if height == 0 {
		return nil, nil
	}

	workMask := new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), 224), 1)
	work := new(uint256.Int).And(packed, workMask)

	commit, err := c.GetCommitmentAt(ctx, height)
	if err != nil {
		return nil, err
	}

	return &Tip{
		CommitHash: commit,
		ChainWork:  work,
		Height:     height,
	}, nil
}

// GetCommitmentAt reads the keccak commitment the relay stores at a height.
func (c *Client) GetCommitmentAt(ctx context.Context, height uint32) (ethcommon.Hash, error) {
	data, err := packCall(selGetCommitHash, argsUint256, new(big.Int).SetUint64(uint64(height)))
	if err != nil {
		return ethcommon.Hash{}, err
	}
	raw, err := c.call(ctx, data)
	if err != nil {
		return ethcommon.Hash{}, err
	}
	return ethcommon.BytesToHash(raw), nil
}

// GetForkCounter reads the contract's fork id counter.
func (c *Client) GetForkCounter(ctx context.Context) (uint64, error) {
	raw, err := c.call(ctx, selForkCounter)
	if err != nil {
		return 0, err
	}
	return new(uint256.Int).SetBytes(raw).Uint64(), nil
}

// SaveInitialHeader prepares the bootstrap submission seeding the relay with
// a trusted stored header.
func (c *Client) SaveInitialHeader(
	raw *headers.Header,
	height uint32,
	chainWork *uint256.Int,
	epochStart uint32,
	prevTimestamps []uint32,
) (*evmclient.UnsignedTx, error) {
	if len(prevTimestamps) != headers.PrevTimestampCount {
		return nil, swaperrs.InvalidArgument("exactly 10 previous block timestamps required")
	}

	var ring [headers.PrevTimestampCount]uint32
	copy(ring[:], prevTimestamps)

	data, err := packCall(selSetInitialParent, argsInitialParent,
		raw.Serialize(), height, chainWork.ToBig(), epochStart, ring)
	if err != nil {
		return nil, err
	}

	return &evmclient.UnsignedTx{
		To:       &c.cfg.ContractAddress,
		Data:     data,
		GasLimit: GasInitial,
	}, nil
}

// SaveMainHeaders prepares a main-chain extension. The stored-header chain is
// precomputed off-chain so the caller can consult the new stored headers
// without waiting for a round trip.
func (c *Client) SaveMainHeaders(raws []*headers.Header, prevStored *headers.StoredHeader) (*HeaderSubmission, error) {
	if len(raws) == 0 {
		return nil, swaperrs.InvalidArgument("no headers to submit")
	}

	computed := headers.ComputeNextChain(prevStored, raws)

	data, err := packCall(selSubmitMainChainHeaders, argsSubmitHeaders,
		prevStored.Serialize(), concatRawHeaders(raws))
	if err != nil {
		return nil, err
	}

	return &HeaderSubmission{
		ForkID:     0,
		LastStored: computed[len(computed)-1],
		Tx: &evmclient.UnsignedTx{
			To:       &c.cfg.ContractAddress,
			Data:     data,
			GasLimit: GasMainBase + GasMainPerHeader*uint64(len(raws)),
		},
		Computed: computed,
	}, nil
}

// SaveNewForkHeaders prepares the first submission of a competing tip
// extension. The fork id is read from the contract's counter; if the
// precomputed tail already outworks the tip, the returned fork id is 0
// because the contract promotes the fork to main chain on submission.
func (c *Client) SaveNewForkHeaders(
	ctx context.Context,
	raws []*headers.Header,
	prevStored *headers.StoredHeader,
	tipWork *uint256.Int,
) (*HeaderSubmission, error) {
	if len(raws) == 0 {
		return nil, swaperrs.InvalidArgument("no headers to submit")
	}

	forkID, err := c.GetForkCounter(ctx)
	if err != nil {
		return nil, err
	}

	computed := headers.ComputeNextChain(prevStored, raws)
	last := computed[len(computed)-1]
	if last.ChainWork.Gt(tipWork) {
		forkID = 0
	}

	data, err := packCall(selSubmitNewForkChainHeaders, argsSubmitHeaders,
		prevStored.Serialize(), concatRawHeaders(raws))
	if err != nil {
		return nil, err
	}

	return &HeaderSubmission{
		ForkID:     forkID,
		LastStored: last,
		Tx: &evmclient.UnsignedTx{
			To:       &c.cfg.ContractAddress,
			Data:     data,
			GasLimit: GasForkBase + GasForkPerHeader*uint64(len(raws)),
		},
		Computed: computed,
	}, nil
}

// SaveForkHeaders extends an existing fork. The same promotion rule as
// SaveNewForkHeaders applies once the fork outworks the tip.
func (c *Client) SaveForkHeaders(
	raws []*headers.Header,
	prevStored *headers.StoredHeader,
	forkID uint64,
	tipWork *uint256.Int,
) (*HeaderSubmission, error) {
	if len(raws) == 0 {
		return nil, swaperrs.InvalidArgument("no headers to submit")
	}

	computed := headers.ComputeNextChain(prevStored, raws)
	last := computed[len(computed)-1]

	resultForkID := forkID
	if last.ChainWork.Gt(tipWork) {
		resultForkID = 0
	}

	data, err := packCall(selSubmitForkChainHeaders, argsSubmitForkHeaders,
		new(big.Int).SetUint64(forkID), prevStored.Serialize(), concatRawHeaders(raws))
	if err != nil {
		return nil, err
	}

	logger.WithFields(logger.Fields{
		"forkId":   forkID,
		"promoted": resultForkID == 0 && forkID != 0,
		"headers":  len(raws),
	}).Debug("prepared fork header submission")

	return &HeaderSubmission{
		ForkID:     resultForkID,
		LastStored: last,
		Tx: &evmclient.UnsignedTx{
			To:       &c.cfg.ContractAddress,
			Data:     data,
			GasLimit: GasForkBase + GasForkPerHeader*uint64(len(raws)),
		},
		Computed: computed,
	}, nil
}

func concatRawHeaders(raws []*headers.Header) []byte {
	out := make([]byte, 0, len(raws)*headers.RawHeaderSize)
	for _, raw := range raws {
		out = append(out, raw.Serialize()...)
	}
	return out
}
