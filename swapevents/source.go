package swapevents

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	logger "github.com/sirupsen/logrus"

	"github.com/lnswap-io/swapclient-go/evmclient"
	"github.com/lnswap-io/swapclient-go/swapcontract"
	"github.com/lnswap-io/swapclient-go/swapdata"
)

var errUnknownTopic = errors.New("unknown swap contract event topic")

// Event topics of the swap contract. The payment hash is the indexed topic
// in all three.
var (
	InitializeTopic = crypto.Keccak256Hash([]byte("Initialize(bytes32,uint256,bytes32,uint256)"))
	ClaimTopic      = crypto.Keccak256Hash([]byte("Claim(bytes32,uint256,bytes32)"))
	RefundTopic     = crypto.Keccak256Hash([]byte("Refund(bytes32,uint256)"))
)

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

var (
	typeUint256 = mustType("uint256")
	typeBytes32 = mustType("bytes32")

	argsInitializeData = abi.Arguments{{Type: typeUint256}, {Type: typeBytes32}, {Type: typeUint256}}
	argsClaimData      = abi.Arguments{{Type: typeUint256}, {Type: typeBytes32}}
	argsRefundData     = abi.Arguments{{Type: typeUint256}}
)

const DefaultPollInterval = 5 * time.Second

type Config struct {
	ContractAddress ethcommon.Address
	PollInterval    time.Duration
	// StartBlock is the first L1 block the source scans on startup. Zero
	// means "current head" (no replay).
	StartBlock uint64
}

func (c *Config) pollInterval() time.Duration {
	if c.PollInterval == 0 {
		return DefaultPollInterval
	}
	return c.PollInterval
}

// Listener receives each decoded event batch. Delivery is sequential: the
// source waits for the callback before dispatching the next batch.
type Listener func(ctx context.Context, events []Event) error

type Registration struct {
	fn Listener
}

// Source polls the swap contract's log stream and fans decoded events out to
// registered listeners.
type Source struct {
	evm *evmclient.Client
	cfg *Config

	mu            sync.Mutex
	listeners     []*Registration
	lastProcessed uint64
}

func NewSource(evm *evmclient.Client, cfg *Config) *Source {
	return &Source{
		evm: evm,
		cfg: cfg,
	}
}

// RegisterListener adds a listener; the returned handle unregisters it.
// Registration is synchronous with respect to dispatch.
func (s *Source) RegisterListener(fn Listener) *Registration {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg := &Registration{fn: fn}
	s.listeners = append(s.listeners, reg)
	return reg
}

func (s *Source) UnregisterListener(reg *Registration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.listeners {
		if r == reg {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

// Start runs the poll loop until ctx is done.
func (s *Source) Start(ctx context.Context) error {
	logger.Debug("starting swap event source")
	defer logger.Debug("stopping swap event source")

	if s.cfg.StartBlock != 0 {
		s.lastProcessed = s.cfg.StartBlock - 1
	} else {
		head, err := s.evm.Backend().BlockNumber(ctx)
		if err != nil {
			return err
		}
		s.lastProcessed = head
	}

	ticker := time.NewTicker(s.cfg.pollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.poll(ctx); err != nil {
				logger.WithFields(logger.Fields{"err": err}).Error("event poll failed")
			}
		}
	}
}

func (s *Source) poll(ctx context.Context) error {
	head, err := s.evm.Backend().BlockNumber(ctx)
	if err != nil {
		return err
	}
	if head <= s.lastProcessed {
		return nil
	}

	logs, err := s.evm.Backend().FilterLogs(ctx, ethereum.FilterQuery{
		Addresses: []ethcommon.Address{s.cfg.ContractAddress},
		Topics:    [][]ethcommon.Hash{{InitializeTopic, ClaimTopic, RefundTopic}},
		FromBlock: new(big.Int).SetUint64(s.lastProcessed + 1),
		ToBlock:   new(big.Int).SetUint64(head),
	})
	if err != nil {
		return err
	}
	s.lastProcessed = head

	if len(logs) == 0 {
		return nil
	}

	events := make([]Event, 0, len(logs))
	for i := range logs {
		ev, err := s.DecodeLog(&logs[i])
		if err != nil {
			logger.WithFields(logger.Fields{
				"tx":  logs[i].TxHash.Hex(),
				"err": err,
			}).Warn("undecodable swap log, skipping")
			continue
		}
		events = append(events, ev)
	}
	if len(events) == 0 {
		return nil
	}

	s.Dispatch(ctx, events)
	return nil
}

// Dispatch delivers a batch to every listener, sequentially.
func (s *Source) Dispatch(ctx context.Context, events []Event) {
	s.mu.Lock()
	listeners := make([]*Registration, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, reg := range listeners {
		if err := reg.fn(ctx, events); err != nil {
			logger.WithFields(logger.Fields{"err": err}).Error("event listener failed")
		}
	}
}

// DecodeLog turns a raw contract log into a tagged event.
func (s *Source) DecodeLog(log *types.Log) (Event, error) {
	paymentHash := log.Topics[1]

	switch log.Topics[0] {
	case InitializeTopic:
		vals, err := argsInitializeData.Unpack(log.Data)
		if err != nil {
			return nil, err
		}
		txHash := log.TxHash
		return &InitializeEvent{
			Hash:    paymentHash,
			Seq:     vals[0].(*big.Int),
			TxoHash: ethcommon.Hash(vals[1].([32]byte)),
			Index:   vals[2].(*big.Int),
			FetchSwapData: func(ctx context.Context) (*swapdata.SwapData, error) {
				tx, _, err := s.evm.Backend().TransactionByHash(ctx, txHash)
				if err != nil {
					return nil, err
				}
				return swapcontract.ParseInitCalldata(tx.Data())
			},
		}, nil

	case ClaimTopic:
		vals, err := argsClaimData.Unpack(log.Data)
		if err != nil {
			return nil, err
		}
		return &ClaimEvent{
			Hash:   paymentHash,
			Seq:    vals[0].(*big.Int),
			Secret: vals[1].([32]byte),
		}, nil

	case RefundTopic:
		vals, err := argsRefundData.Unpack(log.Data)
		if err != nil {
			return nil, err
		}
		return &RefundEvent{
			Hash: paymentHash,
			Seq:  vals[0].(*big.Int),
		}, nil
	}

	return nil, errUnknownTopic
}
