package swapengine

import (
	"context"
	"errors"
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/lnswap-io/swapclient-go/auth"
	"github.com/lnswap-io/swapclient-go/evmclient"
	"github.com/lnswap-io/swapclient-go/intermediary"
	"github.com/lnswap-io/swapclient-go/storage"
	"github.com/lnswap-io/swapclient-go/swapcontract"
	"github.com/lnswap-io/swapclient-go/swapevents"
	"github.com/lnswap-io/swapclient-go/swaperrs"
)

const DefaultMaxConcurrentRequests = 8

// PaymentAuthorizer polls the intermediary for the payment state of an
// invoice. *intermediary.Client satisfies it.
type PaymentAuthorizer interface {
	GetPaymentAuthorization(ctx context.Context, req *intermediary.PaymentAuthRequest) (*intermediary.PaymentAuthResponse, error)
}

// ConfirmationSource reports bitcoin tx confirmations. *btcrpc.Client
// satisfies it.
type ConfirmationSource interface {
	TxConfirmations(ctx context.Context, txID string) (uint64, error)
}

// StateChange is emitted to listeners after a transition has been persisted.
type StateChange struct {
	Swap *Swap
	Old  State
	New  State
}

type StateListener func(*StateChange)

type Config struct {
	MaxConcurrentRequests int
}

func (c *Config) maxConcurrent() int {
	if c.MaxConcurrentRequests == 0 {
		return DefaultMaxConcurrentRequests
	}
	return c.MaxConcurrentRequests
}

// Params wires the engine's collaborators.
type Params struct {
	Store         storage.Store
	Contract      *swapcontract.Client
	Source        *swapevents.Source
	EVM           *evmclient.Client
	Signer        evmclient.Signer
	Authorizer    PaymentAuthorizer
	Verifier      *auth.Verifier
	Confirmations ConfirmationSource
	Config        *Config
}

// Engine drives the per-swap state machine: startup reconciliation against
// the chain, event-driven transitions afterwards, and the user operations.
// Transitions for the same payment hash are serialized; state is persisted
// before any listener sees it.
type Engine struct {
	store         storage.Store
	contract      *swapcontract.Client
	source        *swapevents.Source
	evm           *evmclient.Client
	signer        evmclient.Signer
	authorizer    PaymentAuthorizer
	verifier      *auth.Verifier
	confirmations ConfirmationSource
	cfg           *Config

	mu        sync.Mutex
	swaps     map[ethcommon.Hash]*Swap
	keyLocks  map[ethcommon.Hash]*sync.Mutex
	listeners []StateListener
	queue     []swapevents.Event
	started   bool

	// now is swappable in tests
	now func() time.Time
}

// NewEngine registers with the event source immediately so that events
// arriving before Start completes are queued rather than lost.
func NewEngine(p *Params) *Engine {
	cfg := p.Config
	if cfg == nil {
		cfg = &Config{}
	}

	e := &Engine{
		store:         p.Store,
		contract:      p.Contract,
		source:        p.Source,
		evm:           p.EVM,
		signer:        p.Signer,
		authorizer:    p.Authorizer,
		verifier:      p.Verifier,
		confirmations: p.Confirmations,
		cfg:           cfg,
		swaps:         make(map[ethcommon.Hash]*Swap),
		keyLocks:      make(map[ethcommon.Hash]*sync.Mutex),
		now:           time.Now,
	}
	if p.Source != nil {
		p.Source.RegisterListener(e.onEvents)
	}
	return e
}

// Start loads persisted swaps, reconciles each against the chain with a
// bounded fan-out, then drains the events queued during reconciliation. Only
// after the drain does the listener dispatch live events directly, so the
// startup polls always see a chain view at least as fresh as the earliest
// replayed event.
func (e *Engine) Start(ctx context.Context) error {
	records, err := e.store.LoadAll()
	if err != nil {
		return err
	}

	e.mu.Lock()
	for hash, raw := range records {
		s, err := FromSerializedSwap(raw)
		if err != nil {
			logger.WithFields(logger.Fields{
				"paymentHash": hash.Hex(),
				"err":         err,
			}).Error("undecodable swap record, skipping")
			continue
		}
		e.swaps[hash] = s
	}
	swaps := make([]*Swap, 0, len(e.swaps))
	for _, s := range e.swaps {
		swaps = append(swaps, s)
	}
	e.mu.Unlock()

	logger.WithFields(logger.Fields{"count": len(swaps)}).Info("reconciling swaps")

	max := int64(e.cfg.maxConcurrent())
	sem := semaphore.NewWeighted(max)
	for _, s := range swaps {
		if err := sem.Acquire(ctx, 1); err != nil {
			return swaperrs.ErrCancelled
		}
		go func(s *Swap) {
			defer sem.Release(1)
			e.reconcileSwap(ctx, s)
		}(s)
	}
	if err := sem.Acquire(ctx, max); err != nil {
		return swaperrs.ErrCancelled
	}
	sem.Release(max)

	// drain the initial queue in arrival order, then accept live events
	for {
		e.mu.Lock()
		if len(e.queue) == 0 {
			e.started = true
			e.mu.Unlock()
			return nil
		}
		batch := e.queue
		e.queue = nil
		e.mu.Unlock()

		for _, ev := range batch {
			e.processEvent(ctx, ev)
		}
	}
}

func (e *Engine) onEvents(ctx context.Context, events []swapevents.Event) error {
	e.mu.Lock()
	if !e.started {
		e.queue = append(e.queue, events...)
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	for _, ev := range events {
		e.processEvent(ctx, ev)
	}
	return nil
}

// AddListener registers a state-change listener. Exactly one emission
// happens per transition, after persistence.
func (e *Engine) AddListener(fn StateListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// GetSwap returns the in-memory swap for a payment hash, nil if unknown.
func (e *Engine) GetSwap(paymentHash ethcommon.Hash) *Swap {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.swaps[paymentHash]
}

// Swaps snapshots all tracked swaps.
func (e *Engine) Swaps() []*Swap {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*Swap, 0, len(e.swaps))
	for _, s := range e.swaps {
		out = append(out, s)
	}
	return out
}

// lockKey serializes transitions per payment hash.
func (e *Engine) lockKey(paymentHash ethcommon.Hash) func() {
	e.mu.Lock()
	l, ok := e.keyLocks[paymentHash]
	if !ok {
		l = &sync.Mutex{}
		e.keyLocks[paymentHash] = l
	}
	e.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (e *Engine) persist(s *Swap) error {
	raw, err := s.Serialize()
	if err != nil {
		return err
	}
	return e.store.Save(s.PaymentHash, raw)
}

// transition persists the new state and then emits it. Callers hold the key
// lock.
func (e *Engine) transition(s *Swap, newState State) {
	old := s.State
	if old == newState {
		return
	}
	s.State = newState

	if err := e.persist(s); err != nil {
		logger.WithFields(logger.Fields{
			"paymentHash": s.PaymentHash.Hex(),
			"err":         err,
		}).Error("failed to persist swap")
	}

	logger.WithFields(logger.Fields{
		"paymentHash": s.PaymentHash.Hex(),
		"from":        old.String(),
		"to":          newState.String(),
	}).Info("swap transition")

	e.mu.Lock()
	listeners := make([]StateListener, len(e.listeners))
	copy(listeners, e.listeners)
	e.mu.Unlock()

	change := &StateChange{Swap: s, Old: old, New: newState}
	for _, fn := range listeners {
		fn(change)
	}
}

// reconcileSwap runs the startup poll for one swap.
func (e *Engine) reconcileSwap(ctx context.Context, s *Swap) {
	unlock := e.lockKey(s.PaymentHash)
	defer unlock()

	switch s.State {
	case StateCreated:
		e.reconcileCreated(ctx, s)
	case StatePaid:
		e.reconcilePaid(ctx, s)
	case StateCommitted:
		e.reconcileCommitted(ctx, s)
	}
}

func (e *Engine) reconcileCreated(ctx context.Context, s *Swap) {
	if uint64(e.now().Unix()) > s.Expiry {
		e.transition(s, StateExpired)
		return
	}

	resp, err := e.authorizer.GetPaymentAuthorization(ctx, &intermediary.PaymentAuthRequest{
		URL:            s.URL,
		PaymentRequest: s.PaymentRequest,
	})
	if err != nil {
		if errors.Is(err, swaperrs.ErrPaymentAuth) {
			e.transition(s, StateExpired)
			return
		}
		logger.WithFields(logger.Fields{
			"paymentHash": s.PaymentHash.Hex(),
			"err":         err,
		}).Warn("payment authorization poll failed")
		return
	}
	if resp == nil {
		// invoice still unpaid
		return
	}

	s.Prefix = resp.Prefix
	s.Timeout = resp.Timeout
	s.Signature = resp.Signature
	s.Data = resp.Data
	s.Expiry = resp.Expiry
	e.transition(s, StatePaid)
}

func (e *Engine) reconcilePaid(ctx context.Context, s *Swap) {
	status, err := e.contract.CommitStatusOf(ctx, s.Data, s.Data.Claimer)
	if err != nil {
		logger.WithFields(logger.Fields{
			"paymentHash": s.PaymentHash.Hex(),
			"err":         err,
		}).Warn("commit status read failed")
		return
	}

	switch status {
	case swapcontract.StatusPaid:
		e.transition(s, StateClaimed)
	case swapcontract.StatusExpired:
		e.transition(s, StateExpired)
	case swapcontract.StatusCommitted:
		e.transition(s, StateCommitted)
	default:
		// not on chain yet: the init authorization must still be usable
		err := e.verifier.VerifyInit(ctx, s.Data, s.Timeout, s.Signature)
		if errors.Is(err, swaperrs.ErrSignatureVerification) {
			e.transition(s, StateExpired)
		}
	}
}

func (e *Engine) reconcileCommitted(ctx context.Context, s *Swap) {
	status, err := e.contract.CommitStatusOf(ctx, s.Data, s.Data.Claimer)
	if err != nil {
		return
	}

	switch status {
	case swapcontract.StatusPaid:
		e.transition(s, StateClaimed)
	case swapcontract.StatusNotCommitted, swapcontract.StatusExpired:
		e.transition(s, StateFailed)
	}
}

// processEvent applies one decoded contract event to the swap it references.
func (e *Engine) processEvent(ctx context.Context, ev swapevents.Event) {
	e.mu.Lock()
	s := e.swaps[ev.PaymentHash()]
	e.mu.Unlock()
	if s == nil {
		return
	}

	unlock := e.lockKey(ev.PaymentHash())
	defer unlock()

	switch ev.Kind() {
	case swapevents.KindInitialize:
		if s.State != StatePaid {
			return
		}
		init := ev.(*swapevents.InitializeEvent)

		data, err := init.FetchSwapData(ctx)
		if err != nil {
			logger.WithFields(logger.Fields{
				"paymentHash": s.PaymentHash.Hex(),
				"err":         err,
			}).Warn("failed to fetch swap data for initialize event")
			return
		}
		if s.Data != nil && !s.Data.Equals(data) {
			logger.WithFields(logger.Fields{
				"paymentHash": s.PaymentHash.Hex(),
			}).Warn("initialize event data differs from persisted swap, dropping event (possible reorg)")
			return
		}
		if s.Data == nil {
			s.Data = data
		}
		e.transition(s, StateCommitted)

	case swapevents.KindClaim:
		if s.State != StatePaid && s.State != StateCommitted {
			return
		}
		claim := ev.(*swapevents.ClaimEvent)
		secret := claim.Secret
		s.Secret = &secret
		e.transition(s, StateClaimed)

	case swapevents.KindRefund:
		if s.State != StatePaid && s.State != StateCommitted {
			return
		}
		e.transition(s, StateFailed)
	}
}

// SetClock overrides the engine's clock, for tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}
