package service

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"tradegate/internal/audit"
	"tradegate/internal/wallet"
	dErrors "tradegate/pkg/domain-errors"
)

// ErrAlreadyStarted is returned by Start while a subscription is active.
var ErrAlreadyStarted = errors.New("auth orchestrator already subscribed to wallet events")

var subscribedKinds = []wallet.EventKind{
	wallet.EventAccountsChanged,
	wallet.EventChainChanged,
	wallet.EventConnect,
	wallet.EventDisconnect,
}

type queued struct {
	event   wallet.Event
	barrier chan struct{}
}

// Subscription is the orchestrator's registration with the wallet provider.
// Events are queued and handled one at a time on a single goroutine.
type Subscription struct {
	provider wallet.Provider
	ids      map[wallet.EventKind]wallet.ListenerID

	mu      sync.Mutex
	pending []queued
	wake    chan struct{}

	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func newSubscription(provider wallet.Provider) *Subscription {
	return &Subscription{
		provider: provider,
		ids:      make(map[wallet.EventKind]wallet.ListenerID, len(subscribedKinds)),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Dispatch queues ev as if the provider had emitted it. Pollers use this to
// feed observed account changes through the same sequential loop.
//
// Dispatch never blocks: providers call it from their read loop, which may be
// the only thing able to answer a request the event loop is waiting on. An
// accountsChanged or chainChanged queued right behind one of the same kind
// replaces it, since only the latest list or chain matters.
func (sub *Subscription) Dispatch(ev wallet.Event) {
	sub.enqueue(queued{event: ev})
}

func (sub *Subscription) enqueue(q queued) {
	sub.mu.Lock()
	select {
	case <-sub.done:
		sub.mu.Unlock()
		return
	default:
	}
	if n := len(sub.pending); n > 0 && coalesces(sub.pending[n-1], q) {
		sub.pending[n-1] = q
	} else {
		sub.pending = append(sub.pending, q)
	}
	sub.mu.Unlock()

	select {
	case sub.wake <- struct{}{}:
	default:
	}
}

func coalesces(last, next queued) bool {
	if last.barrier != nil || next.barrier != nil || last.event.Kind != next.event.Kind {
		return false
	}
	return next.event.Kind == wallet.EventAccountsChanged || next.event.Kind == wallet.EventChainChanged
}

func (sub *Subscription) next() (queued, bool) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if len(sub.pending) == 0 {
		return queued{}, false
	}
	q := sub.pending[0]
	sub.pending[0] = queued{}
	sub.pending = sub.pending[1:]
	return q, true
}

// Backlog reports how many events are waiting to be handled.
func (sub *Subscription) Backlog() int {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return len(sub.pending)
}

// Unsubscribe removes the provider listeners and stops the event loop after
// the event being handled, if any. Safe to call more than once.
func (sub *Subscription) Unsubscribe() {
	sub.once.Do(func() {
		if sub.provider != nil {
			for kind, id := range sub.ids {
				sub.provider.Off(kind, id)
			}
		}
		close(sub.done)
		<-sub.stopped
	})
}

// Start subscribes to wallet events for the lifetime of the returned
// subscription, then restores the previous session (see Resume) before the
// first queued event is handled.
func (s *Service) Start(ctx context.Context) (*Subscription, error) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.sub != nil {
		select {
		case <-s.sub.done:
		default:
			return nil, ErrAlreadyStarted
		}
	}

	sub := newSubscription(s.provider)
	if s.provider != nil {
		for _, kind := range subscribedKinds {
			sub.ids[kind] = s.provider.On(kind, sub.Dispatch)
		}
	}
	s.sub = sub

	loopCtx := context.WithoutCancel(ctx)
	if err := s.Resume(loopCtx); err != nil {
		s.logger.WarnContext(ctx, "session resume failed", "error", err)
	}
	go s.run(loopCtx, sub)
	return sub, nil
}

func (s *Service) run(ctx context.Context, sub *Subscription) {
	defer close(sub.stopped)
	for {
		for q, ok := sub.next(); ok; q, ok = sub.next() {
			select {
			case <-sub.done:
				return
			default:
			}
			if q.barrier != nil {
				close(q.barrier)
				continue
			}
			s.handleEvent(ctx, q.event)
		}
		select {
		case <-sub.done:
			return
		case <-sub.wake:
		}
	}
}

func (s *Service) handleEvent(ctx context.Context, ev wallet.Event) {
	if s.metrics != nil {
		s.metrics.IncrementWalletEvent(string(ev.Kind))
	}
	ctx, span := s.tracer.Start(ctx, "auth.WalletEvent")
	defer span.End()
	span.SetAttributes(attribute.String("wallet.event", string(ev.Kind)))

	var err error
	switch ev.Kind {
	case wallet.EventAccountsChanged:
		err = s.HandleAccountsChanged(ctx, ev.Accounts)
	case wallet.EventChainChanged:
		err = s.HandleChainChanged(ctx, ev.ChainID)
	case wallet.EventDisconnect:
		s.HandleProviderDisconnect(ctx, ev.Code, ev.Message)
	case wallet.EventConnect:
		s.HandleProviderConnect(ctx, ev.ChainID)
	default:
		s.logger.DebugContext(ctx, "ignoring wallet event", "kind", ev.Kind)
	}
	if err != nil && !dErrors.HasCode(err, dErrors.CodeSuperseded) {
		span.RecordError(err)
		span.SetStatus(codes.Error, dErrors.MessageOf(err))
		s.logger.ErrorContext(ctx, "failed to handle wallet event",
			"kind", ev.Kind,
			"error", err,
		)
	}
}

// HandleAccountsChanged applies the provider's authoritative account list.
// An empty list disconnects without recording an error. A different first
// account is resolved and committed without prompting, superseding any
// in-flight connect that is resolving another account. While a connect is
// still waiting on the wallet prompt the account is handed to it, so the
// same address is never resolved twice. Changes are ignored while no session
// is connected or connecting.
func (s *Service) HandleAccountsChanged(ctx context.Context, accounts []string) error {
	if len(accounts) == 0 {
		s.disconnect(ctx, "accounts_cleared", nil)
		return nil
	}
	address, err := wallet.ParseAddress(accounts[0])
	if err != nil {
		s.recordError(s.generation(), err)
		return err
	}

	s.mu.Lock()
	snap := s.session.Snapshot()
	switch {
	case snap.IsConnected && snap.WalletAddress == address:
		s.mu.Unlock()
		return nil
	case !snap.IsConnected && s.loadingOwner == 0:
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "ignoring account change while disconnected", "address", address)
		return nil
	case !snap.IsConnected && s.connectAddress == address:
		s.mu.Unlock()
		return nil
	case !snap.IsConnected && s.connectAddress == "":
		s.pendingAccount = address
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "handing account change to in-flight connect", "address", address)
		return nil
	}
	s.gen++
	gen := s.gen
	s.session.SetError("")
	s.mu.Unlock()

	return s.applyAccountSwitch(ctx, gen, snap.WalletAddress, address)
}

// applyAccountSwitch resolves address under gen and commits it as the
// connected identity.
func (s *Service) applyAccountSwitch(ctx context.Context, gen uint64, previous, address string) error {
	p, _, err := s.resolveProfile(ctx, address)
	if err != nil {
		s.recordError(gen, err)
		return err
	}
	if !s.commit(gen, p) {
		return superseded()
	}

	s.logger.InfoContext(ctx, "wallet account switched",
		"from", previous,
		"to", address,
	)
	s.emit(ctx, audit.Event{
		Action:  audit.ActionAccountSwitched,
		Address: address,
		Attrs:   map[string]string{"previous": previous},
	})
	return nil
}

// HandleChainChanged re-resolves the profile for the wallet's current account
// in place. Nothing else in the session is discarded.
func (s *Service) HandleChainChanged(ctx context.Context, chainID string) error {
	s.logger.InfoContext(ctx, "wallet chain changed", "chain_id", chainID)
	return s.refresh(ctx, "chain_changed")
}

// HandleProviderDisconnect treats a provider-originated disconnect like a
// user disconnect.
func (s *Service) HandleProviderDisconnect(ctx context.Context, code int, message string) {
	s.logger.InfoContext(ctx, "wallet provider disconnected",
		"code", code,
		"message", message,
	)
	s.disconnect(ctx, "provider_disconnect", nil)
}

// HandleProviderConnect records the provider's connect notification. It does
// not change the session.
func (s *Service) HandleProviderConnect(ctx context.Context, chainID string) {
	s.logger.InfoContext(ctx, "wallet provider connected", "chain_id", chainID)
	s.emit(ctx, audit.Event{
		Action:  audit.ActionProviderConnected,
		Address: s.session.Snapshot().WalletAddress,
		Attrs:   map[string]string{"chainId": chainID},
	})
}

// Resume re-validates a restored session without prompting: the wallet is
// asked for its current accounts and the session follows. A wallet that is
// gone or has no accounts ends the session.
func (s *Service) Resume(ctx context.Context) error {
	return s.refresh(ctx, "resume")
}

// refresh re-runs profile resolution for the wallet's current account when a
// session is connected.
func (s *Service) refresh(ctx context.Context, reason string) error {
	s.mu.Lock()
	snap := s.session.Snapshot()
	if !snap.IsConnected {
		s.mu.Unlock()
		return nil
	}
	s.gen++
	gen := s.gen
	s.session.SetError("")
	s.mu.Unlock()

	if s.provider == nil {
		err := dErrors.New(dErrors.CodeProviderUnavailable, msgProviderUnavailable)
		s.disconnectIfCurrent(ctx, gen, reason, err)
		return err
	}
	accounts, err := s.provider.Accounts(ctx)
	if err != nil {
		err = translateProviderError(err)
		s.disconnectIfCurrent(ctx, gen, reason, err)
		return err
	}
	if len(accounts) == 0 {
		s.disconnectIfCurrent(ctx, gen, reason, nil)
		return nil
	}
	address, err := wallet.ParseAddress(accounts[0])
	if err != nil {
		s.disconnectIfCurrent(ctx, gen, reason, err)
		return err
	}

	p, _, err := s.resolveProfile(ctx, address)
	if err != nil {
		s.recordError(gen, err)
		return err
	}
	if !s.commit(gen, p) {
		return superseded()
	}
	if address != snap.WalletAddress {
		s.emit(ctx, audit.Event{
			Action:  audit.ActionAccountSwitched,
			Address: address,
			Attrs:   map[string]string{"previous": snap.WalletAddress, "reason": reason},
		})
	}
	s.logger.InfoContext(ctx, "wallet session refreshed",
		"address", address,
		"reason", reason,
	)
	return nil
}
