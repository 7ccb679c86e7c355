// Package service is the auth orchestrator: the only component that talks to
// the wallet provider and the profile store, and the only writer of the
// session store.
package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"tradegate/internal/audit"
	"tradegate/internal/auth/metrics"
	"tradegate/internal/auth/models"
	"tradegate/internal/wallet"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

// ProfileStore persists per-wallet profiles. Find returns sentinel.ErrNotFound
// for unknown addresses.
type ProfileStore interface {
	Find(ctx context.Context, address string) (*models.Profile, error)
	Create(ctx context.Context, p *models.Profile) error
	Touch(ctx context.Context, address string, lastSeen time.Time) error
	CompleteOnboarding(ctx context.Context, p *models.Profile) error
}

// SessionStore is the state container the orchestrator drives.
type SessionStore interface {
	Snapshot() models.Session
	Gate() models.Gate
	SetLoading(loading bool)
	SetError(msg string)
	SetProfile(p *models.Profile)
	Commit(address string, p *models.Profile)
	Reset()
}

// AuditPublisher records wallet-session facts. Failures never fail the
// operation that produced the event.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

const defaultConnectTimeout = 2 * time.Minute

// Service orchestrates wallet connection, wallet events and onboarding.
//
// Every session mutation happens under mu. gen advances whenever a wallet
// event or disconnect makes in-flight work stale; work started under an older
// generation is discarded instead of committed.
type Service struct {
	provider wallet.Provider
	profiles ProfileStore
	session  SessionStore

	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditor        AuditPublisher
	tracer         trace.Tracer
	connectTimeout time.Duration

	group   singleflight.Group
	waiters atomic.Int64

	mu           sync.Mutex
	gen          uint64
	flights      uint64
	loadingOwner uint64

	// Set while a connect holds the loading flag. connectAddress is the
	// account the wallet granted to it; pendingAccount is the latest
	// accountsChanged seen before that answer arrived.
	flightKey      string
	connectAddress string
	pendingAccount string

	subMu sync.Mutex
	sub   *Subscription
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithConnectTimeout bounds a shared connect, including the time the user
// takes to answer the wallet prompt.
func WithConnectTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.connectTimeout = d
		}
	}
}

// New builds the orchestrator. provider may be nil when no wallet is
// installed; connects then fail with ProviderUnavailable.
func New(provider wallet.Provider, profiles ProfileStore, session SessionStore, opts ...Option) *Service {
	s := &Service{
		provider:       provider,
		profiles:       profiles,
		session:        session,
		logger:         slog.Default(),
		tracer:         otel.Tracer("tradegate/internal/auth/service"),
		connectTimeout: defaultConnectTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Snapshot returns the current session state.
func (s *Service) Snapshot() models.Session {
	return s.session.Snapshot()
}

// Gate returns the navigation gate for the current session.
func (s *Service) Gate() models.Gate {
	return s.session.Gate()
}

func (s *Service) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// commit applies a resolved profile as the connected identity unless gen has
// been superseded. A trading level chosen in memory for the same, still
// incomplete profile survives the refresh.
func (s *Service) commit(gen uint64, p *models.Profile) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false
	}
	if cached := s.session.Snapshot().Profile; cached != nil &&
		cached.Address == p.Address && !p.IsOnboardingComplete && p.TradingLevel == "" {
		p.TradingLevel = cached.TradingLevel
	}
	s.session.Commit(p.Address, p)
	return true
}

// recordError writes err to the session error slot unless gen is stale.
func (s *Service) recordError(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	s.session.SetError(errorMessage(err))
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"error", err,
		)
	}
}
