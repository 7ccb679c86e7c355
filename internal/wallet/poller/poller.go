// Package poller watches a wallet that cannot push notifications. It asks the
// provider for its accounts on a schedule and reports a change only when the
// list differs from the previous observation.
package poller

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"tradegate/internal/wallet"
	pkgstrings "tradegate/pkg/platform/strings"
)

// Sink receives account changes. The auth orchestrator's subscription
// Dispatch satisfies it.
type Sink func(wallet.Event)

// Poller periodically reads a provider's authorized accounts.
type Poller struct {
	provider wallet.Provider
	sink     Sink
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	last     []string
	observed bool

	cron *cron.Cron
}

// Option configures a Poller.
type Option func(*Poller)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) {
		p.logger = logger
	}
}

// WithTimeout bounds each Accounts call.
func WithTimeout(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// New builds a poller that checks every interval.
func New(provider wallet.Provider, sink Sink, interval time.Duration, opts ...Option) *Poller {
	p := &Poller{
		provider: provider,
		sink:     sink,
		interval: interval,
		timeout:  5 * time.Second,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start schedules polling until ctx is done or Stop is called. The first
// observation is taken immediately and only primes the comparison.
func (p *Poller) Start(ctx context.Context) error {
	p.Poll(ctx)

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc("@every "+p.interval.String(), func() { p.Poll(ctx) }); err != nil {
		return err
	}
	p.mu.Lock()
	p.cron = c
	p.mu.Unlock()
	c.Start()

	go func() {
		<-ctx.Done()
		p.Stop()
	}()
	return nil
}

// Stop halts the schedule and waits for a running poll to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	c := p.cron
	p.cron = nil
	p.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// Poll takes one observation. Provider failures are logged and leave the
// previous observation in place.
func (p *Poller) Poll(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	accounts, err := p.provider.Accounts(ctx)
	if err != nil {
		p.logger.WarnContext(ctx, "wallet account poll failed", "error", err)
		return
	}
	normalized := pkgstrings.DedupeAndTrimLower(accounts)

	p.mu.Lock()
	first := !p.observed
	changed := !slices.Equal(p.last, normalized)
	p.last = normalized
	p.observed = true
	p.mu.Unlock()

	if first || !changed {
		return
	}
	p.logger.DebugContext(ctx, "wallet accounts changed", "count", len(accounts))
	p.sink(wallet.Event{Kind: wallet.EventAccountsChanged, Accounts: accounts})
}
