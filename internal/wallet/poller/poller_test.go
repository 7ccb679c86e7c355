package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegate/internal/wallet"
	"tradegate/internal/wallet/wallettest"
)

type recorder struct {
	mu     sync.Mutex
	events []wallet.Event
}

func (r *recorder) sink(ev wallet.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newPoller(provider wallet.Provider, rec *recorder, interval time.Duration) *Poller {
	return New(provider, rec.sink, interval, WithLogger(slog.New(slog.DiscardHandler)))
}

func TestPollReportsOnlyChanges(t *testing.T) {
	provider := wallettest.New("0xAB")
	rec := &recorder{}
	p := newPoller(provider, rec, time.Hour)
	ctx := context.Background()

	p.Poll(ctx)
	assert.Zero(t, rec.len(), "first observation only primes")

	p.Poll(ctx)
	assert.Zero(t, rec.len())

	provider.SetAccounts("0xab")
	p.Poll(ctx)
	assert.Zero(t, rec.len(), "case differences are not changes")

	provider.SetAccounts("0xcd", "0xab")
	p.Poll(ctx)
	require.Equal(t, 1, rec.len())
	assert.Equal(t, []string{"0xcd", "0xab"}, rec.events[0].Accounts)

	provider.SetAccounts()
	p.Poll(ctx)
	require.Equal(t, 2, rec.len())
	assert.Equal(t, wallet.EventAccountsChanged, rec.events[1].Kind)
	assert.Empty(t, rec.events[1].Accounts)

	assert.Equal(t, 5, provider.AccountsCount())
}

func TestPollFailureKeepsLastObservation(t *testing.T) {
	provider := wallettest.New("0xab")
	rec := &recorder{}
	p := newPoller(provider, rec, time.Hour)
	ctx := context.Background()

	p.Poll(ctx)
	provider.FailAccounts(errors.New("bridge gone"))
	p.Poll(ctx)
	provider.FailAccounts(nil)
	p.Poll(ctx)

	assert.Zero(t, rec.len())
}

func TestStartPollsOnSchedule(t *testing.T) {
	provider := wallettest.New("0xab")
	rec := &recorder{}
	p := newPoller(provider, rec, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, p.Start(ctx))
	defer p.Stop()
	assert.Equal(t, 1, provider.AccountsCount())

	provider.SetAccounts("0xcd")
	require.Eventually(t, func() bool { return rec.len() == 1 }, 5*time.Second, 20*time.Millisecond)

	p.Stop()
	calls := provider.AccountsCount()
	provider.SetAccounts("0xef")
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, calls, provider.AccountsCount())
}
