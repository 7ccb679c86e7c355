// Package wallettest provides a scriptable in-process wallet provider for
// orchestrator and transport tests.
package wallettest

import (
	"context"
	"sync"
	"sync/atomic"

	"tradegate/internal/wallet"
)

// Provider is a fake wallet. Requests answer from the configured account list
// or error; Hold lets tests park RequestAccounts mid-flight.
type Provider struct {
	wallet.Emitter

	mu          sync.Mutex
	accounts    []string
	requestErr  error
	accountsErr error
	hold        *Hold

	requests      atomic.Int32
	accountsCalls atomic.Int32
}

// New returns a provider that authorizes the given accounts.
func New(accounts ...string) *Provider {
	return &Provider{accounts: accounts}
}

// Hold parks RequestAccounts calls until Release is called.
type Hold struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

// Entered receives once per RequestAccounts call that reached the hold.
func (h *Hold) Entered() <-chan struct{} { return h.entered }

// Release unblocks every parked and future call of this hold.
func (h *Hold) Release() { h.once.Do(func() { close(h.release) }) }

func (p *Provider) SetAccounts(accounts ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts = accounts
}

// FailRequests makes RequestAccounts return err (nil clears).
func (p *Provider) FailRequests(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requestErr = err
}

// FailAccounts makes Accounts return err (nil clears).
func (p *Provider) FailAccounts(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accountsErr = err
}

// HoldRequests installs a new hold for subsequent RequestAccounts calls.
func (p *Provider) HoldRequests() *Hold {
	h := &Hold{entered: make(chan struct{}, 16), release: make(chan struct{})}
	p.mu.Lock()
	p.hold = h
	p.mu.Unlock()
	return h
}

// RequestCount is the number of RequestAccounts calls observed.
func (p *Provider) RequestCount() int { return int(p.requests.Load()) }

// AccountsCount is the number of Accounts calls observed.
func (p *Provider) AccountsCount() int { return int(p.accountsCalls.Load()) }

func (p *Provider) RequestAccounts(ctx context.Context) ([]string, error) {
	p.requests.Add(1)

	p.mu.Lock()
	h := p.hold
	p.mu.Unlock()
	if h != nil {
		h.entered <- struct{}{}
		select {
		case <-h.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.requestErr != nil {
		return nil, p.requestErr
	}
	return append([]string(nil), p.accounts...), nil
}

func (p *Provider) Accounts(_ context.Context) ([]string, error) {
	p.accountsCalls.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.accountsErr != nil {
		return nil, p.accountsErr
	}
	return append([]string(nil), p.accounts...), nil
}

// SwitchAccounts updates the authorized accounts and emits accountsChanged.
func (p *Provider) SwitchAccounts(accounts ...string) {
	p.SetAccounts(accounts...)
	p.Emit(wallet.Event{Kind: wallet.EventAccountsChanged, Accounts: accounts})
}

// SwitchChain emits chainChanged.
func (p *Provider) SwitchChain(chainID string) {
	p.Emit(wallet.Event{Kind: wallet.EventChainChanged, ChainID: chainID})
}

// Disconnect emits a provider-originated disconnect.
func (p *Provider) Disconnect() {
	p.Emit(wallet.Event{Kind: wallet.EventDisconnect, Code: wallet.CodeDisconnected, Message: "disconnected"})
}

var _ wallet.Provider = (*Provider)(nil)
