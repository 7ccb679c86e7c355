// Package wallet defines the injected wallet provider capability the auth
// orchestrator consumes, modelled on EIP-1193: interactive and
// non-interactive account queries plus change notifications.
package wallet

import (
	"context"
	"sort"
	"sync"
)

// EventKind names a provider notification. Values match the EIP-1193 event
// names so bridge notifications can be dispatched without translation.
type EventKind string

const (
	EventAccountsChanged EventKind = "accountsChanged"
	EventChainChanged    EventKind = "chainChanged"
	EventConnect         EventKind = "connect"
	EventDisconnect      EventKind = "disconnect"
)

// Event is a single provider notification. Only the fields relevant to Kind
// are populated.
type Event struct {
	Kind     EventKind
	Accounts []string // accountsChanged
	ChainID  string   // chainChanged, connect
	Code     int      // disconnect
	Message  string   // disconnect
}

// Handler receives provider notifications.
type Handler func(Event)

// ListenerID identifies a registration made with On so it can be removed.
type ListenerID uint64

// Provider is the wallet capability set.
//
// RequestAccounts may prompt the user and fails with errors matching
// ErrUserRejected, ErrRequestPending or ErrProviderUnavailable.
// Accounts never prompts.
type Provider interface {
	RequestAccounts(ctx context.Context) ([]string, error)
	Accounts(ctx context.Context) ([]string, error)
	On(kind EventKind, h Handler) ListenerID
	Off(kind EventKind, id ListenerID)
}

// Emitter is a listener registry providers embed to implement On and Off.
// Handlers run synchronously on the emitting goroutine in registration order.
type Emitter struct {
	mu       sync.RWMutex
	next     ListenerID
	handlers map[EventKind]map[ListenerID]Handler
}

// On registers h for kind.
func (e *Emitter) On(kind EventKind, h Handler) ListenerID {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.handlers == nil {
		e.handlers = make(map[EventKind]map[ListenerID]Handler)
	}
	if e.handlers[kind] == nil {
		e.handlers[kind] = make(map[ListenerID]Handler)
	}
	e.next++
	e.handlers[kind][e.next] = h
	return e.next
}

// Off removes a registration. Unknown ids are ignored.
func (e *Emitter) Off(kind EventKind, id ListenerID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.handlers[kind], id)
}

// Emit delivers ev to every handler registered for ev.Kind.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	registered := e.handlers[ev.Kind]
	ids := make([]ListenerID, 0, len(registered))
	for id := range registered {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	handlers := make([]Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, registered[id])
	}
	e.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// ListenerCount returns the number of handlers registered for kind.
func (e *Emitter) ListenerCount(kind EventKind) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers[kind])
}
