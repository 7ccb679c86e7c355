// Package session holds the process-wide wallet session state. The store is
// constructed once and injected; wallet address and connection flag survive a
// restart through a Persistence backend, everything else starts fresh.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"tradegate/internal/auth/metrics"
	"tradegate/internal/auth/models"
	dErrors "tradegate/pkg/domain-errors"
)

// DefaultKey is the persistence key for the durable session subset.
const DefaultKey = "web3-auth-storage"

const defaultPersistTimeout = 2 * time.Second

// Persistence is a durable key/value slot. Load reports ok=false when the key
// has never been written or was cleared.
type Persistence interface {
	Load(ctx context.Context, key string) (value string, ok bool, err error)
	Save(ctx context.Context, key, value string) error
	Clear(ctx context.Context, key string) error
}

// Watcher receives a snapshot after every state change.
type Watcher func(models.Session)

// Store is safe for concurrent use. Setters never fail: persistence errors are
// logged and counted, and the in-memory transition still happens.
type Store struct {
	mu    sync.RWMutex
	state models.Session

	persist        Persistence
	key            string
	persistTimeout time.Duration
	logger         *slog.Logger
	metrics        *metrics.Metrics

	watchMu     sync.Mutex
	watchers    map[uint64]Watcher
	nextWatcher uint64
}

// Option configures a Store.
type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// WithKey overrides DefaultKey.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithPersistTimeout bounds each persistence call made by a setter.
func WithPersistTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.persistTimeout = d
		}
	}
}

// New builds a Store and restores the persisted subset. A record that cannot
// be decoded is discarded and cleared. A load failure leaves the store at its
// defaults and is returned as a PersistenceFailure so the caller can decide
// whether to continue.
func New(persist Persistence, opts ...Option) (*Store, error) {
	s := &Store{
		persist:        persist,
		key:            DefaultKey,
		persistTimeout: defaultPersistTimeout,
		logger:         slog.Default(),
		watchers:       make(map[uint64]Watcher),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.persist == nil {
		return s, nil
	}
	if err := s.restore(); err != nil {
		return s, err
	}
	return s, nil
}

func (s *Store) restore() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
	defer cancel()

	raw, ok, err := s.persist.Load(ctx, s.key)
	if err != nil {
		s.recordFailure("load", err)
		return dErrors.Wrap(err, dErrors.CodePersistenceFailure, "failed to restore session")
	}
	if !ok || raw == "" {
		return nil
	}
	var persisted models.PersistedSession
	if err := json.Unmarshal([]byte(raw), &persisted); err != nil {
		s.discard(ctx, err)
		return nil
	}
	if persisted.IsConnected && persisted.Account == "" {
		s.discard(ctx, errMissingAccount)
		return nil
	}
	s.state.WalletAddress = strings.ToLower(persisted.Account)
	s.state.IsConnected = persisted.IsConnected
	return nil
}

var errMissingAccount = errors.New("connected record without account")

// discard drops an unreadable record so the next boot does not trip on it.
func (s *Store) discard(ctx context.Context, cause error) {
	s.recordFailure("decode", cause)
	if err := s.persist.Clear(ctx, s.key); err != nil {
		s.recordFailure("clear", err)
		return
	}
	s.logger.Warn("discarded unreadable session record", "key", s.key)
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() models.Session {
	out := s.state
	out.Profile = s.state.Profile.Clone()
	return out
}

// Gate evaluates the routing gate for the current state.
func (s *Store) Gate() models.Gate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Gate()
}

func (s *Store) SetWalletAddress(addr string) {
	s.update(func(st *models.Session) bool {
		addr = strings.ToLower(addr)
		if st.WalletAddress == addr {
			return false
		}
		st.WalletAddress = addr
		return true
	}, true)
}

func (s *Store) SetConnected(connected bool) {
	s.update(func(st *models.Session) bool {
		if st.IsConnected == connected {
			return false
		}
		st.IsConnected = connected
		return true
	}, true)
}

func (s *Store) SetLoading(loading bool) {
	s.update(func(st *models.Session) bool {
		if st.IsLoading == loading {
			return false
		}
		st.IsLoading = loading
		return true
	}, false)
}

// SetError stores msg in the single error slot; "" clears it.
func (s *Store) SetError(msg string) {
	s.update(func(st *models.Session) bool {
		if st.LastError == msg {
			return false
		}
		st.LastError = msg
		return true
	}, false)
}

// SetProfile caches p (copied) or clears the cache when p is nil.
func (s *Store) SetProfile(p *models.Profile) {
	s.update(func(st *models.Session) bool {
		st.Profile = p.Clone()
		return true
	}, false)
}

// Commit applies a connected identity in one transition: address, connection
// flag and profile become visible to readers and watchers together.
func (s *Store) Commit(addr string, p *models.Profile) {
	s.update(func(st *models.Session) bool {
		st.WalletAddress = strings.ToLower(addr)
		st.IsConnected = true
		st.Profile = p.Clone()
		return true
	}, true)
}

// Reset restores every field to its default and clears the persisted record.
func (s *Store) Reset() {
	s.mu.Lock()
	s.state = models.Session{}
	snap := s.snapshotLocked()
	if s.persist != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
		if err := s.persist.Clear(ctx, s.key); err != nil {
			s.recordFailure("clear", err)
		}
		cancel()
	}
	s.mu.Unlock()
	s.notify(snap)
}

// Subscribe registers w and returns a function that removes it. Watchers run
// synchronously on the goroutine that changed the state.
func (s *Store) Subscribe(w Watcher) (cancel func()) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	s.nextWatcher++
	id := s.nextWatcher
	s.watchers[id] = w
	return func() {
		s.watchMu.Lock()
		defer s.watchMu.Unlock()
		delete(s.watchers, id)
	}
}

// update applies fn under the lock. When fn reports a change and durable is
// set, the persisted subset is written before the lock is released so the
// stored record never lags a later transition.
func (s *Store) update(fn func(*models.Session) bool, durable bool) {
	s.mu.Lock()
	if !fn(&s.state) {
		s.mu.Unlock()
		return
	}
	if durable {
		s.saveLocked()
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

func (s *Store) saveLocked() {
	if s.persist == nil {
		return
	}
	raw, err := json.Marshal(models.PersistedSession{
		Account:     s.state.WalletAddress,
		IsConnected: s.state.IsConnected,
	})
	if err != nil {
		s.recordFailure("encode", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
	defer cancel()
	if err := s.persist.Save(ctx, s.key, string(raw)); err != nil {
		s.recordFailure("save", err)
	}
}

func (s *Store) notify(snap models.Session) {
	s.watchMu.Lock()
	ws := make([]Watcher, 0, len(s.watchers))
	for _, w := range s.watchers {
		ws = append(ws, w)
	}
	s.watchMu.Unlock()
	for _, w := range ws {
		w(snap)
	}
}

func (s *Store) recordFailure(op string, err error) {
	if s.metrics != nil {
		s.metrics.IncrementPersistenceFailure(op)
	}
	level := slog.LevelError
	if errors.Is(err, context.DeadlineExceeded) {
		level = slog.LevelWarn
	}
	s.logger.Log(context.Background(), level, "session persistence failed",
		"op", op,
		"key", s.key,
		"error", err,
	)
}
