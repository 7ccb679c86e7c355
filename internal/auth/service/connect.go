package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tradegate/internal/audit"
	"tradegate/internal/auth/models"
	"tradegate/internal/wallet"
	dErrors "tradegate/pkg/domain-errors"
	"tradegate/pkg/platform/sentinel"
	"tradegate/pkg/requestcontext"
)

// Connect asks the wallet for account access and establishes the session for
// the first authorized account.
//
// Calls made while a connect is loading join it and receive the same result.
// The shared attempt runs detached from any single caller's cancellation; a
// caller whose ctx ends stops waiting but the attempt still settles and clears
// the loading flag. If a disconnect or wallet event supersedes the attempt,
// its result is discarded and CodeSuperseded returned.
func (s *Service) Connect(ctx context.Context) (models.Session, error) {
	key, gen := s.flight()
	ch := s.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.connectTimeout)
		defer cancel()
		return s.connect(fctx, key, gen)
	})
	s.waiters.Add(1)
	defer s.waiters.Add(-1)

	select {
	case res := <-ch:
		if res.Shared && s.metrics != nil {
			s.metrics.IncrementConnectShared()
		}
		if res.Err != nil {
			return models.Session{}, res.Err
		}
		return res.Val.(models.Session), nil
	case <-ctx.Done():
		return models.Session{}, ctx.Err()
	}
}

func connectKey(gen uint64) string {
	return "connect/" + strconv.FormatUint(gen, 10)
}

// flight names the attempt a Connect call should join: the one holding the
// loading flag, or a new attempt for the current generation.
func (s *Service) flight() (string, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadingOwner != 0 && s.flightKey != "" {
		return s.flightKey, s.gen
	}
	return connectKey(s.gen), s.gen
}

func (s *Service) connect(ctx context.Context, key string, gen uint64) (_ models.Session, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.Connect")
	defer span.End()
	start := time.Now()

	token := s.beginLoading(key)
	defer s.endLoading(token)
	defer func() {
		s.observeConnect(start, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, dErrors.MessageOf(err))
		}
	}()

	address, err := s.requestAddress(ctx)
	if err != nil {
		s.recordError(gen, err)
		s.logger.WarnContext(ctx, "wallet connect failed",
			"code", dErrors.CodeOf(err),
			"error", err,
		)
		return models.Session{}, err
	}
	span.SetAttributes(attribute.String("wallet.address", address))

	if pending, switchGen, ok := s.claimAddress(token, address); ok {
		s.logger.InfoContext(ctx, "wallet reported another account during connect",
			"granted", address,
			"reported", pending,
		)
		if err := s.applyAccountSwitch(ctx, switchGen, "", pending); err != nil {
			return models.Session{}, err
		}
		return models.Session{}, superseded()
	}

	p, created, err := s.resolveProfile(ctx, address)
	if err != nil {
		s.recordError(gen, err)
		s.logger.ErrorContext(ctx, "failed to resolve profile on connect",
			"address", address,
			"error", err,
		)
		return models.Session{}, err
	}

	if !s.commit(gen, p) {
		s.logger.InfoContext(ctx, "discarding superseded connect", "address", address)
		return models.Session{}, superseded()
	}

	s.logger.InfoContext(ctx, "wallet connected",
		"address", address,
		"profile_created", created,
		"onboarding_complete", p.IsOnboardingComplete,
	)
	s.emit(ctx, audit.Event{Action: audit.ActionWalletConnected, Address: address})
	return s.session.Snapshot(), nil
}

// requestAddress prompts the wallet and returns the first account, lowercased.
func (s *Service) requestAddress(ctx context.Context) (string, error) {
	if s.provider == nil {
		return "", dErrors.New(dErrors.CodeProviderUnavailable, msgProviderUnavailable)
	}
	accounts, err := s.provider.RequestAccounts(ctx)
	if err != nil {
		return "", translateProviderError(err)
	}
	if len(accounts) == 0 {
		return "", dErrors.New(dErrors.CodeNoAccounts, msgNoAccounts)
	}
	return wallet.ParseAddress(accounts[0])
}

// resolveProfile loads the profile for address, creating it on first sight
// and refreshing lastSeen otherwise. Onboarding fields are never touched.
func (s *Service) resolveProfile(ctx context.Context, address string) (*models.Profile, bool, error) {
	ctx, span := s.tracer.Start(ctx, "auth.ResolveProfile",
		trace.WithAttributes(attribute.String("wallet.address", address)))
	defer span.End()

	now := requestcontext.Now(ctx)
	p, err := s.profiles.Find(ctx, address)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		p = models.NewProfile(address, now)
		if err := s.profiles.Create(ctx, p); err != nil {
			return nil, false, dErrors.Wrap(err, dErrors.CodePersistenceFailure, "failed to create profile")
		}
		if s.metrics != nil {
			s.metrics.IncrementProfileCreated()
		}
		s.emit(ctx, audit.Event{Action: audit.ActionProfileCreated, Address: address})
		return p, true, nil
	case err != nil:
		return nil, false, dErrors.Wrap(err, dErrors.CodePersistenceFailure, "failed to load profile")
	}

	if err := s.profiles.Touch(ctx, address, now); err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodePersistenceFailure, "failed to update profile")
	}
	p.LastSeen = now
	return p, false, nil
}

// beginLoading clears the error slot and raises the loading flag, taking
// ownership of it. Only the owner may lower it again.
func (s *Service) beginLoading(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flights++
	s.loadingOwner = s.flights
	s.clearFlightLocked()
	s.flightKey = key
	s.session.SetError("")
	s.session.SetLoading(true)
	return s.flights
}

func (s *Service) endLoading(token uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadingOwner != token {
		return
	}
	s.loadingOwner = 0
	s.clearFlightLocked()
	s.session.SetLoading(false)
}

func (s *Service) clearFlightLocked() {
	s.flightKey = ""
	s.connectAddress = ""
	s.pendingAccount = ""
}

// claimAddress records the account the wallet granted to the connect owning
// token. When an accountsChanged for a different account arrived while the
// prompt was open, that account wins: it is returned with a fresh generation
// and ok set, and the caller applies it instead.
func (s *Service) claimAddress(token uint64, address string) (pending string, gen uint64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadingOwner != token {
		return "", 0, false
	}
	pending = s.pendingAccount
	s.pendingAccount = ""
	if pending == "" || pending == address {
		s.connectAddress = address
		return "", 0, false
	}
	s.gen++
	s.session.SetError("")
	return pending, s.gen, true
}

func (s *Service) observeConnect(start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveConnect(start)
	outcome := "success"
	if err != nil {
		outcome = string(dErrors.CodeOf(err))
	}
	if dErrors.HasCode(err, dErrors.CodeSuperseded) {
		s.metrics.IncrementConnectSuperseded()
	}
	s.metrics.IncrementConnect(outcome)
}

// Disconnect resets the session and its persisted record. The profile is
// kept. Safe to call in any state.
func (s *Service) Disconnect(ctx context.Context) {
	s.disconnect(ctx, "user", nil)
}

// disconnect resets the session, optionally leaving cause in the error slot.
func (s *Service) disconnect(ctx context.Context, reason string, cause error) {
	s.resetSession(ctx, 0, false, reason, cause)
}

// disconnectIfCurrent is disconnect guarded by gen: it does nothing when a
// newer event has already moved the session on.
func (s *Service) disconnectIfCurrent(ctx context.Context, gen uint64, reason string, cause error) bool {
	return s.resetSession(ctx, gen, true, reason, cause)
}

func (s *Service) resetSession(ctx context.Context, gen uint64, guarded bool, reason string, cause error) bool {
	s.mu.Lock()
	if guarded && s.gen != gen {
		s.mu.Unlock()
		return false
	}
	prev := s.session.Snapshot().WalletAddress
	s.gen++
	s.loadingOwner = 0
	s.clearFlightLocked()
	s.session.Reset()
	if cause != nil {
		s.session.SetError(errorMessage(cause))
	}
	s.mu.Unlock()

	if prev == "" {
		return true
	}
	s.logger.InfoContext(ctx, "wallet disconnected",
		"address", prev,
		"reason", reason,
	)
	s.emit(ctx, audit.Event{
		Action:  audit.ActionWalletDisconnected,
		Address: prev,
		Attrs:   map[string]string{"reason": reason},
	})
	return true
}
