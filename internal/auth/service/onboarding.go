package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"tradegate/internal/audit"
	"tradegate/internal/auth/models"
	dErrors "tradegate/pkg/domain-errors"
	"tradegate/pkg/requestcontext"
)

// SelectTradingLevel records the first onboarding step on the cached profile
// only. Nothing is written to the profile store until the second step.
func (s *Service) SelectTradingLevel(ctx context.Context, level models.TradingLevel) error {
	if !level.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "trading level must be one of beginner, intermediate, pro")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.session.Snapshot()
	if !snap.IsConnected || snap.Profile == nil {
		err := dErrors.New(dErrors.CodeInvalidOnboardingState, msgNotConnected)
		s.session.SetError(errorMessage(err))
		return err
	}
	p := snap.Profile
	p.TradingLevel = level
	s.session.SetProfile(p)

	s.logger.DebugContext(ctx, "trading level selected",
		"address", p.Address,
		"trading_level", level,
	)
	return nil
}

// SelectAccountTypeAndComplete finishes onboarding with a single profile write
// carrying the trading level, account type, completion flag and timestamps.
// The cached profile is updated only after that write succeeds. It returns
// the account type so the caller can route to the matching view.
func (s *Service) SelectAccountTypeAndComplete(ctx context.Context, accountType models.AccountType) (_ models.AccountType, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.CompleteOnboarding")
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, dErrors.MessageOf(err))
		}
	}()

	if !accountType.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "account type must be one of standard, admin")
	}

	s.mu.Lock()
	snap := s.session.Snapshot()
	gen := s.gen
	if !snap.IsConnected || snap.Profile == nil {
		err := dErrors.New(dErrors.CodeInvalidOnboardingState, msgNotConnected)
		s.session.SetError(errorMessage(err))
		s.mu.Unlock()
		return "", err
	}
	p := snap.Profile
	if err := p.CanComplete(); err != nil {
		s.session.SetError(errorMessage(err))
		s.mu.Unlock()
		return "", err
	}
	s.session.SetError("")
	s.mu.Unlock()

	span.SetAttributes(
		attribute.String("wallet.address", p.Address),
		attribute.String("onboarding.account_type", accountType.String()),
	)

	p.ApplyCompletion(p.TradingLevel, accountType, requestcontext.Now(ctx))
	if err := s.profiles.CompleteOnboarding(ctx, p); err != nil {
		werr := dErrors.Wrap(err, dErrors.CodePersistenceFailure, "failed to save onboarding")
		s.recordError(gen, werr)
		s.logger.ErrorContext(ctx, "failed to persist onboarding completion",
			"address", p.Address,
			"error", err,
		)
		return "", werr
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return "", superseded()
	}
	s.session.SetProfile(p)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.IncrementOnboardingCompleted()
	}
	s.logger.InfoContext(ctx, "onboarding completed",
		"address", p.Address,
		"trading_level", p.TradingLevel,
		"account_type", p.AccountType,
	)
	s.emit(ctx, audit.Event{
		Action:  audit.ActionOnboardingCompleted,
		Address: p.Address,
		Attrs: map[string]string{
			"tradingLevel": p.TradingLevel.String(),
			"accountType":  p.AccountType.String(),
		},
	})
	return p.AccountType, nil
}

// LandingRoute is the view the current session should land on.
func (s *Service) LandingRoute() string {
	snap := s.session.Snapshot()
	var accountType models.AccountType
	if snap.Profile != nil {
		accountType = snap.Profile.AccountType
	}
	return models.LandingRoute(snap.Gate(), accountType)
}
