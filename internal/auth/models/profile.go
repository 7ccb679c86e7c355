package models

import (
	"strings"
	"time"

	dErrors "tradegate/pkg/domain-errors"
)

// TradingLevel is the self-declared trading experience chosen during the
// first onboarding step. The zero value means "not chosen yet".
type TradingLevel string

const (
	TradingLevelBeginner     TradingLevel = "beginner"
	TradingLevelIntermediate TradingLevel = "intermediate"
	TradingLevelPro          TradingLevel = "pro"
)

func (l TradingLevel) String() string { return string(l) }

// IsValid reports whether l is one of the known levels.
func (l TradingLevel) IsValid() bool {
	switch l {
	case TradingLevelBeginner, TradingLevelIntermediate, TradingLevelPro:
		return true
	}
	return false
}

// ParseTradingLevel validates user input into a TradingLevel.
func ParseTradingLevel(s string) (TradingLevel, error) {
	l := TradingLevel(strings.ToLower(strings.TrimSpace(s)))
	if !l.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "trading level must be one of beginner, intermediate, pro")
	}
	return l, nil
}

// AccountType selects which part of the application an onboarded wallet
// lands in. The zero value means "not chosen yet".
type AccountType string

const (
	AccountTypeStandard AccountType = "standard"
	AccountTypeAdmin    AccountType = "admin"
)

func (a AccountType) String() string { return string(a) }

func (a AccountType) IsValid() bool {
	return a == AccountTypeStandard || a == AccountTypeAdmin
}

// ParseAccountType validates user input into an AccountType.
func ParseAccountType(s string) (AccountType, error) {
	a := AccountType(strings.ToLower(strings.TrimSpace(s)))
	if !a.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "account type must be one of standard, admin")
	}
	return a, nil
}

// Profile is the durable per-wallet record of onboarding progress, keyed by
// the lowercased wallet address.
//
// Invariant: IsOnboardingComplete implies TradingLevel and AccountType are set.
type Profile struct {
	Address              string
	Email                string
	TradingLevel         TradingLevel
	AccountType          AccountType
	IsOnboardingComplete bool
	CreatedAt            time.Time
	LastSeen             time.Time
}

// NewProfile builds the record written the first time an address connects.
func NewProfile(address string, now time.Time) *Profile {
	return &Profile{
		Address:   address,
		CreatedAt: now,
		LastSeen:  now,
	}
}

// Clone returns a copy safe to mutate independently of p.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// CanComplete reports whether the second onboarding step may run.
func (p *Profile) CanComplete() error {
	if p == nil || !p.TradingLevel.IsValid() {
		return dErrors.New(dErrors.CodeInvalidOnboardingState, "select a trading level before choosing an account type")
	}
	return nil
}

// ApplyCompletion sets every onboarding field in one step so the invariant
// can never be observed half-applied.
func (p *Profile) ApplyCompletion(level TradingLevel, accountType AccountType, now time.Time) {
	p.TradingLevel = level
	p.AccountType = accountType
	p.IsOnboardingComplete = true
	p.LastSeen = now
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
}
