package httptransport

import (
	"time"

	"tradegate/internal/auth/models"
	"tradegate/internal/wallet"
)

// SessionResponse is the JSON view of a session snapshot.
type SessionResponse struct {
	WalletAddress  string           `json:"wallet_address,omitempty"`
	DisplayAddress string           `json:"display_address,omitempty"`
	IsConnected    bool             `json:"is_connected"`
	IsLoading      bool             `json:"is_loading"`
	LastError      string           `json:"last_error,omitempty"`
	Gate           string           `json:"gate"`
	Route          string           `json:"route"`
	Profile        *ProfileResponse `json:"profile,omitempty"`
}

// ProfileResponse is the cached profile as the UI sees it.
type ProfileResponse struct {
	Email                string     `json:"email,omitempty"`
	TradingLevel         string     `json:"trading_level,omitempty"`
	AccountType          string     `json:"account_type,omitempty"`
	IsOnboardingComplete bool       `json:"is_onboarding_complete"`
	CreatedAt            *time.Time `json:"created_at,omitempty"`
	LastSeen             *time.Time `json:"last_seen,omitempty"`
}

// ConnectResponse is returned by POST /session/connect.
type ConnectResponse struct {
	SessionResponse
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CompletionResponse is returned by POST /onboarding/account-type.
type CompletionResponse struct {
	AccountType string          `json:"account_type"`
	Route       string          `json:"route"`
	Session     SessionResponse `json:"session"`
	Token       string          `json:"token"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

// FromSession converts a snapshot to its response form.
func FromSession(s models.Session) SessionResponse {
	gate := s.Gate()
	resp := SessionResponse{
		WalletAddress: s.WalletAddress,
		IsConnected:   s.IsConnected,
		IsLoading:     s.IsLoading,
		LastError:     s.LastError,
		Gate:          gate.String(),
	}
	if s.WalletAddress != "" {
		resp.DisplayAddress = wallet.ChecksumAddress(s.WalletAddress)
	}

	var accountType models.AccountType
	if p := s.Profile; p != nil {
		accountType = p.AccountType
		resp.Profile = &ProfileResponse{
			Email:                p.Email,
			TradingLevel:         p.TradingLevel.String(),
			AccountType:          p.AccountType.String(),
			IsOnboardingComplete: p.IsOnboardingComplete,
			CreatedAt:            optionalTime(p.CreatedAt),
			LastSeen:             optionalTime(p.LastSeen),
		}
	}
	resp.Route = models.LandingRoute(gate, accountType)
	return resp
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
