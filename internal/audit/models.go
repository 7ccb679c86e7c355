package audit

import "time"

// Action names a wallet-session fact worth keeping.
type Action string

const (
	ActionWalletConnected     Action = "wallet_connected"
	ActionWalletDisconnected  Action = "wallet_disconnected"
	ActionAccountSwitched     Action = "account_switched"
	ActionProfileCreated      Action = "profile_created"
	ActionOnboardingCompleted Action = "onboarding_completed"
	ActionProviderConnected   Action = "provider_connected"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID          string            `json:"id"`
	Action      Action            `json:"action"`
	Address     string            `json:"address,omitempty"`
	RequestID   string            `json:"requestId,omitempty"`
	ClientLabel string            `json:"clientLabel,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	Attrs       map[string]string `json:"attrs,omitempty"`
}
