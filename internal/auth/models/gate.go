package models

// Gate is the navigation decision derived from connection and onboarding
// state. It is never persisted.
type Gate string

const (
	GateLanding    Gate = "show-landing"
	GateOnboarding Gate = "show-onboarding"
	GateApp        Gate = "show-app"
)

func (g Gate) String() string { return string(g) }

// EvaluateGate is a pure function of its inputs.
func EvaluateGate(isConnected, onboardingComplete bool) Gate {
	switch {
	case !isConnected:
		return GateLanding
	case !onboardingComplete:
		return GateOnboarding
	default:
		return GateApp
	}
}

// Routes the UI redirects to for each gate outcome.
const (
	RouteLanding    = "/"
	RouteOnboarding = "/onboarding"
	RouteAdmin      = "/admin"
	RouteChats      = "/chats"
)

// LandingRoute picks the view for a gate value. Onboarded admins land on the
// admin dashboard, everyone else who is onboarded lands on chats.
func LandingRoute(g Gate, accountType AccountType) string {
	switch g {
	case GateOnboarding:
		return RouteOnboarding
	case GateApp:
		if accountType == AccountTypeAdmin {
			return RouteAdmin
		}
		return RouteChats
	default:
		return RouteLanding
	}
}
