package models

// Session is a point-in-time copy of the session store. Profile is a clone;
// callers may keep it without holding any lock.
type Session struct {
	WalletAddress string
	IsConnected   bool
	IsLoading     bool
	LastError     string
	Profile       *Profile
}

// OnboardingComplete reports the cached profile's completion flag.
func (s Session) OnboardingComplete() bool {
	return s.Profile != nil && s.Profile.IsOnboardingComplete
}

// Gate evaluates the navigation gate for this snapshot.
func (s Session) Gate() Gate {
	return EvaluateGate(s.IsConnected, s.OnboardingComplete())
}

// PersistedSession is the subset of Session that survives a restart.
type PersistedSession struct {
	Account     string `json:"account"`
	IsConnected bool   `json:"isConnected"`
}
