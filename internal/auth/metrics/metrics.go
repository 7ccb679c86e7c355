package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for wallet sessions and onboarding.
type Metrics struct {
	ConnectAttempts     *prometheus.CounterVec
	ConnectDuration     prometheus.Histogram
	ConnectsShared      prometheus.Counter
	ConnectsSuperseded  prometheus.Counter
	ProfilesCreated     prometheus.Counter
	OnboardingCompleted prometheus.Counter
	WalletEvents        *prometheus.CounterVec
	PersistenceFailures *prometheus.CounterVec
}

// New registers the auth metrics with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ConnectAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tradegate_wallet_connect_total",
			Help: "Wallet connect attempts by outcome",
		}, []string{"outcome"}),
		ConnectDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradegate_wallet_connect_duration_seconds",
			Help:    "Duration of wallet connect including the profile round-trip",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ConnectsShared: factory.NewCounter(prometheus.CounterOpts{
			Name: "tradegate_wallet_connect_shared_total",
			Help: "Connect calls that joined an in-flight connect",
		}),
		ConnectsSuperseded: factory.NewCounter(prometheus.CounterOpts{
			Name: "tradegate_wallet_connect_superseded_total",
			Help: "Connect results discarded because a newer wallet event won",
		}),
		ProfilesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "tradegate_profiles_created_total",
			Help: "Profiles created on first connect",
		}),
		OnboardingCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "tradegate_onboarding_completed_total",
			Help: "Onboarding completions persisted",
		}),
		WalletEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tradegate_wallet_events_total",
			Help: "Wallet provider events handled by kind",
		}, []string{"kind"}),
		PersistenceFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tradegate_session_persistence_failures_total",
			Help: "Durable session persistence failures by operation",
		}, []string{"op"}),
	}
}

// IncrementConnect records a connect outcome (success, rejected, pending, ...).
func (m *Metrics) IncrementConnect(outcome string) {
	m.ConnectAttempts.WithLabelValues(outcome).Inc()
}

// ObserveConnect records the duration of a connect.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveConnect(start time.Time) {
	m.ConnectDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementConnectShared() {
	m.ConnectsShared.Inc()
}

func (m *Metrics) IncrementConnectSuperseded() {
	m.ConnectsSuperseded.Inc()
}

func (m *Metrics) IncrementProfileCreated() {
	m.ProfilesCreated.Inc()
}

func (m *Metrics) IncrementOnboardingCompleted() {
	m.OnboardingCompleted.Inc()
}

func (m *Metrics) IncrementWalletEvent(kind string) {
	m.WalletEvents.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementPersistenceFailure(op string) {
	m.PersistenceFailures.WithLabelValues(op).Inc()
}
