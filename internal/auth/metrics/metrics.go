package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for sign-in and sessions.
type Metrics struct {
	SignIns          *prometheus.CounterVec
	SignInDuration   prometheus.Histogram
	UsersProvisioned *prometheus.CounterVec
	SessionsStarted  *prometheus.CounterVec
	SessionsEnded    prometheus.Counter
	SessionsSwept    prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SignIns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gatehouse_auth_signins_total",
			Help: "Credential sign-in attempts by outcome",
		}, []string{"outcome"}),
		SignInDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gatehouse_auth_signin_duration_seconds",
			Help:    "Credential sign-in latency including password hashing",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2},
		}),
		UsersProvisioned: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gatehouse_auth_users_provisioned_total",
			Help: "Users created on first federated sign-in by provider",
		}, []string{"provider"}),
		SessionsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gatehouse_auth_sessions_started_total",
			Help: "Provider sessions started by provider",
		}, []string{"provider"}),
		SessionsEnded: factory.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_auth_sessions_ended_total",
			Help: "Provider sessions ended by sign-out",
		}),
		SessionsSwept: factory.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_auth_sessions_swept_total",
			Help: "Expired provider sessions removed by cleanup",
		}),
	}
}

func (m *Metrics) IncrementSignIn(outcome string) {
	m.SignIns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveSignInDuration(seconds float64) {
	m.SignInDuration.Observe(seconds)
}

func (m *Metrics) IncrementProvisioned(provider string) {
	m.UsersProvisioned.WithLabelValues(provider).Inc()
}

func (m *Metrics) IncrementSessionStarted(provider string) {
	m.SessionsStarted.WithLabelValues(provider).Inc()
}

func (m *Metrics) IncrementSessionEnded() {
	m.SessionsEnded.Inc()
}

func (m *Metrics) AddSessionsSwept(n int) {
	m.SessionsSwept.Add(float64(n))
}
