package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is shared by every limiter; series are labelled by limiter name.
type Metrics struct {
	Decisions       *prometheus.CounterVec
	StoreErrors     *prometheus.CounterVec
	SweptIdentities *prometheus.CounterVec
	Throttled       prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gatehouse_ratelimit_decisions_total",
			Help: "Rate limit decisions by limiter and outcome",
		}, []string{"limiter", "outcome"}),
		StoreErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gatehouse_ratelimit_store_errors_total",
			Help: "Window store failures by limiter; requests are allowed through",
		}, []string{"limiter"}),
		SweptIdentities: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gatehouse_ratelimit_swept_identities_total",
			Help: "Expired identities removed by cleanup sweeps",
		}, []string{"limiter"}),
		Throttled: factory.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_global_throttle_rejections_total",
			Help: "Requests rejected by the per-instance global throttle",
		}),
	}
}

func (m *Metrics) IncrementAllowed(limiter string) {
	m.Decisions.WithLabelValues(limiter, "allowed").Inc()
}

func (m *Metrics) IncrementLimited(limiter string) {
	m.Decisions.WithLabelValues(limiter, "limited").Inc()
}

func (m *Metrics) IncrementStoreErrors(limiter string) {
	m.StoreErrors.WithLabelValues(limiter).Inc()
}

func (m *Metrics) AddSwept(limiter string, n int) {
	m.SweptIdentities.WithLabelValues(limiter).Add(float64(n))
}

func (m *Metrics) IncrementThrottled() {
	m.Throttled.Inc()
}
