package csrf

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	TokensIssued   prometheus.Counter
	Validations    *prometheus.CounterVec
	OriginFailures *prometheus.CounterVec
	Swept          prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TokensIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_csrf_tokens_issued_total",
			Help: "CSRF tokens generated",
		}),
		Validations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gatehouse_csrf_validations_total",
			Help: "CSRF token validations by result",
		}, []string{"result"}),
		OriginFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gatehouse_csrf_rejections_total",
			Help: "Requests rejected by CSRF checks by reason",
		}, []string{"reason"}),
		Swept: factory.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_csrf_tokens_swept_total",
			Help: "Expired CSRF tokens removed by cleanup",
		}),
	}
}
