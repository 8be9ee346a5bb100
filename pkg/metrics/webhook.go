package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Webhook counts ingestion outcomes by reason. A nil *Webhook is valid and
// records nothing.
type Webhook struct {
	outcomes *prometheus.CounterVec
}

func NewWebhook(reg prometheus.Registerer) *Webhook {
	w := &Webhook{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wahook",
			Subsystem: "webhook",
			Name:      "outcomes_total",
			Help:      "Webhook deliveries by ingestion outcome.",
		}, []string{"reason"}),
	}
	if reg != nil {
		reg.MustRegister(w.outcomes)
	}
	return w
}

func (w *Webhook) Observe(reason string) {
	if w == nil {
		return
	}
	w.outcomes.WithLabelValues(reason).Inc()
}
