package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DecisionMetrics counts terminal authorization outcomes, partitioned by
// outcome and deny reason so dashboards can separate expired tokens from
// genuine permission failures.
type DecisionMetrics struct {
	decisions *prometheus.CounterVec
}

// NewDecisionMetrics constructs and registers the decision counter with the
// provided registerer (nil falls back to the default).
func NewDecisionMetrics(reg prometheus.Registerer) (*DecisionMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authz",
		Name:      "decisions_total",
		Help:      "Total number of authorization decisions partitioned by outcome and deny reason.",
	}, []string{"outcome", "reason"})

	if err := reg.Register(decisions); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				decisions = existing
			} else {
				return nil, err
			}
		} else {
			return nil, err
		}
	}

	return &DecisionMetrics{decisions: decisions}, nil
}

// RecordDecision increments the counter for one terminal outcome. An empty
// reason is normalised to "none" so the allow series stays queryable.
func (m *DecisionMetrics) RecordDecision(outcome string, reason string) {
	if m == nil || m.decisions == nil {
		return
	}
	if reason == "" {
		reason = "none"
	}
	m.decisions.WithLabelValues(outcome, reason).Inc()
}
