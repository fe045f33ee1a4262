package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics counts view outcomes and star movement.
type LedgerMetrics struct {
	outcomes   *prometheus.CounterVec
	starsSpent prometheus.Counter
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_view_outcomes_total",
		Help: "Recorded content views by outcome.",
	}, []string{"outcome"})
	starsSpent := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_stars_spent_total",
		Help: "Stars debited from viewers for paid views.",
	})
	reg.MustRegister(outcomes, starsSpent)
	return &LedgerMetrics{
		outcomes:   outcomes,
		starsSpent: starsSpent,
	}
}

// ObserveOutcome increments the counter for the named outcome.
func (l *LedgerMetrics) ObserveOutcome(outcome string) {
	if l == nil || l.outcomes == nil {
		return
	}
	l.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// AddStarsSpent adds stars debited by a charged view.
func (l *LedgerMetrics) AddStarsSpent(stars int) {
	if l == nil || l.starsSpent == nil || stars <= 0 {
		return
	}
	l.starsSpent.Add(float64(stars))
}
