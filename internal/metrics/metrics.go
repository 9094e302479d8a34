// Package metrics exports the service's Prometheus collectors.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ecopoints"

// Metrics groups every collector the core updates. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	enrollmentAttempts   *prometheus.CounterVec
	ledgerEntries        *prometheus.CounterVec
	distributionCredits  *prometheus.CounterVec
	transitions          *prometheus.CounterVec
	distributionDuration prometheus.Histogram
	notificationsDropped prometheus.Counter
	reconcileCorrections prometheus.Counter
}

// New creates the collectors and registers them with reg, falling back to
// the default registerer when reg is nil.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{}
	var err error
	if m.enrollmentAttempts, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "enrollment_attempts_total",
		Help:      "Join attempts by outcome.",
	}, []string{"result"})); err != nil {
		return nil, err
	}
	if m.ledgerEntries, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_entries_total",
		Help:      "Ledger entries appended by source kind.",
	}, []string{"kind"})); err != nil {
		return nil, err
	}
	if m.distributionCredits, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "distribution_credits_total",
		Help:      "Per-participant reward credits by outcome.",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if m.transitions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transitions_total",
		Help:      "Event status transition attempts by target status and outcome.",
	}, []string{"to", "result"})); err != nil {
		return nil, err
	}
	if m.distributionDuration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "distribution_duration_seconds",
		Help:      "Time spent crediting an event roster.",
		Buckets:   prometheus.DefBuckets,
	})); err != nil {
		return nil, err
	}
	if m.notificationsDropped, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_dropped_total",
		Help:      "Notifications discarded because the dispatch queue was full.",
	})); err != nil {
		return nil, err
	}
	if m.reconcileCorrections, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconcile_corrections_total",
		Help:      "Cached balances rewritten by the reconciler.",
	})); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, fmt.Errorf("register metric: %w", err)
	}
	return c, nil
}

// Enrollment counts a join attempt; result is "ok" or an error code.
func (m *Metrics) Enrollment(result string) {
	if m == nil {
		return
	}
	m.enrollmentAttempts.WithLabelValues(result).Inc()
}

// LedgerEntry counts an appended entry.
func (m *Metrics) LedgerEntry(kind string) {
	if m == nil {
		return
	}
	m.ledgerEntries.WithLabelValues(kind).Inc()
}

// Credit counts a distribution outcome: "credited" or "skipped".
func (m *Metrics) Credit(outcome string) {
	if m == nil {
		return
	}
	m.distributionCredits.WithLabelValues(outcome).Inc()
}

// Transition counts a status transition attempt.
func (m *Metrics) Transition(to, result string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(to, result).Inc()
}

// ObserveDistribution records how long one distribution took.
func (m *Metrics) ObserveDistribution(d time.Duration) {
	if m == nil {
		return
	}
	m.distributionDuration.Observe(d.Seconds())
}

// NotificationDropped counts a discarded notification.
func (m *Metrics) NotificationDropped() {
	if m == nil {
		return
	}
	m.notificationsDropped.Inc()
}

// ReconcileCorrections adds n rewritten balances.
func (m *Metrics) ReconcileCorrections(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reconcileCorrections.Add(float64(n))
}
