package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mamadbah2/stockbook/internal/domain/models"
)

// Registry holds the application collectors. It satisfies ledger.Recorder and reporting.Observer.
type Registry struct {
	reg *prometheus.Registry

	Mutations       *prometheus.CounterVec
	MutationLatency *prometheus.HistogramVec
	Conflicts       *prometheus.CounterVec
	SnapshotLatency *prometheus.HistogramVec
	ReportsArchived *prometheus.CounterVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockbook_mutations_total",
		Help: "Ledger mutations by operation and outcome.",
	}, []string{"op", "outcome"})
	mutationLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stockbook_mutation_latency_seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockbook_mutation_conflicts_total",
		Help: "Transactions aborted by a concurrent writer.",
	}, []string{"op"})
	snapshotLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stockbook_snapshot_seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"cached"})
	reports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockbook_reports_archived_total",
	}, []string{"outcome"})

	r.MustRegister(mutations, mutationLatency, conflicts, snapshotLatency, reports)
	return &Registry{
		reg:             r,
		Mutations:       mutations,
		MutationLatency: mutationLatency,
		Conflicts:       conflicts,
		SnapshotLatency: snapshotLatency,
		ReportsArchived: reports,
	}
}

// ObserveMutation records one finished mutation.
func (r *Registry) ObserveMutation(op string, err error, elapsed time.Duration) {
	r.Mutations.WithLabelValues(op, Outcome(err)).Inc()
	r.MutationLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (r *Registry) ObserveConflict(op string) {
	r.Conflicts.WithLabelValues(op).Inc()
}

func (r *Registry) ObserveSnapshot(elapsed time.Duration, cached bool) {
	r.SnapshotLatency.WithLabelValues(strconv.FormatBool(cached)).Observe(elapsed.Seconds())
}

func (r *Registry) ObserveReport(err error) {
	r.ReportsArchived.WithLabelValues(Outcome(err)).Inc()
}

// Outcome maps an error to a low-cardinality label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrValidation):
		return "invalid"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, models.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
