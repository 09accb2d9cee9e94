// Package metrics exposes prometheus instruments for the background poller
// and the submission lifecycle.
package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/invois/internal/myinvois"
	"github.com/smallbiznis/invois/internal/submission/domain"
)

// Config carries the constant labels applied to every instrument.
type Config struct {
	ServiceName string
	Environment string
}

const (
	PollerJobReasonDeadlineExceeded = "deadline_exceeded"
	PollerJobReasonRetriesExhausted = "retries_exhausted"
	PollerJobReasonAuthority        = "authority"
	PollerJobReasonConcurrentUpdate = "concurrent_update"
	PollerJobReasonUnknown          = "unknown"
)

// PollerMetrics captures poller health signals.
type PollerMetrics struct {
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobTimeouts    *prometheus.CounterVec
	jobErrors      *prometheus.CounterVec
	batchProcessed *prometheus.CounterVec
	transitions    *prometheus.CounterVec

	transitionCounts map[domain.Status]map[domain.Status]prometheus.Counter
}

var (
	pollerMetricsOnce sync.Once
	pollerMetrics     *PollerMetrics
)

// Poller returns the singleton poller metrics registry.
func Poller() *PollerMetrics {
	return PollerWithConfig(Config{})
}

// PollerWithConfig returns the singleton poller metrics registry using config labels.
func PollerWithConfig(cfg Config) *PollerMetrics {
	pollerMetricsOnce.Do(func() {
		pollerMetrics = newPollerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return pollerMetrics
}

// ResetPollerMetricsForTest resets the poller metrics singleton for tests.
func ResetPollerMetricsForTest() {
	pollerMetricsOnce = sync.Once{}
	pollerMetrics = nil
}

func newPollerMetrics(registerer prometheus.Registerer, cfg Config) *PollerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "invois"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "invois_poller_job_runs_total",
		Help:        "Poller job runs by name.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "invois_poller_job_duration_seconds",
		Help:        "Poller job latency to keep validation outcomes fresh.",
		Buckets:     []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		ConstLabels: constLabels,
	}, []string{"job"})
	jobTimeouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "invois_poller_job_timeouts_total",
		Help:        "Poller job timeouts that delay lifecycle resolution.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "invois_poller_job_errors_total",
		Help:        "Poller job errors by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"job", "reason"})
	batchProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "invois_poller_batch_processed_total",
		Help:        "Records advanced per poller batch to gauge throughput.",
		ConstLabels: constLabels,
	}, []string{"job"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "invois_submission_transitions_total",
		Help:        "Submission lifecycle transitions to validate state machine health.",
		ConstLabels: constLabels,
	}, []string{"from", "to"})

	registerer.MustRegister(
		jobRuns,
		jobDuration,
		jobTimeouts,
		jobErrors,
		batchProcessed,
		transitions,
	)

	legal := map[domain.Status][]domain.Status{
		domain.StatusDraft:     {domain.StatusPending},
		domain.StatusPending:   {domain.StatusSubmitted, domain.StatusRejected, domain.StatusError},
		domain.StatusError:     {domain.StatusPending},
		domain.StatusSubmitted: {domain.StatusValid, domain.StatusInvalid, domain.StatusCancelled},
		domain.StatusValid:     {domain.StatusCancelled},
	}
	transitionCounts := make(map[domain.Status]map[domain.Status]prometheus.Counter, len(legal))
	for from, tos := range legal {
		counters := make(map[domain.Status]prometheus.Counter, len(tos))
		for _, to := range tos {
			counters[to] = transitions.WithLabelValues(string(from), string(to))
		}
		transitionCounts[from] = counters
	}

	return &PollerMetrics{
		jobRuns:          jobRuns,
		jobDuration:      jobDuration,
		jobTimeouts:      jobTimeouts,
		jobErrors:        jobErrors,
		batchProcessed:   batchProcessed,
		transitions:      transitions,
		transitionCounts: transitionCounts,
	}
}

// IncJobRun increments the run counter for a poller job.
func (m *PollerMetrics) IncJobRun(job string) {
	if m == nil || m.jobRuns == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

// ObserveJobDuration records poller job latency in seconds.
func (m *PollerMetrics) ObserveJobDuration(job string, duration time.Duration) {
	if m == nil || m.jobDuration == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// IncJobTimeout increments the timeout counter for the poller job.
func (m *PollerMetrics) IncJobTimeout(job string) {
	if m == nil || m.jobTimeouts == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(job).Inc()
}

// IncJobError increments the error counter with a classified reason.
func (m *PollerMetrics) IncJobError(job string, err error) {
	if m == nil || m.jobErrors == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifyPollerJobReason(err)).Inc()
}

// AddBatchProcessed adds to the processed counter for the poller job.
func (m *PollerMetrics) AddBatchProcessed(job string, count int) {
	if m == nil || m.batchProcessed == nil || count <= 0 {
		return
	}
	m.batchProcessed.WithLabelValues(job).Add(float64(count))
}

// IncTransition counts one lifecycle transition. Unknown pairs are dropped to
// keep the label space bounded.
func (m *PollerMetrics) IncTransition(from, to domain.Status) {
	if m == nil {
		return
	}
	counters, ok := m.transitionCounts[from]
	if !ok {
		return
	}
	counter, ok := counters[to]
	if !ok {
		return
	}
	counter.Inc()
}

// ClassifyPollerJobReason maps an error to a low-cardinality reason label.
func ClassifyPollerJobReason(err error) string {
	switch {
	case err == nil:
		return PollerJobReasonUnknown
	case errors.Is(err, context.DeadlineExceeded):
		return PollerJobReasonDeadlineExceeded
	case errors.Is(err, myinvois.ErrRetriesExhausted):
		return PollerJobReasonRetriesExhausted
	case errors.Is(err, domain.ErrConcurrentUpdate):
		return PollerJobReasonConcurrentUpdate
	}
	var apiErr *myinvois.APIError
	if errors.As(err, &apiErr) {
		return PollerJobReasonAuthority
	}
	return PollerJobReasonUnknown
}
