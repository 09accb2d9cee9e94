package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/invois/internal/myinvois"
	"github.com/smallbiznis/invois/internal/submission/domain"
)

func TestClassifyPollerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "deadline",
			err:  context.DeadlineExceeded,
			want: PollerJobReasonDeadlineExceeded,
		},
		{
			name: "retries_exhausted",
			err:  myinvois.ErrRetriesExhausted,
			want: PollerJobReasonRetriesExhausted,
		},
		{
			name: "authority",
			err:  &myinvois.APIError{StatusCode: 400, Code: "BadArgument"},
			want: PollerJobReasonAuthority,
		},
		{
			name: "concurrent_update",
			err:  domain.ErrConcurrentUpdate,
			want: PollerJobReasonConcurrentUpdate,
		},
		{
			name: "unknown",
			err:  errors.New("boom"),
			want: PollerJobReasonUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyPollerJobReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestAddBatchProcessed(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newPollerMetrics(registry, Config{
		ServiceName: "invois",
		Environment: "test",
	})

	metrics.AddBatchProcessed("advance_submitted", 3)

	got := testutil.ToFloat64(metrics.batchProcessed.WithLabelValues("advance_submitted"))
	if got != 3 {
		t.Fatalf("expected processed count 3, got %v", got)
	}
}

func TestIncTransitionDropsUnknownPairs(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newPollerMetrics(registry, Config{
		ServiceName: "invois",
		Environment: "test",
	})

	metrics.IncTransition(domain.StatusSubmitted, domain.StatusValid)
	metrics.IncTransition(domain.StatusValid, domain.StatusPending)

	got := testutil.ToFloat64(metrics.transitions.WithLabelValues(
		string(domain.StatusSubmitted), string(domain.StatusValid),
	))
	if got != 1 {
		t.Fatalf("expected 1 transition, got %v", got)
	}
	regressed := testutil.ToFloat64(metrics.transitions.WithLabelValues(
		string(domain.StatusValid), string(domain.StatusPending),
	))
	if regressed != 0 {
		t.Fatalf("expected regression to be dropped, got %v", regressed)
	}
}
