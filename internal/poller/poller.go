// Package poller drives SUBMITTED records toward their authority outcome in
// the background.
package poller

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/invois/internal/clock"
	"github.com/smallbiznis/invois/internal/config"
	obsmetrics "github.com/smallbiznis/invois/internal/observability/metrics"
	"github.com/smallbiznis/invois/internal/submission/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ErrInvalidConfig reports missing poller collaborators.
var ErrInvalidConfig = errors.New("poller: invalid configuration")

const advanceJob = "advance_submitted"

type Params struct {
	fx.In

	Log    *zap.Logger
	Repo   domain.Repository
	Svc    domain.Service
	Clock  clock.Clock
	Config config.Config
}

// Poller periodically polls the authority for every SUBMITTED record. Each
// record advances independently; one failed poll never blocks the batch.
type Poller struct {
	log   *zap.Logger
	repo  domain.Repository
	svc   domain.Service
	clock clock.Clock
	cfg   config.PollerConfig
}

func New(p Params) (*Poller, error) {
	if p.Log == nil || p.Repo == nil || p.Svc == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	cfg := p.Config.Poller
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}
	return &Poller{
		log:   p.Log.Named("poller").With(zap.String("component", "poller")),
		repo:  p.Repo,
		svc:   p.Svc,
		clock: p.Clock,
		cfg:   cfg,
	}, nil
}

// RunOnce executes one poll tick.
func (p *Poller) RunOnce(parent context.Context) error {
	return p.runJob(parent, advanceJob, p.cfg.JobTimeout, p.advanceSubmittedJob)
}

// RunForever polls on the configured interval until the context is cancelled.
func (p *Poller) RunForever(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := p.RunOnce(ctx); err != nil {
			p.log.Warn("poll tick failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *Poller) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := p.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	pollMetrics := obsmetrics.Poller()
	pollMetrics.IncJobRun(name)

	err := fn(ctx)
	pollMetrics.ObserveJobDuration(name, p.clock.Now().Sub(start))
	if err == nil {
		return nil
	}

	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		pollMetrics.IncJobTimeout(name)
		p.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return err
	}
	pollMetrics.IncJobError(name, err)
	p.log.Warn("job failed",
		zap.String("job", name),
		zap.Error(err),
	)
	return err
}

func (p *Poller) advanceSubmittedJob(ctx context.Context) error {
	records, err := p.repo.ListByStatus(ctx, domain.StatusSubmitted, p.cfg.BatchSize)
	if err != nil {
		return err
	}

	pollMetrics := obsmetrics.Poller()
	var jobErr error
	advanced := 0
	for _, record := range records {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}

		// runJob counts the joined error once for the whole tick.
		if err := p.svc.Advance(ctx, record.ID); err != nil {
			jobErr = errors.Join(jobErr, err)
			continue
		}

		updated, err := p.repo.Get(ctx, record.ID)
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			continue
		}
		if updated.Status != record.Status {
			pollMetrics.IncTransition(record.Status, updated.Status)
			advanced++
		}
	}
	pollMetrics.AddBatchProcessed(advanceJob, advanced)
	return jobErr
}
