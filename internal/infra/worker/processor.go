package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"startup-analysis-pipeline/internal/domain"
	"startup-analysis-pipeline/internal/domain/model"
	"startup-analysis-pipeline/internal/domain/ports/adapter"
	"startup-analysis-pipeline/internal/domain/ports/repository"
	"startup-analysis-pipeline/internal/infra/metrics"
	red "startup-analysis-pipeline/internal/infra/redis"
)

// JobRunner executes one claimed attempt. Satisfied by *Analyzer.
type JobRunner interface {
	Run(ctx context.Context, attempt *model.JobAttempt, report ProgressFunc) error
}

// Options bound the queue's retry behavior.
type Options struct {
	PollInterval time.Duration
	MaxAttempts  int
	BackoffBase  time.Duration
	BackoffMax   time.Duration
	LockTTL      time.Duration
}

// Processor drives the job queue: it claims due attempts, runs them on the
// pool, retries transient failures with exponential backoff and publishes
// progress. The claim query plus the optional cross-instance lock enforce at
// most one active worker per job key.
type Processor struct {
	jobs     repository.AnalysisJobRepository
	runner   JobRunner
	bus      adapter.ProgressBroadcaster
	notifier adapter.OpsNotifier
	locker   red.Locker // nil in single-instance deployments
	opts     Options
	log      *zerolog.Logger

	mu            sync.Mutex
	lastPublished map[string]int
}

func NewProcessor(
	jobs repository.AnalysisJobRepository,
	runner JobRunner,
	bus adapter.ProgressBroadcaster,
	notifier adapter.OpsNotifier,
	locker red.Locker,
	opts Options,
	logger *zerolog.Logger,
) *Processor {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 2 * time.Second
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = time.Minute
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Minute
	}
	l := logger.With().Str("component", "Processor").Logger()
	return &Processor{
		jobs: jobs, runner: runner, bus: bus, notifier: notifier, locker: locker,
		opts: opts, log: &l, lastPublished: map[string]int{},
	}
}

// Start polls for due jobs and hands them to the pool until ctx is done.
// This should be run in a goroutine.
func (p *Processor) Start(ctx context.Context, pool *Pool) {
	p.log.Info().Msg("job processor started")
	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("job processor stopping")
			return
		case <-ticker.C:
			_ = pool.Submit(func(ctx context.Context) error {
				p.ProcessOne(ctx)
				return nil
			})
		}
	}
}

// ProcessOne claims and runs at most one due attempt.
func (p *Processor) ProcessOne(ctx context.Context) {
	job, err := p.jobs.FetchDueAndMarkActive(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			p.log.Error().Err(err).Msg("failed to fetch job")
		}
		return
	}

	if p.locker != nil {
		token, err := p.locker.TryLock(ctx, "job_lock:"+job.JobKey, p.opts.LockTTL)
		if err != nil {
			// Another instance holds the key; push this attempt back.
			job.Status = model.JobStatusQueued
			job.NextRunAt = time.Now().Add(p.opts.BackoffBase)
			_ = p.jobs.Save(ctx, nil, job)
			return
		}
		defer func() { _ = p.locker.Unlock(context.Background(), "job_lock:"+job.JobKey, token) }()
	}

	p.log.Info().Str("job_key", job.JobKey).Str("attempt_id", job.ID).
		Int("attempt", job.Attempt).Msg("processing job")
	start := time.Now()
	err = p.runner.Run(ctx, job, p.report(job.JobKey))
	latency := time.Since(start)
	metrics.ObserveJobDuration(float64(latency.Milliseconds()))

	now := time.Now()
	switch {
	case err == nil:
		job.Status = model.JobStatusCompleted
		job.LastError = ""
		job.FinishedAt = &now
		metrics.IncJob(string(model.JobStatusCompleted))
		p.publishComplete(job)
	case domain.IsTransient(err) && job.Attempt < p.opts.MaxAttempts:
		delay := p.backoff(job.Attempt)
		job.Status = model.JobStatusQueued
		job.Attempt++
		job.LastError = err.Error()
		job.NextRunAt = now.Add(delay)
		metrics.IncJobRetry()
		metrics.IncJob("requeued")
		p.log.Warn().Err(err).Str("job_key", job.JobKey).Int("next_attempt", job.Attempt).
			Dur("backoff", delay).Msg("transient failure; job requeued")
	default:
		job.Status = model.JobStatusFailed
		job.LastError = err.Error()
		job.FinishedAt = &now
		metrics.IncJob(string(model.JobStatusFailed))
		p.log.Error().Err(err).Str("job_key", job.JobKey).Int("attempt", job.Attempt).Msg("job failed")
		p.forgetWatermark(job.JobKey)
		p.notifier.NotifyJobTerminal(context.Background(), job.JobKey, string(job.Status), job.LastError)
	}

	// Final update runs on a background context so shutdown does not lose the
	// terminal state.
	if saveErr := p.jobs.Save(context.Background(), nil, job); saveErr != nil {
		p.log.Error().Err(saveErr).Str("job_key", job.JobKey).Msg("failed to save job state")
	}
	p.log.Info().Str("job_key", job.JobKey).Str("status", string(job.Status)).
		Dur("duration", latency).Msg("job finished")
}

// report forwards worker progress to the broadcaster, suppressing events
// whose current value is unchanged since the last publish for the key.
func (p *Processor) report(jobKey string) ProgressFunc {
	return func(current, total int, completed []string) {
		p.mu.Lock()
		last, seen := p.lastPublished[jobKey]
		if seen && current == last {
			p.mu.Unlock()
			return
		}
		p.lastPublished[jobKey] = current
		p.mu.Unlock()

		p.bus.Publish(context.Background(), jobKey, model.ProgressEvent{
			Type:                model.EventProgress,
			JobKey:              jobKey,
			Current:             current,
			Total:               total,
			CompletedCategories: completed,
		})
	}
}

// publishComplete emits the terminal event. Once sent, subscribers may ignore
// any further progress for this key.
func (p *Processor) publishComplete(job *model.JobAttempt) {
	p.forgetWatermark(job.JobKey)
	p.bus.Publish(context.Background(), job.JobKey, model.ProgressEvent{
		Type:    model.EventComplete,
		JobKey:  job.JobKey,
		Current: job.TotalDimensions,
		Total:   job.TotalDimensions,
	})
	p.notifier.NotifyJobTerminal(context.Background(), job.JobKey, string(job.Status), "")
}

func (p *Processor) forgetWatermark(jobKey string) {
	p.mu.Lock()
	delete(p.lastPublished, jobKey)
	p.mu.Unlock()
}

func (p *Processor) backoff(attempt int) time.Duration {
	d := p.opts.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.opts.BackoffMax {
			return p.opts.BackoffMax
		}
	}
	if d > p.opts.BackoffMax {
		d = p.opts.BackoffMax
	}
	return d
}
