// Package poller drives a long-running generation job to completion by
// repeatedly asking the service for its status.
package poller

import (
	"context"
	"errors"
	"time"

	"spritestudio/internal/domain"
	"spritestudio/internal/infra"
)

const (
	DefaultInterval    = 10 * time.Second
	DefaultMaxAttempts = 90
	DefaultTimeout     = 20 * time.Minute
)

// LoadingMessages are shown in rotation while a video renders.
var LoadingMessages = []string{
	"Warming up the digital director's chair...",
	"Choreographing pixels into motion...",
	"Rendering the opening scene...",
	"Applying cinematic magic...",
	"Polishing the final cut...",
	"Almost ready for the premiere...",
}

// StatusChecker refreshes a job from the remote service.
type StatusChecker interface {
	CheckVideoStatus(ctx context.Context, job *domain.GenerationJob) (*domain.GenerationJob, error)
}

// Progress is reported after every status check.
type Progress struct {
	Attempt int           `json:"attempt"`
	Elapsed time.Duration `json:"elapsed"`
	Message string        `json:"message"`
}

// Options tunes the polling loop. Zero values fall back to the defaults; a
// negative MaxAttempts or Timeout disables that bound.
type Options struct {
	Interval    time.Duration
	MaxAttempts int
	Timeout     time.Duration
	OnProgress  func(Progress)
	Logger      *infra.Logger

	// sleep waits for d or until ctx is done. Tests replace it.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// Poller waits for jobs submitted to a StatusChecker.
type Poller struct {
	checker     StatusChecker
	interval    time.Duration
	maxAttempts int
	timeout     time.Duration
	onProgress  func(Progress)
	logger      *infra.Logger
	sleep       func(ctx context.Context, d time.Duration) error
	now         func() time.Time
}

// New builds a Poller around checker.
func New(checker StatusChecker, opts Options) *Poller {
	p := &Poller{
		checker:     checker,
		interval:    opts.Interval,
		maxAttempts: opts.MaxAttempts,
		timeout:     opts.Timeout,
		onProgress:  opts.OnProgress,
		logger:      opts.Logger,
		sleep:       opts.sleep,
		now:         opts.now,
	}
	if p.interval <= 0 {
		p.interval = DefaultInterval
	}
	if p.maxAttempts == 0 {
		p.maxAttempts = DefaultMaxAttempts
	}
	if p.timeout == 0 {
		p.timeout = DefaultTimeout
	}
	if p.logger == nil {
		p.logger = infra.DiscardLogger()
	}
	if p.sleep == nil {
		p.sleep = sleepContext
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// WithProgress returns a copy of p that reports to fn instead.
func (p *Poller) WithProgress(fn func(Progress)) *Poller {
	clone := *p
	clone.onProgress = fn
	return &clone
}

// Poll blocks until job finishes, fails, runs out of attempts or time, or ctx
// is cancelled. A nil error means the returned job is done and carries a
// result locator.
func (p *Poller) Poll(ctx context.Context, job *domain.GenerationJob) (*domain.GenerationJob, error) {
	const op = "poll video"
	if job == nil {
		return nil, domain.InvalidInput(op, "job is required")
	}
	started := p.now()
	var deadline time.Time
	if p.timeout > 0 {
		deadline = started.Add(p.timeout)
	}

	for attempt := 1; !job.Done; attempt++ {
		if p.maxAttempts > 0 && attempt > p.maxAttempts {
			p.logger.Warn().Str("handle", job.Handle).Int("attempts", p.maxAttempts).Msg("poller: attempt limit reached")
			return job, domain.NewError(domain.KindTimeout, op, "video generation took too long", nil)
		}
		if err := p.sleep(ctx, p.interval); err != nil {
			return job, domain.NewError(domain.KindCancelled, op, "video generation cancelled", err)
		}
		if !deadline.IsZero() && p.now().After(deadline) {
			p.logger.Warn().Str("handle", job.Handle).Dur("timeout", p.timeout).Msg("poller: deadline exceeded")
			return job, domain.NewError(domain.KindTimeout, op, "video generation took too long", nil)
		}

		next, err := p.checker.CheckVideoStatus(ctx, job)
		if err != nil {
			return job, p.failure(ctx, op, job, attempt, err)
		}
		if next != nil {
			job = next
		}
		p.logger.Debug().Str("handle", job.Handle).Int("attempt", attempt).Bool("done", job.Done).Msg("poller: status checked")
		if p.onProgress != nil {
			p.onProgress(Progress{
				Attempt: attempt,
				Elapsed: p.now().Sub(started),
				Message: LoadingMessages[(attempt-1)%len(LoadingMessages)],
			})
		}
	}

	if job.Err != nil {
		return job, domain.NewError(domain.KindService, op, job.Err.Message, nil)
	}
	if job.ResultLocator == "" {
		return job, domain.NewError(domain.KindService, op, "Video generation did not return a valid URL.", nil)
	}
	return job, nil
}

func (p *Poller) failure(ctx context.Context, op string, job *domain.GenerationJob, attempt int, err error) error {
	event := p.logger.Warn().Err(err).Str("handle", job.Handle).Int("attempt", attempt)
	switch {
	case ctx.Err() != nil || errors.Is(err, domain.ErrCancelled):
		event.Msg("poller: cancelled during status check")
		return domain.NewError(domain.KindCancelled, op, "video generation cancelled", err)
	case errors.Is(err, domain.ErrCredential):
		event.Msg("poller: credential rejected")
		return domain.NewError(domain.KindCredential, op, "API Key error. Please re-select your API key.", err)
	default:
		event.Msg("poller: status check failed")
		return domain.NewError(domain.KindPolling, op, "An error occurred while checking video status.", err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
