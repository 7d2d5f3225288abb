// Package runner drives a lookup run: it walks the domain list in chunks sized
// by the service's per-request cap and the credits left on the key, retries
// throttled requests after a fixed delay, and asks for a new key when the
// credits run out before the list does.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"techlookup/internal/prompt"
	"techlookup/pkg/domain"
	"techlookup/pkg/logger"
	"techlookup/pkg/lookup"
	"techlookup/pkg/metrics"
	"techlookup/pkg/serrors"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// NewKeyQuestion is asked when the key runs out of credits mid-run.
const NewKeyQuestion = "Enter new API key (or press enter to quit): "

// Options configure the batch loop.
type Options struct {
	// BatchSize is the maximum number of domains per request. Values outside
	// 1..lookup.MaxBatchSize are replaced by lookup.MaxBatchSize.
	BatchSize int
	// RetryDelay is the fixed wait after a rate-limited request.
	RetryDelay time.Duration
	// Limiter paces lookup requests when set.
	Limiter *rate.Limiter
}

// Deps are the collaborators of a Runner.
type Deps struct {
	// Client performs balance and lookup calls.
	Client lookup.Client
	// Prompter asks for a replacement key.
	Prompter prompt.Prompter
	// Metrics is optional.
	Metrics *metrics.Metrics
	// Sleep waits d or until ctx is done. Defaults to a timer based wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Report is what a run produced.
type Report struct {
	// Results are the records accumulated so far, in request order.
	Results []domain.Result
	// Processed is the number of domains consumed from the list.
	Processed int
	// Requests counts lookup requests issued, retries included.
	Requests int
	// Credits is the last known credit balance of the active key.
	Credits int
	// Aborted is set when the user declined to supply a new key.
	Aborted bool
}

// Runner executes lookup runs.
type Runner interface {
	// Run looks up domains using key, which is known to hold credits. The
	// returned Report is meaningful even when err is non-nil.
	Run(ctx context.Context, key string, credits int, domains []string) (Report, error)
}

type runner struct {
	options Options
	deps    Deps
}

// ChunkSize returns how many domains the next request may carry: never more
// than remaining, batch or credits.
func ChunkSize(remaining, batch, credits int) int {
	return max(0, min(remaining, batch, credits))
}

// Run implements Runner. Loop state (cursor, credits, key) lives here and
// nowhere else.
func (r *runner) Run(ctx context.Context, key string, credits int, domains []string) (Report, error) {
	report := Report{Results: make([]domain.Result, 0, len(domains)), Credits: credits}
	total := len(domains)
	ctx = logger.WithFields(ctx, zap.Int("total", total))

	i := 0
	for i < total {
		size := ChunkSize(total-i, r.options.BatchSize, credits)
		if size == 0 {
			// only reachable when the caller hands over a key without credits
			return report, serrors.With(serrors.ErrNoCredit, "no credit available to use")
		}
		chunk := domains[i : i+size]

		if r.options.Limiter != nil {
			if err := r.options.Limiter.Wait(ctx); err != nil {
				return report, fmt.Errorf("could not wait for request slot: %w", err)
			}
		}

		start := time.Now()
		res, err := r.deps.Client.Lookup(ctx, key, chunk)
		report.Requests++
		r.deps.Metrics.ObserveRequest(outcome(err), time.Since(start))
		if err != nil {
			if errors.Is(err, serrors.ErrRateLimited) {
				logger.Warn(ctx, "rate limit exceeded, retrying",
					zap.Int("cursor", i),
					zap.Duration("delay", r.options.RetryDelay))
				if err := r.deps.Sleep(ctx, r.options.RetryDelay); err != nil {
					return report, fmt.Errorf("interrupted while waiting for rate limit: %w", err)
				}

				continue
			}
			if errors.Is(err, serrors.ErrBadRequest) {
				logger.Error(ctx, "there was an error with the domain list",
					zap.Strings("chunk", chunk),
					zap.Error(err))
			}
			if len(res.Results) > 0 {
				// the request went through, only its credit count is unknown
				report.Results = append(report.Results, res.Results...)
				report.Processed = i + size
				r.deps.Metrics.AddDomains(size)
			}

			return report, fmt.Errorf("could not look up domains: %w", err)
		}

		report.Results = append(report.Results, res.Results...)
		i += size
		credits = res.CreditsRemaining
		report.Processed = i
		report.Credits = credits
		r.deps.Metrics.AddDomains(size)
		r.deps.Metrics.SetCredits(credits)
		logger.Info(ctx, "batch looked up",
			zap.Int("processed", i),
			zap.Int("batch", size),
			zap.Int("credits", credits))

		if i < total && credits <= 0 {
			logger.Warn(ctx, "no credit left in the key", zap.Int("remaining", total-i))

			newKey, newCredits, err := r.replaceKey(ctx)
			if errors.Is(err, serrors.ErrAborted) {
				report.Aborted = true

				break
			}
			if err != nil {
				return report, err
			}
			key, credits = newKey, newCredits
			report.Credits = credits
			r.deps.Metrics.KeyReplaced()
			r.deps.Metrics.SetCredits(credits)
		}
	}

	return report, nil
}

// replaceKey asks for a new key and validates it. An empty answer yields
// serrors.ErrAborted.
func (r *runner) replaceKey(ctx context.Context) (string, int, error) {
	answer, err := r.deps.Prompter.Ask(ctx, NewKeyQuestion)
	if err != nil {
		return "", 0, fmt.Errorf("could not read new API key: %w", err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		logger.Info(ctx, "no new API key given, stopping")

		return "", 0, serrors.KindOnly(serrors.ErrAborted)
	}

	balance, err := r.deps.Client.Balance(ctx, answer)
	if err != nil {
		return "", 0, fmt.Errorf("could not validate new API key: %w", err)
	}
	logger.Info(ctx, "switched API key", zap.Int("credits", balance.Credits))

	return answer, balance.Credits, nil
}

// outcome labels a lookup result for metrics.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if k := serrors.KindOf(err); k != nil {
		return strings.ToLower(k.Error())
	}

	return "error"
}

// sleep waits for d unless ctx ends first.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err() //nolint: wrapcheck
	case <-t.C:
		return nil
	}
}

// New creates a Runner. BatchSize is clamped to the service limit and a nil
// Sleep is replaced by a timer based wait.
func New(deps Deps, options Options) Runner {
	if options.BatchSize <= 0 || options.BatchSize > lookup.MaxBatchSize {
		options.BatchSize = lookup.MaxBatchSize
	}
	if deps.Sleep == nil {
		deps.Sleep = sleep
	}

	return &runner{
		options: options,
		deps:    deps,
	}
}
