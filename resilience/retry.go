package resilience

import (
	"context"
	stderrors "errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/kbukum/imgprep/logger"
)

// Policy configures retries.
type Policy struct {
	// Attempts is the maximum number of calls, including the first.
	Attempts int
	// Initial is the wait after the first failure.
	Initial time.Duration
	// Max caps any single wait.
	Max time.Duration
	// Factor multiplies the wait after every failure.
	Factor float64
	// Jitter spreads each wait by up to this fraction in either direction.
	Jitter float64
	// Retryable reports whether an error is worth another attempt.
	// Nil retries everything but context errors.
	Retryable func(error) bool
	// OnRetry is called before each wait.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultPolicy returns three attempts with exponential backoff from 100ms.
func DefaultPolicy() Policy {
	return Policy{
		Attempts: 3,
		Initial:  100 * time.Millisecond,
		Max:      5 * time.Second,
		Factor:   2,
		Jitter:   0.1,
	}
}

// Logged returns a copy of p that logs every retry as a warning.
func (p Policy) Logged(log *logger.Logger, op string) Policy {
	p.OnRetry = func(attempt int, err error, wait time.Duration) {
		log.Warn(op+" failed, retrying", logger.MergeWithError(logger.Fields(
			"attempt", attempt,
			"backoff", wait.String(),
		), err))
	}
	return p
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.Attempts <= 0 {
		p.Attempts = d.Attempts
	}
	if p.Initial <= 0 {
		p.Initial = d.Initial
	}
	if p.Max <= 0 {
		p.Max = d.Max
	}
	if p.Factor < 1 {
		p.Factor = d.Factor
	}
	if p.Retryable == nil {
		p.Retryable = notCanceled
	}
	return p
}

func notCanceled(err error) bool {
	return !stderrors.Is(err, context.Canceled) && !stderrors.Is(err, context.DeadlineExceeded)
}

// Backoff returns the wait after the given failed attempt, starting at 1.
func (p Policy) Backoff(attempt int) time.Duration {
	p = p.normalized()
	wait := float64(p.Initial) * math.Pow(p.Factor, float64(attempt-1))
	if p.Jitter > 0 {
		wait += (rand.Float64()*2 - 1) * wait * p.Jitter
	}
	if wait > float64(p.Max) {
		wait = float64(p.Max)
	}
	if wait <= 0 {
		wait = float64(p.Initial)
	}
	return time.Duration(wait)
}

// Do calls fn until it succeeds, returns an error p does not retry, or
// p.Attempts calls have failed. The last error is returned unwrapped. A done
// ctx stops the loop with ctx.Err().
func Do[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	p = p.normalized()
	var zero T
	var err error
	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
		var v T
		if v, err = fn(ctx); err == nil {
			return v, nil
		}
		if attempt == p.Attempts || !p.Retryable(err) {
			return zero, err
		}

		wait := p.Backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}

// DoErr is Do for functions without a result.
func DoErr(ctx context.Context, p Policy, fn func(context.Context) error) error {
	_, err := Do(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
