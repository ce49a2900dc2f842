// Package retry wraps one batch-translate call with bounded exponential
// backoff. Each attempt is reduced to a Result, so retrying is a plain loop
// over results.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/valpere/stringtran/internal/dedup"
)

const (
	DefaultMaxRetries  = 3
	DefaultBaseBackoff = 2 * time.Second

	// MaxRetriesLimit bounds configured retry ceilings.
	MaxRetriesLimit = 20

	// excerptRunes bounds the sample of the first batch item in errors.
	excerptRunes = 80
)

var (
	// ErrCountMismatch means the provider returned a different number of
	// items than it was sent.
	ErrCountMismatch = errors.New("translation count does not match batch")

	// ErrRetriesExhausted is returned once every attempt has failed.
	ErrRetriesExhausted = errors.New("translation retries exhausted")
)

// Func translates an ordered batch of texts.
type Func func(ctx context.Context, batch []string) ([]string, error)

// Result is the outcome of invoking a Func: either Values or Err is set.
// Attempts and Waited describe the retry state at the time it finished.
type Result struct {
	Values   []string
	Err      error
	Attempts int
	Waited   time.Duration
}

// OK reports whether the invocation succeeded.
func (r Result) OK() bool { return r.Err == nil }

func success(values []string) Result { return Result{Values: values} }

func failure(err error) Result { return Result{Err: err} }

// Executor runs a Func with retries. The zero value uses no retries and no
// backoff; use New for the defaults.
type Executor struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// BaseBackoff is the wait before the first retry; it doubles per retry.
	BaseBackoff time.Duration
	// Sleep blocks between attempts. Defaults to time.Sleep.
	Sleep  func(time.Duration)
	Logger *zap.Logger
}

// New returns an Executor with the given ceiling and base backoff.
func New(maxRetries int, baseBackoff time.Duration) *Executor {
	return &Executor{
		MaxRetries:  maxRetries,
		BaseBackoff: baseBackoff,
		Sleep:       time.Sleep,
		Logger:      zap.NewNop(),
	}
}

// Backoff returns the wait that precedes attempt+1, given that attempt
// (1-based) has just failed.
// The result saturates at the largest Duration instead of overflowing.
func (e *Executor) Backoff(attempt int) time.Duration {
	if attempt < 1 || e.BaseBackoff <= 0 {
		return 0
	}
	shift := attempt - 1
	if shift >= 63 || e.BaseBackoff > time.Duration(math.MaxInt64>>shift) {
		return time.Duration(math.MaxInt64)
	}
	return e.BaseBackoff << shift
}

// Invoke calls fn for batch until it returns as many items as it was given,
// at most MaxRetries+1 times. Blank items in a successful response are
// replaced by the request item at the same position. The backoff wait is not
// interruptible once started.
func (e *Executor) Invoke(ctx context.Context, fn Func, batch []string) Result {
	sleep := e.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	log := e.Logger
	if log == nil {
		log = zap.NewNop()
	}

	var waited time.Duration
	attempt := 0
	for {
		res := attemptOnce(ctx, fn, batch)
		attempt++
		res.Attempts = attempt
		res.Waited = waited
		if res.OK() {
			return res
		}

		if attempt > e.MaxRetries {
			return Result{
				Err: fmt.Errorf("%w: first item %q, batch size %d: %w",
					ErrRetriesExhausted, excerpt(batch), len(batch), res.Err),
				Attempts: attempt,
				Waited:   waited,
			}
		}

		wait := e.Backoff(attempt)
		log.Warn("translation attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", e.MaxRetries),
			zap.Int("batch_size", len(batch)),
			zap.Duration("wait", wait),
			zap.Error(res.Err),
		)
		sleep(wait)
		waited += wait
	}
}

// attemptOnce runs fn and checks the response shape.
func attemptOnce(ctx context.Context, fn Func, batch []string) Result {
	out, err := fn(ctx, batch)
	if err != nil {
		return failure(err)
	}
	if len(out) != len(batch) {
		return failure(fmt.Errorf("%w: expected %d, received %d", ErrCountMismatch, len(batch), len(out)))
	}
	return success(FillBlanks(batch, out))
}

// FillBlanks returns out with every blank item replaced by the matching
// item of src. out and src must have the same length.
func FillBlanks(src, out []string) []string {
	filled := make([]string, len(out))
	for i, v := range out {
		if dedup.IsBlank(v) {
			filled[i] = src[i]
			continue
		}
		filled[i] = v
	}
	return filled
}

func excerpt(batch []string) string {
	if len(batch) == 0 {
		return ""
	}
	r := []rune(batch[0])
	if len(r) > excerptRunes {
		r = r[:excerptRunes]
	}
	return string(r)
}
