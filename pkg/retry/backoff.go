package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultBase    = time.Second
	DefaultMaxWait = 8 * time.Second
)

// Policy bounds a retry loop. The wait after failed attempt n is
// min(Base * 2^(n-1), MaxWait).
type Policy struct {
	Base        time.Duration
	MaxWait     time.Duration
	MaxAttempts int
}

func NewPolicy(maxAttempts int) Policy {
	return Policy{
		Base:        DefaultBase,
		MaxWait:     DefaultMaxWait,
		MaxAttempts: maxAttempts,
	}
}

func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if p.Base <= 0 {
		return 0
	}

	wait := p.Base
	for i := 1; i < attempt; i++ {
		if p.MaxWait > 0 && wait >= p.MaxWait {
			break
		}
		wait *= 2
	}
	if p.MaxWait > 0 && wait > p.MaxWait {
		wait = p.MaxWait
	}
	return wait
}

// Sleeper waits for d or until ctx is done, whichever comes first.
type Sleeper func(ctx context.Context, d time.Duration) error

func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Attempt describes one iteration of a retry loop. Prior is the
// classification of the previous failure, zero on the first attempt.
type Attempt struct {
	Index    int
	Prior    Verdict
	PriorErr error
}

var ErrExhausted = errors.New("retry attempts exhausted")

// Failure is returned by Run when the loop gives up.
type Failure struct {
	Attempts  int
	Verdict   Verdict
	Exhausted bool
	Err       error
}

func (f *Failure) Error() string {
	if f.Exhausted {
		return fmt.Sprintf("%s after %d attempts (%s): %v", ErrExhausted, f.Attempts, f.Verdict.Category, f.Err)
	}
	return fmt.Sprintf("non-retryable failure on attempt %d (%s): %v", f.Attempts, f.Verdict.Category, f.Err)
}

func (f *Failure) Unwrap() []error {
	if f.Exhausted {
		return []error{ErrExhausted, f.Err}
	}
	return []error{f.Err}
}

// Run calls fn until it succeeds, returns a non-retryable error, or
// p.MaxAttempts is reached. onWait, when non-nil, observes every backoff
// before it is slept. Cancellation of ctx during a wait returns ctx.Err().
func Run(ctx context.Context, p Policy, sleep Sleeper, fn func(ctx context.Context, a Attempt) error, onWait func(a Attempt, wait time.Duration)) (int, error) {
	if sleep == nil {
		sleep = Sleep
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var current Attempt
	for n := 1; n <= maxAttempts; n++ {
		current.Index = n

		err := fn(ctx, current)
		if err == nil {
			return n, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return n, ctxErr
		}

		verdict := Classify(err)
		if !verdict.Retryable {
			return n, &Failure{Attempts: n, Verdict: verdict, Err: err}
		}
		if n == maxAttempts {
			return n, &Failure{Attempts: n, Verdict: verdict, Exhausted: true, Err: err}
		}

		wait := p.Backoff(n)
		current = Attempt{Prior: verdict, PriorErr: err}
		if onWait != nil {
			onWait(Attempt{Index: n, Prior: verdict, PriorErr: err}, wait)
		}
		if err := sleep(ctx, wait); err != nil {
			return n, err
		}
	}

	return maxAttempts, nil
}
