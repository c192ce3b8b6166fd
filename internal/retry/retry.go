// Package retry runs fallible operations with a bounded number of attempts and
// a fixed sleep between them.
//
// Exhausting the attempts is not an error for the caller: Execute returns the
// zero value together with StatusFailed, and the failures themselves are only
// visible through the Policy.OnFailure hook.
package retry

import (
	"context"
	"time"
)

type Status int

const (
	StatusSucceeded Status = iota
	StatusFailed
)

func (s Status) String() string {
	if s == StatusSucceeded {
		return "succeeded"
	}
	return "failed"
}

// Policy controls a single Execute call.
type Policy struct {
	// MaxAttempts is the total number of calls to the operation. Values below 1 mean 1.
	MaxAttempts int
	// Sleep is the fixed interval between two attempts.
	Sleep time.Duration
	// Retryable reports whether err should trigger another attempt. nil retries every error.
	Retryable func(err error) bool
	// OnFailure is invoked once per failed attempt, before the retry decision.
	OnFailure func(err error, op string, args []any)
}

// Result is what ExecuteAsync delivers.
type Result[T any] struct {
	Value    T
	Status   Status
	Attempts int
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p Policy) retryable(err error) bool {
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

func (p Policy) report(err error, op string, args []any) {
	if p.OnFailure != nil {
		p.OnFailure(err, op, args)
	}
}

// Execute calls fn until it succeeds, returns a non-retryable error, or the
// attempts are used up. The caller's context also ends the wait between attempts.
func Execute[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error), args ...any) (T, Status) {
	r := run(ctx, p, op, fn, args)
	return r.Value, r.Status
}

// ExecuteAsync is Execute on its own goroutine. The returned channel yields
// exactly one Result and is then closed.
func ExecuteAsync[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error), args ...any) <-chan Result[T] {
	out := make(chan Result[T], 1)
	go func() {
		defer close(out)
		out <- run(ctx, p, op, fn, args)
	}()
	return out
}

func run[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error), args []any) Result[T] {
	var zero T
	limit := p.attempts()
	for attempt := 1; attempt <= limit; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return Result[T]{Value: v, Status: StatusSucceeded, Attempts: attempt}
		}
		p.report(err, op, args)
		if !p.retryable(err) || attempt == limit {
			return Result[T]{Value: zero, Status: StatusFailed, Attempts: attempt}
		}
		if !wait(ctx, p.Sleep) {
			return Result[T]{Value: zero, Status: StatusFailed, Attempts: attempt}
		}
	}
	return Result[T]{Value: zero, Status: StatusFailed, Attempts: limit}
}

// wait sleeps on a timer so the goroutine is parked rather than spinning.
// It returns false if ctx ended first.
func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
