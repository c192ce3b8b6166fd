package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

var errTransient = errors.New("transient")
var errFatal = errors.New("fatal")

type RetryTestSuite struct {
	suite.Suite
}

func TestRetryTestSuite(t *testing.T) {
	suite.Run(t, new(RetryTestSuite))
}

func (s *RetryTestSuite) TestAlwaysFailingStopsAtMaxAttempts() {
	calls := 0
	failures := 0
	p := Policy{
		MaxAttempts: 3,
		Sleep:       time.Millisecond,
		OnFailure:   func(err error, op string, args []any) { failures++ },
	}
	v, st := Execute(context.Background(), p, "get", func(ctx context.Context) (string, error) {
		calls++
		return "ignored", errTransient
	})
	s.Equal(3, calls)
	s.Equal(3, failures)
	s.Equal(StatusFailed, st)
	s.Equal("", v)
}

func (s *RetryTestSuite) TestSucceedsAfterTransientFailures() {
	calls := 0
	v, st := Execute(context.Background(), Policy{MaxAttempts: 5}, "get", func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errTransient
		}
		return 42, nil
	})
	s.Equal(StatusSucceeded, st)
	s.Equal(42, v)
	s.Equal(3, calls)
}

func (s *RetryTestSuite) TestNonRetryableEndsImmediately() {
	calls := 0
	var seen []error
	p := Policy{
		MaxAttempts: 4,
		Retryable:   func(err error) bool { return errors.Is(err, errTransient) },
		OnFailure:   func(err error, op string, args []any) { seen = append(seen, err) },
	}
	_, st := Execute(context.Background(), p, "set", func(ctx context.Context) (bool, error) {
		calls++
		return false, errFatal
	})
	s.Equal(StatusFailed, st)
	s.Equal(1, calls)
	s.Len(seen, 1)
}

func (s *RetryTestSuite) TestOnFailureReceivesOperationAndArgs() {
	var gotOp string
	var gotArgs []any
	p := Policy{
		MaxAttempts: 1,
		OnFailure: func(err error, op string, args []any) {
			gotOp = op
			gotArgs = args
		},
	}
	Execute(context.Background(), p, "hset", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, errTransient
	}, "idx:a", 2)
	s.Equal("hset", gotOp)
	s.Equal([]any{"idx:a", 2}, gotArgs)
}

func (s *RetryTestSuite) TestZeroAttemptsMeansOne() {
	calls := 0
	_, st := Execute(context.Background(), Policy{}, "noop", func(ctx context.Context) (int, error) {
		calls++
		return 0, errTransient
	})
	s.Equal(StatusFailed, st)
	s.Equal(1, calls)
}

func (s *RetryTestSuite) TestCancelledContextStopsWaiting() {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	start := time.Now()
	_, st := Execute(ctx, Policy{MaxAttempts: 3, Sleep: time.Hour}, "get", func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, errTransient
	})
	s.Equal(StatusFailed, st)
	s.Equal(1, calls)
	s.Less(time.Since(start), time.Second)
}

func (s *RetryTestSuite) TestAsyncHasSameSemantics() {
	calls := 0
	ch := ExecuteAsync(context.Background(), Policy{MaxAttempts: 3, Sleep: time.Millisecond}, "get",
		func(ctx context.Context) (string, error) {
			calls++
			return "", errTransient
		})
	r, ok := <-ch
	s.True(ok)
	s.Equal(StatusFailed, r.Status)
	s.Equal(3, r.Attempts)
	s.Equal(3, calls)

	_, ok = <-ch
	s.False(ok)
}

func (s *RetryTestSuite) TestAsyncSuccess() {
	r := <-ExecuteAsync(context.Background(), Policy{MaxAttempts: 2}, "get",
		func(ctx context.Context) (string, error) { return "v", nil })
	s.Equal(StatusSucceeded, r.Status)
	s.Equal("v", r.Value)
	s.Equal(1, r.Attempts)
}

func (s *RetryTestSuite) TestClassify() {
	s.Equal(KindUnableToResolve, Classify(&net.DNSError{Err: "no such host", Name: "redis.invalid"}))
	s.Equal(KindUnableToConnect, Classify(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}))
	s.Equal(KindUnableToConnect, Classify(fmt.Errorf("wrapped: %w", syscall.ECONNREFUSED)))
	s.Equal(KindOther, Classify(errors.New("READONLY You can't write against a read only replica")))
	s.Equal(KindOther, Classify(nil))
	s.Equal("kvguard.redis.failure.unable_to_connect", KindUnableToConnect.CounterName())
}
