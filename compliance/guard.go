package compliance

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTimeout bounds one scorer call.
const DefaultTimeout = 30 * time.Second

// Guard calls s with a deadline of timeout and applies the fallback policy.
//
// On success it returns the scorer's result with Fallback cleared and a nil
// error. Otherwise it returns Fallback() and an error wrapping
// ErrScorerUnavailable; the result is never nil. A timeout of zero or less
// uses DefaultTimeout.
//
// The scorer runs in its own goroutine so that a scorer ignoring ctx cannot
// hold the caller past the deadline.
func Guard(ctx context.Context, s Scorer, req Request, timeout time.Duration) (*Result, error) {
	if s == nil {
		return fallback(errors.New("no scorer configured"))
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := s.Score(ctx, req)
		done <- outcome{res: res, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return fallback(o.err)
		}
		if err := o.res.Validate(); err != nil {
			return fallback(err)
		}
		res := *o.res
		res.Fallback = false
		res.Error = ""
		return &res, nil
	case <-ctx.Done():
		return fallback(fmt.Errorf("scorer did not answer within %s: %w", timeout, ctx.Err()))
	}
}

func fallback(cause error) (*Result, error) {
	res := Fallback()
	res.Error = cause.Error()
	return res, fmt.Errorf("%w: %w", ErrScorerUnavailable, cause)
}

// TimedOut reports whether err is a fallback caused by the deadline.
func TimedOut(err error) bool {
	return errors.Is(err, ErrScorerUnavailable) && errors.Is(err, context.DeadlineExceeded)
}
