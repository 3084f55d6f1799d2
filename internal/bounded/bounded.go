// Package bounded runs an operation a fixed number of times with a fixed
// pause between attempts. Every wait in the provisioning pipeline goes
// through it so none of them can loop forever.
package bounded

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codeGROOVE-dev/retry-go"
)

// Policy is the ceiling for one call site.
type Policy struct {
	Attempts int
	Interval time.Duration
}

// ErrExhausted is wrapped into the error returned when every attempt failed.
var ErrExhausted = errors.New("retry ceiling reached")

// ExhaustedError carries the attempt count and the last failure.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%v after %d attempts: %v", ErrExhausted, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrExhausted, e.Last}
}

// Do calls fn until it returns nil or p.Attempts calls have been made.
// fn receives the 1-based attempt number. Context cancellation stops the
// loop immediately and is returned as is.
func Do(ctx context.Context, p Policy, fn func(attempt int) error) error {
	if p.Attempts < 1 {
		return fmt.Errorf("bounded: attempts must be >= 1, got %d", p.Attempts)
	}

	attempt := 0
	err := retry.Do(
		func() error {
			attempt++
			return fn(attempt)
		},
		retry.Context(ctx),
		retry.Attempts(uint(p.Attempts)),
		retry.Delay(p.Interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return &ExhaustedError{Attempts: attempt, Last: err}
}
