// Package boundary runs a unit of work inside a scoped recover so a failure
// in one subtree becomes a value the caller can render and retry.
package boundary

import (
	"context"
	"fmt"
	"runtime/debug"
)

// Failure is a captured error with the means to run the work again.
type Failure struct {
	Err      error
	Panicked bool
	Stack    []byte
	fn       func(context.Context) error
}

func (f *Failure) Error() string {
	return f.Err.Error()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Retry runs the original work again. It returns nil on success.
func (f *Failure) Retry(ctx context.Context) *Failure {
	return Run(ctx, f.fn)
}

// Run evaluates fn. A returned error or a panic is captured in a Failure.
func Run(ctx context.Context, fn func(context.Context) error) (f *Failure) {
	defer func() {
		if rec := recover(); rec != nil {
			err, ok := rec.(error)
			if !ok {
				err = fmt.Errorf("panic: %v", rec)
			}
			f = &Failure{Err: err, Panicked: true, Stack: debug.Stack(), fn: fn}
		}
	}()
	if err := fn(ctx); err != nil {
		return &Failure{Err: err, fn: fn}
	}
	return nil
}
