package boundary

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSuccess(t *testing.T) {
	assert.Nil(t, Run(context.Background(), func(context.Context) error { return nil }))
}

func TestRunCapturesError(t *testing.T) {
	sentinel := errors.New("load failed")
	f := Run(context.Background(), func(context.Context) error { return sentinel })
	require.NotNil(t, f)
	assert.False(t, f.Panicked)
	assert.ErrorIs(t, f, sentinel)
}

func TestRunRecoversPanic(t *testing.T) {
	f := Run(context.Background(), func(context.Context) error {
		var m map[string]int
		m["x"] = 1
		return nil
	})
	require.NotNil(t, f)
	assert.True(t, f.Panicked)
	assert.NotEmpty(t, f.Stack)

	f = Run(context.Background(), func(context.Context) error { panic("bad nav") })
	require.NotNil(t, f)
	assert.EqualError(t, f, "panic: bad nav")
}

func TestRetry(t *testing.T) {
	attempts := 0
	f := Run(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	require.NotNil(t, f)
	f = f.Retry(context.Background())
	require.NotNil(t, f)
	assert.Nil(t, f.Retry(context.Background()))
	assert.Equal(t, 3, attempts)
}
