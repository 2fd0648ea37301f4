// File: internal/retry/retry_test.go
package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger(t *testing.T) (*zap.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	logger, logs := newObservedLogger(t)

	calls := 0
	result, ok := Do(context.Background(), logger, Policy{MaxAttempts: 3, Delay: time.Millisecond}, "fetch", func(ctx context.Context) (string, error) {
		calls++
		return "value", nil
	})

	require.True(t, ok)
	assert.Equal(t, "value", result)
	assert.Equal(t, 1, calls)
	assert.Zero(t, logs.Len())
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	logger, logs := newObservedLogger(t)

	calls := 0
	result, ok := Do(context.Background(), logger, Policy{MaxAttempts: 3, Delay: time.Millisecond}, "fetch", func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})

	require.True(t, ok)
	assert.Equal(t, 42, result)
	assert.Equal(t, 3, calls)

	assert.Equal(t, 2, logs.FilterLevelExact(zapcore.WarnLevel).Len())
	assert.Equal(t, 0, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestDoExhaustsAttempts(t *testing.T) {
	logger, logs := newObservedLogger(t)

	calls := 0
	result, ok := Do(context.Background(), logger, Policy{MaxAttempts: 3, Delay: time.Millisecond}, "fetch", func(ctx context.Context) (string, error) {
		calls++
		return "", errors.New("persistent")
	})

	require.False(t, ok)
	assert.Empty(t, result)
	assert.Equal(t, 3, calls)

	assert.Equal(t, 2, logs.FilterLevelExact(zapcore.WarnLevel).Len())
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestDoStopsWhenContextCancelled(t *testing.T) {
	logger, _ := newObservedLogger(t)

	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, ok := Do(ctx, logger, Policy{MaxAttempts: 5, Delay: time.Hour}, "fetch", func(ctx context.Context) (string, error) {
		calls++
		cancel()
		return "", errors.New("transient")
	})

	require.False(t, ok)
	assert.Equal(t, 1, calls, "should not re-invoke after cancellation")
}

func TestDoDefaultsZeroMaxAttempts(t *testing.T) {
	logger, _ := newObservedLogger(t)

	calls := 0
	_, ok := Do(context.Background(), logger, Policy{Delay: time.Millisecond}, "fetch", func(ctx context.Context) (struct{}, error) {
		calls++
		return struct{}{}, errors.New("always")
	})

	require.False(t, ok)
	assert.Equal(t, DefaultPolicy().MaxAttempts, calls)
}
