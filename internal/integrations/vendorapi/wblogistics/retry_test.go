package wblogistics

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_SucceedsAfterRetries(t *testing.T) {
	var delays []time.Duration
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second}.
		WithSleep(func(ctx context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		})

	calls := 0
	err := p.Do(context.Background(), func() (bool, error) {
		calls++
		if calls < 3 {
			return true, errors.New("boom")
		}
		return false, nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	// Задержка удваивается с каждой попыткой.
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
}

func TestRetryPolicy_ExhaustsAttempts(t *testing.T) {
	var delays []time.Duration
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second}.
		WithSleep(func(ctx context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		})

	want := errors.New("http 503")
	calls := 0
	err := p.Do(context.Background(), func() (bool, error) {
		calls++
		return true, want
	})
	// Ровно пять попыток, последняя ошибка наверх, после финальной
	// попытки задержки нет.
	require.ErrorIs(t, err, want)
	require.Equal(t, 5, calls)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}, delays)
}

func TestRetryPolicy_NonRetryableReturnsImmediately(t *testing.T) {
	p := DefaultRetryPolicy().WithSleep(func(ctx context.Context, d time.Duration) error {
		t.Fatal("sleep must not be called")
		return nil
	})

	want := errors.New("unauthorized")
	calls := 0
	err := p.Do(context.Background(), func() (bool, error) {
		calls++
		return false, want
	})
	require.ErrorIs(t, err, want)
	require.Equal(t, 1, calls)
}

func TestRetryPolicy_ContextCanceledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second}.
		WithSleep(func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		})

	err := p.Do(ctx, func() (bool, error) {
		return true, errors.New("boom")
	})
	require.ErrorIs(t, err, context.Canceled)
}
