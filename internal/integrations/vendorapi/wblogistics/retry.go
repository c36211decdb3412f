package wblogistics

import (
	"context"
	"time"
)

// RetryPolicy — политика повторов для запросов к WB: экспоненциальная
// задержка (удваивается с каждой попыткой), ограниченное число попыток.
// Не-retryable ошибки (401/403) отдаются наверх сразу.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
	}
}

// WithSleep подменяет задержку между попытками (для тестов без реального времени).
func (p RetryPolicy) WithSleep(fn func(ctx context.Context, d time.Duration) error) RetryPolicy {
	p.sleep = fn
	return p
}

// Do вызывает fn до первого успеха. fn возвращает (retryable, err).
func (p RetryPolicy) Do(ctx context.Context, fn func() (bool, error)) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var last error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		retryable, err := fn()
		if err == nil {
			return nil
		}
		if !retryable {
			return err
		}
		last = err
		if attempt == maxAttempts-1 {
			break
		}
		if err := sleep(ctx, base<<attempt); err != nil {
			return err
		}
	}
	return last
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
