package storage

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/pschleger/workflow-canvas-sub000/logging"
)

// RetryPolicy configures Retrying.
//
// Attempts counts every try, the first included. The pause before the n-th
// retry is Backoff doubled n-1 times and capped at MaxBackoff, which
// defaults to eight times Backoff. A zero Backoff retries at once.
type RetryPolicy struct {
	Attempts   int
	Backoff    time.Duration
	MaxBackoff time.Duration
	Logger     logging.Logger
}

func (p RetryPolicy) pause(retry int) time.Duration {
	if p.Backoff <= 0 {
		return 0
	}
	limit := p.MaxBackoff
	if limit <= 0 {
		limit = 8 * p.Backoff
	}
	d := p.Backoff
	for i := 1; i < retry && d < limit; i++ {
		d *= 2
	}
	return min(d, limit)
}

type retrying struct {
	store  Store
	policy RetryPolicy
	logger logging.Logger
}

// Retrying wraps store so raw backend failures are retried under policy.
// Errors raised by this package (bad key, quota, missing store) and context
// cancellation are returned at once. A policy of one attempt or fewer
// returns store unchanged.
func Retrying(store Store, policy RetryPolicy) Store {
	if policy.Attempts <= 1 {
		return store
	}
	logger := policy.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &retrying{store: store, policy: policy, logger: logger}
}

func (r *retrying) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		value []byte
		ok    bool
	)
	err := r.do(ctx, "get", key, func() error {
		var err error
		value, ok, err = r.store.Get(ctx, key)
		return err
	})
	return value, ok, err
}

func (r *retrying) Set(ctx context.Context, key string, value []byte) error {
	return r.do(ctx, "set", key, func() error { return r.store.Set(ctx, key, value) })
}

func (r *retrying) Delete(ctx context.Context, key string) error {
	return r.do(ctx, "delete", key, func() error { return r.store.Delete(ctx, key) })
}

func (r *retrying) do(ctx context.Context, op, key string, call func() error) error {
	err := call()
	for retry := 1; retry < r.policy.Attempts && err != nil && retryable(err); retry++ {
		pause := r.policy.pause(retry)
		logging.WithFields(r.logger, map[string]any{
			"op":      op,
			"key":     key,
			"attempt": retry + 1,
		}).Debug("storage: retrying in %s: %v", pause, err)

		if pause > 0 {
			timer := time.NewTimer(pause)
			select {
			case <-ctx.Done():
				timer.Stop()
				return err
			case <-timer.C:
			}
		}
		err = call()
	}
	return err
}

func retryable(err error) bool {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return logging.ErrorCode(err) == ""
}
