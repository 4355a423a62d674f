package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/uidcheckbot/logger"
	"github.com/example/uidcheckbot/models"
)

// ErrStoreUnavailable is returned once the account store stays unreachable
// across the bounded retries.
var ErrStoreUnavailable = errors.New("account store unavailable")

// Store is the account-store boundary the engine mutates through.
// FindUID returns (nil, nil) when no record exists.
type Store interface {
	FindUID(ctx context.Context, uid string) (*models.UIDRecord, error)
	UpsertUID(ctx context.Context, rec *models.UIDRecord) error
	DeleteUIDs(ctx context.Context, uids []string) (int64, error)
}

const (
	storeAttempts   = 3
	storeRetryDelay = time.Second
)

// retryStore wraps a Store with fixed-spacing retries on transient failure.
type retryStore struct {
	inner Store
}

func withRetries(s Store) Store {
	return &retryStore{inner: s}
}

func (r *retryStore) retry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= storeAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		logger.Log.Warnw("store operation failed", "op", op, "attempt", attempt, "error", err)
		if attempt == storeAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, ctx.Err())
		case <-time.After(storeRetryDelay):
		}
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func (r *retryStore) FindUID(ctx context.Context, uid string) (*models.UIDRecord, error) {
	var rec *models.UIDRecord
	err := r.retry(ctx, "find", func() error {
		var err error
		rec, err = r.inner.FindUID(ctx, uid)
		return err
	})
	return rec, err
}

func (r *retryStore) UpsertUID(ctx context.Context, rec *models.UIDRecord) error {
	return r.retry(ctx, "upsert", func() error {
		return r.inner.UpsertUID(ctx, rec)
	})
}

func (r *retryStore) DeleteUIDs(ctx context.Context, uids []string) (int64, error) {
	var n int64
	err := r.retry(ctx, "delete", func() error {
		var err error
		n, err = r.inner.DeleteUIDs(ctx, uids)
		return err
	})
	return n, err
}
