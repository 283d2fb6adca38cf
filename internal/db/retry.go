package db

import (
	"context"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

var retryDelays = []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

func withRetry(ctx context.Context, fn func() error, isRetriable func(error) bool) error {
	var err error
	for attempt := 0; attempt <= len(retryDelays); attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !isRetriable(err) {
			return err
		}
		if attempt < len(retryDelays) {
			t := time.NewTimer(retryDelays[attempt])
			select {
			case <-ctx.Done():
				t.Stop()
				return errors.Wrap(err, ctx.Err().Error())
			case <-t.C:
			}
		}
	}
	return err
}

func withPGRetry(ctx context.Context, fn func() error) error {
	return withRetry(ctx, fn, isRetriable)
}

func isRetriable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgerrcode.IsConnectionException(pgErr.Code)
	}
	return false
}
