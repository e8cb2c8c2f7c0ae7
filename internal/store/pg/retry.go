package pg

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"zapchasti.org/internal/obs"
)

const (
	retryAttempts    = 3
	defaultRetryBase = 100 * time.Millisecond
)

// withRetry runs fn up to retryAttempts times, doubling the delay between
// attempts. Only transient connection faults are retried; business errors
// surface immediately. Used for read paths that must not hard-fail the
// page on a dropped connection.
func (s *Store) withRetry(ctx context.Context, fn func() error) error {
	delay := s.retryBase
	if delay <= 0 {
		delay = defaultRetryBase
	}
	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil || !isTransient(err) || attempt == retryAttempts {
			return err
		}
		obs.CountStoreRetry()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if pgconn.SafeToRetry(err) {
		return true
	}
	msg := err.Error()
	for _, marker := range []string{"connection reset", "connection refused", "broken pipe", "unexpected EOF"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
