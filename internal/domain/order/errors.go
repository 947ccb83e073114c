// internal/domain/order/errors.go
package order

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrEmptyOrder means no cart line passed the stock and per-order checks
	ErrEmptyOrder        = errors.New("order is empty: no line could be reserved")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrInvalidTransition = errors.New("invalid order status transition")
	// ErrRetryable wraps transaction failures the caller may retry
	ErrRetryable = errors.New("order transaction failed, retry later")
)

// Postgres error codes worth a retry
var retryableCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"57014": true, // query_canceled
}

// IsRetryable reports whether err is a timeout or a transient lock failure
func IsRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return retryableCodes[pgErr.Code]
	}
	return false
}
