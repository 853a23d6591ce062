package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNetwork reports an unreachable Redis server.
	ErrNetwork = errors.New("network error")

	// ErrCacheMiss is returned by Fetch when no snapshot is stored under a key.
	ErrCacheMiss = errors.New("cache miss")
)

// TransientError marks a failure worth another attempt, such as a refused
// connection while Redis is still starting.
type TransientError struct{ Err error }

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient marks err as worth retrying. A nil err stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err or anything it wraps was marked by Transient.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

const retryAttempts = 3

// retryDelay is the pause after the first failed attempt; it doubles after
// each further one.
var retryDelay = 250 * time.Millisecond

// Retry calls fn until it succeeds, fails with a non-transient error, or
// retryAttempts calls were made. It returns early when ctx is done.
func Retry(ctx context.Context, fn func() error) error {
	delay := retryDelay
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil || !IsTransient(err) || attempt == retryAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			delay *= 2
		}
	}
}
