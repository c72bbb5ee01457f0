package plex

import (
	"context"
	"errors"
	"time"

	"github.com/finearr/finearr/internal/models"
)

// Caller-side polling defaults.
const (
	DefaultPollInterval = 3 * time.Second
	DefaultPollTimeout  = 2 * time.Minute
)

// ErrPinTimeout is returned when the user did not finish signing in in time.
var ErrPinTimeout = errors.New("timed out waiting for plex sign-in")

// PinChecker reports the status of a PIN.
type PinChecker interface {
	Check(ctx context.Context, id string) (models.PinStatus, error)
}

// WaitForAuthToken polls checker every interval until the PIN carries an
// auth token. It returns ErrPinTimeout once timeout elapses, ctx.Err() when
// ctx ends first, and any error from the checker as is.
func WaitForAuthToken(ctx context.Context, checker PinChecker, id string, interval, timeout time.Duration) (string, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-deadline.C:
			return "", ErrPinTimeout
		case <-ticker.C:
		}

		status, err := checker.Check(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", err
		}
		if status.AuthToken != nil && *status.AuthToken != "" {
			return *status.AuthToken, nil
		}
	}
}
