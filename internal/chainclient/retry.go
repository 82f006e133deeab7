package chainclient

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v4"
)

// maxRetries bounds the number of extra attempts WithRetry makes; this is
// the "small fixed bound" the spec calls for, not unbounded retry.
const maxRetries = 4

// WithRetry runs op with bounded exponential backoff, retrying only errors
// classified as ErrTransient. A permanent error (or context cancellation)
// returns immediately. This is the retry B applies around each of its
// data-provider and price-oracle calls. D does not use it: a failed
// discovery iteration is re-run after a sleep instead.
func WithRetry(ctx context.Context, op func() error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrTransient) {
			return err
		}
		return backoff.Permanent(err)
	}, policy)
}
