package service

import (
	"context"
	"time"
)

const (
	storeRetryAttempts = 3
	storeRetryBackoff  = 50 * time.Millisecond
)

// retryStore runs op against a live-state store, retrying transient
// failures with doubling backoff up to storeRetryAttempts. The last
// error is returned once the attempts are exhausted or ctx ends.
func retryStore(ctx context.Context, op func() error) error {
	var err error
	backoff := storeRetryBackoff
	for attempt := 1; ; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if attempt == storeRetryAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
