// Package etlio reads pipeline sources into the backend and writes the
// final table to the configured sink. Cloud object-store paths get
// exponential-backoff retry; local paths fail immediately.
package etlio

import (
	"context"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// cloudPrefixes marks paths served by object stores, where transient
// failures are expected.
var cloudPrefixes = []string{"s3://", "gs://", "gcs://", "az://", "abfss://", "abfs://"}

const (
	retryBase     = 1 * time.Second
	retryCap      = 30 * time.Second
	retryAttempts = 3
)

// isCloudPath reports whether the path points at an object store.
func isCloudPath(path string) bool {
	lower := strings.ToLower(path)
	for _, prefix := range cloudPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// withPathRetry runs fn, retrying with exponential backoff when path is a
// cloud location. Local paths run fn exactly once.
func withPathRetry(ctx context.Context, path string, fn func(ctx context.Context) error) error {
	if !isCloudPath(path) {
		return fn(ctx)
	}

	backoff := retry.WithCappedDuration(retryCap,
		retry.WithMaxRetries(retryAttempts, retry.NewExponential(retryBase)))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		return retry.RetryableError(fn(ctx))
	})
}
