// Package fetcher downloads remote documents with per-host rate limiting and
// retry on transient failures.
package fetcher

import (
	"context"
	"io"
)

// Fetcher downloads a URL. Callers close the returned body.
type Fetcher interface {
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}
