package cache

import (
	"context"
	"time"
)

// AdvisoryCache stores generated advisory answers keyed by a prompt digest.
// A miss returns ok=false with a nil error. Callers treat errors as misses.
type AdvisoryCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

type NoopAdvisoryCache struct{}

func (NoopAdvisoryCache) Get(_ context.Context, _ string) (string, bool, error) {
	return "", false, nil
}

func (NoopAdvisoryCache) Set(_ context.Context, _ string, _ string, _ time.Duration) error {
	return nil
}
