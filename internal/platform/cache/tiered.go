package cache

import (
	"context"
	"time"

	"github.com/vaxtrack/vaxtrack/internal/platform/metrics"
)

// Tiered reads through a local store then a shared one, refilling the local
// store on a shared hit. Writes and deletes go to both. Shared may be nil.
type Tiered struct {
	local   Store
	shared  Store
	metrics *metrics.Metrics
}

func NewTiered(local, shared Store, m *metrics.Metrics) *Tiered {
	return &Tiered{local: local, shared: shared, metrics: m}
}

func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok, err := t.local.Get(ctx, key); err == nil && ok {
		t.metrics.IncrementCacheLookup("memory", true)
		return v, true, nil
	}
	t.metrics.IncrementCacheLookup("memory", false)

	if t.shared == nil {
		return nil, false, nil
	}
	v, ok, err := t.shared.Get(ctx, key)
	if err != nil || !ok {
		t.metrics.IncrementCacheLookup("redis", false)
		return nil, false, err
	}
	t.metrics.IncrementCacheLookup("redis", true)
	_ = t.local.Set(ctx, key, v, 0)
	return v, true, nil
}

func (t *Tiered) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := t.local.Set(ctx, key, val, ttl); err != nil {
		return err
	}
	if t.shared != nil {
		return t.shared.Set(ctx, key, val, ttl)
	}
	return nil
}

func (t *Tiered) Delete(ctx context.Context, keys ...string) error {
	if err := t.local.Delete(ctx, keys...); err != nil {
		return err
	}
	if t.shared != nil {
		return t.shared.Delete(ctx, keys...)
	}
	return nil
}
