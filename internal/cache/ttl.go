// Package cache provides a namespaced TTL cache over the key-value port.
// It exists to avoid re-parsing large serialized collections on every read;
// TTLs are short for volatile data (ratings) and longer for semi-static data
// (resolved recipes).
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"nutriplan/api/internal/kv"
)

// envelope wraps a cached payload with its write time and lifetime.
type envelope struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"` // unix milliseconds at write
	TTL       int64           `json:"ttl"`       // lifetime in milliseconds
}

// Stats summarizes the namespace: entry count, approximate payload size and
// how many entries are already past their deadline but not yet evicted.
type Stats struct {
	Count        int `json:"count"`
	SizeBytes    int `json:"sizeBytes"`
	ExpiredCount int `json:"expiredCount"`
}

// TTL is an expiry-aware cache. Expiry is lazy: a read past the deadline
// deletes the entry and reports a miss; Cleanup offers an eager sweep.
// Backing-store faults are logged and degraded to miss/no-op, never
// propagated.
type TTL struct {
	store      kv.Store
	prefix     string
	defaultTTL time.Duration
	log        zerolog.Logger
	now        func() time.Time
}

func New(store kv.Store, prefix, version string, defaultTTL time.Duration, log zerolog.Logger) *TTL {
	return &TTL{
		store:      store,
		prefix:     prefix + version + "_",
		defaultTTL: defaultTTL,
		log:        log,
		now:        time.Now,
	}
}

// WithClock substitutes the time source. Test hook.
func (c *TTL) WithClock(now func() time.Time) *TTL {
	c.now = now
	return c
}

func (c *TTL) key(key string) string {
	return c.prefix + key
}

// Set writes data under the namespaced key with the given lifetime
// (defaultTTL when ttl <= 0). Best effort: failures are logged and dropped.
func (c *TTL) Set(ctx context.Context, key string, data any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	payload, err := json.Marshal(data)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache set: marshal failed")
		return
	}

	raw, err := json.Marshal(envelope{
		Data:      payload,
		Timestamp: c.now().UnixMilli(),
		TTL:       ttl.Milliseconds(),
	})
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache set: envelope marshal failed")
		return
	}

	if err := c.store.Set(ctx, c.key(key), raw); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
}

// Get reads the entry into out and reports whether it was a fresh hit. An
// expired entry is deleted on the spot and reported as a miss.
func (c *TTL) Get(ctx context.Context, key string, out any) bool {
	raw, err := c.store.Get(ctx, c.key(key))
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			c.log.Warn().Err(err).Str("key", key).Msg("cache get failed")
		}
		return false
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache get: corrupt entry")
		c.Delete(ctx, key)
		return false
	}

	if c.expired(env) {
		c.Delete(ctx, key)
		return false
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache get: payload unmarshal failed")
		return false
	}
	return true
}

func (c *TTL) Delete(ctx context.Context, key string) {
	if err := c.store.Delete(ctx, c.key(key)); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache delete failed")
	}
}

// ClearAll removes every entry under the namespace.
func (c *TTL) ClearAll(ctx context.Context) {
	keys, err := c.store.Keys(ctx, c.prefix)
	if err != nil {
		c.log.Warn().Err(err).Msg("cache clear: list failed")
		return
	}
	for _, key := range keys {
		if err := c.store.Delete(ctx, key); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("cache clear: delete failed")
		}
	}
}

// Cleanup eagerly sweeps the namespace, evicting expired and unreadable
// entries. Lazy expiry keeps the cache correct without it; this only frees
// space sooner.
func (c *TTL) Cleanup(ctx context.Context) {
	keys, err := c.store.Keys(ctx, c.prefix)
	if err != nil {
		c.log.Warn().Err(err).Msg("cache cleanup: list failed")
		return
	}

	removed := 0
	for _, key := range keys {
		raw, err := c.store.Get(ctx, key)
		if err != nil {
			continue
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil || c.expired(env) {
			if err := c.store.Delete(ctx, key); err == nil {
				removed++
			}
		}
	}

	if removed > 0 {
		c.log.Debug().Int("removed", removed).Msg("cache cleanup")
	}
}

// GetStats walks the namespace and reports entry count, approximate size and
// the number of entries past their deadline.
func (c *TTL) GetStats(ctx context.Context) Stats {
	keys, err := c.store.Keys(ctx, c.prefix)
	if err != nil {
		c.log.Warn().Err(err).Msg("cache stats: list failed")
		return Stats{}
	}

	stats := Stats{Count: len(keys)}
	for _, key := range keys {
		raw, err := c.store.Get(ctx, key)
		if err != nil {
			continue
		}
		stats.SizeBytes += len(raw)

		var env envelope
		if err := json.Unmarshal(raw, &env); err == nil && c.expired(env) {
			stats.ExpiredCount++
		}
	}
	return stats
}

func (c *TTL) expired(env envelope) bool {
	return c.now().UnixMilli()-env.Timestamp > env.TTL
}
