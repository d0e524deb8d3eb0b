package geofence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultDedupTTL = 48 * time.Hour

// Deduper remembers which (location, hotspot) pairs were already alerted.
type Deduper interface {
	// MarkNew records the pair and reports whether it was not seen within the TTL.
	MarkNew(ctx context.Context, locationID, hotspotID string) (bool, error)
}

func dedupKey(locationID, hotspotID string) string {
	return fmt.Sprintf("wildfire:alert:%s:%s", locationID, hotspotID)
}

type RedisDeduper struct {
	rc  *redis.Client
	ttl time.Duration
}

func NewRedisDeduper(rc *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &RedisDeduper{rc: rc, ttl: ttl}
}

func (d *RedisDeduper) MarkNew(ctx context.Context, locationID, hotspotID string) (bool, error) {
	ok, err := d.rc.SetNX(ctx, dedupKey(locationID, hotspotID), time.Now().Unix(), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

// MemoryDeduper is used when Redis is not configured.
type MemoryDeduper struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	seen      map[string]time.Time
	nextSweep time.Time
}

func NewMemoryDeduper(ttl time.Duration, now func() time.Time) *MemoryDeduper {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryDeduper{ttl: ttl, now: now, seen: map[string]time.Time{}}
}

func (d *MemoryDeduper) MarkNew(_ context.Context, locationID, hotspotID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	// просроченные ключи чистим не чаще раза в час
	if !now.Before(d.nextSweep) {
		for k, exp := range d.seen {
			if !now.Before(exp) {
				delete(d.seen, k)
			}
		}
		d.nextSweep = now.Add(min(d.ttl, time.Hour))
	}

	key := dedupKey(locationID, hotspotID)
	if exp, ok := d.seen[key]; ok && now.Before(exp) {
		return false, nil
	}
	d.seen[key] = now.Add(d.ttl)
	return true, nil
}
