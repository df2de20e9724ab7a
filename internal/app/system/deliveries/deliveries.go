// Package deliveries remembers processed webhook delivery ids so redelivered
// events can be acknowledged without reapplying them.
package deliveries

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL covers the sender's full retry schedule.
const DefaultTTL = 72 * time.Hour

const keyPrefix = "airodental:webhook:delivery:"

// Deduper is backed by Redis. A nil *Deduper remembers nothing.
type Deduper struct {
	rdb *redis.Client
	ttl time.Duration
}

// New wraps an existing client.
func New(rdb *redis.Client, ttl time.Duration) *Deduper {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Deduper{rdb: rdb, ttl: ttl}
}

// Connect dials addr and pings it.
func Connect(ctx context.Context, addr string, ttl time.Duration) (*Deduper, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return New(rdb, ttl), nil
}

// Seen reports whether id was marked within the TTL.
func (d *Deduper) Seen(ctx context.Context, id string) (bool, error) {
	if d == nil || id == "" {
		return false, nil
	}
	n, err := d.rdb.Exists(ctx, keyPrefix+id).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, err
	}
	return n > 0, nil
}

// Mark records id as processed.
func (d *Deduper) Mark(ctx context.Context, id string) error {
	if d == nil || id == "" {
		return nil
	}
	return d.rdb.Set(ctx, keyPrefix+id, time.Now().UTC().Format(time.RFC3339), d.ttl).Err()
}

// Close releases the client.
func (d *Deduper) Close() error {
	if d == nil {
		return nil
	}
	return d.rdb.Close()
}
