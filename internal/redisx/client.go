package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Deduper marks fully handled saga event ids so a redelivery can be
// short-circuited without a database round trip. It is a fast path, not
// the source of truth: callers mark only after their durable record and
// outgoing events are committed, and treat a redis error as a miss.
type Deduper struct {
	R       *redis.Client
	Service string
}

// Seen reports whether the event id has been marked as handled.
func (d *Deduper) Seen(ctx context.Context, eventID string) (bool, error) {
	key := fmt.Sprintf(KeyDedup, d.Service, eventID)
	n, err := d.R.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("dedup lookup: %w", err)
	}
	return n > 0, nil
}

// Mark records the event id as fully handled.
func (d *Deduper) Mark(ctx context.Context, eventID string) error {
	key := fmt.Sprintf(KeyDedup, d.Service, eventID)
	return d.R.Set(ctx, key, "1", TTLDedup).Err()
}
