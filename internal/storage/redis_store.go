package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/example/fare-finder/internal/models"
)

// RedisStore keeps the newest outcomes in a capped Redis list.
type RedisStore struct {
	client   *redis.Client
	key      string
	capacity int64
}

func NewRedisStore(addr, password, key string, capacity int) *RedisStore {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	if capacity <= 0 {
		capacity = 1000
	}
	return &RedisStore{client: c, key: key, capacity: int64(capacity)}
}

func (r *RedisStore) SaveOutcome(ctx context.Context, o models.Outcome) error {
	b, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, r.key, b)
	pipe.LTrim(ctx, r.key, 0, r.capacity-1)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisStore) RecentOutcomes(ctx context.Context, limit int) ([]models.Outcome, error) {
	if limit <= 0 {
		limit = int(r.capacity)
	}
	raw, err := r.client.LRange(ctx, r.key, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.Outcome, 0, len(raw))
	for _, s := range raw {
		var o models.Outcome
		if err := json.Unmarshal([]byte(s), &o); err != nil {
			// skip entries written by an incompatible version
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (r *RedisStore) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }

func (r *RedisStore) Close() error { return r.client.Close() }
