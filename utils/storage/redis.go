package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kris-hansen/analyst/utils/config"
	"github.com/kris-hansen/analyst/utils/session"
)

const (
	sessionPrefix = "analyst:session:"
	indexKey      = "analyst:sessions"
)

// RedisStore keeps each session as a JSON string with a TTL. A set indexes the
// IDs so sessions can be listed without scanning the keyspace.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to the Redis server at redisURL
func NewRedisStore(ctx context.Context, redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	config.DebugLog("[Storage] Connected to Redis at %s", opts.Addr)
	return &RedisStore{client: client, ttl: ttl}, nil
}

// key generates a Redis key for the given session ID
func (r *RedisStore) key(id string) string {
	return sessionPrefix + id
}

// Get loads a session and extends its TTL
func (r *RedisStore) Get(ctx context.Context, id string) (*session.Session, error) {
	var (
		data string
		err  error
	)
	if r.ttl > 0 {
		data, err = r.client.GetEx(ctx, r.key(id), r.ttl).Result()
	} else {
		data, err = r.client.Get(ctx, r.key(id)).Result()
	}
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("failed to get session data: %w", err)
	}
	return decode(id, []byte(data))
}

// Save writes the session and adds it to the index
func (r *RedisStore) Save(ctx context.Context, s *session.Session) error {
	data, err := encode(s)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key(s.ID), data, r.ttl)
		pipe.SAdd(ctx, indexKey, s.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set session data: %w", err)
	}
	return nil
}

// Delete removes the session and its index entry
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key(id))
		pipe.SRem(ctx, indexKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// List returns the indexed sessions that still exist. IDs whose key expired
// are pruned from the index.
func (r *RedisStore) List(ctx context.Context) ([]session.Summary, error) {
	ids, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(ids) == 0 {
		return []session.Summary{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	out := make([]session.Summary, 0, len(ids))
	var stale []interface{}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		s, err := decode(ids[i], []byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, s.Summarize())
	}
	if len(stale) > 0 {
		if err := r.client.SRem(ctx, indexKey, stale...).Err(); err != nil {
			config.DebugLog("[Storage] Failed to prune %d expired sessions: %v", len(stale), err)
		}
	}
	sortSummaries(out)
	return out, nil
}

// Ping tests the Redis connection
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisStore) Close() error {
	return r.client.Close()
}
