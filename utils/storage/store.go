// Package storage persists analysis sessions. Every backend stores the session
// as JSON, so a session read back is always a private copy.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kris-hansen/analyst/utils/config"
	"github.com/kris-hansen/analyst/utils/input"
	"github.com/kris-hansen/analyst/utils/session"
)

// ErrNotFound is returned when no session exists under an ID
var ErrNotFound = errors.New("session not found")

// Store saves and loads sessions
type Store interface {
	Get(ctx context.Context, id string) (*session.Session, error)
	Save(ctx context.Context, s *session.Session) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]session.Summary, error)
	Close() error
}

// Backend names accepted in the storage configuration
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// New opens the backend named in cfg. An empty backend means memory.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendMemory:
		return NewMemoryStore(cfg.TTL), nil
	case BackendRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("storage backend redis requires redisURL")
		}
		return NewRedisStore(ctx, cfg.RedisURL, cfg.TTL)
	case BackendPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("storage backend postgres requires postgresDSN")
		}
		return NewPostgresStore(ctx, cfg.PostgresDSN, cfg.TTL)
	}
	return nil, fmt.Errorf("unknown storage backend '%s'", cfg.Backend)
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

func encode(s *session.Session) ([]byte, error) {
	if s == nil || s.ID == "" {
		return nil, fmt.Errorf("cannot store a session without an ID")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session %s: %w", s.ID, err)
	}
	return data, nil
}

func decode(id string, data []byte) (*session.Session, error) {
	var s session.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %s: %w", id, err)
	}
	if s.Files == nil {
		s.Files = map[string]*input.File{}
	}
	return &s, nil
}

// sortSummaries orders the most recently updated sessions first
func sortSummaries(out []session.Summary) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
}
