package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const adminSessionKeyPrefix = "finearr:admin_session:"

// ErrSessionNotFound is returned when a session id is unknown or expired.
var ErrSessionNotFound = errors.New("admin session not found")

// SessionStore records live admin sessions by token id.
type SessionStore interface {
	Save(ctx context.Context, id, username string, ttl time.Duration) error
	Lookup(ctx context.Context, id string) (string, error)
	Delete(ctx context.Context, id string) error
}

type memorySession struct {
	username  string
	expiresAt time.Time
}

// MemorySessionStore keeps sessions in process memory. Sessions do not
// survive a restart.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]memorySession
	now      func() time.Time
}

// NewMemorySessionStore creates a MemorySessionStore.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]memorySession),
		now:      time.Now,
	}
}

// Save records a session.
func (m *MemorySessionStore) Save(_ context.Context, id, username string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, s := range m.sessions {
		if !now.Before(s.expiresAt) {
			delete(m.sessions, k)
		}
	}

	m.sessions[id] = memorySession{username: username, expiresAt: now.Add(ttl)}
	return nil
}

// Lookup returns the username of a live session.
func (m *MemorySessionStore) Lookup(_ context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return "", ErrSessionNotFound
	}
	if !m.now().Before(s.expiresAt) {
		delete(m.sessions, id)
		return "", ErrSessionNotFound
	}
	return s.username, nil
}

// Delete removes a session. Unknown ids are ignored.
func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
	return nil
}

// RedisSessionStore keeps sessions in Redis so they are shared between
// instances and survive restarts. Expiry is left to Redis key TTLs.
type RedisSessionStore struct {
	redisClient *redis.Client
}

// NewRedisSessionStore creates a RedisSessionStore.
func NewRedisSessionStore(redisClient *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{redisClient: redisClient}
}

// Save records a session with the given TTL.
func (r *RedisSessionStore) Save(ctx context.Context, id, username string, ttl time.Duration) error {
	err := r.redisClient.Set(ctx, adminSessionKeyPrefix+id, username, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to save admin session: %w", err)
	}
	return nil
}

// Lookup returns the username of a live session.
func (r *RedisSessionStore) Lookup(ctx context.Context, id string) (string, error) {
	username, err := r.redisClient.Get(ctx, adminSessionKeyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up admin session: %w", err)
	}
	return username, nil
}

// Delete removes a session.
func (r *RedisSessionStore) Delete(ctx context.Context, id string) error {
	err := r.redisClient.Del(ctx, adminSessionKeyPrefix+id).Err()
	if err != nil {
		return fmt.Errorf("failed to delete admin session: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (r *RedisSessionStore) Ping(ctx context.Context) error {
	return r.redisClient.Ping(ctx).Err()
}
