package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// ErrNoSession is returned by a Backend for an unknown or expired id.
var ErrNoSession = errors.New("session not found")

// Backend keeps sessions between requests.
type Backend interface {
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, s *Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// Manager hands out sessions by id and writes them back after each request.
type Manager struct {
	backend Backend
	ttl     time.Duration

	// OnTransition, when set, observes every state change.
	OnTransition func(s *Session, from, to State)
}

func NewManager(b Backend, ttl time.Duration) *Manager {
	return &Manager{backend: b, ttl: ttl}
}

// Acquire returns the session for id, or a fresh one when id is empty or
// unknown.
func (m *Manager) Acquire(ctx context.Context, id string) (*Session, error) {
	if id != "" {
		s, err := m.backend.Get(ctx, id)
		switch {
		case err == nil:
			s.onTransition = m.OnTransition
			return s, nil
		case !errors.Is(err, ErrNoSession):
			return nil, err
		}
	}
	s := newSession(uuid.NewString())
	s.onTransition = m.OnTransition
	return s, nil
}

// Commit stores s.
func (m *Manager) Commit(ctx context.Context, s *Session) error {
	return m.backend.Put(ctx, s, m.ttl)
}

func (m *Manager) Discard(ctx context.Context, id string) error {
	return m.backend.Delete(ctx, id)
}

// MemoryBackend keeps sessions in process.
type MemoryBackend struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

type memoryItem struct {
	s       *Session
	expires time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{items: map[string]memoryItem{}, now: time.Now}
}

func (b *MemoryBackend) Get(ctx context.Context, id string) (*Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	it, ok := b.items[id]
	if !ok {
		return nil, ErrNoSession
	}
	if !it.expires.IsZero() && b.now().After(it.expires) {
		delete(b.items, id)
		return nil, ErrNoSession
	}
	return it.s.clone(), nil
}

func (b *MemoryBackend) Put(ctx context.Context, s *Session, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	it := memoryItem{s: s.clone()}
	if ttl > 0 {
		it.expires = b.now().Add(ttl)
	}
	b.items[s.ID] = it
	return nil
}

func (b *MemoryBackend) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	delete(b.items, id)
	b.mu.Unlock()
	return nil
}

// RedisBackend stores sessions as JSON strings with an expiry.
type RedisBackend struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisBackend(url string) (*RedisBackend, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisBackend{rdb: redis.NewClient(opt), prefix: "optiguide:session:"}, nil
}

func (b *RedisBackend) Get(ctx context.Context, id string) (*Session, error) {
	data, err := b.rdb.Get(ctx, b.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (b *RedisBackend) Put(ctx context.Context, s *Session, ttl time.Duration) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return b.rdb.Set(ctx, b.prefix+s.ID, data, ttl).Err()
}

func (b *RedisBackend) Delete(ctx context.Context, id string) error {
	return b.rdb.Del(ctx, b.prefix+id).Err()
}

func (b *RedisBackend) Ping(ctx context.Context) error { return b.rdb.Ping(ctx).Err() }

func (b *RedisBackend) Close() error { return b.rdb.Close() }
