package submitguard

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/CallMeMhz/feature-gating/pkg/clock"
)

// Store marks keys as submitting for a fixed time.
type Store interface {
	// Mark sets key for ttl. It reports false when key is already set.
	Mark(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// MemoryStore keeps marks in process and clears them through a scheduler.
type MemoryStore struct {
	sched clock.Scheduler
	mu    sync.Mutex
	gen   uint64
	marks map[string]uint64
}

// NewMemoryStore returns a store whose marks expire on sched. A nil sched
// means the wall clock.
func NewMemoryStore(sched clock.Scheduler) *MemoryStore {
	if sched == nil {
		sched = clock.NewReal()
	}
	return &MemoryStore{sched: sched, marks: make(map[string]uint64)}
}

func (s *MemoryStore) Mark(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.marks[key]; ok {
		return false, nil
	}
	s.gen++
	gen := s.gen
	s.marks[key] = gen
	s.sched.AfterFunc(ttl, func() { s.clear(key, gen) })
	return true, nil
}

// Marked reports whether key is currently set.
func (s *MemoryStore) Marked(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.marks[key]
	return ok
}

// clear drops the mark only if it is still the one that scheduled it.
func (s *MemoryStore) clear(key string, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.marks[key] == gen {
		delete(s.marks, key)
	}
}

// RedisStore shares marks between instances with SET NX PX.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore stores marks under prefix (default "submitguard:").
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "submitguard:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Mark(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, s.prefix+key, 1, ttl).Result()
}
