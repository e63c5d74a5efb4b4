package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"storefront/internal/models"
)

// Draft is an admin upload waiting for its price
type Draft struct {
	Media     models.Media `json:"media"`
	CreatedAt time.Time    `json:"created_at"`
}

// DraftStore keeps at most one draft per admin. Drafts expire after the
// store's TTL; an expired draft reads as absent.
type DraftStore interface {
	// Get returns the admin's draft or nil
	Get(ctx context.Context, adminID int64) (*Draft, error)
	// Put stores the draft, replacing any previous one
	Put(ctx context.Context, adminID int64, draft Draft) (replaced bool, err error)
	Delete(ctx context.Context, adminID int64) (existed bool, err error)
}

type memoryEntry struct {
	draft     Draft
	expiresAt time.Time
}

// MemoryDraftStore is a process-local DraftStore
type MemoryDraftStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	drafts map[int64]memoryEntry
	now    func() time.Time
}

// NewMemoryDraftStore creates an in-memory store; ttl <= 0 disables expiry
func NewMemoryDraftStore(ttl time.Duration) *MemoryDraftStore {
	return &MemoryDraftStore{
		ttl:    ttl,
		drafts: make(map[int64]memoryEntry),
		now:    time.Now,
	}
}

func (s *MemoryDraftStore) expired(e memoryEntry, now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

func (s *MemoryDraftStore) Get(ctx context.Context, adminID int64) (*Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.drafts[adminID]
	if !ok {
		return nil, nil
	}
	if s.expired(e, s.now()) {
		delete(s.drafts, adminID)
		return nil, nil
	}
	d := e.draft
	return &d, nil
}

func (s *MemoryDraftStore) Put(ctx context.Context, adminID int64, draft Draft) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	prev, ok := s.drafts[adminID]
	replaced := ok && !s.expired(prev, now)

	e := memoryEntry{draft: draft}
	if s.ttl > 0 {
		e.expiresAt = now.Add(s.ttl)
	}
	s.drafts[adminID] = e
	return replaced, nil
}

func (s *MemoryDraftStore) Delete(ctx context.Context, adminID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.drafts[adminID]
	delete(s.drafts, adminID)
	return ok && !s.expired(e, s.now()), nil
}

// Sweep drops expired drafts and returns how many were removed
func (s *MemoryDraftStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, e := range s.drafts {
		if s.expired(e, now) {
			delete(s.drafts, id)
			removed++
		}
	}
	return removed
}

// ScheduleSweep registers a periodic Sweep on the cron scheduler
func (s *MemoryDraftStore) ScheduleSweep(c *cron.Cron, spec string, logger *zap.Logger) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		if n := s.Sweep(); n > 0 {
			logger.Info("Expired admin drafts removed", zap.Int("count", n))
		}
	})
}

// RedisDraftStore keeps drafts in Redis with a key TTL, so a pending upload
// survives a bot restart.
type RedisDraftStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisDraftStore builds a Redis-backed draft store
func NewRedisDraftStore(addr, password string, ttl time.Duration) *RedisDraftStore {
	return &RedisDraftStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		keyPrefix: "storefront:draft:",
		ttl:       ttl,
	}
}

func (s *RedisDraftStore) key(adminID int64) string {
	return s.keyPrefix + strconv.FormatInt(adminID, 10)
}

// Ping checks that Redis is reachable
func (s *RedisDraftStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisDraftStore) Get(ctx context.Context, adminID int64) (*Draft, error) {
	raw, err := s.client.Get(ctx, s.key(adminID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read draft: %w", err)
	}

	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("failed to decode draft: %w", err)
	}
	return &d, nil
}

func (s *RedisDraftStore) Put(ctx context.Context, adminID int64, draft Draft) (bool, error) {
	raw, err := json.Marshal(draft)
	if err != nil {
		return false, fmt.Errorf("failed to encode draft: %w", err)
	}

	ttl := s.ttl
	if ttl <= 0 {
		ttl = redis.KeepTTL
	}
	_, err = s.client.SetArgs(ctx, s.key(adminID), raw, redis.SetArgs{TTL: ttl, Get: true}).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to store draft: %w", err)
	}
	return true, nil
}

func (s *RedisDraftStore) Delete(ctx context.Context, adminID int64) (bool, error) {
	n, err := s.client.Del(ctx, s.key(adminID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete draft: %w", err)
	}
	return n > 0, nil
}

// Close closes the Redis client
func (s *RedisDraftStore) Close() error {
	return s.client.Close()
}
