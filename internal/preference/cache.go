// internal/preference/cache.go
package preference

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"notification-hub/internal/models"

	"github.com/redis/go-redis/v9"
)

const cacheTTL = 10 * time.Minute

// Cache is a Redis-backed snapshot cache of preference records. Entries are
// invalidated after every successful mutation; resolution reads go through
// the cache first.
type Cache struct {
	rdb *redis.Client
}

// NewCache creates a preference cache over an existing Redis client.
func NewCache(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

func cacheKey(userID string) string {
	return "prefs:" + userID
}

// Get returns the cached preference record, or nil on miss.
func (c *Cache) Get(ctx context.Context, userID string) (*models.NotificationPreference, error) {
	raw, err := c.rdb.Get(ctx, cacheKey(userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("preference cache get: %w", err)
	}

	var prefs models.NotificationPreference
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
		// A corrupt entry behaves like a miss; the caller refills it.
		return nil, nil
	}
	return &prefs, nil
}

// Put stores a preference snapshot.
func (c *Cache) Put(ctx context.Context, prefs *models.NotificationPreference) error {
	raw, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("preference cache marshal: %w", err)
	}
	if err := c.rdb.Set(ctx, cacheKey(prefs.UserID), raw, cacheTTL).Err(); err != nil {
		return fmt.Errorf("preference cache set: %w", err)
	}
	return nil
}

// Invalidate drops the cached snapshot for a user.
func (c *Cache) Invalidate(ctx context.Context, userID string) error {
	if err := c.rdb.Del(ctx, cacheKey(userID)).Err(); err != nil {
		return fmt.Errorf("preference cache invalidate: %w", err)
	}
	return nil
}

// Repository is the persistent store behind the cache.
type Repository interface {
	Get(ctx context.Context, userID string) (*models.NotificationPreference, error)
	Save(ctx context.Context, prefs *models.NotificationPreference) error
}

// Service combines the repository with the cache and owns the authoritative
// merge semantics for partial updates.
type Service struct {
	repo  Repository
	cache *Cache
}

// NewService creates a preference service. cache may be nil, in which case
// every read hits the repository.
func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Get returns the user's preferences, creating the defaults on first access.
func (s *Service) Get(ctx context.Context, userID string) (*models.NotificationPreference, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, userID); err == nil && cached != nil {
			return cached, nil
		}
	}

	prefs, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if prefs == nil {
		prefs = Defaults(userID)
		if err := s.repo.Save(ctx, prefs); err != nil {
			return nil, err
		}
	}

	if s.cache != nil {
		_ = s.cache.Put(ctx, prefs)
	}
	return prefs, nil
}

// Update merges a partial update onto the stored record, persists the result
// and invalidates the cache. It returns the merged, canonical record.
func (s *Service) Update(ctx context.Context, userID string, update *models.PreferenceUpdate) (*models.NotificationPreference, error) {
	base, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	merged := Merge(base, update)
	merged.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	if err := s.repo.Save(ctx, merged); err != nil {
		return nil, err
	}

	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, userID)
	}
	return merged, nil
}
