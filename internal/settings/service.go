package settings

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKey = "settings:snapshot"

// Reader captures the store methods the service needs.
type Reader interface {
	Get(ctx context.Context) (Snapshot, error)
	Update(ctx context.Context, snap Snapshot) error
}

// Service fronts the settings row with a short-lived Redis cache. Every
// quote reads one snapshot through here; nothing holds settings as a
// module-level global.
type Service struct {
	Store Reader
	Redis *redis.Client
	TTL   time.Duration
}

// Snapshot returns the current settings, served from cache when fresh.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	if s == nil || s.Store == nil {
		return Snapshot{}, errors.New("settings service not configured")
	}
	if s.Redis != nil {
		data, err := s.Redis.Get(ctx, cacheKey).Bytes()
		if err == nil {
			var snap Snapshot
			if unmarshalErr := json.Unmarshal(data, &snap); unmarshalErr == nil {
				return snap, nil
			}
		}
	}
	snap, err := s.Store.Get(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	s.cache(ctx, snap)
	return snap, nil
}

// Update persists new settings and refreshes the cache so the next quote
// sees them immediately.
func (s *Service) Update(ctx context.Context, snap Snapshot) error {
	if s == nil || s.Store == nil {
		return errors.New("settings service not configured")
	}
	if err := s.Store.Update(ctx, snap); err != nil {
		return err
	}
	if s.Redis != nil {
		_ = s.Redis.Del(ctx, cacheKey).Err()
	}
	return nil
}

func (s *Service) cache(ctx context.Context, snap Snapshot) {
	if s.Redis == nil {
		return
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	if data, err := json.Marshal(snap); err == nil {
		_ = s.Redis.Set(ctx, cacheKey, data, ttl).Err()
	}
}
