// Package sessions computes the read-side occupancy view of conference
// sessions. Counts are cached briefly in Redis so the public listing stays
// cheap while scanning stations hammer it during registration peaks.
package sessions

import (
	"context"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/confera/backend/internal/models"
	"github.com/confera/backend/internal/registrations"
	"github.com/confera/backend/pkg/redis"
)

// ContentSource provides read access to conference content.
type ContentSource interface {
	Conference(slug string) (*models.Conference, error)
	ActiveConferences() ([]models.Conference, error)
	SessionByID(slug, id string) (*models.Session, error)
}

// Counter provides registration counts per session.
type Counter interface {
	CountBySession(ctx context.Context, slug, sessionID string) (int, error)
	CountsByConference(ctx context.Context, slug string) ([]registrations.SessionCounts, error)
}

// CountCache caches per-session registration counts. A miss returns ok=false.
type CountCache interface {
	Get(ctx context.Context, key string) (int, bool)
	Set(ctx context.Context, key string, n int, ttl time.Duration)
}

// Service resolves sessions together with their capacity status.
type Service struct {
	content  ContentSource
	counter  Counter
	cache    CountCache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewService creates a session capacity service. cache may be nil; counts are
// then read from the database on every call.
func NewService(content ContentSource, counter Counter, cache CountCache, cacheTTL time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{content: content, counter: counter, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// ListWithCapacity returns all sessions of a conference with occupancy,
// ordered as stored in the content document.
func (s *Service) ListWithCapacity(ctx context.Context, slug string) ([]models.SessionWithCapacity, error) {
	conf, err := s.content.Conference(slug)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(conf.Sessions))
	if all, err := s.counter.CountsByConference(ctx, slug); err == nil {
		for _, c := range all {
			counts[c.SessionID] = c.Total
		}
	} else {
		return nil, err
	}

	out := make([]models.SessionWithCapacity, 0, len(conf.Sessions))
	for _, sess := range conf.Sessions {
		out = append(out, models.SessionWithCapacity{
			Session:        sess,
			CapacityStatus: capacityStatus(sess.Capacity, counts[sess.ID]),
		})
	}
	return out, nil
}

// Capacity returns the occupancy of one session, served from cache when
// fresh. Stale-by-TTL counts are acceptable here; the registration path
// recounts from the database before committing.
func (s *Service) Capacity(ctx context.Context, slug, sessionID string) (*models.CapacityStatus, error) {
	sess, err := s.content.SessionByID(slug, sessionID)
	if err != nil {
		return nil, err
	}

	key := countKey(slug, sessionID)
	if s.cache != nil {
		if n, ok := s.cache.Get(ctx, key); ok {
			st := capacityStatus(sess.Capacity, n)
			return &st, nil
		}
	}

	n, err := s.counter.CountBySession(ctx, slug, sessionID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, key, n, s.cacheTTL)
	}
	st := capacityStatus(sess.Capacity, n)
	return &st, nil
}

func capacityStatus(capacity *int, registered int) models.CapacityStatus {
	st := models.CapacityStatus{Capacity: capacity, Registered: registered}
	if capacity != nil {
		avail := *capacity - registered
		if avail < 0 {
			avail = 0
		}
		st.Available = &avail
		st.IsFull = registered >= *capacity
	}
	return st
}

func countKey(slug, sessionID string) string {
	return "session_count:" + slug + ":" + sessionID
}

// RedisCountCache is the CountCache backed by Redis. Cache errors degrade to
// misses; they never fail the request.
type RedisCountCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisCountCache creates a Redis-backed count cache.
func NewRedisCountCache(client *redis.Client, logger *zap.Logger) *RedisCountCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCountCache{client: client, logger: logger}
}

func (c *RedisCountCache) Get(ctx context.Context, key string) (int, bool) {
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err != goredis.Nil {
			c.logger.Warn("count cache read failed", zap.String("key", key), zap.Error(err))
		}
		return 0, false
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (c *RedisCountCache) Set(ctx context.Context, key string, n int, ttl time.Duration) {
	if err := c.client.Set(ctx, key, strconv.Itoa(n), ttl).Err(); err != nil {
		c.logger.Warn("count cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// InvalidateSessionCount drops the cached count for one session. Called by
// the registration service after create and delete.
func (c *RedisCountCache) InvalidateSessionCount(ctx context.Context, slug, sessionID string) {
	if err := c.client.Del(ctx, countKey(slug, sessionID)).Err(); err != nil {
		c.logger.Warn("count cache invalidation failed", zap.String("slug", slug), zap.String("session", sessionID), zap.Error(err))
	}
}
