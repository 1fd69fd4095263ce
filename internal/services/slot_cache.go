package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/courtly/court-booking-backend/internal/config"
	"github.com/courtly/court-booking-backend/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// SlotCache stores computed availability lists. Every invalidation bumps a
// per court and date generation; a list computed under an older generation
// is never stored.
type SlotCache interface {
	Get(ctx context.Context, key string) ([]models.Slot, bool)
	Generation(ctx context.Context, genKey string) int64
	SetIfCurrent(ctx context.Context, key, genKey string, generation int64, slots []models.Slot)
	Invalidate(ctx context.Context, organizationID, resourceID int64, date time.Time)
}

// SlotCacheKey identifies one availability list
func SlotCacheKey(organizationID, resourceID int64, date time.Time, duration int) string {
	return fmt.Sprintf("%s:%d", slotCachePrefix(organizationID, resourceID, date), duration)
}

func slotCachePrefix(organizationID, resourceID int64, date time.Time) string {
	return fmt.Sprintf("availability:%d:%d:%s", organizationID, resourceID, date.Format(models.DateLayout))
}

// slotGenerationKey lives outside the list prefix so Invalidate's scan never
// deletes it
func slotGenerationKey(organizationID, resourceID int64, date time.Time) string {
	return fmt.Sprintf("availability-gen:%d:%d:%s", organizationID, resourceID, date.Format(models.DateLayout))
}

// generationTTL outlives any request that could still be computing a list
const generationTTL = 24 * time.Hour

// NewRedisClient connects to Redis. It returns nil when caching is disabled
// or the server is unreachable; callers then run without a cache.
func NewRedisClient(cfg config.RedisConfig, logger *logrus.Logger) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("Redis unavailable, availability cache disabled")
		_ = client.Close()
		return nil
	}
	return client
}

// RedisSlotCache is a SlotCache backed by Redis
type RedisSlotCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// NewSlotCache returns a Redis-backed cache, or a no-op cache when client is nil
func NewSlotCache(client *redis.Client, ttl time.Duration, logger *logrus.Logger) SlotCache {
	if client == nil {
		return noopSlotCache{}
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisSlotCache{client: client, ttl: ttl, logger: logger}
}

// Get returns a cached list. Misses and Redis errors both report false.
func (c *RedisSlotCache) Get(ctx context.Context, key string) ([]models.Slot, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).WithField("key", key).Warn("Availability cache read failed")
		}
		return nil, false
	}
	var slots []models.Slot
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, false
	}
	return slots, true
}

// Generation returns the current generation, or -1 when Redis cannot
// answer (SetIfCurrent then never writes)
func (c *RedisSlotCache) Generation(ctx context.Context, genKey string) int64 {
	gen, err := c.client.Get(ctx, genKey).Int64()
	if err == redis.Nil {
		return 0
	}
	if err != nil {
		c.logger.WithError(err).WithField("key", genKey).Warn("Availability generation read failed")
		return -1
	}
	return gen
}

// SetIfCurrent stores a list with the configured TTL unless the generation
// moved since it was read. WATCH aborts the write if an invalidation lands
// between the check and EXEC.
func (c *RedisSlotCache) SetIfCurrent(ctx context.Context, key, genKey string, generation int64, slots []models.Slot) {
	if generation < 0 {
		return
	}
	raw, err := json.Marshal(slots)
	if err != nil {
		return
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && err != redis.Nil {
			return err
		}
		if current != generation {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, c.ttl)
			return nil
		})
		return err
	}, genKey)
	if err != nil && err != redis.TxFailedErr {
		c.logger.WithError(err).WithField("key", key).Warn("Availability cache write failed")
	}
}

// Invalidate bumps the generation and drops every cached duration for the
// court and date
func (c *RedisSlotCache) Invalidate(ctx context.Context, organizationID, resourceID int64, date time.Time) {
	genKey := slotGenerationKey(organizationID, resourceID, date)
	if _, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, generationTTL)
		return nil
	}); err != nil {
		c.logger.WithError(err).WithField("key", genKey).Warn("Availability generation bump failed")
	}

	pattern := slotCachePrefix(organizationID, resourceID, date) + ":*"
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.WithError(err).WithField("pattern", pattern).Warn("Availability cache scan failed")
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.WithError(err).WithField("pattern", pattern).Warn("Availability cache invalidation failed")
	}
}

type noopSlotCache struct{}

func (noopSlotCache) Get(context.Context, string) ([]models.Slot, bool) { return nil, false }

func (noopSlotCache) Generation(context.Context, string) int64 { return 0 }

func (noopSlotCache) SetIfCurrent(context.Context, string, string, int64, []models.Slot) {}

func (noopSlotCache) Invalidate(context.Context, int64, int64, time.Time) {}
