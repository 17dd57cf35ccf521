package menu

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"yurica-pos/internal/logger"
)

const priceKeyPrefix = "menu:price:"

// PriceCache keeps current menu prices in redis, keyed by item name.
type PriceCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPriceCache(client *redis.Client, ttl time.Duration) *PriceCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PriceCache{client: client, ttl: ttl}
}

// ConnectRedis opens a client and checks it answers.
func ConnectRedis(ctx context.Context, addr, password string, db int, log *logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: 10,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}

	log.Info("REDIS", fmt.Sprintf("Connected to %s for menu price caching", addr))
	return client, nil
}

func priceKey(name string) string {
	return priceKeyPrefix + name
}

// Get returns the cached prices among names and the names that missed.
func (c *PriceCache) Get(ctx context.Context, names []string) (map[string]int64, []string, error) {
	hits := make(map[string]int64, len(names))
	if len(names) == 0 {
		return hits, nil, nil
	}

	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = priceKey(n)
	}

	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, names, err
	}

	var misses []string
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			misses = append(misses, names[i])
			continue
		}
		cents, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			misses = append(misses, names[i])
			continue
		}
		hits[names[i]] = cents
	}
	return hits, misses, nil
}

// Put stores prices with the cache TTL.
func (c *PriceCache) Put(ctx context.Context, prices map[string]int64) error {
	if len(prices) == 0 {
		return nil
	}
	pipe := c.client.TxPipeline()
	for name, cents := range prices {
		pipe.Set(ctx, priceKey(name), strconv.FormatInt(cents, 10), c.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Invalidate drops the cached price of each name.
func (c *PriceCache) Invalidate(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = priceKey(n)
	}
	return c.client.Del(ctx, keys...).Err()
}
