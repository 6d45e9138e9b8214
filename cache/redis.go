package cache

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"sync"
	"time"

	"community-polling-backend/logging"

	"github.com/redis/go-redis/v9"
)

var (
	redisClient *redis.Client
	initOnce    sync.Once
	initialized bool
	mockMode    bool

	// results cache TTL, with jitter so a burst of polls does not expire
	// in the same instant
	defaultExpiration = 1 * time.Hour
	jitterFactor      = 0.2
)

var ErrRedisNotAvailable = errors.New("redis not available")

// InitRedis connects to Redis. On failure the package drops into mock
// mode: every cache call becomes a miss and the service keeps working off
// the database. Correctness never depends on the cache.
func InitRedis() error {
	initOnce.Do(func() {
		if os.Getenv("REDIS_MOCK") == "true" {
			logging.Logger.Info("redis mock mode forced")
			mockMode = true
			initialized = true
			return
		}

		addr := os.Getenv("REDIS_ADDR")
		if addr == "" {
			addr = "localhost:6379"
		}
		db := 0
		if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
			if n, err := strconv.Atoi(dbStr); err == nil {
				db = n
			}
		}

		client := redis.NewClient(&redis.Options{
			Addr:        addr,
			Password:    os.Getenv("REDIS_PASSWORD"),
			DB:          db,
			DialTimeout: 3 * time.Second,
			ReadTimeout: 3 * time.Second,
			PoolSize:    10,
		})

		if _, err := client.Ping(context.Background()).Result(); err != nil {
			logging.Logger.Warnf("redis unreachable at %s, falling back to mock mode: %v", addr, err)
			mockMode = true
			initialized = true
			return
		}

		redisClient = client
		initialized = true
		logging.Logger.Infof("redis connected at %s", addr)
	})
	return nil
}

// GetClient returns the live Redis client, or an error in mock mode.
func GetClient() (*redis.Client, error) {
	if !initialized || mockMode || redisClient == nil {
		return nil, ErrRedisNotAvailable
	}
	return redisClient, nil
}

// Ping reports whether Redis is reachable right now.
func Ping(ctx context.Context) error {
	client, err := GetClient()
	if err != nil {
		return err
	}
	return client.Ping(ctx).Err()
}

// CloseRedis closes the connection if one was established.
func CloseRedis() {
	if redisClient != nil {
		_ = redisClient.Close()
		logging.Logger.Info("redis connection closed")
	}
}

func resultsKey(pollID uint) string {
	return fmt.Sprintf("poll:%d:results", pollID)
}

// GetResults returns the cached aggregated-results payload for a poll, or
// ok=false on a miss (including mock mode).
func GetResults(ctx context.Context, pollID uint) ([]byte, bool) {
	client, err := GetClient()
	if err != nil {
		return nil, false
	}
	data, err := client.Get(ctx, resultsKey(pollID)).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetResults caches the aggregated-results payload with a jittered TTL.
func SetResults(ctx context.Context, pollID uint, data []byte) {
	client, err := GetClient()
	if err != nil {
		return
	}
	ttl := jitteredTTL(defaultExpiration)
	if err := client.Set(ctx, resultsKey(pollID), data, ttl).Err(); err != nil {
		logging.Logger.Warnf("failed to cache results for poll %d: %v", pollID, err)
	}
}

// InvalidatePoll drops every cached view of a poll. Called after each
// committed vote and after lifecycle mutations.
func InvalidatePoll(ctx context.Context, pollID uint) {
	client, err := GetClient()
	if err != nil {
		return
	}
	keys := []string{
		resultsKey(pollID),
		fmt.Sprintf("poll:%d:data", pollID),
	}
	if err := client.Del(ctx, keys...).Err(); err != nil {
		logging.Logger.Warnf("failed to invalidate cache for poll %d: %v", pollID, err)
	}
}

func jitteredTTL(base time.Duration) time.Duration {
	jitter := time.Duration(rand.Int63n(int64(float64(base) * jitterFactor)))
	return base + jitter
}
