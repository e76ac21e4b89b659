package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

var ctx = context.Background()

// Snapshots stay readable long after their freshness TTL expires, so a
// router outage still has last-known data to serve in degraded mode.
const snapshotRetention = 24 * time.Hour

type RedisClient struct {
	client *redis.Client
}

func Connect() (*RedisClient, error) {
	host := getEnv("REDIS_HOST", "localhost")
	port := getEnv("REDIS_PORT", "6379")
	password := getEnv("REDIS_PASSWORD", "")

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: password,
		DB:       0,
	})

	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{client: client}, nil
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}

func (r *RedisClient) CheckRateLimit(key string, limit int, window time.Duration) (bool, int, error) {
	current, err := r.client.Get(ctx, key).Int()
	if err != nil && err != redis.Nil {
		return true, 0, err
	}

	if current >= limit {
		ttl, _ := r.client.TTL(ctx, key).Result()
		return false, int(ttl.Seconds()), nil
	}

	pipe := r.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	_, err = pipe.Exec(ctx)

	return true, 0, err
}

type snapshotEnvelope struct {
	Data      map[string]interface{} `json:"data"`
	FetchedAt time.Time              `json:"fetched_at"`
}

// SaveSnapshot stores a last-known status payload for the status cache.
func (r *RedisClient) SaveSnapshot(key string, data map[string]interface{}, at time.Time) {
	payload, err := json.Marshal(snapshotEnvelope{Data: data, FetchedAt: at})
	if err != nil {
		return
	}
	r.client.Set(ctx, "status:"+key, payload, snapshotRetention)
}

// LoadSnapshot returns the stored payload and its fetch time, if any.
func (r *RedisClient) LoadSnapshot(key string) (map[string]interface{}, time.Time, bool) {
	raw, err := r.client.Get(ctx, "status:"+key).Bytes()
	if err != nil {
		return nil, time.Time{}, false
	}

	var env snapshotEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, time.Time{}, false
	}
	return env.Data, env.FetchedAt, true
}

func (r *RedisClient) Set(key string, value interface{}, expiration time.Duration) error {
	return r.client.Set(ctx, key, value, expiration).Err()
}

func (r *RedisClient) Get(key string) (string, error) {
	return r.client.Get(ctx, key).Result()
}

func (r *RedisClient) Delete(key string) error {
	return r.client.Del(ctx, key).Err()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
