package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/therealutkarshpriyadarshi/liturgia/internal/subtitle"
)

// Cache provides caching functionality using Redis
type Cache struct {
	client *redis.Client
}

// NewCache creates a new cache instance
func NewCache(host string, port int, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Transcript Cache Operations

// SetSegments caches the transcription of an audio file keyed by its checksum
func (c *Cache) SetSegments(ctx context.Context, checksum string, segments []subtitle.Segment, ttl time.Duration) error {
	if segments == nil {
		segments = []subtitle.Segment{}
	}
	return c.SetWithJSON(ctx, fmt.Sprintf("transcript:%s", checksum), segments, ttl)
}

// GetSegments retrieves a cached transcription. ok is false on a cache miss.
func (c *Cache) GetSegments(ctx context.Context, checksum string) (segments []subtitle.Segment, ok bool, err error) {
	key := fmt.Sprintf("transcript:%s", checksum)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil // Cache miss
		}
		return nil, false, fmt.Errorf("failed to get transcript from cache: %w", err)
	}

	if err := json.Unmarshal(data, &segments); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal transcript: %w", err)
	}
	return segments, true, nil
}

// Job State Operations

// SetJobState records the current pipeline state of a job
func (c *Cache) SetJobState(ctx context.Context, jobID, state string, ttl time.Duration) error {
	key := fmt.Sprintf("job:state:%s", jobID)
	return c.client.Set(ctx, key, state, ttl).Err()
}

// GetJobState retrieves the last recorded pipeline state of a job
func (c *Cache) GetJobState(ctx context.Context, jobID string) (string, error) {
	key := fmt.Sprintf("job:state:%s", jobID)
	state, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil // Cache miss
		}
		return "", fmt.Errorf("failed to get job state from cache: %w", err)
	}
	return state, nil
}

// Locking Operations

// releaseScript deletes the lock only while it is still held by token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// AcquireRunLock attempts to take the named lock for ttl on behalf of token
func (c *Cache) AcquireRunLock(ctx context.Context, name, token string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("lock:%s", name)
	ok, err := c.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	return ok, nil
}

// ReleaseRunLock releases the named lock if token still owns it
func (c *Cache) ReleaseRunLock(ctx context.Context, name, token string) error {
	key := fmt.Sprintf("lock:%s", name)
	if err := releaseScript.Run(ctx, c.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release lock %s: %w", name, err)
	}
	return nil
}

// Exists checks if a key exists
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	result, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}

// SetWithJSON sets a value with JSON marshaling
func (c *Cache) SetWithJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// Ping checks the connection
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
