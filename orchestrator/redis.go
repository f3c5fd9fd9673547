package orchestrator

import (
	"context"
	"time"

	"github.com/redis/rueidis"
)

// RedisKVBackend adapts a rueidis.Client to the KVBackend interface a
// RemoteStore needs, so session records can be handed to a shared Redis
// deployment with the backend enforcing per-entry TTL.
type RedisKVBackend struct {
	client rueidis.Client
}

// NewRedisKVBackend wraps client.
func NewRedisKVBackend(client rueidis.Client) *RedisKVBackend {
	return &RedisKVBackend{client: client}
}

// Get implements KVBackend, returning (nil, nil) on a cache miss.
func (r *RedisKVBackend) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := r.client.B().Get().Key(key).Build()
	res, err := r.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil
		}
		return nil, err
	}
	return res, nil
}

// Set implements KVBackend with an EX-bound write.
func (r *RedisKVBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cmd := r.client.B().Set().Key(key).Value(rueidis.BinaryString(value)).Ex(ttl).Build()
	return r.client.Do(ctx, cmd).Error()
}

// Delete implements KVBackend, reporting whether the key had existed.
func (r *RedisKVBackend) Delete(ctx context.Context, key string) (bool, error) {
	cmd := r.client.B().Del().Key(key).Build()
	n, err := r.client.Do(ctx, cmd).AsInt64()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Exists implements KVBackend.
func (r *RedisKVBackend) Exists(ctx context.Context, key string) (bool, error) {
	cmd := r.client.B().Exists().Key(key).Build()
	n, err := r.client.Do(ctx, cmd).AsInt64()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
