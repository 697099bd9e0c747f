package social

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// NonceStore makes an OAuth state usable once. Remember is called when the
// flow begins and Consume when the callback arrives; Consume reports false
// for a nonce it never saw or already consumed.
type NonceStore interface {
	Remember(ctx context.Context, nonce string, ttl time.Duration) error
	Consume(ctx context.Context, nonce string) (bool, error)
}

// NoopNonceStore accepts every nonce. Replay is then bounded only by the
// state expiry.
type NoopNonceStore struct{}

func (NoopNonceStore) Remember(context.Context, string, time.Duration) error {
	return nil
}

func (NoopNonceStore) Consume(context.Context, string) (bool, error) {
	return true, nil
}

// DefaultNonceKeyPrefix namespaces nonce keys in redis
const DefaultNonceKeyPrefix = "sessionauth:oauth:nonce:"

// RedisNonceStore keeps nonces in redis until consumed or expired
type RedisNonceStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisNonceStore returns a store over client. An empty prefix means
// DefaultNonceKeyPrefix.
func NewRedisNonceStore(client redis.UniversalClient, prefix string) *RedisNonceStore {
	if prefix == "" {
		prefix = DefaultNonceKeyPrefix
	}
	return &RedisNonceStore{client: client, prefix: prefix}
}

func (s *RedisNonceStore) key(nonce string) string {
	return s.prefix + nonce
}

func (s *RedisNonceStore) Remember(ctx context.Context, nonce string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return s.client.Set(ctx, s.key(nonce), "1", ttl).Err()
}

func (s *RedisNonceStore) Consume(ctx context.Context, nonce string) (bool, error) {
	_, err := s.client.GetDel(ctx, s.key(nonce)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
