package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authgate/identity"
)

const (
	defaultPrefix    = "ag"
	maxCreateRetries = 3
)

// RedisStore persists sessions in Redis as versioned binary blobs.
//
// Each session is a single key written with SET NX EX, so a session is either
// fully present or absent and an existing id is never overwritten.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore returns a store under the given key prefix (default "ag").
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		redis:  client,
		prefix: prefix,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + ":s:" + id
}

func (s *RedisStore) Create(ctx context.Context, accessToken string, claims identity.Claims) (*Session, error) {
	for attempt := 0; attempt < maxCreateRetries; attempt++ {
		now := s.now()
		sess, err := newSession(accessToken, claims, s.ttl, now)
		if err != nil {
			return nil, err
		}

		data, err := Encode(sess)
		if err != nil {
			return nil, err
		}

		ok, err := s.redis.SetNX(ctx, s.key(sess.ID), data, sess.TTL(now)).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if ok {
			return sess, nil
		}
	}
	return nil, fmt.Errorf("%w: session id collision", ErrStoreUnavailable)
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}

	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		// A blob we cannot read is never trusted.
		_ = s.redis.Del(ctx, s.key(id)).Err()
		return nil, ErrNotFound
	}
	if sess.Expired(s.now()) {
		return nil, ErrNotFound
	}
	sess.ID = id

	return sess, nil
}

func (s *RedisStore) Destroy(ctx context.Context, id string) error {
	if !validID(id) {
		return nil
	}
	if err := s.redis.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Ping checks Redis connectivity and returns the round-trip time.
func (s *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return time.Since(start), nil
}

// Count returns the number of live sessions under the prefix using SCAN.
func (s *RedisStore) Count(ctx context.Context) (int, error) {
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, s.prefix+":s:*", 500).Result()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		total += len(keys)
		cursor = next
		if cursor == 0 {
			return total, nil
		}
	}
}
