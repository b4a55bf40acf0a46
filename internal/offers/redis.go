package offers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const selectedField = "selected"

// RedisStore keeps one hash per contact with fields "1", "2", ... and
// "selected". It lets several server instances share offers.
type RedisStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisStore connects using a redis:// URI.
func NewRedisStore(uri string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("parse redis uri: %w", err)
	}
	return NewRedisStoreWithClient(redis.NewClient(opts), ttl), nil
}

func NewRedisStoreWithClient(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl, prefix: "funnel:offers:"}
}

func (s *RedisStore) key(contact string) string {
	return s.prefix + contact
}

func (s *RedisStore) PutOffers(ctx context.Context, contact string, offers []string) error {
	key := s.key(contact)
	fields := make(map[string]interface{}, len(offers))
	for i, o := range offers {
		fields[strconv.Itoa(i+1)] = o
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(fields) > 0 {
			pipe.HSet(ctx, key, fields)
		}
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	return err
}

func (s *RedisStore) Offer(ctx context.Context, contact string, index int) (string, error) {
	return s.field(ctx, contact, strconv.Itoa(index))
}

func (s *RedisStore) Select(ctx context.Context, contact, offer string) error {
	key := s.key(contact)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, selectedField, offer)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	return err
}

func (s *RedisStore) Selected(ctx context.Context, contact string) (string, error) {
	return s.field(ctx, contact, selectedField)
}

func (s *RedisStore) Clear(ctx context.Context, contact string) error {
	return s.rdb.Del(ctx, s.key(contact)).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func (s *RedisStore) field(ctx context.Context, contact, field string) (string, error) {
	val, err := s.rdb.HGet(ctx, s.key(contact), field).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoOffer
	}
	if err != nil {
		return "", err
	}
	return val, nil
}
