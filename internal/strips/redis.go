package strips

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisKeyPrefix = "attract:strips"

// RedisStore keeps each strip as a JSON hash field and tracks host order in
// a sorted set scored by first insertion time.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	redisURL = strings.TrimSpace(redisURL)
	if redisURL == "" {
		return nil, ErrInvalidInput
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &RedisStore{client: client, keyPrefix: defaultRedisKeyPrefix}, nil
}

func (s *RedisStore) dataKey() string  { return s.keyPrefix + ":data" }
func (s *RedisStore) orderKey() string { return s.keyPrefix + ":order" }

func (s *RedisStore) List(ctx context.Context) ([]Strip, error) {
	ids, err := s.client.ZRange(ctx, s.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list strip order: %w", err)
	}
	out := []Strip{}
	if len(ids) == 0 {
		return out, nil
	}
	values, err := s.client.HMGet(ctx, s.dataKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("load strips: %w", err)
	}
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		var strip Strip
		if err := json.Unmarshal([]byte(raw), &strip); err != nil {
			return nil, fmt.Errorf("decode strip: %w", err)
		}
		out = append(out, strip)
	}
	return out, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (Strip, error) {
	raw, err := s.client.HGet(ctx, s.dataKey(), strings.TrimSpace(id)).Result()
	if errors.Is(err, redis.Nil) {
		return Strip{}, ErrStripNotFound
	}
	if err != nil {
		return Strip{}, fmt.Errorf("get strip: %w", err)
	}
	var strip Strip
	if err := json.Unmarshal([]byte(raw), &strip); err != nil {
		return Strip{}, fmt.Errorf("decode strip: %w", err)
	}
	return strip, nil
}

func (s *RedisStore) Put(ctx context.Context, strip Strip) error {
	strip.ID = strings.TrimSpace(strip.ID)
	if err := strip.validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(strip)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.dataKey(), strip.ID, payload)
		pipe.ZAddNX(ctx, s.orderKey(), redis.Z{Score: float64(time.Now().UnixNano()), Member: strip.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("put strip: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	var removed *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.HDel(ctx, s.dataKey(), id)
		pipe.ZRem(ctx, s.orderKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete strip: %w", err)
	}
	if removed.Val() == 0 {
		return ErrStripNotFound
	}
	return nil
}

func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
