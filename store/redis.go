package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore implements Store on a Redis client. Transactions map onto
// MULTI/EXEC pipelines, so multi-key writes are applied atomically and the
// sweep's range-scan-plus-delete executes as one uninterruptible unit.
type RedisStore struct {
	client *redis.Client
}

// NewRedisClient creates and pings a Redis client with the pool settings the
// presence store needs.
func NewRedisClient(address, password string, db, poolSize, poolTimeout int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        address,
		Password:    password,
		DB:          db,
		PoolSize:    poolSize,
		PoolTimeout: time.Duration(poolTimeout) * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) HashSet(ctx context.Context, key, field, value string) error {
	if err := s.client.HSet(ctx, key, field, value).Err(); err != nil {
		return fmt.Errorf("redis hset %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) HashGet(ctx context.Context, key, field string) (string, bool, error) {
	val, err := s.client.HGet(ctx, key, field).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis hget %s: %w", key, err)
	}
	return val, true, nil
}

func (s *RedisStore) HashMultiGet(ctx context.Context, key string, fields []string) (map[string]string, error) {
	if len(fields) == 0 {
		return map[string]string{}, nil
	}
	vals, err := s.client.HMGet(ctx, key, fields...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hmget %s: %w", key, err)
	}
	result := make(map[string]string, len(fields))
	for i, v := range vals {
		if v == nil {
			continue
		}
		if str, ok := v.(string); ok {
			result[fields[i]] = str
		}
	}
	return result, nil
}

func (s *RedisStore) HashDelete(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	if err := s.client.HDel(ctx, key, fields...).Err(); err != nil {
		return fmt.Errorf("redis hdel %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) SortedSetScore(ctx context.Context, key, member string) (int64, bool, error) {
	score, err := s.client.ZScore(ctx, key, member).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis zscore %s: %w", key, err)
	}
	return int64(score), true, nil
}

func (s *RedisStore) Atomically(ctx context.Context, fn func(tx Tx)) error {
	rtx := &redisTx{ctx: ctx}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		rtx.pipe = pipe
		fn(rtx)
		return nil
	})
	if err != nil && err != redis.Nil {
		return fmt.Errorf("redis transaction: %w", err)
	}
	for _, resolve := range rtx.resolvers {
		resolve()
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// redisTx queues commands on a MULTI pipeline. Replies are resolved from the
// command results once EXEC succeeds.
type redisTx struct {
	ctx       context.Context
	pipe      redis.Pipeliner
	resolvers []func()
}

func (t *redisTx) HashSet(key, field, value string) {
	t.pipe.HSet(t.ctx, key, field, value)
}

func (t *redisTx) HashDelete(key string, fields ...string) {
	if len(fields) == 0 {
		return
	}
	t.pipe.HDel(t.ctx, key, fields...)
}

func (t *redisTx) SortedSetAdd(key string, score int64, member string) {
	t.pipe.ZAdd(t.ctx, key, &redis.Z{Score: float64(score), Member: member})
}

func (t *redisTx) SortedSetRemove(key string, members ...string) *IntReply {
	reply := &IntReply{}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	cmd := t.pipe.ZRem(t.ctx, key, args...)
	t.resolvers = append(t.resolvers, func() { reply.val = cmd.Val() })
	return reply
}

func (t *redisTx) SortedSetRangeByScoreMax(key string, max int64) *StringsReply {
	reply := &StringsReply{}
	cmd := t.pipe.ZRangeByScore(t.ctx, key, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(max, 10),
	})
	t.resolvers = append(t.resolvers, func() { reply.val = cmd.Val() })
	return reply
}

func (t *redisTx) SortedSetRemoveByScoreMax(key string, max int64) {
	t.pipe.ZRemRangeByScore(t.ctx, key, "-inf", strconv.FormatInt(max, 10))
}
