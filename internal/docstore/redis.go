package docstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/config"
	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/domain"
)

// Redis implements Client on top of a Redis instance: one hash per
// document path, one sorted set per numeric index, and MULTI/EXEC
// pipelines for the atomic multi-path update.
type Redis struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(cfg *config.RedisConfig, logger *slog.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Redis{
		client: client,
		logger: logger,
	}, nil
}

// Close closes the Redis connection.
func (s *Redis) Close() error {
	return s.client.Close()
}

// Client returns the underlying Redis client.
func (s *Redis) Client() *redis.Client {
	return s.client
}

// GetField reads a single hash field.
func (s *Redis) GetField(ctx context.Context, doc, field string) (string, bool, error) {
	val, err := s.client.HGet(ctx, doc, field).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: reading %s/%s: %v", domain.ErrStoreUnavailable, doc, field, err)
	}
	return val, true, nil
}

// GetDoc reads a whole hash. Redis reports an absent hash as an empty
// map, which matches the Client contract.
func (s *Redis) GetDoc(ctx context.Context, doc string) (map[string]string, error) {
	result, err := s.client.HGetAll(ctx, doc).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", domain.ErrStoreUnavailable, doc, err)
	}
	return result, nil
}

// RangeLast reads a sorted set ascending; limit > 0 keeps only the
// highest-scored tail.
func (s *Redis) RangeLast(ctx context.Context, index string, limit int) ([]RankedEntry, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	results, err := s.client.ZRangeWithScores(ctx, index, start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: ranging %s: %v", domain.ErrStoreUnavailable, index, err)
	}

	entries := make([]RankedEntry, len(results))
	for i, result := range results {
		entries[i] = RankedEntry{
			Member: result.Member.(string),
			Score:  result.Score,
		}
	}
	return entries, nil
}

// Apply runs every op in one MULTI/EXEC transaction.
func (s *Redis) Apply(ctx context.Context, u Update) error {
	pipe := s.client.TxPipeline()
	for _, op := range u.Ops {
		if op.Delete {
			pipe.HDel(ctx, op.Doc, op.Field)
		} else {
			pipe.HSet(ctx, op.Doc, op.Field, op.Value)
		}
	}
	for _, op := range u.Indexes {
		if op.Delete {
			pipe.ZRem(ctx, op.Index, op.Member)
		} else {
			pipe.ZAdd(ctx, op.Index, redis.Z{
				Score:  op.Score,
				Member: op.Member,
			})
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: applying update: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}
