package steps

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"go-etl-pipeline/internal/pipeline"
)

// RedisLoader appends records as JSON to a Redis list. Records are staged
// on a private list and moved onto the target list in one MULTI/EXEC on
// End; Abort deletes the staging list.
//
//	config:
//	  address: localhost:6379
//	  password: ""
//	  db: 0
//	  key: people
var RedisLoader = pipeline.DeclareLoader("loaders/redis", validateRedis, newRedisLoader)

type redisLoader struct {
	logger  pipeline.Logger
	options *redis.Options
	key     string
	staging string

	client *redis.Client
}

func validateRedis(cfg map[string]any) []error {
	var errs []error
	if err := requireString(cfg, "address"); err != nil {
		errs = append(errs, err)
	}
	if err := requireString(cfg, "key"); err != nil {
		errs = append(errs, err)
	}
	return errs
}

func newRedisLoader(_ context.Context, logger pipeline.Logger, cfg map[string]any) (pipeline.Loader, error) {
	key := stringOpt(cfg, "key", "")
	return &redisLoader{
		logger: logger,
		options: &redis.Options{
			Addr:     stringOpt(cfg, "address", ""),
			Password: stringOpt(cfg, "password", ""),
			DB:       intOpt(cfg, "db", 0),
		},
		key:     key,
		staging: key + ":staging:" + uuid.NewString(),
	}, nil
}

func (l *redisLoader) Begin(ctx context.Context) error {
	client := redis.NewClient(l.options)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("redis ping %s: %w", l.options.Addr, err)
	}
	l.client = client
	return nil
}

func (l *redisLoader) LoadRecord(ctx context.Context, rec pipeline.Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	if err := l.client.RPush(ctx, l.staging, b).Err(); err != nil {
		return fmt.Errorf("redis rpush: %w", err)
	}
	return nil
}

func (l *redisLoader) End(ctx context.Context) error {
	if l.client == nil {
		return nil
	}
	defer l.close()

	items, err := l.client.LRange(ctx, l.staging, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("redis lrange: %w", err)
	}
	_, err = l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(items) > 0 {
			values := make([]any, len(items))
			for i, it := range items {
				values[i] = it
			}
			pipe.RPush(ctx, l.key, values...)
		}
		pipe.Del(ctx, l.staging)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis commit: %w", err)
	}
	l.logger.Info("redis load committed", "key", l.key, "records", len(items))
	return nil
}

func (l *redisLoader) Abort(ctx context.Context) error {
	if l.client == nil {
		return nil
	}
	defer l.close()
	return l.client.Del(ctx, l.staging).Err()
}

func (l *redisLoader) close() {
	l.client.Close()
	l.client = nil
}
