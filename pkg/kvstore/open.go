package kvstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Backend names accepted by Open
const (
	BackendLevelDB  = "leveldb"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Options selects and configures a backend
type Options struct {
	Backend     string
	LevelDBPath string
	DatabaseURL string
	RedisURL    string
	RedisPrefix string
}

// Open connects to the configured backend and verifies it is reachable
func Open(ctx context.Context, opts Options) (KV, error) {
	switch opts.Backend {
	case BackendLevelDB, "":
		if opts.LevelDBPath == "" {
			return nil, fmt.Errorf("leveldb path is not set")
		}
		return OpenLevelDB(opts.LevelDBPath)

	case BackendPostgres:
		if opts.DatabaseURL == "" {
			return nil, fmt.Errorf("database url is not set")
		}
		if err := Migrate(ctx, opts.DatabaseURL); err != nil {
			return nil, err
		}

		dbConfig, err := pgxpool.ParseConfig(opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("unable to parse database config: %w", err)
		}
		pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
		if err != nil {
			return nil, fmt.Errorf("unable to create connection pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("unable to ping database: %w", err)
		}
		return NewPostgres(pool), nil

	case BackendRedis:
		redisOpts, err := redis.ParseURL(opts.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("unable to parse redis url: %w", err)
		}
		client := redis.NewClient(redisOpts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("unable to ping redis: %w", err)
		}
		return NewRedis(client, opts.RedisPrefix), nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}
