package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lusohub/expressions-maker-a22311749/internal/model"
)

const (
	deliveredValue = "1"
	pendingValue   = "pending"

	defaultTTL      = time.Hour
	defaultTimeout  = 2 * time.Second
	defaultClaimTTL = time.Minute
)

type RedisOptions struct {
	TTL     time.Duration
	Timeout time.Duration

	// Reserve claims the key with SET NX before delivery instead of a
	// separate GET, closing the window where two workers both deliver.
	Reserve  bool
	ClaimTTL time.Duration
}

type RedisGate struct {
	rdb  *redis.Client
	opts RedisOptions
}

func NewRedisGate(rdb *redis.Client, opts RedisOptions) *RedisGate {
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.ClaimTTL <= 0 {
		opts.ClaimTTL = defaultClaimTTL
	}
	return &RedisGate{rdb: rdb, opts: opts}
}

// NewRedisClient parses a redis:// URL and pings the server once.
func NewRedisClient(ctx context.Context, url string, timeout time.Duration) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if timeout > 0 {
		opt.DialTimeout = timeout
		opt.ReadTimeout = timeout
		opt.WriteTimeout = timeout
	}

	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func (g *RedisGate) ShouldDeliver(ctx context.Context, rec model.ClientRecord) bool {
	if !Identified(rec) {
		return true
	}
	key := Key(rec)

	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	if g.opts.Reserve {
		claimed, err := g.rdb.SetNX(ctx, key, pendingValue, g.opts.ClaimTTL).Result()
		if err != nil {
			slog.Warn("dedup claim failed, delivering anyway", "key", key, "error", err)
			return true
		}
		return claimed
	}

	err := g.rdb.Get(ctx, key).Err()
	if errors.Is(err, redis.Nil) {
		return true
	}
	if err != nil {
		slog.Warn("dedup lookup failed, delivering anyway", "key", key, "error", err)
		return true
	}
	return false
}

func (g *RedisGate) MarkDelivered(ctx context.Context, rec model.ClientRecord) {
	if !Identified(rec) {
		return
	}
	key := Key(rec)

	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	if err := g.rdb.Set(ctx, key, deliveredValue, g.opts.TTL).Err(); err != nil {
		slog.Warn("dedup marker not written", "key", key, "error", err)
	}
}

func (g *RedisGate) Release(ctx context.Context, rec model.ClientRecord) {
	if !g.opts.Reserve || !Identified(rec) {
		return
	}
	key := Key(rec)

	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	if err := g.rdb.Del(ctx, key).Err(); err != nil {
		slog.Warn("dedup claim not released", "key", key, "error", err)
	}
}
