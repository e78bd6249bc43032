package cache

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/media-luna/sonora/internal/config"
	"github.com/media-luna/sonora/internal/logger"
)

// Redis is the go-redis/v9 backed Cache, grounded in the connection/pooling
// discipline of zfogg-sidechain's internal/cache/redis.go and the
// socket-timeout/degrade-on-unreachable behavior of the reference
// implementation's Query.__init__.
type Redis struct {
	client    *redis.Client
	prefix    string
	available atomic.Bool
}

// NewRedis dials cfg and pings once. A failed ping does not return an
// error: the cache degrades to unavailable and every subsequent GetMany
// reports all-miss, letting the match engine fall through to the store —
// recognition must never fail because the cache is down.
func NewRedis(ctx context.Context, cfg config.Cache) *Redis {
	r := &Redis{prefix: cfg.KeyPrefix}
	if cfg.Disabled {
		return r
	}

	connectTimeout := time.Duration(cfg.ConnectTimeout) * time.Second
	opTimeout := time.Duration(cfg.OpTimeout) * time.Second
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	if opTimeout <= 0 {
		opTimeout = 2 * time.Second
	}

	r.client = redis.NewClient(&redis.Options{
		Addr:         cfg.Host + ":" + cfg.Port,
		Username:     cfg.User,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  connectTimeout,
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := r.client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("cache: redis unreachable, falling back to direct-store mode", zap.Error(err))
		r.available.Store(false)
		return r
	}
	r.available.Store(true)
	return r
}

func (r *Redis) Available() bool {
	return r.available.Load()
}

func (r *Redis) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *Redis) key(hash uint64) string {
	return r.prefix + ":" + strconv.FormatUint(hash, 10)
}

// GetMany pipelines a GET per hash, decoding hits into row slices. Any
// decode failure for a single key is treated as a miss for that key and
// logged, never returned as a hard error.
func (r *Redis) GetMany(ctx context.Context, hashes []uint64) (map[uint64][]Row, error) {
	out := make(map[uint64][]Row)
	if !r.Available() || len(hashes) == 0 {
		return out, nil
	}

	pipe := r.client.Pipeline()
	cmds := make(map[uint64]*redis.StringCmd, len(hashes))
	for _, h := range hashes {
		cmds[h] = pipe.Get(ctx, r.key(h))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		logger.Warn("cache: pipeline get failed", zap.Error(err))
		return out, nil
	}

	for h, cmd := range cmds {
		raw, err := cmd.Bytes()
		if err != nil {
			continue // miss or no value
		}
		rows, err := decodeRows(raw)
		if err != nil {
			logger.Warn("cache: corrupt frame, treating as miss", zap.Uint64("hash", h))
			continue
		}
		out[h] = rows
	}
	return out, nil
}

// PutMany pipelines a SETEX per hash. Individual failures are non-fatal:
// the pipeline's overall error (if any) is logged and swallowed.
func (r *Redis) PutMany(ctx context.Context, rows map[uint64][]Row, ttlSeconds int) {
	if !r.Available() || len(rows) == 0 {
		return
	}
	if ttlSeconds <= 0 {
		ttlSeconds = 86400
	}
	ttl := time.Duration(ttlSeconds) * time.Second

	pipe := r.client.Pipeline()
	for h, group := range rows {
		pipe.SetEx(ctx, r.key(h), encodeRows(group), ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		logger.Warn("cache: pipeline set failed", zap.Error(err))
	}
}
