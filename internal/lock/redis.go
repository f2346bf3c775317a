package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/efreitasn/tradingcore/internal/domain"
)

// unlockLua deletes the lock key only if it still holds the caller's token,
// so an expired holder cannot release a lock taken over by someone else.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// extendLua resets the TTL only while the key still holds the caller's token.
const extendLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`

// DefaultTTL bounds how long a crashed instance can keep a share locked.
const DefaultTTL = 30 * time.Second

// Redis is a distributed Locker built on SET NX with a TTL. Unlike Local it
// does not wait: a key held by another instance fails with
// domain.ErrMatchInProgress. While held, the TTL is renewed every third of
// its length, so a long run keeps the share until it unlocks.
type Redis struct {
	rdb      *redis.Client
	ttl      time.Duration
	unlockSc *redis.Script
	extendSc *redis.Script
	logger   *slog.Logger
}

// NewRedis creates a Redis locker. A non-positive ttl selects DefaultTTL.
func NewRedis(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{
		rdb:      rdb,
		ttl:      ttl,
		unlockSc: redis.NewScript(unlockLua),
		extendSc: redis.NewScript(extendLua),
		logger:   logger.With(slog.String("component", "lock")),
	}
}

func redisKey(key string) string {
	return "lock:match:" + key
}

// Acquire implements Locker.
func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.New().String()
	lk := redisKey(key)

	ok, err := r.rdb.SetNX(ctx, lk, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrMatchInProgress
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go r.renew(lk, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done

			// The caller's ctx may already be cancelled.
			unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := r.unlockSc.Run(unlockCtx, r.rdb, []string{lk}, token).Err(); err != nil {
				r.logger.Warn("lock release failed, key expires on its own",
					slog.String("key", lk),
					slog.Duration("ttl", r.ttl),
					slog.String("error", err.Error()),
				)
			}
		})
	}, nil
}

// renew extends the lock until stop is closed or the lock is lost.
func (r *Redis) renew(lk, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), r.ttl/3)
			n, err := r.extendSc.Run(ctx, r.rdb, []string{lk}, token, r.ttl.Milliseconds()).Int()
			cancel()
			switch {
			case err != nil:
				// Retried on the next tick while the TTL still runs.
				r.logger.Warn("lock renewal failed",
					slog.String("key", lk),
					slog.String("error", err.Error()),
				)
			case n == 0:
				r.logger.Error("lock lost before release", slog.String("key", lk))
				return
			}
		}
	}
}

var _ Locker = (*Redis)(nil)
