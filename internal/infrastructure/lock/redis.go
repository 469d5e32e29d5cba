package lock

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

var _ inventory.PairLocker = (*RedisLocker)(nil)

const (
	redisLockPrefix = "stock-ledger:lock:"
	redisLockTTL    = 30 * time.Second
	redisRetryEvery = 25 * time.Millisecond
)

// RedisLocker bloqueo por par compartido entre réplicas del servicio (LEDGER_LOCK_BACKEND=redis).
// El TTL acota cuánto dura un bloqueo si la réplica muere sin liberarlo.
type RedisLocker struct {
	client  *redislock.Client
	timeout time.Duration
	log     *logger.Logger
}

// NewRedisLocker construye el bloqueador sobre un cliente go-redis.
func NewRedisLocker(rdb redis.UniversalClient, timeout time.Duration, log *logger.Logger) *RedisLocker {
	if log == nil {
		log = logger.Nop()
	}
	return &RedisLocker{client: redislock.New(rdb), timeout: timeout, log: log.Component("redis_lock")}
}

// Lock reintenta cada redisRetryEvery hasta agotar timeout.
func (l *RedisLocker) Lock(ctx context.Context, pair entity.Pair) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	lk, err := l.client.Obtain(waitCtx, redisLockPrefix+pair.Key(), redisLockTTL, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(redisRetryEvery),
	})
	if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) {
		return nil, conflict(pair, ErrLockTimeout)
	}
	if err != nil {
		return nil, conflict(pair, err)
	}
	return func() {
		// ctx propio: la liberación debe ocurrir aunque el request ya se haya cancelado
		relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := lk.Release(relCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.log.Warn().Err(err).Str("pair", pair.Key()).Msg("liberar bloqueo redis")
		}
	}, nil
}
