// Package redislock serializes order mutations across API instances with
// Redis-held leases.
package redislock

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/store-checkout/internal/domain/order"
)

const (
	defaultTTL      = 30 * time.Second
	defaultRetryMin = 5 * time.Millisecond
	defaultRetryMax = 200 * time.Millisecond
	releaseTimeout  = time.Second
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lease never releases someone else's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var _ order.Locker = (*Locker)(nil)

// Config tunes a Locker.
type Config struct {
	// Prefix is prepended to every lock key.
	Prefix string
	// TTL bounds how long a crashed holder can keep a lock.
	TTL time.Duration
	// RetryMin and RetryMax bound the polling backoff while waiting.
	RetryMin time.Duration
	RetryMax time.Duration
}

// Locker implements order.Locker with SET NX leases.
type Locker struct {
	client redis.UniversalClient
	cfg    Config
}

// New creates a Locker over client.
func New(client redis.UniversalClient, cfg Config) *Locker {
	if cfg.Prefix == "" {
		cfg.Prefix = "store:order-lock:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.RetryMin <= 0 {
		cfg.RetryMin = defaultRetryMin
	}
	if cfg.RetryMax < cfg.RetryMin {
		cfg.RetryMax = max(defaultRetryMax, cfg.RetryMin)
	}
	return &Locker{client: client, cfg: cfg}
}

// Lock blocks until the lease for key is acquired or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	k := l.cfg.Prefix + key
	token := uuid.NewString()

	wait := l.cfg.RetryMin
	for {
		ok, err := l.client.SetNX(ctx, k, token, l.cfg.TTL).Result()
		if err != nil {
			return nil, errors.Wrapf(err, "acquire lock %s", key)
		}
		if ok {
			break
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
		wait = min(wait*2, l.cfg.RetryMax)
	}

	lg := zctx.From(ctx)
	return func() {
		// The caller's context may already be canceled.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()

		if err := releaseScript.Run(ctx, l.client, []string{k}, token).Err(); err != nil {
			lg.Warn("Release order lock", zap.String("key", k), zap.Error(err))
		}
	}, nil
}
