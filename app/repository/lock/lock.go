// Package lock elects the instance that runs the reservation expiry sweep.
package lock

import (
	"context"
	"errors"
	"inventory-service/app/domain"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const sweepLockKey = "lock:inventory:reservation-sweep"

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisLock struct {
	client redis.UniversalClient
	key    string
	token  string
	ttl    time.Duration
}

// NewRedisSweepLock returns a lock shared by every instance using the same Redis.
// ttl bounds how long a crashed holder blocks the others.
func NewRedisSweepLock(client redis.UniversalClient, instanceID string, ttl time.Duration) domain.SweepLock {
	return &redisLock{client: client, key: sweepLockKey, token: instanceID, ttl: ttl}
}

func (l *redisLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		slog.ErrorContext(ctx, "[redisLock] Acquire", "setNX", err)
		return false, err
	}
	return ok, nil
}

func (l *redisLock) Release(ctx context.Context) error {
	err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		slog.ErrorContext(ctx, "[redisLock] Release", "eval", err)
		return err
	}
	return nil
}

type localLock struct {
	mu   sync.Mutex
	held bool
}

// NewLocalSweepLock serves single instance deployments; it only stops overlapping cycles.
func NewLocalSweepLock() domain.SweepLock {
	return &localLock{}
}

func (l *localLock) Acquire(context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *localLock) Release(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
	return nil
}
