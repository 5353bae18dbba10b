package repository

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// RunLock guards jobs that must run on one instance at a time.
type RunLock interface {
	// TryAcquire returns a release func when the lock was taken, or nil
	// when another holder has it.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// RedisRunLock is a SETNX lock with a holder token so that only the
// holder can release it.
type RedisRunLock struct {
	Client *redis.Client
}

func NewRedisRunLock(client *redis.Client) *RedisRunLock {
	return &RedisRunLock{Client: client}
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

func (l *RedisRunLock) TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	ok, err := l.Client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		releaseScript.Run(ctx, l.Client, []string{key}, token)
	}, nil
}

// LocalRunLock is used when no Redis is configured; a single instance
// always holds the lock.
type LocalRunLock struct{}

func (LocalRunLock) TryAcquire(context.Context, string, time.Duration) (func(), error) {
	return func() {}, nil
}
