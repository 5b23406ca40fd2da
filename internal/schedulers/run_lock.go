package schedulers

import (
	"context"
	"fmt"
	"time"

	"minex/internal/models"
	"minex/internal/util"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RunLock keeps two distribution runs for the same key from overlapping.
type RunLock interface {
	// Acquire blocks until the caller holds key or ctx is done.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// MemoryRunLock is enough for a single process.
type MemoryRunLock struct {
	locks *util.KeyedMutex
}

func NewMemoryRunLock() *MemoryRunLock {
	return &MemoryRunLock{locks: util.NewKeyedMutex()}
}

func (l *MemoryRunLock) Acquire(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.locks.Lock(key), nil
}

// only the holder's token may delete the key
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisRunLock shares the run lock between processes with SET NX and a ttl.
// A caller that cannot get the lock within ttl gets ErrScheduleConflict.
type RedisRunLock struct {
	cli  *redis.Client
	ttl  time.Duration
	wait time.Duration
	poll time.Duration
}

func NewRedisRunLock(cli *redis.Client, ttl time.Duration) *RedisRunLock {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RedisRunLock{
		cli:  cli,
		ttl:  ttl,
		wait: ttl,
		poll: 500 * time.Millisecond,
	}
}

func (l *RedisRunLock) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.cli.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("run lock %s: %w: %w", key, models.ErrStorageUnavailable, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("run lock %s held elsewhere: %w", key, models.ErrScheduleConflict)
		}

		timer := time.NewTimer(l.poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.cli, []string{key}, token).Err(); err != nil {
			log.Error("Failed to release run lock ", key, ": ", err)
		}
	}, nil
}
