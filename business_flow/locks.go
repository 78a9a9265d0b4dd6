package businessflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amirphl/drip-mailer/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	dispatchLockKey    = "dispatch:lock"
	scheduleLockKeyFmt = "schedule:lock:%s"
	defaultLockTTL     = 2 * time.Minute
	lockReleaseTimeout = 3 * time.Second
)

// Locker hands out named, expiring, non-blocking locks
type Locker interface {
	// TryLock returns a release func when the lock was free, or ok=false when it is held elsewhere.
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// NewLocker uses redis when a client is available, an in-process lock table otherwise
func NewLocker(rc *redis.Client, cacheConfig config.CacheConfig) Locker {
	if rc == nil {
		return NewLocalLocker()
	}
	return NewRedisLocker(rc, cacheConfig.RedisPrefix)
}

// releaseScript deletes the lock only while it still holds the caller's token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX and a token-checked release
type RedisLocker struct {
	rc     redis.Cmdable
	prefix string
}

func NewRedisLocker(rc redis.Cmdable, prefix string) *RedisLocker {
	return &RedisLocker{rc: rc, prefix: prefix}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	fullKey := redisKey(l.prefix, key)
	token := uuid.NewString()

	ok, err := l.rc.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", fullKey, err)
	}
	if !ok {
		return nil, false, nil
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), lockReleaseTimeout)
		defer cancel()
		if _, err := l.release(releaseCtx, fullKey, token); err != nil {
			logrus.WithFields(logrus.Fields{
				"lock":  fullKey,
				"error": err.Error(),
			}).Warn("failed to release lock")
		}
	}, true, nil
}

// release reports whether the key still carried token and was deleted.
// A lock that expired and was claimed again is left to its new holder.
func (l *RedisLocker) release(ctx context.Context, fullKey, token string) (bool, error) {
	n, err := releaseScript.Run(ctx, l.rc, []string{fullKey}, token).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func redisKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + ":" + key
}

// LocalLocker implements Locker for a single process
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]time.Time)}
}

func (l *LocalLocker) TryLock(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if expires, held := l.locks[key]; held && now.Before(expires) {
		return nil, false, nil
	}
	expires := now.Add(ttl)
	l.locks[key] = expires

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		// a lock that expired and was taken again belongs to someone else
		if l.locks[key].Equal(expires) {
			delete(l.locks, key)
		}
	}, true, nil
}

func scheduleLockKey(ownerKey string) string {
	return fmt.Sprintf(scheduleLockKeyFmt, ownerKey)
}
