package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrSlotLocked is returned when another request holds the slot lock.
var ErrSlotLocked = errors.New("slot is locked by another request")

// SlotLocker serializes booking attempts for one (user, instant) pair.
type SlotLocker interface {
	Lock(ctx context.Context, userID string, at time.Time) (unlock func(), err error)
}

type noopLocker struct{}

func (noopLocker) Lock(context.Context, string, time.Time) (func(), error) {
	return func() {}, nil
}

// NoopLocker leaves serialization to the store's unique constraint.
var NoopLocker SlotLocker = noopLocker{}

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type RedisLocker struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{rdb: rdb, ttl: ttl}
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func slotLockKey(userID string, at time.Time) string {
	return "booking:lock:" + userID + ":" + strconv.FormatInt(at.UTC().Unix(), 10)
}

func (l *RedisLocker) Lock(ctx context.Context, userID string, at time.Time) (func(), error) {
	key := slotLockKey(userID, at)
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire slot lock: %w", err)
	}
	if !ok {
		return nil, ErrSlotLocked
	}

	return func() {
		// release must run even if the request context is already done
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.rdb, []string{key}, token).Err()
	}, nil
}
