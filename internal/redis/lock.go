package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

var (
	ErrLockNotAcquired = errors.New("lock not acquired")
	// ErrLockUnavailable means Redis could not be asked for the lock at all.
	ErrLockUnavailable = errors.New("lock service unavailable")
)

// Locker guards short critical sections across api-server replicas.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// BookingKey serializes bookings of one patient at one date and time.
func BookingKey(patientID string, date time.Time, at calendar.Clock) string {
	return fmt.Sprintf("lock:booking:%s:%s:%s", patientID, date.Format("20060102"), at)
}

// SlotKey serializes claims on one availability slot.
func SlotKey(slotID string) string {
	return "lock:slot:" + slotID
}

type redisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker creates a locker backed by SET NX keys that expire after ttl.
func NewRedisLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisLocker{
		client: client,
		ttl:    ttl,
	}
}

// WithLock fails fast with ErrLockNotAcquired when another holder owns key,
// and with ErrLockUnavailable when Redis cannot be reached. fn runs with a
// deadline of the lock ttl.
func (l *redisLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("acquire lock %s: %w", key, err)
		}
		return fmt.Errorf("acquire lock %s: %w: %w", key, ErrLockUnavailable, err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		_ = l.release(context.WithoutCancel(ctx), key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

// Only the holder's token may delete the key.
var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}
