// Package lock provides the mutual exclusion that keeps two sweeps from
// running at once, across processes when Redis is configured.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned by Release when the lock expired or was taken over.
var ErrNotHeld = errors.New("lock not held")

// Locker hands out a single named lease.
type Locker interface {
	// TryAcquire takes the lease for ttl without waiting. ok is false when
	// somebody else holds it.
	TryAcquire(ctx context.Context, ttl time.Duration) (lease Lease, ok bool, err error)
}

// Lease is a held lock.
type Lease interface {
	Release(ctx context.Context) error
}

// Local is an in-process Locker. Each acquisition bumps a generation so a
// lease that expired and was taken over cannot release the new holder.
type Local struct {
	mu   sync.Mutex
	held bool
	gen  uint64
	exp  time.Time
	now  func() time.Time
}

// NewLocal returns an unlocked in-process locker.
func NewLocal() *Local {
	return &Local{now: time.Now}
}

func (l *Local) TryAcquire(_ context.Context, ttl time.Duration) (Lease, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if l.held && now.Before(l.exp) {
		return nil, false, nil
	}
	l.held = true
	l.gen++
	l.exp = now.Add(ttl)
	return localLease{l: l, gen: l.gen}, true, nil
}

type localLease struct {
	l   *Local
	gen uint64
}

func (ll localLease) Release(context.Context) error {
	ll.l.mu.Lock()
	defer ll.l.mu.Unlock()
	if !ll.l.held || ll.l.gen != ll.gen {
		return ErrNotHeld
	}
	ll.l.held = false
	return nil
}

// releaseScript deletes the key only if it still carries our token, so an
// expired holder cannot release somebody else's lease.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// Redis is a Locker backed by SET NX PX on a single key.
type Redis struct {
	rdb *redis.Client
	key string
}

// NewRedis returns a locker on key.
func NewRedis(rdb *redis.Client, key string) *Redis {
	return &Redis{rdb: rdb, key: key}
}

// NewRedisClient builds a client and pings it with a short timeout.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return client, nil
}

func (r *Redis) TryAcquire(ctx context.Context, ttl time.Duration) (Lease, bool, error) {
	token := uuid.NewString()
	ok, err := r.rdb.SetNX(ctx, r.key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire %s: %w", r.key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &redisLease{rdb: r.rdb, key: r.key, token: token}, true, nil
}

type redisLease struct {
	rdb   *redis.Client
	key   string
	token string
}

func (l *redisLease) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.rdb, []string{l.key}, l.token).Int()
	if err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}
