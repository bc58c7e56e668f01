package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// Options configures the redsync mutexes.
type Options struct {
	// Expiry bounds how long a crashed holder can block others.
	Expiry      time.Duration
	Tries       int
	RetryDelay  time.Duration
	DriftFactor float64
	// GuardExpiry is the TTL of TryLock keys. A held guard is extended at a third of it
	// until released, so long sweeps keep it while a crashed replica frees it quickly.
	GuardExpiry time.Duration
}

const defaultGuardExpiry = time.Minute

// DefaultOptions suit short balance writes: many quick retries rather than few slow ones.
func DefaultOptions() Options {
	return Options{
		Expiry:      10 * time.Second,
		Tries:       32,
		RetryDelay:  50 * time.Millisecond,
		DriftFactor: 0.01,
		GuardExpiry: defaultGuardExpiry,
	}
}

// RedisLocker is a distributed Locker backed by redsync over go-redis.
type RedisLocker struct {
	rs     *redsync.Redsync
	opts   Options
	logger *slog.Logger
}

var _ Locker = (*RedisLocker)(nil)

// NewRedisLocker creates a RedisLocker on top of an existing client.
func NewRedisLocker(client redis.UniversalClient, opts Options, logger *slog.Logger) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if opts.Tries < 1 || opts.Expiry <= 0 {
		return nil, fmt.Errorf("invalid lock options: tries=%d expiry=%s", opts.Tries, opts.Expiry)
	}
	if opts.GuardExpiry <= 0 {
		opts.GuardExpiry = defaultGuardExpiry
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLocker{
		rs:     redsync.New(goredis.NewPool(client)),
		opts:   opts,
		logger: logger,
	}, nil
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func (l *RedisLocker) newMutex(key string, tries int, expiry time.Duration) *redsync.Mutex {
	return l.rs.NewMutex(
		key,
		redsync.WithExpiry(expiry),
		redsync.WithTries(tries),
		redsync.WithRetryDelay(l.opts.RetryDelay),
		redsync.WithDriftFactor(l.opts.DriftFactor),
	)
}

func (l *RedisLocker) unlock(ctx context.Context, m *redsync.Mutex) {
	// The caller's ctx may already be cancelled; the lock must still be released.
	unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if ok, err := m.UnlockContext(unlockCtx); !ok || err != nil {
		l.logger.Warn("failed to release lock", slog.String("lock_key", m.Name()), slog.Bool("unlock_ok", ok), slog.Any("error", err))
	}
}

// WithAccountLocks implements AccountLocker.
func (l *RedisLocker) WithAccountLocks(ctx context.Context, accountIDs []string, fn func(ctx context.Context) error) error {
	ids, err := normalize(accountIDs)
	if err != nil {
		return err
	}
	ids = pending(ctx, ids)
	held := make([]*redsync.Mutex, 0, len(ids))
	defer func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.unlock(ctx, held[i])
		}
	}()
	for _, id := range ids {
		m := l.newMutex(AccountKey(id), l.opts.Tries, l.opts.Expiry)
		if err := m.LockContext(ctx); err != nil {
			return fmt.Errorf("failed to acquire lock %s: %w", AccountKey(id), err)
		}
		held = append(held, m)
	}
	return fn(withHeld(ctx, ids))
}

// TryLock implements Guard with a single acquisition attempt. The key is kept alive until release.
func (l *RedisLocker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	if strings.TrimSpace(key) == "" {
		return nil, false, ErrEmptyKey
	}
	m := l.newMutex(key, 1, l.opts.GuardExpiry)
	if err := m.LockContext(ctx); err != nil {
		if isContention(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to attempt lock acquisition for %s: %w", key, err)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(m, stop, done)

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(stop)
			<-done
			l.unlock(ctx, m)
		})
	}
	return release, true, nil
}

func (l *RedisLocker) keepAlive(m *redsync.Mutex, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.opts.GuardExpiry / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			extendCtx, cancel := context.WithTimeout(context.Background(), l.opts.GuardExpiry/3)
			ok, err := m.ExtendContext(extendCtx)
			cancel()
			if !ok || err != nil {
				l.logger.Warn("failed to extend guard lock", slog.String("lock_key", m.Name()), slog.Any("error", err))
			}
		}
	}
}

func isContention(err error) bool {
	if errors.Is(err, redsync.ErrFailed) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "lock already taken") || strings.Contains(msg, "failed to acquire lock")
}
