// Package redislock provides a Redis-backed scan lock, so that only one
// replica scans at a time.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultKey = "slatracker:scan-lock"
	defaultTTL = 2 * time.Minute
)

// Release and refresh only touch the key while it still holds our token.
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// Config holds redis lock configuration.
type Config struct {
	Key string
	// TTL bounds how long a crashed holder blocks other replicas. The holder
	// refreshes the key every TTL/3 while the scan runs.
	TTL time.Duration
}

// Lock implements sla.ScanLock with SET NX PX.
type Lock struct {
	client redis.UniversalClient
	config Config
}

// New creates a new redis scan lock.
func New(client redis.UniversalClient, config Config) *Lock {
	if config.Key == "" {
		config.Key = defaultKey
	}
	if config.TTL <= 0 {
		config.TTL = defaultTTL
	}
	return &Lock{client: client, config: config}
}

// TryAcquire takes the lock without waiting. The returned release func is
// safe to call more than once.
func (l *Lock) TryAcquire(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.config.Key, token, l.config.TTL).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis set nx: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.refresh(token, stop, done)

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(stop)
			<-done

			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{l.config.Key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				slog.Warn("failed to release scan lock", "key", l.config.Key, "error", err)
			}
		})
	}
	return release, true, nil
}

func (l *Lock) refresh(token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.config.TTL / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.config.TTL/3)
			n, err := refreshScript.Run(ctx, l.client, []string{l.config.Key}, token, l.config.TTL.Milliseconds()).Int64()
			cancel()
			switch {
			case err != nil:
				slog.Warn("failed to refresh scan lock", "key", l.config.Key, "error", err)
			case n == 0:
				slog.Warn("scan lock lost before scan finished", "key", l.config.Key)
				return
			}
		}
	}
}
