// Package throttle counts failed logins per (email, ip) so repeated guessing
// is refused before any credential check runs.
package throttle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "auth:login_failures:"

// Redis keeps one counter per (email, ip) that expires window after the
// first failure.
type Redis struct {
	client      redis.UniversalClient
	maxAttempts int
	window      time.Duration
}

func NewRedis(client redis.UniversalClient, maxAttempts int, window time.Duration) *Redis {
	return &Redis{client: client, maxAttempts: maxAttempts, window: window}
}

// NewRedisFromURL parses a redis:// URL and checks the server is reachable.
func NewRedisFromURL(ctx context.Context, url string, maxAttempts int, window time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedis(client, maxAttempts, window), nil
}

func key(email, ip string) string {
	return keyPrefix + strings.ToLower(strings.TrimSpace(email)) + ":" + ip
}

func (r *Redis) Allow(ctx context.Context, email, ip string) (bool, error) {
	n, err := r.client.Get(ctx, key(email, ip)).Int()
	if errors.Is(err, redis.Nil) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("read failure counter: %w", err)
	}
	return n < r.maxAttempts, nil
}

// RecordFailure bumps the counter and starts its window in one MULTI/EXEC, so
// a counter never exists without an expiry.
func (r *Redis) RecordFailure(ctx context.Context, email, ip string) error {
	k := key(email, ip)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, r.window)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record login failure: %w", err)
	}
	return nil
}

func (r *Redis) Reset(ctx context.Context, email, ip string) error {
	if err := r.client.Del(ctx, key(email, ip)).Err(); err != nil {
		return fmt.Errorf("reset failure counter: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// Disabled never throttles.
type Disabled struct{}

func (Disabled) Allow(context.Context, string, string) (bool, error) { return true, nil }
func (Disabled) RecordFailure(context.Context, string, string) error { return nil }
func (Disabled) Reset(context.Context, string, string) error         { return nil }
