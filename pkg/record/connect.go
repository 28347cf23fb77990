// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package record

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// ConnectOptions configures the Redis connection used by the record store.
type ConnectOptions struct {
	Addr         string
	Password     string
	DB           int
	MaxRetries   int
	RetryDelayMs int
}

// Connect creates a Redis client and retries PING with exponential backoff.
func Connect(ctx context.Context, opts ConnectOptions) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	b := backoff.NewExponentialBackOff()
	if opts.RetryDelayMs > 0 {
		b.InitialInterval = time.Duration(opts.RetryDelayMs) * time.Millisecond
	}
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	attempt := 0
	err := backoff.Retry(
		func() error {
			attempt++
			if err := client.Ping(ctx).Err(); err != nil {
				logrus.Warnf("Redis connection failed (attempt %d): %v, retrying...", attempt, err)
				return err
			}
			return nil
		},
		backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxRetries)), ctx),
	)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s after %d attempts: %w", opts.Addr, attempt, err)
	}

	logrus.Infof("connected to Redis at %s (attempt %d)", opts.Addr, attempt)
	return client, nil
}
