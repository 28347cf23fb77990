// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	activationTrackingDefaultTTL = 28 * 24 * time.Hour // 4 weeks retention
	activationTrackingKeyPrefix  = "hyperstreak:activations:"
)

// ActivationTrackingData holds activation counts per week.
// Keys use the yearWeek format (YYYYWW), e.g. {"202610": 5, "202609": 3}.
type ActivationTrackingData struct {
	ActivationCount map[string]int `json:"activationCount"`
}

// RedisActivationTracker counts accepted activations per user and week.
type RedisActivationTracker struct {
	client redis.UniversalClient
	cfg    RedisActivationTrackerConfig
}

type RedisActivationTrackerConfig struct {
	// Now overrides the clock used to pick the week bucket.
	Now func() time.Time
}

func NewRedisActivationTracker(client redis.UniversalClient, cfg RedisActivationTrackerConfig) *RedisActivationTracker {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &RedisActivationTracker{
		client: client,
		cfg:    cfg,
	}
}

func makeActivationTrackingKey(userID string) string {
	return fmt.Sprintf("%s%s", activationTrackingKeyPrefix, userID)
}

// getYearWeek returns the year-week string in format "YYYYWW" (e.g., "202610" for week 10 of 2026)
func getYearWeek(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d%02d", year, week)
}

// RecordActivation bumps the current week's bucket and drops buckets older than the retention.
func (r *RedisActivationTracker) RecordActivation(ctx context.Context, userID string) error {
	key := makeActivationTrackingKey(userID)
	now := r.cfg.Now()

	if err := r.client.HIncrBy(ctx, key, getYearWeek(now), 1).Err(); err != nil {
		return fmt.Errorf("failed to increment activation count: %w", err)
	}

	allWeeks, err := r.client.HKeys(ctx, key).Result()
	if err == nil && len(allWeeks) > 0 {
		fourWeeksAgo := getYearWeek(now.Add(-activationTrackingDefaultTTL))

		var toDelete []string
		for _, week := range allWeeks {
			if week < fourWeeksAgo {
				toDelete = append(toDelete, week)
			}
		}

		if len(toDelete) > 0 {
			r.client.HDel(ctx, key, toDelete...)
		}
	}

	r.client.Expire(ctx, key, activationTrackingDefaultTTL)
	return nil
}

// GetActivationData returns the tracked weekly activation counts of userID.
func (r *RedisActivationTracker) GetActivationData(ctx context.Context, userID string) (*ActivationTrackingData, error) {
	data, err := r.client.HGetAll(ctx, makeActivationTrackingKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get activation data: %w", err)
	}

	counts := make(map[string]int)
	for week, countStr := range data {
		count, err := strconv.Atoi(countStr)
		if err != nil {
			continue
		}
		counts[week] = count
	}

	return &ActivationTrackingData{ActivationCount: counts}, nil
}
