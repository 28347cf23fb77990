// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return client, mr
}

func TestGetYearWeek(t *testing.T) {
	tests := []struct {
		date     time.Time
		expected string
	}{
		{time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), "202610"},
		{time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), "202601"},
		{time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), "202502"},
	}

	for _, tt := range tests {
		if got := getYearWeek(tt.date); got != tt.expected {
			t.Errorf("getYearWeek(%v) = %s, expected %s", tt.date, got, tt.expected)
		}
	}
}

func TestRecordActivation_CountsPerWeek(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	tracker := NewRedisActivationTracker(client, RedisActivationTrackerConfig{Now: func() time.Time { return now }})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := tracker.RecordActivation(ctx, "player-1"); err != nil {
			t.Fatalf("RecordActivation() error = %v", err)
		}
	}

	data, err := tracker.GetActivationData(ctx, "player-1")
	if err != nil {
		t.Fatalf("GetActivationData() error = %v", err)
	}
	if got := data.ActivationCount["202610"]; got != 3 {
		t.Errorf("activation count = %d, expected 3", got)
	}
	if ttl := mr.TTL(makeActivationTrackingKey("player-1")); ttl != activationTrackingDefaultTTL {
		t.Errorf("TTL = %v, expected %v", ttl, activationTrackingDefaultTTL)
	}
}

func TestRecordActivation_DropsOldWeeks(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	mr.HSet(makeActivationTrackingKey("player-1"), "202601", "7", "202609", "2")

	tracker := NewRedisActivationTracker(client, RedisActivationTrackerConfig{Now: func() time.Time { return now }})
	if err := tracker.RecordActivation(context.Background(), "player-1"); err != nil {
		t.Fatalf("RecordActivation() error = %v", err)
	}

	data, err := tracker.GetActivationData(context.Background(), "player-1")
	if err != nil {
		t.Fatalf("GetActivationData() error = %v", err)
	}
	if _, ok := data.ActivationCount["202601"]; ok {
		t.Errorf("week 202601 should have been dropped, got %v", data.ActivationCount)
	}
	if data.ActivationCount["202609"] != 2 || data.ActivationCount["202610"] != 1 {
		t.Errorf("unexpected counts %v", data.ActivationCount)
	}
}

type failingSink struct{ err error }

func (f failingSink) RecordActivation(context.Context, string) error { return f.err }

func TestMultiSink(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	tracker := NewRedisActivationTracker(client, RedisActivationTrackerConfig{})
	boom := errors.New("statistic service unavailable")
	sink := MultiSink{failingSink{err: boom}, tracker, NoopActivationSink{}}

	err := sink.RecordActivation(context.Background(), "player-1")
	if !errors.Is(err, boom) {
		t.Fatalf("RecordActivation() error = %v, expected %v", err, boom)
	}

	data, _ := tracker.GetActivationData(context.Background(), "player-1")
	total := 0
	for _, c := range data.ActivationCount {
		total += c
	}
	if total != 1 {
		t.Errorf("tracker saw %d activations, expected 1 despite the failing sink", total)
	}
}
