// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package record

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AccelByte/extend-hyperstreak-guard/pkg/progression"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

// setupTestRedis creates a miniredis instance for testing
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

// recordingHook captures every change passed to it
type recordingHook struct {
	changes []Change
}

func (h *recordingHook) AfterWrite(_ context.Context, change Change) error {
	h.changes = append(h.changes, change)
	return nil
}

func TestGet_NewPlayer(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	store := NewRedisStore(client, RedisStoreConfig{})

	rec, err := store.Get(context.Background(), "test-user-new")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if rec.Progression != (progression.State{}) {
		t.Errorf("Progression = %s, expected zero state", rec.Progression)
	}
	if rec.Flag != nil {
		t.Errorf("Flag = %+v, expected nil", rec.Flag)
	}
}

func TestCreate_WritesZeroDefaults(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	store := NewRedisStore(client, RedisStoreConfig{})
	hook := &recordingHook{}
	store.Use(hook)
	ctx := context.Background()

	if err := store.Create(ctx, "test-user-create"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if got := mr.HGet(makeKey("test-user-create"), "bar"); got != "0" {
		t.Errorf("bar = %q, expected \"0\"", got)
	}
	if len(hook.changes) != 1 {
		t.Fatalf("hook called %d times, expected 1", len(hook.changes))
	}
	if hook.changes[0].Before != hook.changes[0].After {
		t.Errorf("create should not change progression: %s -> %s",
			hook.changes[0].Before, hook.changes[0].After)
	}
}

func TestCreate_DoesNotOverwrite(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	store := NewRedisStore(client, RedisStoreConfig{})
	ctx := context.Background()
	userID := "test-user-existing"

	if err := store.ApplyDelta(ctx, userID, progression.Delta{{Field: progression.FieldBar, Op: progression.OpIncr, Value: 1}}); err != nil {
		t.Fatalf("ApplyDelta() error = %v", err)
	}
	if err := store.Create(ctx, userID); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	state, err := store.Load(ctx, userID)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if state.Bar != 1 {
		t.Errorf("Bar = %d, expected 1", state.Bar)
	}
}

func TestApplyDelta_ReportsBeforeAndAfter(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewRedisStore(client, RedisStoreConfig{Now: func() time.Time { return now }})
	hook := &recordingHook{}
	store.Use(hook)
	ctx := context.Background()
	userID := "test-user-delta"

	rules := progression.DefaultRules()
	state := progression.State{}
	for i := 0; i < 5; i++ {
		tr := rules.Apply(state, progression.EventCorrect)
		if err := store.ApplyDelta(ctx, userID, progression.DeltaFor(tr)); err != nil {
			t.Fatalf("ApplyDelta() step %d error = %v", i, err)
		}
		state = tr.After
	}

	if len(hook.changes) != 5 {
		t.Fatalf("hook called %d times, expected 5", len(hook.changes))
	}

	last := hook.changes[4]
	if last.Before != (progression.State{Bar: 4}) {
		t.Errorf("Before = %s, expected bar 4", last.Before)
	}
	expected := progression.State{Active: true, ActivationCount: 1}
	if last.After != expected {
		t.Errorf("After = %s, expected %s", last.After, expected)
	}
	if last.Origin != OriginClient {
		t.Errorf("Origin = %s, expected %s", last.Origin, OriginClient)
	}
	if !last.At.Equal(now) {
		t.Errorf("At = %v, expected %v", last.At, now)
	}

	stored, err := store.Load(ctx, userID)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if stored != state {
		t.Errorf("stored = %s, expected %s", stored, state)
	}
}

func TestApplyDelta_RejectsInvalidDelta(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	store := NewRedisStore(client, RedisStoreConfig{})
	hook := &recordingHook{}
	store.Use(hook)

	err := store.ApplyDelta(context.Background(), "test-user", progression.Delta{{Field: "coins", Op: progression.OpIncr, Value: 100}})
	if !errors.Is(err, progression.ErrInvalidDelta) {
		t.Fatalf("ApplyDelta() error = %v, expected ErrInvalidDelta", err)
	}
	if len(hook.changes) != 0 {
		t.Errorf("hook should not run for a rejected delta")
	}
}

func TestApplyDelta_EmptyUserID(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	store := NewRedisStore(client, RedisStoreConfig{})
	err := store.ApplyDelta(context.Background(), "", progression.Delta{{Field: progression.FieldBar, Op: progression.OpIncr, Value: 1}})
	if !errors.Is(err, ErrEmptyUserID) {
		t.Errorf("ApplyDelta() error = %v, expected ErrEmptyUserID", err)
	}
}

func TestRestore_WritesStateAndFlag(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	store := NewRedisStore(client, RedisStoreConfig{})
	hook := &recordingHook{}
	store.Use(hook)
	ctx := context.Background()
	userID := "test-user-restore"

	before := progression.State{Bar: 2}
	after := progression.State{Bar: 5, Active: true}
	detectedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	mr.HSet(makeKey(userID), "bar", "5", "active", "1")

	flag := CheatFlag{
		Flagged:    true,
		DetectedAt: detectedAt,
		Detail: FlagDetail{
			Kind:           progression.KindBarWhileActive,
			ObservedBefore: before,
			ObservedAfter:  after,
			RevertedTo:     before,
		},
	}
	if err := store.Restore(ctx, userID, before, flag); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	rec, err := store.Get(ctx, userID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.Progression != before {
		t.Errorf("Progression = %s, expected %s", rec.Progression, before)
	}
	if rec.Flag == nil || !rec.Flag.Flagged {
		t.Fatalf("Flag = %+v, expected flagged", rec.Flag)
	}
	if rec.Flag.Detail != flag.Detail {
		t.Errorf("Detail = %+v, expected %+v", rec.Flag.Detail, flag.Detail)
	}
	if !rec.Flag.DetectedAt.Equal(detectedAt) {
		t.Errorf("DetectedAt = %v, expected %v", rec.Flag.DetectedAt, detectedAt)
	}

	if len(hook.changes) != 1 || hook.changes[0].Origin != OriginValidator {
		t.Fatalf("expected one validator-origin change, got %+v", hook.changes)
	}
	if hook.changes[0].Before != after {
		t.Errorf("Before = %s, expected %s", hook.changes[0].Before, after)
	}
}

func TestDelete(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	store := NewRedisStore(client, RedisStoreConfig{})
	ctx := context.Background()
	userID := "test-user-delete"

	if err := store.Create(ctx, userID); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !mr.Exists(makeKey(userID)) {
		t.Fatal("record should exist before deletion")
	}

	if err := store.Delete(ctx, userID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if mr.Exists(makeKey(userID)) {
		t.Error("record should not exist after deletion")
	}
}

func TestHooks_ErrorDoesNotFailWrite(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	store := NewRedisStore(client, RedisStoreConfig{})
	later := &recordingHook{}
	store.Use(HookFunc(func(context.Context, Change) error {
		return errors.New("hook exploded")
	}), later)

	err := store.ApplyDelta(context.Background(), "test-user", progression.Delta{{Field: progression.FieldBar, Op: progression.OpIncr, Value: 1}})
	if err != nil {
		t.Fatalf("ApplyDelta() error = %v, expected nil", err)
	}
	if len(later.changes) != 1 {
		t.Errorf("later hook called %d times, expected 1", len(later.changes))
	}
}

func TestMakeKey(t *testing.T) {
	if got := makeKey("test-user"); got != KeyPrefix+"test-user" {
		t.Errorf("makeKey() = %s, expected %s", got, KeyPrefix+"test-user")
	}
}

func TestHealthChecker(t *testing.T) {
	client, mr := setupTestRedis(t)

	checker := NewHealthChecker(client)
	if !checker.IsHealthy(context.Background()) {
		t.Fatal("expected healthy Redis")
	}

	mr.Close()
	if checker.IsHealthy(context.Background()) {
		t.Error("expected unhealthy Redis after shutdown")
	}
}
