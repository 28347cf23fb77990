// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AccelByte/extend-hyperstreak-guard/pkg/progression"
	"github.com/AccelByte/extend-hyperstreak-guard/pkg/record"
	"github.com/AccelByte/extend-hyperstreak-guard/pkg/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRules_MissingFileUsesDefaults(t *testing.T) {
	rules, err := LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, progression.DefaultRules(), rules)
}

func TestLoadRules_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hyperstreak.yaml")
	require.NoError(t, os.WriteFile(path, []byte("hyperstreak:\n  bar_max: 3\n  duration: 4\n"), 0o600))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, progression.Rules{BarMax: 3, Duration: 4}, rules)
}

func TestLoadRules_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hyperstreak.yaml")
	require.NoError(t, os.WriteFile(path, []byte("hyperstreak:\n  bar_max: 0\n"), 0o600))

	_, err := LoadRules(path)
	assert.Error(t, err)
}

func TestInitActivationSink(t *testing.T) {
	_, isNoop := InitActivationSink(nil, nil).(service.NoopActivationSink)
	assert.True(t, isNoop)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	tracker := service.NewRedisActivationTracker(client, service.RedisActivationTrackerConfig{})
	sink, ok := InitActivationSink(tracker, nil).(service.MultiSink)
	require.True(t, ok)
	assert.Len(t, sink, 1)
}

func TestInitValidator_RevertsIllegalWrites(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := record.NewRedisStore(client, record.RedisStoreConfig{})
	tracker := service.NewRedisActivationTracker(client, service.RedisActivationTrackerConfig{})

	v, sweeper, err := InitValidator(store, record.NewRedisNotifier(client), nil, InitActivationSink(tracker, nil), ValidatorOptions{
		Rules:         progression.DefaultRules(),
		MaxRetries:    1,
		RetryInterval: time.Millisecond,
		SweepInterval: time.Minute,
	})
	require.NoError(t, err)
	require.NotNil(t, v)
	require.NotNil(t, sweeper)

	require.NoError(t, store.Create(ctx, "user-1"))
	require.NoError(t, store.ApplyDelta(ctx, "user-1", progression.Delta{
		{Field: progression.FieldActive, Op: progression.OpSet, Value: 1},
	}))

	rec, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, progression.State{}, rec.Progression)
	require.NotNil(t, rec.Flag)
	assert.Equal(t, progression.KindPrematureActivation, rec.Flag.Detail.Kind)
}

func TestInitValidator_SweepDisabled(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := record.NewRedisStore(client, record.RedisStoreConfig{})
	_, sweeper, err := InitValidator(store, nil, nil, service.NoopActivationSink{}, ValidatorOptions{RetryInterval: time.Millisecond})
	require.NoError(t, err)
	assert.Nil(t, sweeper)

	_, _, err = InitValidator(nil, nil, nil, nil, ValidatorOptions{})
	assert.Error(t, err)
}
