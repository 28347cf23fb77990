// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package transport

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/AccelByte/extend-hyperstreak-guard/pkg/optimistic"
	"github.com/AccelByte/extend-hyperstreak-guard/pkg/progression"
	"github.com/AccelByte/extend-hyperstreak-guard/pkg/record"
	"github.com/AccelByte/extend-hyperstreak-guard/pkg/validator"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type testEnv struct {
	client *Client
	store  *record.RedisStore
	mr     *miniredis.Miniredis
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := record.NewRedisStore(rdb, record.RedisStoreConfig{})
	notifier := record.NewRedisNotifier(rdb)
	store.Use(validator.New(store, validator.Config{MaxRetries: 1, InitialInterval: time.Millisecond}, validator.Dependencies{Notifier: notifier}))

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterProgressionServer(srv, NewService(store, notifier))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	client, err := Dial("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return &testEnv{client: client, store: store, mr: mr}
}

func TestApplyDelta_LegalWrite(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	delta := progression.Delta{{Field: progression.FieldBar, Op: progression.OpIncr, Value: 1}}
	require.NoError(t, env.client.ApplyDelta(ctx, "player-1", delta))

	resp, err := env.client.Get(ctx, "player-1")
	require.NoError(t, err)
	assert.Equal(t, progression.State{Bar: 1}, resp.Progression)
	assert.False(t, resp.Flagged)
}

func TestApplyDelta_IllegalWriteRevertedAndNotified(t *testing.T) {
	env := setupTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env.mr.HSet(record.KeyPrefix+"cheater", "bar", "2", "active", "0", "questions_elapsed", "0", "activation_count", "0")

	changes, err := env.client.Watch(ctx, "cheater")
	require.NoError(t, err)

	err = env.client.ApplyDelta(ctx, "cheater", progression.Delta{
		{Field: progression.FieldBar, Op: progression.OpSet, Value: 5},
		{Field: progression.FieldActive, Op: progression.OpSet, Value: 1},
	})
	require.NoError(t, err, "the writer is not told about the revert")

	resp, err := env.client.Get(ctx, "cheater")
	require.NoError(t, err)
	assert.Equal(t, progression.State{Bar: 2}, resp.Progression)
	assert.True(t, resp.Flagged)

	select {
	case <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification after correction")
	}
}

func TestApplyDelta_InvalidInput(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	err := env.client.ApplyDelta(ctx, "player-1", progression.Delta{{Field: "score", Op: progression.OpIncr, Value: 1}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, progression.ErrInvalidDelta))

	err = env.client.ApplyDelta(ctx, "", progression.Delta{{Field: progression.FieldBar, Op: progression.OpIncr, Value: 1}})
	assert.True(t, errors.Is(err, progression.ErrInvalidDelta))
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
	}{
		{name: "invalid delta", err: progression.ErrInvalidDelta, code: codes.InvalidArgument},
		{name: "empty user", err: record.ErrEmptyUserID, code: codes.InvalidArgument},
		{name: "deadline", err: context.DeadlineExceeded, code: codes.DeadlineExceeded},
		{name: "network", err: &net.OpError{Op: "dial", Err: errors.New("refused")}, code: codes.Unavailable},
		{name: "other", err: errors.New("boom"), code: codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, toStatus(tt.err).Code())
		})
	}
}

func TestGetProgression_RequiresUserID(t *testing.T) {
	svc := NewService(nil, nil)
	_, err := svc.GetProgression(context.Background(), &GetProgressionRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestOptimisticSessionOverGRPC(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	session := optimistic.NewSession("player-2", env.client)
	require.NoError(t, session.Load(ctx))
	defer session.Close()
	require.NoError(t, session.Watch(ctx, env.client))

	rules := progression.DefaultRules()
	for i := 0; i < rules.BarMax+2; i++ {
		pending, err := session.ApplyEvent(ctx, progression.EventCorrect)
		require.NoError(t, err)
		require.NoError(t, pending.Wait(ctx))
	}

	want := progression.State{Active: true, QuestionsElapsed: 2, ActivationCount: 1}
	assert.Equal(t, want, session.State())

	persisted, err := env.store.Load(ctx, "player-2")
	require.NoError(t, err)
	assert.Equal(t, want, persisted)
}

func TestOptimisticSessionRefreshesAfterCorrection(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	session := optimistic.NewSession("player-3", env.client)
	require.NoError(t, session.Load(ctx))
	defer session.Close()
	require.NoError(t, session.Watch(ctx, env.client))

	// The record moves without the session noticing.
	env.mr.HSet(record.KeyPrefix+"player-3", "bar", "3", "active", "0", "questions_elapsed", "0", "activation_count", "0")
	assert.Equal(t, progression.State{}, session.State())

	// Another writer pushes the record into an illegal state; the validator reverts it
	// and the session follows the corrected record.
	require.NoError(t, env.client.ApplyDelta(ctx, "player-3", progression.Delta{
		{Field: progression.FieldActivationCount, Op: progression.OpIncr, Value: 3},
	}))

	require.Eventually(t, func() bool {
		return session.State() == progression.State{Bar: 3}
	}, 2*time.Second, 10*time.Millisecond)
}
