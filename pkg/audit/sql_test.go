// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/AccelByte/extend-hyperstreak-guard/pkg/progression"
	"github.com/AccelByte/extend-hyperstreak-guard/pkg/record"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLStore {
	t.Helper()
	store, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func flagAt(ts time.Time, kind progression.InvariantKind) record.CheatFlag {
	return record.CheatFlag{
		Flagged:    true,
		DetectedAt: ts,
		Detail: record.FlagDetail{
			Kind:           kind,
			ObservedBefore: progression.State{Bar: 2},
			ObservedAfter:  progression.State{Bar: 5, Active: true},
			RevertedTo:     progression.State{Bar: 2},
		},
	}
}

func TestRecordFlag_ListNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.RecordFlag(ctx, "cheater", flagAt(base, progression.KindBarWhileActive)))
	require.NoError(t, store.RecordFlag(ctx, "cheater", flagAt(base.Add(time.Minute), progression.KindBarSkipped)))
	require.NoError(t, store.RecordFlag(ctx, "someone-else", flagAt(base, progression.KindElapsedSkipped)))

	entries, err := store.ListFlags(ctx, "cheater")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, progression.KindBarSkipped, entries[0].Flag.Detail.Kind)
	assert.Equal(t, progression.KindBarWhileActive, entries[1].Flag.Detail.Kind)
	assert.True(t, entries[0].Flag.DetectedAt.Equal(base.Add(time.Minute)))
	assert.Equal(t, progression.State{Bar: 5, Active: true}, entries[1].Flag.Detail.ObservedAfter)
	assert.Equal(t, progression.State{Bar: 2}, entries[1].Flag.Detail.RevertedTo)
	assert.NotEmpty(t, entries[0].ID)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
}

func TestListFlags_Empty(t *testing.T) {
	store := openTestStore(t)

	entries, err := store.ListFlags(context.Background(), "clean-player")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOpen_SchemaIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")

	first, err := Open(DriverSQLite, path)
	require.NoError(t, err)
	require.NoError(t, first.RecordFlag(context.Background(), "user", flagAt(time.Now(), progression.KindBarSkipped)))
	require.NoError(t, first.Close())

	second, err := Open(DriverSQLite, path)
	require.NoError(t, err)
	defer second.Close()

	entries, err := second.ListFlags(context.Background(), "user")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
