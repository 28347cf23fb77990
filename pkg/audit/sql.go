// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package audit keeps the history of cheat flags for moderation tooling.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AccelByte/extend-hyperstreak-guard/pkg/progression"
	"github.com/AccelByte/extend-hyperstreak-guard/pkg/record"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Entry is one recorded flag.
type Entry struct {
	ID     string           `json:"id"`
	UserID string           `json:"userId"`
	Flag   record.CheatFlag `json:"flag"`
}

type flagRow struct {
	ID             string    `db:"id"`
	UserID         string    `db:"user_id"`
	Kind           string    `db:"kind"`
	ObservedBefore string    `db:"observed_before"`
	ObservedAfter  string    `db:"observed_after"`
	RevertedTo     string    `db:"reverted_to"`
	DetectedAt     time.Time `db:"detected_at"`
}

// SQLStore appends flags to a cheat_flags table.
type SQLStore struct {
	db *sqlx.DB
}

// Open connects to the audit database and creates the schema if needed.
func Open(driver, dsn string) (*SQLStore, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to audit database: %w", err)
	}

	if driver == DriverSQLite {
		// single writer
		db.SetMaxOpenConns(1)
	}

	store := NewSQLStore(db)
	if err := store.initializeSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	logrus.Infof("audit history ready (%s)", driver)
	return store, nil
}

// NewSQLStore wraps an open connection. The schema must already exist.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) initializeSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS cheat_flags (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			observed_before TEXT NOT NULL,
			observed_after TEXT NOT NULL,
			reverted_to TEXT NOT NULL,
			detected_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create cheat_flags table: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_cheat_flags_user ON cheat_flags (user_id, detected_at)`)
	if err != nil {
		return fmt.Errorf("failed to create cheat_flags index: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// RecordFlag appends a flag for userID.
func (s *SQLStore) RecordFlag(ctx context.Context, userID string, flag record.CheatFlag) error {
	row := flagRow{
		ID:         uuid.NewString(),
		UserID:     userID,
		Kind:       string(flag.Detail.Kind),
		DetectedAt: flag.DetectedAt.UTC(),
	}

	var err error
	if row.ObservedBefore, err = encodeState(flag.Detail.ObservedBefore); err != nil {
		return err
	}
	if row.ObservedAfter, err = encodeState(flag.Detail.ObservedAfter); err != nil {
		return err
	}
	if row.RevertedTo, err = encodeState(flag.Detail.RevertedTo); err != nil {
		return err
	}

	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO cheat_flags (id, user_id, kind, observed_before, observed_after, reverted_to, detected_at)
		VALUES (:id, :user_id, :kind, :observed_before, :observed_after, :reverted_to, :detected_at)
	`, row)
	if err != nil {
		return fmt.Errorf("failed to insert cheat flag: %w", err)
	}
	return nil
}

// ListFlags returns the flags of userID, newest first.
func (s *SQLStore) ListFlags(ctx context.Context, userID string) ([]Entry, error) {
	var rows []flagRow
	query := s.db.Rebind(`
		SELECT id, user_id, kind, observed_before, observed_after, reverted_to, detected_at
		FROM cheat_flags
		WHERE user_id = ?
		ORDER BY detected_at DESC, id DESC
	`)
	if err := s.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list cheat flags: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entry := Entry{
			ID:     row.ID,
			UserID: row.UserID,
			Flag: record.CheatFlag{
				Flagged:    true,
				DetectedAt: row.DetectedAt.UTC(),
				Detail:     record.FlagDetail{Kind: progression.InvariantKind(row.Kind)},
			},
		}
		if err := decodeState(row.ObservedBefore, &entry.Flag.Detail.ObservedBefore); err != nil {
			return nil, err
		}
		if err := decodeState(row.ObservedAfter, &entry.Flag.Detail.ObservedAfter); err != nil {
			return nil, err
		}
		if err := decodeState(row.RevertedTo, &entry.Flag.Detail.RevertedTo); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func encodeState(s progression.State) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to encode state: %w", err)
	}
	return string(b), nil
}

func decodeState(raw string, s *progression.State) error {
	if err := json.Unmarshal([]byte(raw), s); err != nil {
		return fmt.Errorf("failed to decode state: %w", err)
	}
	return nil
}
