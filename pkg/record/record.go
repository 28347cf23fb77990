// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package record

import (
	"context"
	"time"

	"github.com/AccelByte/extend-hyperstreak-guard/pkg/progression"
)

// Record is the persisted per-user document holding progression and its audit sidecar.
type Record struct {
	UserID      string            `json:"userId"`
	Progression progression.State `json:"progression"`
	Flag        *CheatFlag        `json:"flag,omitempty"`
}

// CheatFlag is the audit sidecar written when the validator reverts a write.
// It is never read for gameplay decisions.
type CheatFlag struct {
	Flagged    bool       `json:"flagged"`
	DetectedAt time.Time  `json:"detectedAt"`
	Detail     FlagDetail `json:"detail"`
}

// FlagDetail describes the rejected write.
type FlagDetail struct {
	Kind           progression.InvariantKind `json:"kind"`
	ObservedBefore progression.State         `json:"observedBefore"`
	ObservedAfter  progression.State         `json:"observedAfter"`
	RevertedTo     progression.State         `json:"revertedTo"`
}

// Origin identifies which writer path produced a change.
type Origin string

const (
	// OriginClient is a field-delta write issued on behalf of a player session.
	OriginClient Origin = "client"
	// OriginValidator is a corrective write issued by the invariant validator.
	OriginValidator Origin = "validator"
)

// Change is the before/after snapshot of one write to a record.
type Change struct {
	UserID string
	Before progression.State
	After  progression.State
	Origin Origin
	At     time.Time
}

// Hook is invoked synchronously after every write to a record.
type Hook interface {
	AfterWrite(ctx context.Context, change Change) error
}

// HookFunc adapts a function to the Hook interface.
type HookFunc func(ctx context.Context, change Change) error

// AfterWrite implements Hook.
func (f HookFunc) AfterWrite(ctx context.Context, change Change) error {
	return f(ctx, change)
}

// Store is the persisted record store. Every write method runs the registered hooks.
type Store interface {
	Create(ctx context.Context, userID string) error
	Get(ctx context.Context, userID string) (*Record, error)
	Load(ctx context.Context, userID string) (progression.State, error)
	ApplyDelta(ctx context.Context, userID string, delta progression.Delta) error
	Restore(ctx context.Context, userID string, state progression.State, flag CheatFlag) error
	Delete(ctx context.Context, userID string) error
}
