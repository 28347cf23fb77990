// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package optimistic

import (
	"context"
	"fmt"

	"github.com/AccelByte/extend-hyperstreak-guard/pkg/progression"
)

// Signal is a one-shot progression event surfaced to the UI.
type Signal string

const (
	SignalActivated Signal = "activated"
	SignalCrashed   Signal = "crashed"
	SignalEnded     Signal = "ended"
)

func signalsFor(t progression.Transition) []Signal {
	switch {
	case t.Activated:
		return []Signal{SignalActivated}
	case t.Crashed:
		return []Signal{SignalCrashed}
	case t.Ended:
		return []Signal{SignalEnded}
	}
	return nil
}

// Observer receives cache updates. Calls are serialized per session.
type Observer interface {
	StateChanged(snapshot Snapshot)
	Signal(signal Signal)
	SyncFailed(err *SyncError)
}

// ObserverFuncs adapts optional callbacks to Observer.
type ObserverFuncs struct {
	OnState      func(Snapshot)
	OnSignal     func(Signal)
	OnSyncFailed func(*SyncError)
}

func (f ObserverFuncs) StateChanged(snapshot Snapshot) {
	if f.OnState != nil {
		f.OnState(snapshot)
	}
}

func (f ObserverFuncs) Signal(signal Signal) {
	if f.OnSignal != nil {
		f.OnSignal(signal)
	}
}

func (f ObserverFuncs) SyncFailed(err *SyncError) {
	if f.OnSyncFailed != nil {
		f.OnSyncFailed(err)
	}
}

// SyncError reports a background write that did not reach the record.
type SyncError struct {
	UserID    string
	Event     progression.Event
	Err       error
	Retryable bool
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync of %s event for user %s failed: %v", e.Event, e.UserID, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// Pending is the handle of one background write.
type Pending struct {
	done chan struct{}
	err  *SyncError
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func (p *Pending) resolve(err *SyncError) {
	p.err = err
	close(p.done)
}

// Done is closed once the write settled.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the write settles and returns its sync error, if any.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		if p.err != nil {
			return p.err
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
