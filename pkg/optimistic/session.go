// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package optimistic keeps a session-local progression cache that reacts to gameplay
// events immediately and reconciles with the persisted record in the background.
package optimistic

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AccelByte/extend-hyperstreak-guard/pkg/progression"

	"github.com/sirupsen/logrus"
)

// DefaultWriteTimeout bounds a single background write.
const DefaultWriteTimeout = 5 * time.Second

var (
	// ErrClosed is returned by a session after Close.
	ErrClosed = errors.New("session closed")
	// ErrNotLoaded is returned when events arrive before the first Load.
	ErrNotLoaded = errors.New("session not loaded")
	// ErrWriteDropped resolves queued writes discarded after an earlier write failed.
	ErrWriteDropped = errors.New("write dropped after an earlier write failed")
)

// Remote is the persisted record as seen by the client.
type Remote interface {
	ApplyDelta(ctx context.Context, userID string, delta progression.Delta) error
	Load(ctx context.Context, userID string) (progression.State, error)
}

// ChangeFeed delivers out-of-band change notifications for a user.
type ChangeFeed interface {
	Watch(ctx context.Context, userID string) (<-chan struct{}, error)
}

// Snapshot is the view read by the reward system and the UI.
type Snapshot struct {
	Bar                int  `json:"bar"`
	BarMax             int  `json:"barMax"`
	Active             bool `json:"active"`
	QuestionsRemaining int  `json:"questionsRemaining"`
	ActivationCount    int  `json:"activationCount"`
}

// Session holds the optimistic progression cache of one user session.
type Session struct {
	userID       string
	remote       Remote
	rules        progression.Rules
	writeTimeout time.Duration
	observers    []Observer

	mu       sync.Mutex
	state    progression.State
	loaded   bool
	closed   bool
	version  uint64
	inFlight int
	stale    bool
	queue    []write
	draining bool

	notifyMu sync.Mutex
	writes   sync.WaitGroup
	watchers []context.CancelFunc
}

// write is one queued remote write. Writes are sent one at a time in the
// order their events were applied, each relative to the state before it.
type write struct {
	ctx      context.Context
	version  uint64
	snapshot progression.State
	t        progression.Transition
	pending  *Pending
}

// Option configures a Session.
type Option func(*Session)

// WithRules overrides the progression tunables.
func WithRules(rules progression.Rules) Option {
	return func(s *Session) {
		s.rules = rules
	}
}

// WithWriteTimeout bounds every background write.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.writeTimeout = d
	}
}

// WithObserver registers an observer for state changes and signals.
func WithObserver(o Observer) Option {
	return func(s *Session) {
		s.observers = append(s.observers, o)
	}
}

// NewSession creates an unloaded session for userID.
func NewSession(userID string, remote Remote, opts ...Option) *Session {
	s := &Session{
		userID:       userID,
		remote:       remote,
		rules:        progression.DefaultRules(),
		writeTimeout: DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UserID returns the owner of the session.
func (s *Session) UserID() string {
	return s.userID
}

// Load builds the cache from the persisted record.
func (s *Session) Load(ctx context.Context) error {
	return s.Refresh(ctx)
}

// Refresh replaces the cache with the persisted record.
// While writes are pending the record lags the cache, so the reload is deferred until
// they settle. A record read while an event was applied locally is discarded for the
// same reason and read again.
func (s *Session) Refresh(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return ErrClosed
		}
		if s.loaded && s.inFlight > 0 {
			s.stale = true
			s.mu.Unlock()
			return nil
		}
		version := s.version
		s.mu.Unlock()

		state, err := s.remote.Load(ctx, s.userID)
		if err != nil {
			return fmt.Errorf("failed to load progression for user %s: %w", s.userID, err)
		}

		s.mu.Lock()
		if s.loaded && s.version != version {
			if s.inFlight > 0 {
				s.stale = true
				s.mu.Unlock()
				return nil
			}
			s.mu.Unlock()
			continue
		}
		s.state = state
		s.loaded = true
		s.stale = false
		s.version++
		s.mu.Unlock()

		s.emit(nil, nil)
		return nil
	}
}

// State returns the cached progression.
func (s *Session) State() progression.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the cached progression as seen by consumers.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		Bar:                s.state.Bar,
		BarMax:             s.rules.BarMax,
		Active:             s.state.Active,
		QuestionsRemaining: s.rules.QuestionsRemaining(s.state),
		ActivationCount:    s.state.ActivationCount,
	}
}

// InFlight reports whether any background write is still pending.
func (s *Session) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight > 0
}

// OnVoteOutcome feeds a resolved vote into the session.
func (s *Session) OnVoteOutcome(ctx context.Context, outcome progression.VoteOutcome) (*Pending, error) {
	return s.ApplyEvent(ctx, progression.EventFromOutcome(outcome))
}

// ApplyEvent applies event to the cache immediately and queues its remote write.
// The returned Pending resolves once the write settles.
func (s *Session) ApplyEvent(ctx context.Context, event progression.Event) (*Pending, error) {
	if !event.Valid() {
		return nil, fmt.Errorf("%w: %q", progression.ErrUnknownEvent, event)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if !s.loaded {
		s.mu.Unlock()
		return nil, ErrNotLoaded
	}

	snapshot := s.state
	t := s.rules.Apply(snapshot, event)
	s.state = t.After
	s.version++

	w := write{
		ctx:      ctx,
		version:  s.version,
		snapshot: snapshot,
		t:        t,
		pending:  newPending(),
	}
	s.queue = append(s.queue, w)
	s.inFlight++
	s.writes.Add(1)
	start := !s.draining
	s.draining = true
	s.mu.Unlock()

	s.emit(signalsFor(t), nil)

	if start {
		go s.drain()
	}
	return w.pending, nil
}

// drain sends queued writes one at a time until the queue is empty.
func (s *Session) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		w := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.sync(w)
		s.writes.Done()
	}
}

// sync persists one transition and reconciles the cache when the write fails.
func (s *Session) sync(w write) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(w.ctx), s.writeTimeout)
	defer cancel()

	err := s.remote.ApplyDelta(ctx, s.userID, progression.DeltaFor(w.t))
	if err == nil {
		s.settle(ctx)
		w.pending.resolve(nil)
		return
	}

	syncErr := &SyncError{
		UserID:    s.userID,
		Event:     w.t.Event,
		Err:       err,
		Retryable: !errors.Is(err, progression.ErrInvalidDelta),
	}

	// Queued writes were derived from this event's result and would land on a record
	// that never received it. They are dropped and the cache goes back to the state
	// the record held before this write; a reload then confirms it.
	s.mu.Lock()
	dropped := s.queue
	s.queue = nil
	s.inFlight -= len(dropped)
	s.state = w.snapshot
	s.version++
	s.stale = true
	s.mu.Unlock()

	logrus.Warnf("progression write failed for user %s, cache reconciled (%d queued writes dropped): %v", s.userID, len(dropped), err)

	for _, d := range dropped {
		d.pending.resolve(&SyncError{UserID: s.userID, Event: d.t.Event, Err: ErrWriteDropped, Retryable: true})
		s.writes.Done()
	}

	s.settle(ctx)
	s.emit(nil, syncErr)
	w.pending.resolve(syncErr)
}

// settle marks a write as finished and reloads a stale cache once no write is pending.
func (s *Session) settle(ctx context.Context) {
	s.mu.Lock()
	s.inFlight--
	reload := s.stale && s.inFlight == 0 && !s.closed
	s.mu.Unlock()

	if !reload {
		return
	}
	if err := s.Refresh(context.WithoutCancel(ctx)); err != nil {
		logrus.Errorf("failed to reload stale progression for user %s: %v", s.userID, err)
	}
}

// Watch refreshes the cache on every change notification until ctx is done or the session closes.
func (s *Session) Watch(ctx context.Context, feed ChangeFeed) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	ctx, cancel := context.WithCancel(ctx)
	s.watchers = append(s.watchers, cancel)
	s.mu.Unlock()

	changes, err := feed.Watch(ctx, s.userID)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to watch progression for user %s: %w", s.userID, err)
	}

	go func() {
		for range changes {
			s.onRemoteChange(ctx)
		}
	}()
	return nil
}

// onRemoteChange replaces the cache with the record.
func (s *Session) onRemoteChange(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil && !errors.Is(err, ErrClosed) {
		logrus.Errorf("failed to refresh progression for user %s: %v", s.userID, err)
	}
}

// Close stops watchers and waits for pending writes to settle.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	watchers := s.watchers
	s.watchers = nil
	s.mu.Unlock()

	for _, cancel := range watchers {
		cancel()
	}
	s.writes.Wait()
}

func (s *Session) emit(signals []Signal, syncErr *SyncError) {
	if len(s.observers) == 0 {
		return
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	snapshot := s.Snapshot()
	for _, o := range s.observers {
		o.StateChanged(snapshot)
		for _, sig := range signals {
			o.Signal(sig)
		}
		if syncErr != nil {
			o.SyncFailed(syncErr)
		}
	}
}
