// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package progression

import "errors"

// Event is a gameplay event that moves progression.
type Event string

const (
	EventCorrect Event = "correct"
	EventWrong   Event = "wrong"
)

// ErrUnknownEvent is returned for events other than EventCorrect and EventWrong.
var ErrUnknownEvent = errors.New("unknown progression event")

// Valid reports whether e is an event the state machine understands.
func (e Event) Valid() bool {
	return e == EventCorrect || e == EventWrong
}

// Transition is the result of applying one event to a state.
type Transition struct {
	Event     Event `json:"event"`
	Before    State `json:"before"`
	After     State `json:"after"`
	Activated bool  `json:"activated"`
	Ended     bool  `json:"ended"`
	Crashed   bool  `json:"crashed"`
}

// Rules holds the tunables of the hyperstreak state machine.
type Rules struct {
	BarMax   int `yaml:"bar_max" json:"barMax"`
	Duration int `yaml:"duration" json:"duration"`
}

// DefaultRules returns the production tunables.
func DefaultRules() Rules {
	return Rules{
		BarMax:   DefaultBarMax,
		Duration: DefaultDuration,
	}
}

// OnCorrectAnswer computes the next state after a correct answer.
func (r Rules) OnCorrectAnswer(s State) (next State, activated bool, ended bool) {
	next = s

	if !s.Active {
		next.Bar = min(r.BarMax, s.Bar+1)
		if next.Bar == r.BarMax {
			next.Bar = 0
			next.Active = true
			next.QuestionsElapsed = 0
			next.ActivationCount = s.ActivationCount + 1
			return next, true, false
		}
		return next, false, false
	}

	next.QuestionsElapsed = s.QuestionsElapsed + 1
	if next.QuestionsElapsed >= r.Duration {
		next.Active = false
		next.Bar = 0
		next.QuestionsElapsed = 0
		return next, false, true
	}

	return next, false, false
}

// OnWrongAnswer computes the next state after a wrong answer.
// wasCrash is true only when a live hyperstreak was interrupted.
func (r Rules) OnWrongAnswer(s State) (next State, wasCrash bool) {
	next = s
	next.Bar = 0
	next.Active = false
	next.QuestionsElapsed = 0
	return next, s.Active
}

// Apply dispatches an event to the matching transition function.
func (r Rules) Apply(s State, event Event) Transition {
	t := Transition{Event: event, Before: s}

	switch event {
	case EventCorrect:
		t.After, t.Activated, t.Ended = r.OnCorrectAnswer(s)
	case EventWrong:
		t.After, t.Crashed = r.OnWrongAnswer(s)
	default:
		// Unknown events leave progression untouched.
		t.After = s
	}

	return t
}

// QuestionsRemaining returns how many questions the active hyperstreak has left.
func (r Rules) QuestionsRemaining(s State) int {
	if !s.Active {
		return 0
	}
	return max(0, r.Duration-s.QuestionsElapsed)
}

// CheckInvariants validates a single state against the persisted-record invariants.
func (r Rules) CheckInvariants(s State) error {
	switch {
	case s.Bar < 0 || s.Bar > r.BarMax:
		return &InvariantError{Kind: KindBarOutOfRange, State: s}
	case s.QuestionsElapsed < 0 || s.QuestionsElapsed > r.Duration:
		return &InvariantError{Kind: KindElapsedOutOfRange, State: s}
	case !s.Active && s.QuestionsElapsed != 0:
		return &InvariantError{Kind: KindElapsedWhileInactive, State: s}
	case s.Active && s.Bar != 0:
		return &InvariantError{Kind: KindBarWhileActive, State: s}
	}
	return nil
}

// OnCorrectAnswer applies DefaultRules.
func OnCorrectAnswer(s State) (State, bool, bool) {
	return DefaultRules().OnCorrectAnswer(s)
}

// OnWrongAnswer applies DefaultRules.
func OnWrongAnswer(s State) (State, bool) {
	return DefaultRules().OnWrongAnswer(s)
}
