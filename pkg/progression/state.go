// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package progression

import (
	"fmt"
)

const (
	// DefaultBarMax is the number of consecutive correct answers needed to activate hyperstreak.
	DefaultBarMax = 5
	// DefaultDuration is the number of questions an activated hyperstreak lasts.
	DefaultDuration = 5
)

// State is the hyperstreak progression of a single player.
// It is held both by the client cache and as fields on the persisted record.
type State struct {
	Bar              int  `json:"bar"`
	Active           bool `json:"active"`
	QuestionsElapsed int  `json:"questionsElapsed"`
	ActivationCount  int  `json:"activationCount"`
}

func (s State) String() string {
	return fmt.Sprintf("{bar:%d active:%t questionsElapsed:%d activationCount:%d}",
		s.Bar, s.Active, s.QuestionsElapsed, s.ActivationCount)
}

// InvariantKind names the invariant a state or transition broke.
type InvariantKind string

const (
	KindBarOutOfRange            InvariantKind = "bar_out_of_range"
	KindElapsedOutOfRange        InvariantKind = "elapsed_out_of_range"
	KindElapsedWhileInactive     InvariantKind = "elapsed_while_inactive"
	KindBarWhileActive           InvariantKind = "bar_while_active"
	KindActivationCountDecreased InvariantKind = "activation_count_decreased"
	KindPrematureActivation      InvariantKind = "premature_activation"
	KindBarSkipped               InvariantKind = "bar_skipped"
	KindElapsedSkipped           InvariantKind = "elapsed_skipped"
	KindIllegalTransition        InvariantKind = "illegal_transition"
)

// InvariantError reports a state that violates the progression invariants.
type InvariantError struct {
	Kind  InvariantKind
	State State
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("progression invariant %s violated by %s", e.Kind, e.State)
}
