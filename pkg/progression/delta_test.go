// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package progression

import (
	"errors"
	"testing"
)

func TestDeltaFor_ReproducesTransition(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		name  string
		state State
		event Event
		ops   int
	}{
		{"bar increment", State{Bar: 2}, EventCorrect, 1},
		{"activation", State{Bar: 4, ActivationCount: 3}, EventCorrect, 4},
		{"active tick", State{Active: true, QuestionsElapsed: 1}, EventCorrect, 1},
		{"hyperstreak ends", State{Active: true, QuestionsElapsed: 4}, EventCorrect, 3},
		{"reset", State{Bar: 3}, EventWrong, 3},
		{"crash", State{Active: true, QuestionsElapsed: 2}, EventWrong, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := rules.Apply(tt.state, tt.event)
			delta := DeltaFor(tr)

			if len(delta) != tt.ops {
				t.Errorf("len(delta) = %d, expected %d", len(delta), tt.ops)
			}
			if err := delta.Validate(); err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if got := delta.Apply(tt.state); got != tr.After {
				t.Errorf("delta.Apply() = %s, expected %s", got, tr.After)
			}
		})
	}
}

func TestDeltaFor_UsesRelativeOpsForTicks(t *testing.T) {
	delta := DeltaFor(DefaultRules().Apply(State{Bar: 1}, EventCorrect))

	if delta[0].Op != OpIncr || delta[0].Field != FieldBar || delta[0].Value != 1 {
		t.Errorf("delta = %+v, expected a single bar increment", delta)
	}
}

func TestDelta_Validate(t *testing.T) {
	tests := []struct {
		name    string
		delta   Delta
		wantErr bool
	}{
		{"empty", Delta{}, true},
		{"unknown field", Delta{{Field: "coins", Op: OpIncr, Value: 1}}, true},
		{"unknown op", Delta{{Field: FieldBar, Op: "mul", Value: 2}}, true},
		{"ok", Delta{{Field: FieldBar, Op: OpSet, Value: 0}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.delta.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDelta) {
					t.Errorf("Validate() error = %v, expected ErrInvalidDelta", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() error = %v", err)
			}
		})
	}
}

func TestEventFromOutcome(t *testing.T) {
	if got := EventFromOutcome(VoteOutcome{Won: true, Streak: 7}); got != EventCorrect {
		t.Errorf("won outcome = %s, expected %s", got, EventCorrect)
	}
	if got := EventFromOutcome(VoteOutcome{Won: false, Streak: 7}); got != EventWrong {
		t.Errorf("lost outcome = %s, expected %s", got, EventWrong)
	}
}
