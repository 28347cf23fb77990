// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package progression

import (
	"errors"
	"fmt"
)

// ErrInvalidDelta is returned when a delta names an unknown field or operation.
var ErrInvalidDelta = errors.New("invalid progression delta")

// Field is a persisted progression field name.
type Field string

const (
	FieldBar              Field = "bar"
	FieldActive           Field = "active"
	FieldQuestionsElapsed Field = "questions_elapsed"
	FieldActivationCount  Field = "activation_count"
)

// Fields lists the persisted progression fields in storage order.
var Fields = []Field{FieldBar, FieldActive, FieldQuestionsElapsed, FieldActivationCount}

// Op is a field-level write operation.
type Op string

const (
	OpIncr Op = "incr"
	OpSet  Op = "set"
)

// FieldOp is a single field-level write.
type FieldOp struct {
	Field Field `json:"field"`
	Op    Op    `json:"op"`
	Value int   `json:"value"`
}

// Delta is the set of field writes that carries one transition to the persisted record.
// Relative ops keep concurrent writers commutative instead of clobbering each other.
type Delta []FieldOp

// DeltaFor expresses a transition as field-level writes.
// A transition of an unknown event has no delta.
func DeltaFor(t Transition) Delta {
	switch {
	case !t.Event.Valid():
		return nil
	case t.Event == EventWrong:
		return Delta{
			{Field: FieldBar, Op: OpSet, Value: 0},
			{Field: FieldActive, Op: OpSet, Value: 0},
			{Field: FieldQuestionsElapsed, Op: OpSet, Value: 0},
		}
	case t.Activated:
		return Delta{
			{Field: FieldBar, Op: OpSet, Value: 0},
			{Field: FieldActive, Op: OpSet, Value: 1},
			{Field: FieldQuestionsElapsed, Op: OpSet, Value: 0},
			{Field: FieldActivationCount, Op: OpIncr, Value: 1},
		}
	case t.Ended:
		return Delta{
			{Field: FieldBar, Op: OpSet, Value: 0},
			{Field: FieldActive, Op: OpSet, Value: 0},
			{Field: FieldQuestionsElapsed, Op: OpSet, Value: 0},
		}
	case t.Before.Active:
		return Delta{{Field: FieldQuestionsElapsed, Op: OpIncr, Value: 1}}
	default:
		return Delta{{Field: FieldBar, Op: OpIncr, Value: 1}}
	}
}

// Validate checks that every op targets a known field with a known operation.
func (d Delta) Validate() error {
	if len(d) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidDelta)
	}
	for _, op := range d {
		switch op.Field {
		case FieldBar, FieldActive, FieldQuestionsElapsed, FieldActivationCount:
		default:
			return fmt.Errorf("%w: unknown field %q", ErrInvalidDelta, op.Field)
		}
		switch op.Op {
		case OpIncr, OpSet:
		default:
			return fmt.Errorf("%w: unknown op %q on %s", ErrInvalidDelta, op.Op, op.Field)
		}
	}
	return nil
}

// Apply applies the delta to a state the same way the record store applies it.
func (d Delta) Apply(s State) State {
	active := boolToInt(s.Active)
	for _, op := range d {
		var target *int
		switch op.Field {
		case FieldBar:
			target = &s.Bar
		case FieldActive:
			target = &active
		case FieldQuestionsElapsed:
			target = &s.QuestionsElapsed
		case FieldActivationCount:
			target = &s.ActivationCount
		default:
			continue
		}
		if op.Op == OpIncr {
			*target += op.Value
		} else {
			*target = op.Value
		}
	}
	s.Active = active != 0
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
