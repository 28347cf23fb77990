// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package validator

import (
	"github.com/AccelByte/extend-hyperstreak-guard/pkg/progression"
)

// Verdict is the outcome of re-deriving one before/after pair.
type Verdict struct {
	// NoOp is set when the write did not touch the progression fields.
	NoOp bool
	// Legal is set when the pair is producible by exactly one engine step.
	Legal bool
	// Event is the engine step that reproduces a legal pair.
	Event progression.Event
	// Activated is set when the legal step activated hyperstreak.
	Activated bool
	// Kind names the violation of an illegal pair.
	Kind progression.InvariantKind
}

// Check decides whether after is reachable from before in a single engine step.
// Only the raw values are consulted; nothing the writer claims about the write is trusted.
func Check(rules progression.Rules, before, after progression.State) Verdict {
	if before == after {
		return Verdict{NoOp: true, Legal: true}
	}

	if rules.CheckInvariants(after) == nil {
		if next, activated, _ := rules.OnCorrectAnswer(before); next == after {
			return Verdict{Legal: true, Event: progression.EventCorrect, Activated: activated}
		}
		if next, _ := rules.OnWrongAnswer(before); next == after {
			return Verdict{Legal: true, Event: progression.EventWrong}
		}
	}

	return Verdict{Kind: classify(rules, before, after)}
}

// classify names the most specific reason an illegal pair was rejected.
func classify(rules progression.Rules, before, after progression.State) progression.InvariantKind {
	switch {
	case after.Bar < 0 || after.Bar > rules.BarMax:
		return progression.KindBarOutOfRange
	case after.QuestionsElapsed < 0 || after.QuestionsElapsed > rules.Duration:
		return progression.KindElapsedOutOfRange
	case after.ActivationCount < before.ActivationCount:
		return progression.KindActivationCountDecreased
	case !after.Active && after.QuestionsElapsed != 0:
		return progression.KindElapsedWhileInactive
	case after.Active && after.Bar != 0:
		return progression.KindBarWhileActive
	case !before.Active && after.Active && min(rules.BarMax, before.Bar+1) != rules.BarMax:
		return progression.KindPrematureActivation
	case after.Bar-before.Bar > 1:
		return progression.KindBarSkipped
	case after.QuestionsElapsed-before.QuestionsElapsed > 1:
		return progression.KindElapsedSkipped
	default:
		return progression.KindIllegalTransition
	}
}

// revertTarget is the last legitimate value for a rejected write.
// A before state that is itself corrupt is not legitimate, so it is reset like a wrong answer.
func revertTarget(rules progression.Rules, before progression.State) progression.State {
	if rules.CheckInvariants(before) == nil {
		return before
	}
	next, _ := rules.OnWrongAnswer(before)
	return next
}
