// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package progression

// VoteOutcome is what the vote service reports for a resolved vote.
// Only Won drives progression; Streak is the vote service's own counter.
type VoteOutcome struct {
	VoteID string `json:"voteId"`
	Won    bool   `json:"won"`
	Streak int    `json:"streak"`
}

// EventFromOutcome maps a vote outcome onto a progression event.
func EventFromOutcome(o VoteOutcome) Event {
	if o.Won {
		return EventCorrect
	}
	return EventWrong
}
