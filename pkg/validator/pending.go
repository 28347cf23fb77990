// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package validator

import (
	"sync"

	"github.com/AccelByte/extend-hyperstreak-guard/pkg/metrics"
)

// pendingQueue parks corrections whose write failed.
// Only the earliest correction per user is kept: later writes were built on the invalid state.
type pendingQueue struct {
	mu    sync.Mutex
	order []string
	items map[string]Correction
}

func newPendingQueue() *pendingQueue {
	return &pendingQueue{items: make(map[string]Correction)}
}

func (q *pendingQueue) park(c Correction) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.items[c.UserID]; ok {
		return
	}
	q.items[c.UserID] = c
	q.order = append(q.order, c.UserID)
	metrics.PendingCorrections.Set(float64(len(q.items)))
}

func (q *pendingQueue) remove(userID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.items[userID]; !ok {
		return
	}
	delete(q.items, userID)
	for i, id := range q.order {
		if id == userID {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	metrics.PendingCorrections.Set(float64(len(q.items)))
}

func (q *pendingQueue) snapshot() []Correction {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Correction, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, q.items[id])
	}
	return out
}

func (q *pendingQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
