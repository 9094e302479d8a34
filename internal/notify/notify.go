// Package notify carries domain facts from the core to the notification
// collaborator. Emission is fire-and-forget: a slow or failing sink never
// blocks or rolls back the write that produced the fact.
package notify

import (
	"context"
	"sync"
)

// EventCompleted is emitted after an event's completion commits.
type EventCompleted struct {
	EventID        string   `json:"event_id"`
	OrganizerID    string   `json:"organizer_id"`
	ParticipantIDs []string `json:"participant_ids"`
	RewardPoints   int      `json:"reward_points"`
}

// PointsChanged is emitted after a ledger append commits.
type PointsChanged struct {
	UserID     string `json:"user_id"`
	NewBalance int64  `json:"new_balance"`
	NewLevel   int    `json:"new_level"`
}

// Emitter is what the registry and the ledger call through.
type Emitter interface {
	EventCompleted(ctx context.Context, ev EventCompleted)
	PointsChanged(ctx context.Context, ev PointsChanged)
}

// Nop discards every fact.
type Nop struct{}

func (Nop) EventCompleted(context.Context, EventCompleted) {}
func (Nop) PointsChanged(context.Context, PointsChanged)   {}

// Recorder keeps every emitted fact in memory.
type Recorder struct {
	mu        sync.Mutex
	completed []EventCompleted
	points    []PointsChanged
}

func (r *Recorder) EventCompleted(_ context.Context, ev EventCompleted) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, ev)
}

func (r *Recorder) PointsChanged(_ context.Context, ev PointsChanged) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.points = append(r.points, ev)
}

// Completed returns a copy of the recorded completion facts.
func (r *Recorder) Completed() []EventCompleted {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]EventCompleted(nil), r.completed...)
}

// Points returns a copy of the recorded balance facts.
func (r *Recorder) Points() []PointsChanged {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]PointsChanged(nil), r.points...)
}

var (
	_ Emitter = Nop{}
	_ Emitter = (*Recorder)(nil)
)
