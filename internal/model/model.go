// Package model defines the core domain types for community cleanup events,
// enrollment, and the points ledger.
package model

import (
	"encoding/json"
	"time"
)

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	StatusScheduled EventStatus = "scheduled"
	StatusOngoing   EventStatus = "ongoing"
	StatusCompleted EventStatus = "completed"
	StatusCancelled EventStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s EventStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusOngoing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition can leave s.
func (s EventStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// DefaultRewardPoints is credited to each participant when the event
// specification does not set its own amount.
const DefaultRewardPoints = 50

// Event is a community cleanup event created by an organizer.
type Event struct {
	ID              string          `json:"id"`
	OrganizerID     string          `json:"organizer_id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Location        json.RawMessage `json:"location,omitempty"`
	ScheduledAt     time.Time       `json:"scheduled_at"`
	DurationMinutes *int            `json:"duration_minutes,omitempty"`
	Capacity        *int            `json:"capacity,omitempty"`
	RewardPoints    int             `json:"reward_points"`
	Status          EventStatus     `json:"status"`
	EnrolledCount   int             `json:"enrolled_count"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Remaining returns the number of free places, or -1 when capacity is unbounded.
func (e *Event) Remaining() int {
	if e.Capacity == nil {
		return -1
	}
	if left := *e.Capacity - e.EnrolledCount; left > 0 {
		return left
	}
	return 0
}

// IsFull returns true when a capacity is set and every place is taken.
func (e *Event) IsFull() bool {
	return e.Capacity != nil && e.EnrolledCount >= *e.Capacity
}

// EnrollmentRecord relates one user to one event as a participant.
type EnrollmentRecord struct {
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// SourceKind classifies why a ledger entry granted or adjusted points.
type SourceKind string

const (
	KindReport     SourceKind = "report"
	KindRecycling  SourceKind = "recycling"
	KindCleaning   SourceKind = "cleaning"
	KindEducation  SourceKind = "education"
	KindOther      SourceKind = "other"
	KindCorrection SourceKind = "correction"
)

// Valid reports whether k is one of the known source kinds.
func (k SourceKind) Valid() bool {
	switch k {
	case KindReport, KindRecycling, KindCleaning, KindEducation, KindOther, KindCorrection:
		return true
	}
	return false
}

// LedgerEntry is an immutable point-granting or point-adjusting fact.
type LedgerEntry struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Kind         SourceKind `json:"kind"`
	Points       int64      `json:"points"`
	Description  string     `json:"description"`
	ReportID     *string    `json:"report_id,omitempty"`
	EventID      *string    `json:"event_id,omitempty"`
	CorrectionOf *string    `json:"correction_of,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Role is the authorization role a user holds in the directory.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// Elevated reports whether the role may manage events it does not organize.
func (r Role) Elevated() bool {
	return r == RoleAdmin || r == RoleModerator
}

// User is a directory entry together with its denormalized points state.
type User struct {
	ID          string    `json:"id"`
	Role        Role      `json:"role"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	Balance     int64     `json:"balance"`
	Level       int       `json:"level"`
}

// UserPoints is the projection of a user's balance and level.
type UserPoints struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
	Level   int    `json:"level"`
}

// RankEntry is one row of a leaderboard.
type RankEntry struct {
	Rank         int       `json:"rank"`
	UserID       string    `json:"user_id"`
	DisplayName  string    `json:"display_name"`
	Points       int64     `json:"points"`
	Level        int       `json:"level"`
	RegisteredAt time.Time `json:"-"`
}

// KindTotal aggregates a user's entries of one kind.
type KindTotal struct {
	Count  int   `json:"count"`
	Points int64 `json:"points"`
}

// UserStats summarises a user's activity in the ledger.
type UserStats struct {
	UserID            string                   `json:"user_id"`
	Balance           int64                    `json:"balance"`
	Level             int                      `json:"level"`
	NextLevelAt       int64                    `json:"next_level_at"`
	PointsToNextLevel int64                    `json:"points_to_next_level"`
	ActionCount       int                      `json:"action_count"`
	ByKind            map[SourceKind]KindTotal `json:"by_kind"`
}

// BalanceAudit compares a user's cached points state with the ledger sum.
type BalanceAudit struct {
	UserID      string
	Cached      int64
	CachedLevel int
	LedgerSum   int64
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Location        json.RawMessage `json:"location,omitempty"`
	ScheduledAt     time.Time       `json:"scheduled_at"`
	DurationMinutes *int            `json:"duration_minutes,omitempty"`
	Capacity        *int            `json:"capacity,omitempty"`
	RewardPoints    *int            `json:"reward_points,omitempty"`
}

// TransitionRequest is the payload for changing an event's status.
type TransitionRequest struct {
	Status EventStatus `json:"status"`
}

// RecordActionRequest is the payload for self-reporting an eco action.
type RecordActionRequest struct {
	Kind        SourceKind `json:"kind"`
	Description string     `json:"description"`
	ReportID    *string    `json:"report_id,omitempty"`
}

// CorrectionRequest is the payload for reverting a ledger entry.
type CorrectionRequest struct {
	Reason string `json:"reason"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// JoinResult summarises the outcome of a single enrollment attempt.
// Used by the concurrent join tests.
type JoinResult struct {
	UserID  string
	Success bool
	Error   error
}
