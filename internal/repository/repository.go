// Package repository defines the persistence contract shared by the postgres
// and sqlite backends. Every mutating operation runs inside one transaction
// obtained from Store.WithTx; reads may run inside or outside of one.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Shivanand-hulikatti/ecopoints/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyEnrolled is returned when the (event, user) pair already exists.
var ErrAlreadyEnrolled = errors.New("already enrolled")

// ErrDuplicateCredit is returned when a ledger entry collides with an
// existing one on a uniqueness constraint (credit key or correction target).
var ErrDuplicateCredit = errors.New("duplicate ledger entry")

// EventFilter narrows ListEvents.
type EventFilter struct {
	Status *model.EventStatus
	Limit  int
}

// RankQuery is the typed request for a windowed ranking.
type RankQuery struct {
	Since *time.Time
	Limit int
}

// Queries are the reads and writes available on a store or a transaction.
type Queries interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	UpsertUser(ctx context.Context, u model.User) error
	// LockUser returns the user and, where the backend supports it, holds a
	// row lock until the transaction ends.
	LockUser(ctx context.Context, id string) (*model.User, error)
	AddBalance(ctx context.Context, userID string, delta int64, levelOf func(int64) int) (model.UserPoints, error)
	SetBalance(ctx context.Context, userID string, balance int64, level int) error
	AuditBalances(ctx context.Context) ([]model.BalanceAudit, error)

	InsertEvent(ctx context.Context, e *model.Event) error
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	// LockEvent returns the event and serialises concurrent writers on it
	// until the transaction ends.
	LockEvent(ctx context.Context, id string) (*model.Event, error)
	ListEvents(ctx context.Context, f EventFilter) ([]model.Event, error)
	UpdateEventStatus(ctx context.Context, id string, status model.EventStatus, at time.Time) error

	CountEnrollments(ctx context.Context, eventID string) (int, error)
	EnrollmentExists(ctx context.Context, eventID, userID string) (bool, error)
	InsertEnrollment(ctx context.Context, rec model.EnrollmentRecord) error
	DeleteEnrollment(ctx context.Context, eventID, userID string) (bool, error)
	ListEnrollments(ctx context.Context, eventID string) ([]model.EnrollmentRecord, error)

	// InsertLedgerEntry writes e or returns ErrDuplicateCredit when it
	// collides with a uniqueness constraint. It never updates a row.
	InsertLedgerEntry(ctx context.Context, e *model.LedgerEntry) error
	GetLedgerEntry(ctx context.Context, id string) (*model.LedgerEntry, error)
	ListLedgerEntries(ctx context.Context, userID string, limit int) ([]model.LedgerEntry, error)
	ListEventCredits(ctx context.Context, eventID string) ([]model.LedgerEntry, error)
	LedgerSum(ctx context.Context, userID string) (int64, error)
	KindTotals(ctx context.Context, userID string) (map[model.SourceKind]model.KindTotal, error)
	Rank(ctx context.Context, q RankQuery) ([]model.RankEntry, error)
}

// Tx is a unit of work. It is only valid inside the WithTx callback.
type Tx interface {
	Queries
}

// Store is a backend.
type Store interface {
	Queries
	// WithTx runs fn in a transaction, committing iff fn returns nil.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}
