package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Shivanand-hulikatti/ecopoints/internal/model"
	"github.com/Shivanand-hulikatti/ecopoints/internal/repository"
)

const eventColumns = `e.id, e.organizer_id, e.title, e.description, e.location, e.scheduled_at,
	e.duration_minutes, e.capacity, e.reward_points, e.status, e.created_at, e.updated_at`

func scanEvent(row pgx.Row, extra ...any) (*model.Event, error) {
	var e model.Event
	var status string
	var location []byte
	dest := []any{
		&e.ID, &e.OrganizerID, &e.Title, &e.Description, &location, &e.ScheduledAt,
		&e.DurationMinutes, &e.Capacity, &e.RewardPoints, &status, &e.CreatedAt, &e.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	e.Status = model.EventStatus(status)
	if len(location) > 0 {
		e.Location = location
	}
	return &e, nil
}

// InsertEvent stores a new event.
func (q queries) InsertEvent(ctx context.Context, e *model.Event) error {
	var location any
	if len(e.Location) > 0 {
		location = string(e.Location)
	}
	_, err := q.db.Exec(ctx,
		`INSERT INTO events (id, organizer_id, title, description, location, scheduled_at,
		                     duration_minutes, capacity, reward_points, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8, $9, $10, $11, $12)`,
		e.ID, e.OrganizerID, e.Title, e.Description, location, e.ScheduledAt,
		e.DurationMinutes, e.Capacity, e.RewardPoints, string(e.Status), e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetEvent returns a single event with its current enrollment count, or ErrNotFound.
func (q queries) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	var count int
	e, err := scanEvent(q.db.QueryRow(ctx,
		`SELECT `+eventColumns+`,
		        (SELECT COUNT(*) FROM enrollments r WHERE r.event_id = e.id)
		 FROM events e WHERE e.id = $1`,
		id,
	), &count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	e.EnrolledCount = count
	return e, nil
}

// LockEvent acquires an exclusive row-level lock on the event with
// SELECT ... FOR UPDATE. Any other transaction locking the same row blocks
// until this one commits or rolls back, which serialises every read-then-write
// on the event's roster and status.
func (q queries) LockEvent(ctx context.Context, id string) (*model.Event, error) {
	e, err := scanEvent(q.db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events e WHERE e.id = $1 FOR UPDATE`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("lock event row: %w", err)
	}
	count, err := q.CountEnrollments(ctx, id)
	if err != nil {
		return nil, err
	}
	e.EnrolledCount = count
	return e, nil
}

// ListEvents returns events ordered by scheduled time ascending.
func (q queries) ListEvents(ctx context.Context, f repository.EventFilter) ([]model.Event, error) {
	var status *string
	if f.Status != nil {
		s := string(*f.Status)
		status = &s
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := q.db.Query(ctx,
		`SELECT `+eventColumns+`,
		        (SELECT COUNT(*) FROM enrollments r WHERE r.event_id = e.id)
		 FROM events e
		 WHERE ($1::text IS NULL OR e.status = $1)
		 ORDER BY e.scheduled_at ASC, e.id ASC
		 LIMIT $2`,
		status, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var count int
		e, err := scanEvent(rows, &count)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.EnrolledCount = count
		events = append(events, *e)
	}
	return events, rows.Err()
}

// UpdateEventStatus writes the new status.
func (q queries) UpdateEventStatus(ctx context.Context, id string, status model.EventStatus, at time.Time) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE events SET status = $2, updated_at = $3 WHERE id = $1`,
		id, string(status), at,
	)
	if err != nil {
		return fmt.Errorf("update event status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
