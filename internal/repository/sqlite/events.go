package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/ecopoints/internal/model"
	"github.com/Shivanand-hulikatti/ecopoints/internal/repository"
)

const eventColumns = `e.id, e.organizer_id, e.title, e.description, e.location, e.scheduled_at,
	e.duration_minutes, e.capacity, e.reward_points, e.status, e.created_at, e.updated_at,
	(SELECT COUNT(*) FROM enrollments r WHERE r.event_id = e.id)`

func scanEvent(row rowScanner) (*model.Event, error) {
	var e model.Event
	var status string
	var location sql.NullString
	var duration, capacity sql.NullInt64
	var scheduledAt, createdAt, updatedAt int64
	if err := row.Scan(
		&e.ID, &e.OrganizerID, &e.Title, &e.Description, &location, &scheduledAt,
		&duration, &capacity, &e.RewardPoints, &status, &createdAt, &updatedAt,
		&e.EnrolledCount,
	); err != nil {
		return nil, err
	}
	e.Status = model.EventStatus(status)
	if location.Valid && location.String != "" {
		e.Location = []byte(location.String)
	}
	if duration.Valid {
		d := int(duration.Int64)
		e.DurationMinutes = &d
	}
	if capacity.Valid {
		c := int(capacity.Int64)
		e.Capacity = &c
	}
	e.ScheduledAt = fromMillis(scheduledAt)
	e.CreatedAt = fromMillis(createdAt)
	e.UpdatedAt = fromMillis(updatedAt)
	return &e, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

// InsertEvent stores a new event.
func (q queries) InsertEvent(ctx context.Context, e *model.Event) error {
	var location sql.NullString
	if len(e.Location) > 0 {
		location = sql.NullString{String: string(e.Location), Valid: true}
	}
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO events (id, organizer_id, title, description, location, scheduled_at,
		                     duration_minutes, capacity, reward_points, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OrganizerID, e.Title, e.Description, location, toMillis(e.ScheduledAt),
		nullInt(e.DurationMinutes), nullInt(e.Capacity), e.RewardPoints, string(e.Status),
		toMillis(e.CreatedAt), toMillis(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetEvent returns a single event with its enrollment count, or ErrNotFound.
func (q queries) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	e, err := scanEvent(q.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events e WHERE e.id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// LockEvent reads the event inside the immediate transaction, which already
// excludes every other writer.
func (q queries) LockEvent(ctx context.Context, id string) (*model.Event, error) {
	return q.GetEvent(ctx, id)
}

// ListEvents returns events ordered by scheduled time ascending.
func (q queries) ListEvents(ctx context.Context, f repository.EventFilter) ([]model.Event, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + eventColumns + ` FROM events e`
	args := []any{}
	if f.Status != nil {
		query += ` WHERE e.status = ?`
		args = append(args, string(*f.Status))
	}
	query += ` ORDER BY e.scheduled_at ASC, e.id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// UpdateEventStatus writes the new status.
func (q queries) UpdateEventStatus(ctx context.Context, id string, status model.EventStatus, at time.Time) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE events SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), toMillis(at), id,
	)
	if err != nil {
		return fmt.Errorf("update event status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
