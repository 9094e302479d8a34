package postgres

import (
	"context"
	"fmt"

	"github.com/Shivanand-hulikatti/ecopoints/internal/model"
	"github.com/Shivanand-hulikatti/ecopoints/internal/repository"
)

// CountEnrollments returns the number of participants enrolled in an event.
func (q queries) CountEnrollments(ctx context.Context, eventID string) (int, error) {
	var n int
	if err := q.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM enrollments WHERE event_id = $1`, eventID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return n, nil
}

// EnrollmentExists reports whether the (event, user) pair is enrolled.
func (q queries) EnrollmentExists(ctx context.Context, eventID, userID string) (bool, error) {
	var exists bool
	if err := q.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM enrollments WHERE event_id = $1 AND user_id = $2)`,
		eventID, userID,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return exists, nil
}

// InsertEnrollment creates the relation row. The primary key on
// (event_id, user_id) rejects duplicates even if a caller skipped the
// existence check.
func (q queries) InsertEnrollment(ctx context.Context, rec model.EnrollmentRecord) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO enrollments (event_id, user_id, created_at) VALUES ($1, $2, $3)`,
		rec.EventID, rec.UserID, rec.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrAlreadyEnrolled
		}
		return fmt.Errorf("insert enrollment: %w", err)
	}
	return nil
}

// DeleteEnrollment removes the relation row and reports whether one existed.
func (q queries) DeleteEnrollment(ctx context.Context, eventID, userID string) (bool, error) {
	tag, err := q.db.Exec(ctx,
		`DELETE FROM enrollments WHERE event_id = $1 AND user_id = $2`,
		eventID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("delete enrollment: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListEnrollments returns the roster of an event in enrollment order.
func (q queries) ListEnrollments(ctx context.Context, eventID string) ([]model.EnrollmentRecord, error) {
	rows, err := q.db.Query(ctx,
		`SELECT event_id, user_id, created_at
		 FROM enrollments
		 WHERE event_id = $1
		 ORDER BY created_at ASC, user_id ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	var recs []model.EnrollmentRecord
	for rows.Next() {
		var rec model.EnrollmentRecord
		if err := rows.Scan(&rec.EventID, &rec.UserID, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
