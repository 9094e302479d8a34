package sqlite

import (
	"context"
	"fmt"

	"github.com/Shivanand-hulikatti/ecopoints/internal/model"
	"github.com/Shivanand-hulikatti/ecopoints/internal/repository"
)

// CountEnrollments returns the number of participants enrolled in an event.
func (q queries) CountEnrollments(ctx context.Context, eventID string) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM enrollments WHERE event_id = ?`, eventID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return n, nil
}

// EnrollmentExists reports whether the (event, user) pair is enrolled.
func (q queries) EnrollmentExists(ctx context.Context, eventID, userID string) (bool, error) {
	var n int
	if err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM enrollments WHERE event_id = ? AND user_id = ?`,
		eventID, userID,
	).Scan(&n); err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return n > 0, nil
}

// InsertEnrollment creates the relation row.
func (q queries) InsertEnrollment(ctx context.Context, rec model.EnrollmentRecord) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO enrollments (event_id, user_id, created_at) VALUES (?, ?, ?)`,
		rec.EventID, rec.UserID, toMillis(rec.CreatedAt),
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
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM enrollments WHERE event_id = ? AND user_id = ?`,
		eventID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("delete enrollment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete enrollment: %w", err)
	}
	return n > 0, nil
}

// ListEnrollments returns the roster of an event in enrollment order.
func (q queries) ListEnrollments(ctx context.Context, eventID string) ([]model.EnrollmentRecord, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT event_id, user_id, created_at
		 FROM enrollments
		 WHERE event_id = ?
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
		var createdAt int64
		if err := rows.Scan(&rec.EventID, &rec.UserID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		rec.CreatedAt = fromMillis(createdAt)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
