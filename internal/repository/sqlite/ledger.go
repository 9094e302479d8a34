package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/ecopoints/internal/model"
	"github.com/Shivanand-hulikatti/ecopoints/internal/repository"
)

const ledgerColumns = `id, user_id, kind, points, description, report_id, event_id, correction_of, created_at`

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func scanEntry(row rowScanner) (*model.LedgerEntry, error) {
	var e model.LedgerEntry
	var kind string
	var reportID, eventID, correctionOf sql.NullString
	var createdAt int64
	if err := row.Scan(&e.ID, &e.UserID, &kind, &e.Points, &e.Description,
		&reportID, &eventID, &correctionOf, &createdAt); err != nil {
		return nil, err
	}
	e.Kind = model.SourceKind(kind)
	e.ReportID = stringPtr(reportID)
	e.EventID = stringPtr(eventID)
	e.CorrectionOf = stringPtr(correctionOf)
	e.CreatedAt = fromMillis(createdAt)
	return &e, nil
}

func collectEntries(rows *sql.Rows) ([]model.LedgerEntry, error) {
	defer rows.Close()
	var out []model.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// InsertLedgerEntry appends an entry, reporting a uniqueness collision as
// ErrDuplicateCredit without aborting the transaction.
func (q queries) InsertLedgerEntry(ctx context.Context, e *model.LedgerEntry) error {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO ledger_entries (`+ledgerColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		e.ID, e.UserID, string(e.Kind), e.Points, e.Description,
		nullString(e.ReportID), nullString(e.EventID), nullString(e.CorrectionOf), toMillis(e.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateCredit
		}
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	if n == 0 {
		return repository.ErrDuplicateCredit
	}
	return nil
}

// GetLedgerEntry returns one entry or ErrNotFound.
func (q queries) GetLedgerEntry(ctx context.Context, id string) (*model.LedgerEntry, error) {
	e, err := scanEntry(q.db.QueryRowContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get ledger entry: %w", err)
	}
	return e, nil
}

// ListLedgerEntries returns a user's most recent entries first.
func (q queries) ListLedgerEntries(ctx context.Context, userID string, limit int) ([]model.LedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+ledgerColumns+`
		 FROM ledger_entries
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	return collectEntries(rows)
}

// ListEventCredits returns the cleaning credits correlated to an event.
func (q queries) ListEventCredits(ctx context.Context, eventID string) ([]model.LedgerEntry, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+ledgerColumns+`
		 FROM ledger_entries
		 WHERE event_id = ? AND kind = ?
		 ORDER BY user_id ASC`,
		eventID, string(model.KindCleaning),
	)
	if err != nil {
		return nil, fmt.Errorf("list event credits: %w", err)
	}
	return collectEntries(rows)
}

// LedgerSum returns the sum of all points recorded for a user.
func (q queries) LedgerSum(ctx context.Context, userID string) (int64, error) {
	var sum int64
	if err := q.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(points), 0) FROM ledger_entries WHERE user_id = ?`, userID,
	).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum ledger: %w", err)
	}
	return sum, nil
}

// KindTotals groups a user's entries by source kind.
func (q queries) KindTotals(ctx context.Context, userID string) (map[model.SourceKind]model.KindTotal, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT kind, COUNT(*), COALESCE(SUM(points), 0)
		 FROM ledger_entries
		 WHERE user_id = ?
		 GROUP BY kind`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("kind totals: %w", err)
	}
	defer rows.Close()

	out := make(map[model.SourceKind]model.KindTotal)
	for rows.Next() {
		var kind string
		var t model.KindTotal
		if err := rows.Scan(&kind, &t.Count, &t.Points); err != nil {
			return nil, fmt.Errorf("scan kind total: %w", err)
		}
		out[model.SourceKind(kind)] = t
	}
	return out, rows.Err()
}

// Rank sums points per user over the window, highest first. Ties go to the
// user who registered first, then to the lower id.
func (q queries) Rank(ctx context.Context, rq repository.RankQuery) ([]model.RankEntry, error) {
	query := `SELECT l.user_id, u.display_name, u.level, u.created_at, SUM(l.points) AS total
		 FROM ledger_entries l
		 JOIN users u ON u.id = l.user_id`
	args := []any{}
	if rq.Since != nil {
		query += ` WHERE l.created_at >= ?`
		args = append(args, toMillis(*rq.Since))
	}
	query += `
		 GROUP BY l.user_id, u.display_name, u.level, u.created_at
		 ORDER BY total DESC, u.created_at ASC, l.user_id ASC
		 LIMIT ?`
	args = append(args, rq.Limit)

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("rank: %w", err)
	}
	defer rows.Close()

	var out []model.RankEntry
	for rows.Next() {
		var r model.RankEntry
		var registeredAt int64
		if err := rows.Scan(&r.UserID, &r.DisplayName, &r.Level, &registeredAt, &r.Points); err != nil {
			return nil, fmt.Errorf("scan rank: %w", err)
		}
		r.RegisteredAt = fromMillis(registeredAt)
		r.Rank = len(out) + 1
		out = append(out, r)
	}
	return out, rows.Err()
}
