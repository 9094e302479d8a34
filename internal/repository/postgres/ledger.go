package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Shivanand-hulikatti/ecopoints/internal/model"
	"github.com/Shivanand-hulikatti/ecopoints/internal/repository"
)

const ledgerColumns = `id, user_id, kind, points, description, report_id, event_id, correction_of, created_at`

func scanEntry(row pgx.Row) (*model.LedgerEntry, error) {
	var e model.LedgerEntry
	var kind string
	if err := row.Scan(&e.ID, &e.UserID, &kind, &e.Points, &e.Description,
		&e.ReportID, &e.EventID, &e.CorrectionOf, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Kind = model.SourceKind(kind)
	return &e, nil
}

func collectEntries(rows pgx.Rows) ([]model.LedgerEntry, error) {
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

// InsertLedgerEntry appends an entry. ON CONFLICT DO NOTHING keeps the
// transaction usable when the credit key or correction target already
// exists; the skipped insert is reported as ErrDuplicateCredit.
func (q queries) InsertLedgerEntry(ctx context.Context, e *model.LedgerEntry) error {
	tag, err := q.db.Exec(ctx,
		`INSERT INTO ledger_entries (`+ledgerColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT DO NOTHING`,
		e.ID, e.UserID, string(e.Kind), e.Points, e.Description,
		e.ReportID, e.EventID, e.CorrectionOf, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrDuplicateCredit
	}
	return nil
}

// GetLedgerEntry returns one entry or ErrNotFound.
func (q queries) GetLedgerEntry(ctx context.Context, id string) (*model.LedgerEntry, error) {
	e, err := scanEntry(q.db.QueryRow(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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
	rows, err := q.db.Query(ctx,
		`SELECT `+ledgerColumns+`
		 FROM ledger_entries
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	return collectEntries(rows)
}

// ListEventCredits returns the cleaning credits correlated to an event.
func (q queries) ListEventCredits(ctx context.Context, eventID string) ([]model.LedgerEntry, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+ledgerColumns+`
		 FROM ledger_entries
		 WHERE event_id = $1 AND kind = $2
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
	if err := q.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(points), 0)::bigint FROM ledger_entries WHERE user_id = $1`, userID,
	).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum ledger: %w", err)
	}
	return sum, nil
}

// KindTotals groups a user's entries by source kind.
func (q queries) KindTotals(ctx context.Context, userID string) (map[model.SourceKind]model.KindTotal, error) {
	rows, err := q.db.Query(ctx,
		`SELECT kind, COUNT(*), COALESCE(SUM(points), 0)::bigint
		 FROM ledger_entries
		 WHERE user_id = $1
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
	rows, err := q.db.Query(ctx,
		`SELECT l.user_id, u.display_name, u.level, u.created_at, SUM(l.points)::bigint AS total
		 FROM ledger_entries l
		 JOIN users u ON u.id = l.user_id
		 WHERE ($1::timestamptz IS NULL OR l.created_at >= $1)
		 GROUP BY l.user_id, u.display_name, u.level, u.created_at
		 ORDER BY total DESC, u.created_at ASC, l.user_id ASC
		 LIMIT $2`,
		rq.Since, rq.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("rank: %w", err)
	}
	defer rows.Close()

	var out []model.RankEntry
	for rows.Next() {
		var r model.RankEntry
		if err := rows.Scan(&r.UserID, &r.DisplayName, &r.Level, &r.RegisteredAt, &r.Points); err != nil {
			return nil, fmt.Errorf("scan rank: %w", err)
		}
		r.Rank = len(out) + 1
		out = append(out, r)
	}
	return out, rows.Err()
}
