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

const userColumns = `id, role, display_name, created_at, balance, level`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var role string
	if err := row.Scan(&u.ID, &role, &u.DisplayName, &u.CreatedAt, &u.Balance, &u.Level); err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}

// GetUser returns a single user or ErrNotFound.
func (q queries) GetUser(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// LockUser returns the user and holds its row lock for the transaction.
func (q queries) LockUser(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("lock user: %w", err)
	}
	return u, nil
}

// UpsertUser inserts a directory row or refreshes its role and name. The
// points state is never touched.
func (q queries) UpsertUser(ctx context.Context, u model.User) error {
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := q.db.Exec(ctx,
		`INSERT INTO users (id, role, display_name, created_at, balance, level)
		 VALUES ($1, $2, $3, $4, 0, 1)
		 ON CONFLICT (id) DO UPDATE
		 SET role = EXCLUDED.role, display_name = EXCLUDED.display_name`,
		u.ID, string(u.Role), u.DisplayName, createdAt,
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// AddBalance increments the cached balance and stores the level derived from
// the result.
func (q queries) AddBalance(ctx context.Context, userID string, delta int64, levelOf func(int64) int) (model.UserPoints, error) {
	var balance int64
	err := q.db.QueryRow(ctx,
		`UPDATE users SET balance = balance + $2 WHERE id = $1 RETURNING balance`,
		userID, delta,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.UserPoints{}, repository.ErrNotFound
		}
		return model.UserPoints{}, fmt.Errorf("increment balance: %w", err)
	}
	level := levelOf(balance)
	if _, err := q.db.Exec(ctx, `UPDATE users SET level = $2 WHERE id = $1`, userID, level); err != nil {
		return model.UserPoints{}, fmt.Errorf("update level: %w", err)
	}
	return model.UserPoints{UserID: userID, Balance: balance, Level: level}, nil
}

// SetBalance overwrites the cached points state.
func (q queries) SetBalance(ctx context.Context, userID string, balance int64, level int) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE users SET balance = $2, level = $3 WHERE id = $1`,
		userID, balance, level,
	)
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// AuditBalances returns every user's cached balance next to its ledger sum.
func (q queries) AuditBalances(ctx context.Context) ([]model.BalanceAudit, error) {
	rows, err := q.db.Query(ctx,
		`SELECT u.id, u.balance, u.level, COALESCE(SUM(l.points), 0)::bigint
		 FROM users u
		 LEFT JOIN ledger_entries l ON l.user_id = u.id
		 GROUP BY u.id, u.balance, u.level
		 ORDER BY u.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("audit balances: %w", err)
	}
	defer rows.Close()

	var out []model.BalanceAudit
	for rows.Next() {
		var a model.BalanceAudit
		if err := rows.Scan(&a.UserID, &a.Cached, &a.CachedLevel, &a.LedgerSum); err != nil {
			return nil, fmt.Errorf("scan balance audit: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
