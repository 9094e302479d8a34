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

const userColumns = `id, role, display_name, created_at, balance, level`

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	var role string
	var createdAt int64
	if err := row.Scan(&u.ID, &role, &u.DisplayName, &createdAt, &u.Balance, &u.Level); err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	u.CreatedAt = fromMillis(createdAt)
	return &u, nil
}

// GetUser returns a single user or ErrNotFound.
func (q queries) GetUser(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// LockUser reads the user. The immediate transaction already holds the
// database write lock, so no row lock is needed.
func (q queries) LockUser(ctx context.Context, id string) (*model.User, error) {
	return q.GetUser(ctx, id)
}

// UpsertUser inserts a directory row or refreshes its role and name.
func (q queries) UpsertUser(ctx context.Context, u model.User) error {
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO users (id, role, display_name, created_at, balance, level)
		 VALUES (?, ?, ?, ?, 0, 1)
		 ON CONFLICT (id) DO UPDATE
		 SET role = excluded.role, display_name = excluded.display_name`,
		u.ID, string(u.Role), u.DisplayName, toMillis(createdAt),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// AddBalance increments the cached balance and stores the derived level.
func (q queries) AddBalance(ctx context.Context, userID string, delta int64, levelOf func(int64) int) (model.UserPoints, error) {
	var balance int64
	err := q.db.QueryRowContext(ctx,
		`UPDATE users SET balance = balance + ? WHERE id = ? RETURNING balance`,
		delta, userID,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.UserPoints{}, repository.ErrNotFound
		}
		return model.UserPoints{}, fmt.Errorf("increment balance: %w", err)
	}
	level := levelOf(balance)
	if _, err := q.db.ExecContext(ctx, `UPDATE users SET level = ? WHERE id = ?`, level, userID); err != nil {
		return model.UserPoints{}, fmt.Errorf("update level: %w", err)
	}
	return model.UserPoints{UserID: userID, Balance: balance, Level: level}, nil
}

// SetBalance overwrites the cached points state.
func (q queries) SetBalance(ctx context.Context, userID string, balance int64, level int) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE users SET balance = ?, level = ? WHERE id = ?`,
		balance, level, userID,
	)
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// AuditBalances returns every user's cached balance next to its ledger sum.
func (q queries) AuditBalances(ctx context.Context) ([]model.BalanceAudit, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT u.id, u.balance, u.level, COALESCE(SUM(l.points), 0)
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
