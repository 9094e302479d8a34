// Package ledger implements the points ledger: an append-only record of
// point-granting facts that is the single source of truth for balances.
// Every append updates the owner's cached balance and recomputes the level
// in the same transaction.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/ecopoints/internal/apperr"
	"github.com/Shivanand-hulikatti/ecopoints/internal/config"
	"github.com/Shivanand-hulikatti/ecopoints/internal/directory"
	"github.com/Shivanand-hulikatti/ecopoints/internal/leveling"
	"github.com/Shivanand-hulikatti/ecopoints/internal/metrics"
	"github.com/Shivanand-hulikatti/ecopoints/internal/model"
	"github.com/Shivanand-hulikatti/ecopoints/internal/notify"
	"github.com/Shivanand-hulikatti/ecopoints/internal/repository"
	"github.com/Shivanand-hulikatti/ecopoints/internal/telemetry"
)

const maxDescriptionLen = 1000

// Ledger appends and reads ledger entries.
type Ledger struct {
	store     repository.Store
	directory directory.Directory
	points    config.ActionPoints
	emitter   notify.Emitter
	metrics   *metrics.Metrics
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// Option customises a Ledger.
type Option func(*Ledger)

// WithClock replaces the wall clock used to timestamp entries.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New constructs a Ledger.
func New(
	store repository.Store,
	dir directory.Directory,
	points config.ActionPoints,
	emitter notify.Emitter,
	m *metrics.Metrics,
	logger *zap.Logger,
	opts ...Option,
) *Ledger {
	if emitter == nil {
		emitter = notify.Nop{}
	}
	l := &Ledger{
		store:     store,
		directory: dir,
		points:    points,
		emitter:   emitter,
		metrics:   m,
		logger:    logger,
		tracer:    telemetry.Tracer("ledger"),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AppendTx writes e inside tx and moves the owner's balance by e.Points.
// A uniqueness collision is returned as repository.ErrDuplicateCredit and
// leaves the balance untouched; callers decide what it means.
func (l *Ledger) AppendTx(ctx context.Context, tx repository.Tx, e *model.LedgerEntry) (model.UserPoints, error) {
	if !e.Kind.Valid() {
		return model.UserPoints{}, apperr.Validation(fmt.Sprintf("unknown source kind %q", e.Kind))
	}
	if strings.TrimSpace(e.UserID) == "" {
		return model.UserPoints{}, apperr.Validation("user id is required")
	}
	if _, err := tx.GetUser(ctx, e.UserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.UserPoints{}, apperr.NotFound("user")
		}
		return model.UserPoints{}, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = l.now()
	}

	if err := tx.InsertLedgerEntry(ctx, e); err != nil {
		return model.UserPoints{}, err
	}
	pts, err := tx.AddBalance(ctx, e.UserID, e.Points, leveling.Level)
	if err != nil {
		return model.UserPoints{}, fmt.Errorf("update balance: %w", err)
	}
	return pts, nil
}

// Append writes e in its own transaction and emits PointsChanged once it
// commits.
func (l *Ledger) Append(ctx context.Context, e model.LedgerEntry) (*model.LedgerEntry, model.UserPoints, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.append",
		trace.WithAttributes(attribute.String("user.id", e.UserID), attribute.String("ledger.kind", string(e.Kind))))
	defer span.End()

	var pts model.UserPoints
	err := l.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		pts, err = l.AppendTx(ctx, tx, &e)
		return err
	})
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, repository.ErrDuplicateCredit) {
			return nil, model.UserPoints{}, apperr.Wrap(apperr.CodeValidation, "entry duplicates an existing credit", err)
		}
		return nil, model.UserPoints{}, err
	}
	l.Announce(ctx, &e, pts)
	return &e, pts, nil
}

// Announce publishes an entry whose transaction has committed.
// Callers that write through AppendTx call it after their commit.
func (l *Ledger) Announce(ctx context.Context, e *model.LedgerEntry, pts model.UserPoints) {
	l.metrics.LedgerEntry(string(e.Kind))
	l.logger.Debug("ledger entry appended",
		zap.String("entry_id", e.ID),
		zap.String("user_id", e.UserID),
		zap.String("kind", string(e.Kind)),
		zap.Int64("points", e.Points),
		zap.Int64("balance", pts.Balance),
		zap.Int("level", pts.Level),
	)
	l.emitter.PointsChanged(ctx, notify.PointsChanged{UserID: pts.UserID, NewBalance: pts.Balance, NewLevel: pts.Level})
}

// RecordAction appends a self-reported eco action for userID, granting the
// configured points for its kind. Cleaning credits and corrections cannot be
// self-reported.
func (l *Ledger) RecordAction(ctx context.Context, userID string, req model.RecordActionRequest) (*model.LedgerEntry, model.UserPoints, error) {
	points, ok := l.points.For(req.Kind)
	if !ok {
		return nil, model.UserPoints{}, apperr.Validation(fmt.Sprintf("kind %q cannot be self-reported", req.Kind))
	}
	desc := strings.TrimSpace(req.Description)
	if len(desc) > maxDescriptionLen {
		return nil, model.UserPoints{}, apperr.Validation("description is too long")
	}
	if req.ReportID != nil && strings.TrimSpace(*req.ReportID) == "" {
		req.ReportID = nil
	}
	return l.Append(ctx, model.LedgerEntry{
		UserID:      userID,
		Kind:        req.Kind,
		Points:      points,
		Description: desc,
		ReportID:    req.ReportID,
	})
}

// Correct reverts entryID by appending its negation. Only elevated roles may
// correct; an entry is corrected at most once and corrections themselves are
// final.
func (l *Ledger) Correct(ctx context.Context, entryID, reason, actorID string) (*model.LedgerEntry, model.UserPoints, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, model.UserPoints{}, apperr.Validation("reason is required")
	}
	if len(reason) > maxDescriptionLen {
		return nil, model.UserPoints{}, apperr.Validation("reason is too long")
	}
	actor, err := l.directory.Lookup(ctx, actorID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, model.UserPoints{}, err
	}
	if actor == nil || !actor.Role.Elevated() {
		return nil, model.UserPoints{}, apperr.New(apperr.CodeForbidden, "only moderators and admins may correct entries")
	}

	var (
		correction model.LedgerEntry
		pts        model.UserPoints
	)
	err = l.store.WithTx(ctx, func(tx repository.Tx) error {
		orig, err := tx.GetLedgerEntry(ctx, entryID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.NotFound("ledger entry")
			}
			return err
		}
		if orig.Kind == model.KindCorrection {
			return apperr.Validation("a correction cannot be corrected")
		}
		correction = model.LedgerEntry{
			UserID:       orig.UserID,
			Kind:         model.KindCorrection,
			Points:       -orig.Points,
			Description:  reason,
			CorrectionOf: &orig.ID,
		}
		pts, err = l.AppendTx(ctx, tx, &correction)
		if errors.Is(err, repository.ErrDuplicateCredit) {
			return apperr.ErrAlreadyCorrected
		}
		return err
	})
	if err != nil {
		return nil, model.UserPoints{}, err
	}
	l.logger.Info("ledger entry corrected",
		zap.String("entry_id", entryID),
		zap.String("correction_id", correction.ID),
		zap.String("actor_id", actorID),
	)
	l.Announce(ctx, &correction, pts)
	return &correction, pts, nil
}

// History returns a user's entries, most recent first.
func (l *Ledger) History(ctx context.Context, userID string, limit int) ([]model.LedgerEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return l.store.ListLedgerEntries(ctx, userID, limit)
}

// Points returns the cached balance and level of a user.
func (l *Ledger) Points(ctx context.Context, userID string) (model.UserPoints, error) {
	u, err := l.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.UserPoints{}, apperr.NotFound("user")
		}
		return model.UserPoints{}, err
	}
	return model.UserPoints{UserID: u.ID, Balance: u.Balance, Level: u.Level}, nil
}

// Stats summarises a user's ledger activity and level progress.
func (l *Ledger) Stats(ctx context.Context, userID string) (*model.UserStats, error) {
	pts, err := l.Points(ctx, userID)
	if err != nil {
		return nil, err
	}
	totals, err := l.store.KindTotals(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats := &model.UserStats{
		UserID:      pts.UserID,
		Balance:     pts.Balance,
		Level:       pts.Level,
		NextLevelAt: leveling.NextLevelAt(pts.Balance),
		ByKind:      totals,
	}
	stats.PointsToNextLevel = stats.NextLevelAt - pts.Balance
	for _, t := range totals {
		stats.ActionCount += t.Count
	}
	return stats, nil
}
