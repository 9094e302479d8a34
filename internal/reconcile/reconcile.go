// Package reconcile converges every cached balance and level onto the
// ledger. Appends keep the two in step transactionally; this job repairs
// drift introduced outside that path, such as manual database edits or rows
// written before the level policy changed.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/ecopoints/internal/leveling"
	"github.com/Shivanand-hulikatti/ecopoints/internal/metrics"
	"github.com/Shivanand-hulikatti/ecopoints/internal/repository"
)

// Report summarises one run.
type Report struct {
	Checked   int `json:"checked"`
	Corrected int `json:"corrected"`
}

// Reconciler compares cached points state with ledger sums.
type Reconciler struct {
	store   repository.Store
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// New constructs a Reconciler.
func New(store repository.Store, m *metrics.Metrics, logger *zap.Logger) *Reconciler {
	return &Reconciler{store: store, metrics: m, logger: logger}
}

// Run audits every user and rewrites the ones that drifted. Each rewrite
// re-reads the ledger under the user's row lock, so an append racing the
// audit is never overwritten with a stale sum.
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	audits, err := r.store.AuditBalances(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("audit balances: %w", err)
	}

	report := Report{Checked: len(audits)}
	for _, a := range audits {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if a.Cached == a.LedgerSum && a.CachedLevel == leveling.Level(a.LedgerSum) {
			continue
		}
		fixed, err := r.fix(ctx, a.UserID)
		if err != nil {
			return report, fmt.Errorf("reconcile %s: %w", a.UserID, err)
		}
		if fixed {
			report.Corrected++
		}
	}
	r.metrics.ReconcileCorrections(report.Corrected)
	return report, nil
}

func (r *Reconciler) fix(ctx context.Context, userID string) (bool, error) {
	fixed := false
	err := r.store.WithTx(ctx, func(tx repository.Tx) error {
		u, err := tx.LockUser(ctx, userID)
		if err != nil {
			return err
		}
		sum, err := tx.LedgerSum(ctx, userID)
		if err != nil {
			return err
		}
		level := leveling.Level(sum)
		if u.Balance == sum && u.Level == level {
			return nil
		}
		if err := tx.SetBalance(ctx, userID, sum, level); err != nil {
			return err
		}
		r.logger.Warn("balance drift corrected",
			zap.String("user_id", userID),
			zap.Int64("cached_balance", u.Balance),
			zap.Int("cached_level", u.Level),
			zap.Int64("ledger_sum", sum),
			zap.Int("level", level),
		)
		fixed = true
		return nil
	})
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	return fixed, err
}

// Schedule runs the reconciler on the cron expression expr until ctx is
// cancelled. Overlapping runs are skipped. An empty expr disables scheduling.
func (r *Reconciler) Schedule(ctx context.Context, expr string) error {
	if expr == "" {
		r.logger.Info("reconcile schedule disabled")
		<-ctx.Done()
		return nil
	}
	log := cronLogger{r.logger}
	c := cron.New(cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)))
	if _, err := c.AddFunc(expr, func() {
		report, err := r.Run(ctx)
		if err != nil {
			r.logger.Error("reconcile run failed", zap.Error(err))
			return
		}
		r.logger.Info("reconcile run finished", zap.Int("checked", report.Checked), zap.Int("corrected", report.Corrected))
	}); err != nil {
		return fmt.Errorf("parse reconcile schedule %q: %w", expr, err)
	}

	c.Start()
	r.logger.Info("reconcile scheduled", zap.String("schedule", expr))
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Sugar().Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}

var _ cron.Logger = cronLogger{}
