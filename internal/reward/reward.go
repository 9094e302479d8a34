// Package reward credits every participant of a completed event exactly
// once. The ledger's unique (event, user) credit key makes a second run a
// no-op per participant, so distribution can be resumed safely.
package reward

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/ecopoints/internal/enrollment"
	"github.com/Shivanand-hulikatti/ecopoints/internal/ledger"
	"github.com/Shivanand-hulikatti/ecopoints/internal/metrics"
	"github.com/Shivanand-hulikatti/ecopoints/internal/model"
	"github.com/Shivanand-hulikatti/ecopoints/internal/repository"
	"github.com/Shivanand-hulikatti/ecopoints/internal/telemetry"
)

// Credit is one participant credited by a distribution run.
type Credit struct {
	Entry  model.LedgerEntry
	Points model.UserPoints
}

// Result describes a distribution run.
type Result struct {
	EventID      string
	Participants []string
	Credited     []Credit
	// Skipped holds participants that already had a credit for the event.
	Skipped []string
}

// Distributor writes cleaning credits through the ledger.
type Distributor struct {
	ledger  *ledger.Ledger
	metrics *metrics.Metrics
	logger  *zap.Logger
	tracer  trace.Tracer
}

// NewDistributor constructs a Distributor.
func NewDistributor(l *ledger.Ledger, m *metrics.Metrics, logger *zap.Logger) *Distributor {
	return &Distributor{
		ledger:  l,
		metrics: m,
		logger:  logger,
		tracer:  telemetry.Tracer("reward"),
	}
}

// Distribute credits event.RewardPoints to every participant on the roster,
// inside tx. Participants already credited for the event are skipped. Any
// other failure aborts the run and is returned; the caller must roll back.
func (d *Distributor) Distribute(ctx context.Context, tx repository.Tx, event *model.Event) (*Result, error) {
	ctx, span := d.tracer.Start(ctx, "reward.distribute", trace.WithAttributes(attribute.String("event.id", event.ID)))
	defer span.End()
	start := time.Now()
	defer func() { d.metrics.ObserveDistribution(time.Since(start)) }()

	roster, err := enrollment.RosterTx(ctx, tx, event.ID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("read roster: %w", err)
	}
	span.SetAttributes(attribute.Int("roster.size", len(roster)))

	res := &Result{EventID: event.ID}
	for _, rec := range roster {
		res.Participants = append(res.Participants, rec.UserID)

		eventID := event.ID
		entry := model.LedgerEntry{
			UserID:      rec.UserID,
			Kind:        model.KindCleaning,
			Points:      int64(event.RewardPoints),
			Description: "Participated in " + event.Title,
			EventID:     &eventID,
		}
		pts, err := d.ledger.AppendTx(ctx, tx, &entry)
		if errors.Is(err, repository.ErrDuplicateCredit) {
			d.logger.Info("already credited",
				zap.String("event_id", event.ID),
				zap.String("user_id", rec.UserID),
			)
			res.Skipped = append(res.Skipped, rec.UserID)
			continue
		}
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("credit %s: %w", rec.UserID, err)
		}
		res.Credited = append(res.Credited, Credit{Entry: entry, Points: pts})
	}
	return res, nil
}

// Announce publishes a distribution whose transaction has committed.
func (d *Distributor) Announce(ctx context.Context, res *Result) {
	if res == nil {
		return
	}
	for i := range res.Credited {
		d.metrics.Credit("credited")
		d.ledger.Announce(ctx, &res.Credited[i].Entry, res.Credited[i].Points)
	}
	for range res.Skipped {
		d.metrics.Credit("skipped")
	}
	d.logger.Info("rewards distributed",
		zap.String("event_id", res.EventID),
		zap.Int("credited", len(res.Credited)),
		zap.Int("skipped", len(res.Skipped)),
	)
}
