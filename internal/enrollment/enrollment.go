// Package enrollment owns the participant roster of each event. Capacity is
// enforced inside the same transaction as the insert, after the event row
// has been locked, so concurrent joins cannot overfill an event.
package enrollment

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/ecopoints/internal/apperr"
	"github.com/Shivanand-hulikatti/ecopoints/internal/metrics"
	"github.com/Shivanand-hulikatti/ecopoints/internal/model"
	"github.com/Shivanand-hulikatti/ecopoints/internal/repository"
	"github.com/Shivanand-hulikatti/ecopoints/internal/telemetry"
)

// Manager handles join and leave.
type Manager struct {
	store   repository.Store
	metrics *metrics.Metrics
	logger  *zap.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

// NewManager constructs a Manager.
func NewManager(store repository.Store, m *metrics.Metrics, logger *zap.Logger) *Manager {
	return &Manager{
		store:   store,
		metrics: m,
		logger:  logger,
		tracer:  telemetry.Tracer("enrollment"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Join enrolls userID in eventID.
func (m *Manager) Join(ctx context.Context, eventID, userID string) (*model.EnrollmentRecord, error) {
	ctx, span := m.tracer.Start(ctx, "enrollment.join",
		trace.WithAttributes(attribute.String("event.id", eventID), attribute.String("user.id", userID)))
	defer span.End()

	var rec model.EnrollmentRecord
	err := m.store.WithTx(ctx, func(tx repository.Tx) error {
		event, err := lockEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if event.Status != model.StatusScheduled {
			return apperr.New(apperr.CodeInvalidState, "event is "+string(event.Status)+"; only scheduled events accept participants")
		}
		if _, err := tx.GetUser(ctx, userID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.NotFound("user")
			}
			return err
		}
		exists, err := tx.EnrollmentExists(ctx, eventID, userID)
		if err != nil {
			return err
		}
		if exists {
			return apperr.ErrAlreadyEnrolled
		}
		if event.IsFull() {
			return apperr.ErrCapacityExceeded
		}

		rec = model.EnrollmentRecord{EventID: eventID, UserID: userID, CreatedAt: m.now()}
		if err := tx.InsertEnrollment(ctx, rec); err != nil {
			if errors.Is(err, repository.ErrAlreadyEnrolled) {
				return apperr.ErrAlreadyEnrolled
			}
			return err
		}
		return nil
	})

	m.metrics.Enrollment(outcome(err))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if !apperr.IsClient(err) {
			m.logger.Error("join failed", zap.String("event_id", eventID), zap.String("user_id", userID), zap.Error(err))
		}
		return nil, err
	}
	m.logger.Debug("participant joined", zap.String("event_id", eventID), zap.String("user_id", userID))
	return &rec, nil
}

// Leave withdraws userID from eventID, whatever the event's status.
func (m *Manager) Leave(ctx context.Context, eventID, userID string) error {
	ctx, span := m.tracer.Start(ctx, "enrollment.leave",
		trace.WithAttributes(attribute.String("event.id", eventID), attribute.String("user.id", userID)))
	defer span.End()

	return m.store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := lockEvent(ctx, tx, eventID); err != nil {
			return err
		}
		removed, err := tx.DeleteEnrollment(ctx, eventID, userID)
		if err != nil {
			return err
		}
		if !removed {
			return apperr.ErrNotEnrolled
		}
		return nil
	})
}

// Count returns the number of participants in eventID.
func (m *Manager) Count(ctx context.Context, eventID string) (int, error) {
	event, err := m.store.GetEvent(ctx, eventID)
	if err != nil {
		return 0, mapNotFound(err)
	}
	return event.EnrolledCount, nil
}

// Roster returns the participants of eventID in enrollment order.
func (m *Manager) Roster(ctx context.Context, eventID string) ([]model.EnrollmentRecord, error) {
	if _, err := m.store.GetEvent(ctx, eventID); err != nil {
		return nil, mapNotFound(err)
	}
	return m.store.ListEnrollments(ctx, eventID)
}

// RosterTx reads the roster inside tx. With the event row locked by the
// caller, the result is the snapshot reward distribution runs against.
func RosterTx(ctx context.Context, tx repository.Tx, eventID string) ([]model.EnrollmentRecord, error) {
	return tx.ListEnrollments(ctx, eventID)
}

func lockEvent(ctx context.Context, tx repository.Tx, eventID string) (*model.Event, error) {
	event, err := tx.LockEvent(ctx, eventID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return event, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("event")
	}
	return err
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(apperr.CodeOf(err))
}
