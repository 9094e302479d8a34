// Package registry owns the event lifecycle: creation, reads, and the status
// state machine. Completing an event distributes its rewards in the same
// transaction as the status change, so a completion is never committed
// without its credits.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/ecopoints/internal/apperr"
	"github.com/Shivanand-hulikatti/ecopoints/internal/directory"
	"github.com/Shivanand-hulikatti/ecopoints/internal/metrics"
	"github.com/Shivanand-hulikatti/ecopoints/internal/model"
	"github.com/Shivanand-hulikatti/ecopoints/internal/notify"
	"github.com/Shivanand-hulikatti/ecopoints/internal/repository"
	"github.com/Shivanand-hulikatti/ecopoints/internal/reward"
	"github.com/Shivanand-hulikatti/ecopoints/internal/telemetry"
)

const (
	maxTitleLen       = 200
	maxDescriptionLen = 5000
	maxCapacity       = 100_000
	maxListLimit      = 500
)

// Registry manages events.
type Registry struct {
	store         repository.Store
	directory     directory.Directory
	distributor   *reward.Distributor
	emitter       notify.Emitter
	metrics       *metrics.Metrics
	logger        *zap.Logger
	tracer        trace.Tracer
	now           func() time.Time
	defaultReward int
}

// Option customises a Registry.
type Option func(*Registry)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithDefaultReward sets the points credited per participant when an event
// is created without its own amount.
func WithDefaultReward(points int) Option {
	return func(r *Registry) { r.defaultReward = points }
}

// New constructs a Registry.
func New(
	store repository.Store,
	dir directory.Directory,
	dist *reward.Distributor,
	emitter notify.Emitter,
	m *metrics.Metrics,
	logger *zap.Logger,
	opts ...Option,
) *Registry {
	if emitter == nil {
		emitter = notify.Nop{}
	}
	r := &Registry{
		store:         store,
		directory:     dir,
		distributor:   dist,
		emitter:       emitter,
		metrics:       m,
		logger:        logger,
		tracer:        telemetry.Tracer("registry"),
		now:           func() time.Time { return time.Now().UTC() },
		defaultReward: model.DefaultRewardPoints,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create validates req and stores a new scheduled event organized by
// organizerID.
func (r *Registry) Create(ctx context.Context, organizerID string, req model.CreateEventRequest) (*model.Event, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if err := validateCreate(req); err != nil {
		return nil, err
	}
	if _, err := r.directory.Lookup(ctx, organizerID); err != nil {
		return nil, err
	}

	points := r.defaultReward
	if req.RewardPoints != nil {
		points = *req.RewardPoints
	}
	now := r.now()
	event := &model.Event{
		ID:              uuid.NewString(),
		OrganizerID:     organizerID,
		Title:           req.Title,
		Description:     req.Description,
		Location:        req.Location,
		ScheduledAt:     req.ScheduledAt.UTC(),
		DurationMinutes: req.DurationMinutes,
		Capacity:        req.Capacity,
		RewardPoints:    points,
		Status:          model.StatusScheduled,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := r.store.InsertEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	r.logger.Info("event created",
		zap.String("event_id", event.ID),
		zap.String("organizer_id", organizerID),
		zap.Int("reward_points", points),
	)
	return event, nil
}

func validateCreate(req model.CreateEventRequest) error {
	switch {
	case req.Title == "":
		return apperr.Validation("title is required")
	case len(req.Title) > maxTitleLen:
		return apperr.Validation("title is too long")
	case len(req.Description) > maxDescriptionLen:
		return apperr.Validation("description is too long")
	case req.ScheduledAt.IsZero():
		return apperr.Validation("scheduled_at is required")
	case req.Capacity != nil && *req.Capacity < 0:
		return apperr.Validation("capacity must be non-negative")
	case req.Capacity != nil && *req.Capacity > maxCapacity:
		return apperr.Validation(fmt.Sprintf("capacity cannot exceed %d", maxCapacity))
	case req.RewardPoints != nil && *req.RewardPoints < 0:
		return apperr.Validation("reward_points must be non-negative")
	case req.DurationMinutes != nil && *req.DurationMinutes < 0:
		return apperr.Validation("duration_minutes must be non-negative")
	case len(req.Location) > 0 && !json.Valid(req.Location):
		return apperr.Validation("location must be valid JSON")
	}
	return nil
}

// Get returns one event.
func (r *Registry) Get(ctx context.Context, id string) (*model.Event, error) {
	event, err := r.store.GetEvent(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return event, nil
}

// List returns events, optionally only those in status.
func (r *Registry) List(ctx context.Context, status *model.EventStatus, limit int) ([]model.Event, error) {
	if status != nil && !status.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("unknown status %q", *status))
	}
	if limit <= 0 || limit > maxListLimit {
		limit = 100
	}
	return r.store.ListEvents(ctx, repository.EventFilter{Status: status, Limit: limit})
}

// Transition moves eventID to status on behalf of actorID. Entering
// completed credits every participant before the status change commits; if
// crediting fails nothing is committed and a DISTRIBUTION_FAILED error is
// returned, which the caller may retry.
func (r *Registry) Transition(ctx context.Context, eventID string, status model.EventStatus, actorID string) (*model.Event, error) {
	ctx, span := r.tracer.Start(ctx, "registry.transition", trace.WithAttributes(
		attribute.String("event.id", eventID),
		attribute.String("event.status.to", string(status)),
	))
	defer span.End()

	event, res, err := r.transition(ctx, eventID, status, actorID)
	if err != nil {
		r.metrics.Transition(string(status), string(apperr.CodeOf(err)))
		span.SetStatus(codes.Error, err.Error())
		if !apperr.IsClient(err) {
			r.logger.Error("transition failed",
				zap.String("event_id", eventID),
				zap.String("to", string(status)),
				zap.Error(err),
			)
		}
		return nil, err
	}
	r.metrics.Transition(string(status), "ok")
	r.logger.Info("event transitioned",
		zap.String("event_id", eventID),
		zap.String("to", string(status)),
		zap.String("actor_id", actorID),
	)

	if res != nil {
		r.distributor.Announce(ctx, res)
		r.emitter.EventCompleted(ctx, notify.EventCompleted{
			EventID:        event.ID,
			OrganizerID:    event.OrganizerID,
			ParticipantIDs: res.Participants,
			RewardPoints:   event.RewardPoints,
		})
	}
	return event, nil
}

func (r *Registry) transition(ctx context.Context, eventID string, status model.EventStatus, actorID string) (*model.Event, *reward.Result, error) {
	if !status.Valid() {
		return nil, nil, apperr.Validation(fmt.Sprintf("unknown status %q", status))
	}
	actor, err := r.actor(ctx, actorID)
	if err != nil {
		return nil, nil, err
	}

	var (
		event *model.Event
		res   *reward.Result
	)
	err = r.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		event, err = tx.LockEvent(ctx, eventID)
		if err != nil {
			return mapNotFound(err)
		}
		if !authorized(actor, event) {
			return apperr.New(apperr.CodeForbidden, "only the organizer or an admin may change this event")
		}
		if !CanTransition(event.Status, status) {
			return apperr.New(apperr.CodeInvalidTransition,
				fmt.Sprintf("cannot move event from %s to %s", event.Status, status))
		}

		if status == model.StatusCompleted {
			res, err = r.distributor.Distribute(ctx, tx, event)
			if err != nil {
				return apperr.Wrap(apperr.CodeDistributionFailed, "reward distribution failed", err)
			}
		}

		now := r.now()
		if err := tx.UpdateEventStatus(ctx, event.ID, status, now); err != nil {
			return err
		}
		event.Status = status
		event.UpdatedAt = now
		return nil
	})
	if err != nil {
		if status == model.StatusCompleted && !apperr.IsClient(err) && !errors.Is(err, apperr.ErrDistributionFailed) {
			err = apperr.Wrap(apperr.CodeDistributionFailed, "completion was not committed", err)
		}
		return nil, nil, err
	}
	return event, res, nil
}

// Redistribute re-runs reward distribution for a completed event. It credits
// participants the original run missed and skips everyone already credited.
// Only elevated roles may call it.
func (r *Registry) Redistribute(ctx context.Context, eventID, actorID string) (*reward.Result, error) {
	ctx, span := r.tracer.Start(ctx, "registry.redistribute", trace.WithAttributes(attribute.String("event.id", eventID)))
	defer span.End()

	actor, err := r.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor == nil || !actor.Role.Elevated() {
		return nil, apperr.New(apperr.CodeForbidden, "only moderators and admins may redistribute rewards")
	}

	var res *reward.Result
	err = r.store.WithTx(ctx, func(tx repository.Tx) error {
		event, err := tx.LockEvent(ctx, eventID)
		if err != nil {
			return mapNotFound(err)
		}
		if event.Status != model.StatusCompleted {
			return apperr.New(apperr.CodeInvalidState, "only completed events can be redistributed")
		}
		res, err = r.distributor.Distribute(ctx, tx, event)
		if err != nil {
			return apperr.Wrap(apperr.CodeDistributionFailed, "reward distribution failed", err)
		}
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	r.distributor.Announce(ctx, res)
	return res, nil
}

// actor resolves actorID. Unknown actors yield nil so that authorization
// reports Forbidden rather than leaking which ids exist.
func (r *Registry) actor(ctx context.Context, actorID string) (*model.User, error) {
	u, err := r.directory.Lookup(ctx, actorID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

func authorized(actor *model.User, event *model.Event) bool {
	if actor == nil {
		return false
	}
	return actor.ID == event.OrganizerID || actor.Role.Elevated()
}

func mapNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("event")
	}
	return err
}
