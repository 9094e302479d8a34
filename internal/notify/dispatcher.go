package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/ecopoints/internal/metrics"
)

// Notification is one queued fact. Exactly one field is set.
type Notification struct {
	Completed *EventCompleted
	Points    *PointsChanged
}

func (n Notification) kind() string {
	if n.Completed != nil {
		return "event_completed"
	}
	return "points_changed"
}

// Sink delivers notifications to the collaborator.
type Sink interface {
	Deliver(ctx context.Context, n Notification) error
}

// LogSink writes every notification to the log.
type LogSink struct {
	Logger *zap.Logger
}

// Deliver implements Sink.
func (s LogSink) Deliver(_ context.Context, n Notification) error {
	switch {
	case n.Completed != nil:
		s.Logger.Info("event completed",
			zap.String("event_id", n.Completed.EventID),
			zap.String("organizer_id", n.Completed.OrganizerID),
			zap.Int("participants", len(n.Completed.ParticipantIDs)),
			zap.Int("reward_points", n.Completed.RewardPoints),
		)
	case n.Points != nil:
		s.Logger.Info("points changed",
			zap.String("user_id", n.Points.UserID),
			zap.Int64("balance", n.Points.NewBalance),
			zap.Int("level", n.Points.NewLevel),
		)
	}
	return nil
}

const deliverTimeout = 5 * time.Second

// Dispatcher is an Emitter that queues facts on a bounded channel drained by
// one worker. Enqueue never blocks; when the queue is full the fact is
// dropped and counted.
type Dispatcher struct {
	queue   chan Notification
	sink    Sink
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewDispatcher builds a dispatcher with room for size pending facts.
func NewDispatcher(sink Sink, size int, logger *zap.Logger, m *metrics.Metrics) *Dispatcher {
	if size <= 0 {
		size = 1
	}
	return &Dispatcher{
		queue:   make(chan Notification, size),
		sink:    sink,
		logger:  logger,
		metrics: m,
	}
}

// EventCompleted implements Emitter.
func (d *Dispatcher) EventCompleted(_ context.Context, ev EventCompleted) {
	d.enqueue(Notification{Completed: &ev})
}

// PointsChanged implements Emitter.
func (d *Dispatcher) PointsChanged(_ context.Context, ev PointsChanged) {
	d.enqueue(Notification{Points: &ev})
}

func (d *Dispatcher) enqueue(n Notification) bool {
	select {
	case d.queue <- n:
		return true
	default:
		d.logger.Warn("notification dropped: queue full", zap.String("kind", n.kind()))
		d.metrics.NotificationDropped()
		return false
	}
}

// Run delivers queued facts until ctx is cancelled, then flushes whatever is
// still buffered and returns.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			d.flush()
			return nil
		case n := <-d.queue:
			d.deliver(context.WithoutCancel(ctx), n)
		}
	}
}

func (d *Dispatcher) flush() {
	for {
		select {
		case n := <-d.queue:
			d.deliver(context.Background(), n)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n Notification) {
	ctx, cancel := context.WithTimeout(ctx, deliverTimeout)
	defer cancel()
	if err := d.sink.Deliver(ctx, n); err != nil {
		d.logger.Warn("notification delivery failed", zap.String("kind", n.kind()), zap.Error(err))
	}
}

var _ Emitter = (*Dispatcher)(nil)
