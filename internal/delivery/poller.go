// Package delivery releases scheduled pod messages once their send time
// has passed.
package delivery

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"

	"masterclass-pods/internal/logger"
	"masterclass-pods/internal/pod"
	"masterclass-pods/internal/telemetry"
	"masterclass-pods/models"
)

// Dispatcher hands due messages off for delivery and reports how many it
// accepted.
type Dispatcher interface {
	Dispatch(ctx context.Context, msgs []models.PodMessage) (int, error)
	Mode() string
}

type Result struct {
	Due        int `json:"due"`
	Dispatched int `json:"dispatched"`
}

type Poller struct {
	store      pod.Store
	dispatcher Dispatcher
	batchSize  int
	metrics    *telemetry.Metrics
	now        func() time.Time
}

func NewPoller(store pod.Store, dispatcher Dispatcher, batchSize int, metrics *telemetry.Metrics) *Poller {
	if batchSize <= 0 {
		batchSize = 200
	}
	return &Poller{
		store:      store,
		dispatcher: dispatcher,
		batchSize:  batchSize,
		metrics:    metrics,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces time.Now; used in tests.
func (p *Poller) SetClock(now func() time.Time) {
	p.now = now
}

// Tick selects messages with scheduled_for <= now and sent_at unset, oldest
// first, and dispatches one batch of them.
func (p *Poller) Tick(ctx context.Context) (Result, error) {
	ctx, span := telemetry.Tracer("delivery").Start(ctx, "delivery.tick")
	defer span.End()

	start := time.Now()
	now := p.now()

	due, err := p.store.DueMessages(ctx, now, p.batchSize)
	if err != nil {
		return Result{}, fmt.Errorf("select due messages: %w", err)
	}
	res := Result{Due: len(due)}
	if len(due) == 0 {
		p.metrics.RecordPoll(ctx, time.Since(start).Seconds(), 0)
		return res, nil
	}

	res.Dispatched, err = p.dispatcher.Dispatch(ctx, due)
	p.metrics.RecordPoll(ctx, time.Since(start).Seconds(), len(due))
	span.SetAttributes(
		attribute.Int("delivery.due", res.Due),
		attribute.Int("delivery.dispatched", res.Dispatched),
		attribute.String("delivery.mode", p.dispatcher.Mode()),
	)
	if err != nil {
		logger.Warn("Delivery batch incomplete", "due", res.Due, "dispatched", res.Dispatched, "error", err)
		return res, err
	}

	logger.Debug("Delivery tick", "due", res.Due, "dispatched", res.Dispatched, "mode", p.dispatcher.Mode())
	return res, nil
}

// DirectDispatcher marks messages sent in-process. It is used when no
// Redis queue is configured.
type DirectDispatcher struct {
	store   pod.Store
	metrics *telemetry.Metrics
	now     func() time.Time
}

func NewDirectDispatcher(store pod.Store, metrics *telemetry.Metrics) *DirectDispatcher {
	return &DirectDispatcher{
		store:   store,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (d *DirectDispatcher) Mode() string { return "direct" }

func (d *DirectDispatcher) Dispatch(ctx context.Context, msgs []models.PodMessage) (int, error) {
	ids := make([]primitive.ObjectID, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	n, err := d.store.MarkSent(ctx, ids, d.now())
	if err != nil {
		return 0, fmt.Errorf("mark sent: %w", err)
	}
	d.metrics.RecordDelivered(ctx, n, d.Mode())
	return int(n), nil
}
