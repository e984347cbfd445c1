package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"masterclass-pods/internal/logger"
	"masterclass-pods/internal/telemetry"
	"masterclass-pods/models"
)

// Enqueuer is the part of *asynq.Client the dispatcher needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher enqueues one delivery task per due message. Enqueueing is
// paced by a token bucket and guarded by a circuit breaker so a Redis
// outage fails the batch fast instead of stalling every poll.
type Dispatcher struct {
	client    Enqueuer
	queueName string
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker
	metrics   *telemetry.Metrics
}

type DispatcherOptions struct {
	QueueName  string
	RatePerSec float64
	Burst      int
	// consecutive failures before the breaker opens
	TripAfter    uint32
	OpenDuration time.Duration
}

func NewDispatcher(client Enqueuer, opts DispatcherOptions, metrics *telemetry.Metrics) *Dispatcher {
	if opts.QueueName == "" {
		opts.QueueName = "default"
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.TripAfter == 0 {
		opts.TripAfter = 5
	}
	if opts.OpenDuration <= 0 {
		opts.OpenDuration = 30 * time.Second
	}

	limit := rate.Inf
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "asynq-enqueue",
		MaxRequests: 1,
		Timeout:     opts.OpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.TripAfter
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsDuplicate(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			metrics.RecordCircuitBreakerState(name, to.String())
		},
	})

	return &Dispatcher{
		client:    client,
		queueName: opts.QueueName,
		limiter:   rate.NewLimiter(limit, opts.Burst),
		breaker:   breaker,
		metrics:   metrics,
	}
}

func (d *Dispatcher) Mode() string { return "queue" }

// State exposes the breaker state for health reporting.
func (d *Dispatcher) State() gobreaker.State {
	return d.breaker.State()
}

// Dispatch enqueues msgs in order and stops at the first hard failure. A
// message whose task is already queued counts as dispatched.
func (d *Dispatcher) Dispatch(ctx context.Context, msgs []models.PodMessage) (int, error) {
	dispatched := 0
	for _, msg := range msgs {
		if err := d.limiter.Wait(ctx); err != nil {
			return dispatched, err
		}

		task, err := NewDeliverTask(msg, d.queueName)
		if err != nil {
			return dispatched, err
		}

		_, err = d.breaker.Execute(func() (interface{}, error) {
			return d.client.EnqueueContext(ctx, task)
		})
		switch {
		case err == nil, IsDuplicate(err):
			dispatched++
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			d.metrics.RecordEnqueueFailure(ctx, "breaker_open")
			return dispatched, fmt.Errorf("enqueue paused: %w", err)
		default:
			d.metrics.RecordEnqueueFailure(ctx, "enqueue_error")
			return dispatched, fmt.Errorf("enqueue %s: %w", msg.ID.Hex(), err)
		}
	}
	return dispatched, nil
}
