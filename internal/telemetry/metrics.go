package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics. A nil *Metrics records nothing.
type Metrics struct {
	RequestCounter      metric.Int64Counter
	RequestDuration     metric.Float64Histogram
	PodsCreated         metric.Int64Counter
	MessagesScheduled   metric.Int64Counter
	MessagesDelivered   metric.Int64Counter
	PollDuration        metric.Float64Histogram
	EnqueueFailures     metric.Int64Counter
	CircuitBreakerState metric.Int64Counter
	AuditEventsLogged   metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("masterclass-pods")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	podsCreated, err := meter.Int64Counter(
		"pods.created",
		metric.WithDescription("Pods created"),
	)
	if err != nil {
		return nil, err
	}

	messagesScheduled, err := meter.Int64Counter(
		"pod_messages.scheduled",
		metric.WithDescription("Pod messages inserted with a send time"),
	)
	if err != nil {
		return nil, err
	}

	messagesDelivered, err := meter.Int64Counter(
		"pod_messages.delivered",
		metric.WithDescription("Pod messages marked sent"),
	)
	if err != nil {
		return nil, err
	}

	pollDuration, err := meter.Float64Histogram(
		"delivery.poll.duration",
		metric.WithDescription("Due-message poll duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	enqueueFailures, err := meter.Int64Counter(
		"delivery.enqueue.failures",
		metric.WithDescription("Delivery tasks that could not be enqueued"),
	)
	if err != nil {
		return nil, err
	}

	circuitBreakerState, err := meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	)
	if err != nil {
		return nil, err
	}

	auditEventsLogged, err := meter.Int64Counter(
		"audit.events.logged",
		metric.WithDescription("Total audit events logged"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:      requestCounter,
		RequestDuration:     requestDuration,
		PodsCreated:         podsCreated,
		MessagesScheduled:   messagesScheduled,
		MessagesDelivered:   messagesDelivered,
		PollDuration:        pollDuration,
		EnqueueFailures:     enqueueFailures,
		CircuitBreakerState: circuitBreakerState,
		AuditEventsLogged:   auditEventsLogged,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordPodCreated(ctx context.Context, niche string) {
	if m == nil {
		return
	}
	m.PodsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("pod.niche", niche)))
}

func (m *Metrics) RecordScheduled(ctx context.Context, niche string, day, count int) {
	if m == nil || count == 0 {
		return
	}
	m.MessagesScheduled.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String("pod.niche", niche),
		attribute.Int("pod.day", day),
	))
}

func (m *Metrics) RecordDelivered(ctx context.Context, count int64, mode string) {
	if m == nil || count == 0 {
		return
	}
	m.MessagesDelivered.Add(ctx, count, metric.WithAttributes(attribute.String("delivery.mode", mode)))
}

func (m *Metrics) RecordPoll(ctx context.Context, seconds float64, due int) {
	if m == nil {
		return
	}
	m.PollDuration.Record(ctx, seconds, metric.WithAttributes(attribute.Int("delivery.due", due)))
}

func (m *Metrics) RecordEnqueueFailure(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.EnqueueFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordCircuitBreakerState records circuit breaker state changes
func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("service", service),
		attribute.String("state", state),
	}

	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordAuditEvent records audit event logging
func (m *Metrics) RecordAuditEvent(action, resource string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("audit.action", action),
		attribute.String("audit.resource", resource),
	}

	m.AuditEventsLogged.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}
