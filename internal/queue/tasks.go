package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"masterclass-pods/internal/logger"
	"masterclass-pods/internal/pod"
	"masterclass-pods/internal/telemetry"
	"masterclass-pods/models"
)

const (
	TaskDeliverMessage = "pod:deliver"
)

type DeliverPayload struct {
	MessageID string    `json:"message_id"`
	PodID     string    `json:"pod_id"`
	DueAt     time.Time `json:"due_at"`
}

// NewDeliverTask builds the delivery task for one message. The task id is
// the message id, so enqueueing the same message twice is rejected by asynq.
func NewDeliverTask(msg models.PodMessage, queueName string) (*asynq.Task, error) {
	payload, err := json.Marshal(DeliverPayload{
		MessageID: msg.ID.Hex(),
		PodID:     msg.PodID.Hex(),
		DueAt:     msg.ScheduledFor,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskDeliverMessage,
		payload,
		asynq.TaskID(TaskIDFor(msg)),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
		asynq.Queue(queueName),
		asynq.Retention(time.Hour),
	), nil
}

func TaskIDFor(msg models.PodMessage) string {
	return "deliver:" + msg.ID.Hex()
}

// TaskProcessor handles delivery tasks on the worker.
type TaskProcessor struct {
	store   pod.Store
	metrics *telemetry.Metrics
	now     func() time.Time
}

func NewTaskProcessor(store pod.Store, metrics *telemetry.Metrics) *TaskProcessor {
	return &TaskProcessor{
		store:   store,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// DeliverMessage marks the message sent. A message that is already sent
// (or was dropped with its pod) is not an error.
func (p *TaskProcessor) DeliverMessage(ctx context.Context, t *asynq.Task) error {
	var payload DeliverPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	id, err := primitive.ObjectIDFromHex(payload.MessageID)
	if err != nil {
		return fmt.Errorf("bad message id %q: %w", payload.MessageID, asynq.SkipRetry)
	}

	n, err := p.store.MarkSent(ctx, []primitive.ObjectID{id}, p.now())
	if err != nil {
		return err // will retry
	}
	p.metrics.RecordDelivered(ctx, n, "queue")

	if n == 0 {
		logger.Debug("Delivery skipped, message already sent", "message_id", payload.MessageID)
		return nil
	}
	logger.Debug("Message delivered", "message_id", payload.MessageID, "pod_id", payload.PodID,
		"lag", p.now().Sub(payload.DueAt).String())
	return nil
}

// Register adds the task handlers to mux.
func (p *TaskProcessor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskDeliverMessage, p.DeliverMessage)
}

// IsDuplicate reports whether err means the task is already queued.
func IsDuplicate(err error) bool {
	return errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask)
}
