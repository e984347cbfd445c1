package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"masterclass-pods/internal/pod"
	"masterclass-pods/models"
)

type fakeEnqueuer struct {
	seen map[string]bool
	err  error
	hits int
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	f.hits++
	if f.err != nil {
		return nil, f.err
	}
	var p DeliverPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return nil, err
	}
	if f.seen[p.MessageID] {
		return nil, asynq.ErrTaskIDConflict
	}
	f.seen[p.MessageID] = true
	return &asynq.TaskInfo{ID: p.MessageID}, nil
}

func messages(n int) []models.PodMessage {
	podID := primitive.NewObjectID()
	out := make([]models.PodMessage, n)
	for i := range out {
		out[i] = models.PodMessage{ID: primitive.NewObjectID(), PodID: podID, ScheduledFor: time.Now()}
	}
	return out
}

func TestDispatcherTreatsDuplicatesAsDispatched(t *testing.T) {
	enq := &fakeEnqueuer{seen: map[string]bool{}}
	d := NewDispatcher(enq, DispatcherOptions{}, nil)
	msgs := messages(3)

	n, err := d.Dispatch(context.Background(), msgs)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// the next poll sees the same unsent rows
	n, err = d.Dispatch(context.Background(), msgs)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, enq.seen, 3)
}

func TestDispatcherOpensBreaker(t *testing.T) {
	enq := &fakeEnqueuer{seen: map[string]bool{}, err: errors.New("redis down")}
	d := NewDispatcher(enq, DispatcherOptions{TripAfter: 2, OpenDuration: time.Minute}, nil)

	for i := 0; i < 2; i++ {
		_, err := d.Dispatch(context.Background(), messages(1))
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, d.State())

	hits := enq.hits
	_, err := d.Dispatch(context.Background(), messages(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, hits, enq.hits, "open breaker does not call redis")
}

func TestNewDeliverTask(t *testing.T) {
	msg := messages(1)[0]
	task, err := NewDeliverTask(msg, "critical")
	require.NoError(t, err)
	assert.Equal(t, TaskDeliverMessage, task.Type())

	var p DeliverPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &p))
	assert.Equal(t, msg.ID.Hex(), p.MessageID)
	assert.Equal(t, msg.PodID.Hex(), p.PodID)
}

func TestDeliverMessage(t *testing.T) {
	store := pod.NewMemoryStore()
	ctx := context.Background()
	msg := messages(1)[0]
	msg.TemplateKey = "k"
	_, err := store.InsertMessages(ctx, []models.PodMessage{msg})
	require.NoError(t, err)

	proc := NewTaskProcessor(store, nil)
	task, err := NewDeliverTask(msg, "default")
	require.NoError(t, err)

	require.NoError(t, proc.DeliverMessage(ctx, task))
	visible, err := store.ListMessages(ctx, msg.PodID, true)
	require.NoError(t, err)
	require.Len(t, visible, 1)

	// redelivery is a no-op
	require.NoError(t, proc.DeliverMessage(ctx, task))
}

func TestDeliverMessageBadPayloadSkipsRetry(t *testing.T) {
	proc := NewTaskProcessor(pod.NewMemoryStore(), nil)

	err := proc.DeliverMessage(context.Background(), asynq.NewTask(TaskDeliverMessage, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = proc.DeliverMessage(context.Background(), asynq.NewTask(TaskDeliverMessage, []byte(`{"message_id":"nope"}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
