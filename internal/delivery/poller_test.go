package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"masterclass-pods/internal/pod"
	"masterclass-pods/models"
)

var tickAt = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, store *pod.MemoryStore, offsets ...time.Duration) primitive.ObjectID {
	t.Helper()
	podID := primitive.NewObjectID()
	var msgs []models.PodMessage
	for i, off := range offsets {
		msgs = append(msgs, models.PodMessage{
			PodID:        podID,
			TemplateKey:  string(rune('a' + i)),
			ScheduledFor: tickAt.Add(off),
		})
	}
	_, err := store.InsertMessages(context.Background(), msgs)
	require.NoError(t, err)
	return podID
}

func TestPollerTickDirect(t *testing.T) {
	store := pod.NewMemoryStore()
	podID := seed(t, store, -time.Hour, 0, time.Minute)

	poller := NewPoller(store, NewDirectDispatcher(store, nil), 10, nil)
	poller.SetClock(func() time.Time { return tickAt })

	res, err := poller.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Due: 2, Dispatched: 2}, res)

	visible, err := store.ListMessages(context.Background(), podID, true)
	require.NoError(t, err)
	assert.Len(t, visible, 2)

	// nothing left until the last message comes due
	res, err = poller.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)

	poller.SetClock(func() time.Time { return tickAt.Add(time.Minute) })
	res, err = poller.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Dispatched)
}

func TestPollerRespectsBatchSize(t *testing.T) {
	store := pod.NewMemoryStore()
	seed(t, store, -3*time.Minute, -2*time.Minute, -time.Minute)

	poller := NewPoller(store, NewDirectDispatcher(store, nil), 2, nil)
	poller.SetClock(func() time.Time { return tickAt })

	res, err := poller.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Due)

	res, err = poller.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Due)
}

type failingDispatcher struct{ accepted int }

func (f failingDispatcher) Mode() string { return "failing" }
func (f failingDispatcher) Dispatch(context.Context, []models.PodMessage) (int, error) {
	return f.accepted, errors.New("queue down")
}

func TestPollerReportsPartialDispatch(t *testing.T) {
	store := pod.NewMemoryStore()
	seed(t, store, -time.Minute, 0)

	poller := NewPoller(store, failingDispatcher{accepted: 1}, 10, nil)
	poller.SetClock(func() time.Time { return tickAt })

	res, err := poller.Tick(context.Background())
	require.Error(t, err)
	assert.Equal(t, Result{Due: 2, Dispatched: 1}, res)
}

func TestSchedulerRegistersJobs(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	store := pod.NewMemoryStore()
	poller := NewPoller(store, NewDirectDispatcher(store, nil), 10, nil)
	advance := func(context.Context) (int, error) { return 0, nil }

	require.NoError(t, RegisterDefaults(s, poller, 30*time.Second, "*/10 * * * *", advance))
	assert.Len(t, s.GetJobs(), 2)

	require.NoError(t, s.RemoveJob(TagAdvanceDays))
	assert.Len(t, s.GetJobs(), 1)
}

func TestSchedulerRejectsBadCron(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	err := s.ScheduleCron("bad", "not a cron", func(context.Context) error { return nil })
	assert.Error(t, err)
}
