package pod

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"masterclass-pods/models"
)

var (
	ErrPodNotFound   = errors.New("pod not found")
	ErrPodExists     = errors.New("pod already exists for user")
	ErrNoScript      = errors.New("no script for niche")
	ErrNoPersona     = errors.New("no active persona for niche")
	ErrPodInactive   = errors.New("pod is not active")
	ErrEmptyMessage  = errors.New("message text is empty")
	ErrInvalidUserID = errors.New("user id is required")
)

type PodFilter struct {
	Status string
	Niche  string
	Skip   int64
	Limit  int64
}

// Store persists pods, their messages and the persona roster.
type Store interface {
	CreatePod(ctx context.Context, p *models.Pod) error
	GetPod(ctx context.Context, id primitive.ObjectID) (*models.Pod, error)
	GetPodByUser(ctx context.Context, userID string) (*models.Pod, error)
	ListPods(ctx context.Context, f PodFilter) ([]models.Pod, int64, error)
	UpdatePodDay(ctx context.Context, id primitive.ObjectID, day int) error
	SetPodStatus(ctx context.Context, id primitive.ObjectID, status string) error

	// InsertMessages skips rows whose (pod_id, template_key) already exists
	// and returns how many were inserted.
	InsertMessages(ctx context.Context, msgs []models.PodMessage) (int, error)
	ListMessages(ctx context.Context, podID primitive.ObjectID, visibleOnly bool) ([]models.PodMessage, error)
	// DueMessages returns unsent messages with scheduled_for <= now, oldest first.
	DueMessages(ctx context.Context, now time.Time, limit int) ([]models.PodMessage, error)
	// MarkSent sets sent_at on the given messages that are still unsent.
	MarkSent(ctx context.Context, ids []primitive.ObjectID, at time.Time) (int64, error)
	DeleteUnsent(ctx context.Context, podID primitive.ObjectID) (int64, error)

	ListPersonas(ctx context.Context, niche string) ([]models.Persona, error)
	UpsertPersona(ctx context.Context, p *models.Persona) error
}
