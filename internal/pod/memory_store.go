package pod

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"masterclass-pods/models"
)

// MemoryStore is an in-process Store used by tests and local runs without
// MongoDB.
type MemoryStore struct {
	mu       sync.RWMutex
	pods     map[primitive.ObjectID]*models.Pod
	messages map[primitive.ObjectID]*models.PodMessage
	personas map[primitive.ObjectID]*models.Persona
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pods:     make(map[primitive.ObjectID]*models.Pod),
		messages: make(map[primitive.ObjectID]*models.PodMessage),
		personas: make(map[primitive.ObjectID]*models.Persona),
	}
}

func (s *MemoryStore) CreatePod(_ context.Context, p *models.Pod) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.pods {
		if existing.UserID == p.UserID {
			return ErrPodExists
		}
	}
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	cp := *p
	s.pods[p.ID] = &cp
	return nil
}

func (s *MemoryStore) GetPod(_ context.Context, id primitive.ObjectID) (*models.Pod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pods[id]
	if !ok {
		return nil, ErrPodNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) GetPodByUser(_ context.Context, userID string) (*models.Pod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.pods {
		if p.UserID == userID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrPodNotFound
}

func (s *MemoryStore) ListPods(_ context.Context, f PodFilter) ([]models.Pod, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Pod
	for _, p := range s.pods {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.Niche != "" && p.Niche != f.Niche {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	total := int64(len(out))
	if f.Skip > 0 {
		if f.Skip >= total {
			return nil, total, nil
		}
		out = out[f.Skip:]
	}
	if f.Limit > 0 && int64(len(out)) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

func (s *MemoryStore) UpdatePodDay(_ context.Context, id primitive.ObjectID, day int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pods[id]
	if !ok {
		return ErrPodNotFound
	}
	if day > p.CurrentDay {
		p.CurrentDay = day
		p.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (s *MemoryStore) SetPodStatus(_ context.Context, id primitive.ObjectID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pods[id]
	if !ok {
		return ErrPodNotFound
	}
	p.Status = status
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) InsertMessages(_ context.Context, msgs []models.PodMessage) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, m := range msgs {
		if s.hasKey(m.PodID, m.TemplateKey) {
			continue
		}
		if m.ID.IsZero() {
			m.ID = primitive.NewObjectID()
		}
		cp := m
		s.messages[m.ID] = &cp
		inserted++
	}
	return inserted, nil
}

func (s *MemoryStore) hasKey(podID primitive.ObjectID, key string) bool {
	for _, m := range s.messages {
		if m.PodID == podID && m.TemplateKey == key {
			return true
		}
	}
	return false
}

func (s *MemoryStore) ListMessages(_ context.Context, podID primitive.ObjectID, visibleOnly bool) ([]models.PodMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.PodMessage
	for _, m := range s.messages {
		if m.PodID != podID {
			continue
		}
		if visibleOnly && m.SentAt == nil {
			continue
		}
		out = append(out, *m)
	}
	sortMessages(out)
	return out, nil
}

func (s *MemoryStore) DueMessages(_ context.Context, now time.Time, limit int) ([]models.PodMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.PodMessage
	for _, m := range s.messages {
		if m.SentAt == nil && !m.ScheduledFor.After(now) {
			out = append(out, *m)
		}
	}
	sortMessages(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) MarkSent(_ context.Context, ids []primitive.ObjectID, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, id := range ids {
		m, ok := s.messages[id]
		if !ok || m.SentAt != nil {
			continue
		}
		sentAt := at
		m.SentAt = &sentAt
		n++
	}
	return n, nil
}

func (s *MemoryStore) DeleteUnsent(_ context.Context, podID primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, m := range s.messages {
		if m.PodID == podID && m.SentAt == nil {
			delete(s.messages, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ListPersonas(_ context.Context, niche string) ([]models.Persona, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Persona
	for _, p := range s.personas {
		if p.Niche == niche && p.Active {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() < out[j].ID.Hex() })
	return out, nil
}

func (s *MemoryStore) UpsertPersona(_ context.Context, p *models.Persona) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	cp := *p
	s.personas[p.ID] = &cp
	return nil
}

func sortMessages(msgs []models.PodMessage) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].ScheduledFor.Equal(msgs[j].ScheduledFor) {
			return msgs[i].ScheduledFor.Before(msgs[j].ScheduledFor)
		}
		return msgs[i].ID.Hex() < msgs[j].ID.Hex()
	})
}
