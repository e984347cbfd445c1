// Package pod manages masterclass pods: one chat cohort per lead, seeded
// from a per-niche day script whose messages are scheduled ahead of time
// and released by the delivery poller.
package pod

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"masterclass-pods/internal/delay"
	"masterclass-pods/internal/logger"
	"masterclass-pods/internal/placeholder"
	"masterclass-pods/internal/telemetry"
	"masterclass-pods/models"
)

const day = 24 * time.Hour

type Options struct {
	InstructorName    string
	FirstNameFallback string
	DefaultNiche      string
}

type Manager struct {
	store   Store
	scripts map[string]models.NicheScript
	opts    Options
	metrics *telemetry.Metrics

	now   func() time.Time
	rndMu sync.Mutex
	rnd   *rand.Rand
}

type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithRand sets the source used for ranged delays.
func WithRand(rnd *rand.Rand) Option {
	return func(m *Manager) { m.rnd = rnd }
}

func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

func NewManager(store Store, scripts map[string]models.NicheScript, opts Options, options ...Option) *Manager {
	m := &Manager{
		store:   store,
		scripts: scripts,
		opts:    opts,
		now:     func() time.Time { return time.Now().UTC() },
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, o := range options {
		o(m)
	}
	return m
}

func (m *Manager) Store() Store {
	return m.store
}

// Script returns the script used for a niche, falling back to the default
// niche.
func (m *Manager) Script(niche string) (models.NicheScript, error) {
	if s, ok := m.scripts[niche]; ok {
		return s, nil
	}
	if s, ok := m.scripts[m.opts.DefaultNiche]; ok {
		return s, nil
	}
	return models.NicheScript{}, fmt.Errorf("%w: %s", ErrNoScript, niche)
}

// CreatePod returns the user's pod, creating it and scheduling its first
// day when none exists. created is false when the pod already existed.
func (m *Manager) CreatePod(ctx context.Context, req models.CreatePodRequest) (*models.Pod, bool, error) {
	ctx, span := telemetry.Tracer("pod").Start(ctx, "pod.create")
	defer span.End()

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, false, ErrInvalidUserID
	}
	span.SetAttributes(attribute.String("pod.user_id", userID))

	existing, err := m.store.GetPodByUser(ctx, userID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrPodNotFound) {
		return nil, false, err
	}

	niche := strings.TrimSpace(req.Niche)
	if niche == "" {
		niche = m.opts.DefaultNiche
	}
	script, err := m.Script(niche)
	if err != nil {
		return nil, false, err
	}

	now := m.now()
	p := &models.Pod{
		UserID:    userID,
		FirstName: strings.TrimSpace(req.FirstName),
		Email:     strings.TrimSpace(req.Email),
		Niche:     script.Niche,
		StartAt:   now,
		Status:    models.PodStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if usesPeer(script) {
		persona, err := m.ResolvePersona(ctx, script.Niche, userID)
		if err != nil {
			return nil, false, err
		}
		p.PersonaID = persona.ID
		p.PeerName = persona.Name
		p.PeerAuto = persona.Simulated
	}

	if err := m.store.CreatePod(ctx, p); err != nil {
		if errors.Is(err, ErrPodExists) {
			// lost a race with a concurrent request for the same user
			existing, getErr := m.store.GetPodByUser(ctx, userID)
			if getErr != nil {
				return nil, false, getErr
			}
			return existing, false, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "create pod failed")
		return nil, false, fmt.Errorf("create pod: %w", err)
	}
	m.metrics.RecordPodCreated(ctx, p.Niche)

	if _, err := m.ScheduleDay(ctx, p, script.FirstDay()); err != nil {
		return p, true, fmt.Errorf("schedule first day: %w", err)
	}
	p.CurrentDay = script.FirstDay()

	logger.Info("Pod created", "pod_id", p.ID.Hex(), "user_id", userID, "niche", p.Niche, "peer", p.PeerName)
	return p, true, nil
}

func usesPeer(s models.NicheScript) bool {
	for _, d := range s.Days {
		for _, msg := range d.Messages {
			if msg.Sender == models.SenderPeer {
				return true
			}
		}
	}
	return false
}

// ScheduleDay inserts the messages of one script day for a pod. Messages
// already scheduled are left alone, so calling it twice is harmless.
func (m *Manager) ScheduleDay(ctx context.Context, p *models.Pod, dayNum int) (int, error) {
	script, err := m.Script(p.Niche)
	if err != nil {
		return 0, err
	}
	sd, ok := script.Day(dayNum)
	if !ok {
		return 0, fmt.Errorf("%w: %s has no day %d", ErrNoScript, script.Niche, dayNum)
	}

	msgs, err := m.buildDay(p, sd, m.now())
	if err != nil {
		return 0, err
	}

	inserted, err := m.store.InsertMessages(ctx, msgs)
	if err != nil {
		return inserted, fmt.Errorf("insert day %d messages: %w", dayNum, err)
	}
	if err := m.store.UpdatePodDay(ctx, p.ID, dayNum); err != nil {
		return inserted, err
	}
	m.metrics.RecordScheduled(ctx, p.Niche, dayNum, inserted)

	logger.Debug("Scheduled pod day", "pod_id", p.ID.Hex(), "day", dayNum, "inserted", inserted)
	return inserted, nil
}

func (m *Manager) buildDay(p *models.Pod, sd models.ScriptDay, now time.Time) ([]models.PodMessage, error) {
	vars := placeholder.Vars{
		FirstName:         p.FirstName,
		PeerName:          p.PeerName,
		InstructorName:    m.opts.InstructorName,
		Niche:             p.Niche,
		FirstNameFallback: m.opts.FirstNameFallback,
	}

	msgs := make([]models.PodMessage, 0, len(sd.Messages))
	for _, sm := range sd.Messages {
		spec, err := delay.Parse(sm.Delay)
		if err != nil {
			return nil, fmt.Errorf("message %s: %w", sm.Key, err)
		}
		at := m.resolve(spec, p.StartAt, now)

		msg := models.PodMessage{
			PodID:        p.ID,
			TemplateKey:  sm.Key,
			Day:          sd.Day,
			SenderRole:   sm.Sender,
			Body:         placeholder.Render(sm.Text, vars),
			ScheduledFor: at,
			CreatedAt:    now,
		}
		switch sm.Sender {
		case models.SenderPeer:
			msg.SenderName = p.PeerName
			msg.Automated = p.PeerAuto
		default:
			msg.SenderName = m.opts.InstructorName
		}
		// backdated history is visible as soon as the pod opens
		if spec.Retroactive() {
			sentAt := at
			msg.SentAt = &sentAt
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (m *Manager) resolve(spec delay.Spec, podStart, now time.Time) time.Time {
	if !spec.Randomized() {
		return spec.Resolve(podStart, now, nil)
	}
	m.rndMu.Lock()
	defer m.rndMu.Unlock()
	return spec.Resolve(podStart, now, m.rnd)
}

// DayStart is when a script day opens for a pod: the first day opens at the
// pod start and each later day one day after the previous one.
func DayStart(p *models.Pod, script models.NicheScript, dayNum int) time.Time {
	return p.StartAt.Add(time.Duration(dayNum-script.FirstDay()) * day)
}

// AdvanceDays schedules every day that has opened for each active pod and
// completes pods whose last day is scheduled. Failures on one pod do not
// stop the others.
func (m *Manager) AdvanceDays(ctx context.Context) (int, error) {
	ctx, span := telemetry.Tracer("pod").Start(ctx, "pod.advance_days")
	defer span.End()

	pods, _, err := m.store.ListPods(ctx, PodFilter{Status: models.PodStatusActive})
	if err != nil {
		return 0, fmt.Errorf("list active pods: %w", err)
	}

	now := m.now()
	scheduled := 0
	var errs []error
	for i := range pods {
		n, err := m.advancePod(ctx, &pods[i], now)
		scheduled += n
		if err != nil {
			logger.Error("Advance pod failed", "pod_id", pods[i].ID.Hex(), "error", err)
			errs = append(errs, fmt.Errorf("pod %s: %w", pods[i].ID.Hex(), err))
		}
	}
	span.SetAttributes(attribute.Int("pods.active", len(pods)), attribute.Int("days.scheduled", scheduled))
	return scheduled, errors.Join(errs...)
}

func (m *Manager) advancePod(ctx context.Context, p *models.Pod, now time.Time) (int, error) {
	script, err := m.Script(p.Niche)
	if err != nil {
		return 0, err
	}

	scheduled := 0
	for _, sd := range script.Days {
		if sd.Day <= p.CurrentDay || DayStart(p, script, sd.Day).After(now) {
			continue
		}
		if _, err := m.ScheduleDay(ctx, p, sd.Day); err != nil {
			return scheduled, err
		}
		p.CurrentDay = sd.Day
		scheduled++
	}

	if p.CurrentDay >= script.LastDay() {
		if err := m.store.SetPodStatus(ctx, p.ID, models.PodStatusCompleted); err != nil {
			return scheduled, err
		}
		logger.Info("Pod completed", "pod_id", p.ID.Hex())
	}
	return scheduled, nil
}

// PostUserMessage stores a message written by the lead.
func (m *Manager) PostUserMessage(ctx context.Context, podID primitive.ObjectID, text string) (*models.PodMessage, error) {
	p, err := m.store.GetPod(ctx, podID)
	if err != nil {
		return nil, err
	}
	name := p.FirstName
	if name == "" {
		name = m.opts.FirstNameFallback
	}
	return m.postNow(ctx, p, models.SenderUser, name, "user-", text)
}

// PostInstructorReply stores a reply sent by the instructor from the inbox.
func (m *Manager) PostInstructorReply(ctx context.Context, podID primitive.ObjectID, text string) (*models.PodMessage, error) {
	p, err := m.store.GetPod(ctx, podID)
	if err != nil {
		return nil, err
	}
	return m.postNow(ctx, p, models.SenderInstructor, m.opts.InstructorName, "reply-", text)
}

func (m *Manager) postNow(ctx context.Context, p *models.Pod, role, name, keyPrefix, text string) (*models.PodMessage, error) {
	if p.Status == models.PodStatusCancelled {
		return nil, ErrPodInactive
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	now := m.now()
	id := primitive.NewObjectID()
	msg := models.PodMessage{
		ID:           id,
		PodID:        p.ID,
		TemplateKey:  keyPrefix + id.Hex(),
		Day:          p.CurrentDay,
		SenderRole:   role,
		SenderName:   name,
		Body:         text,
		ScheduledFor: now,
		SentAt:       &now,
		CreatedAt:    now,
	}
	if _, err := m.store.InsertMessages(ctx, []models.PodMessage{msg}); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Conversation returns the delivered messages of a pod in send order.
func (m *Manager) Conversation(ctx context.Context, podID primitive.ObjectID) ([]models.ChatMessage, error) {
	if _, err := m.store.GetPod(ctx, podID); err != nil {
		return nil, err
	}
	msgs, err := m.store.ListMessages(ctx, podID, true)
	if err != nil {
		return nil, err
	}
	out := make([]models.ChatMessage, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, msg.ToChat())
	}
	return out, nil
}

// Timeline returns every message of a pod, pending ones included.
func (m *Manager) Timeline(ctx context.Context, podID primitive.ObjectID) ([]models.PodMessage, error) {
	if _, err := m.store.GetPod(ctx, podID); err != nil {
		return nil, err
	}
	return m.store.ListMessages(ctx, podID, false)
}

// CancelPod stops a pod and drops its unsent messages.
func (m *Manager) CancelPod(ctx context.Context, podID primitive.ObjectID) (int64, error) {
	if _, err := m.store.GetPod(ctx, podID); err != nil {
		return 0, err
	}
	if err := m.store.SetPodStatus(ctx, podID, models.PodStatusCancelled); err != nil {
		return 0, err
	}
	dropped, err := m.store.DeleteUnsent(ctx, podID)
	if err != nil {
		return 0, err
	}
	logger.Info("Pod cancelled", "pod_id", podID.Hex(), "dropped", dropped)
	return dropped, nil
}
