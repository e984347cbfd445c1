package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestPodMessageDisplayName(t *testing.T) {
	peer := PodMessage{SenderName: "Maya", Automated: true}
	assert.Equal(t, "Maya (automated)", peer.DisplayName())

	instructor := PodMessage{SenderName: "Sarah"}
	assert.Equal(t, "Sarah", instructor.DisplayName())
}

func TestToChat(t *testing.T) {
	sent := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	msg := PodMessage{ID: primitive.NewObjectID(), SenderName: "Maya", Automated: true, Body: "hi", SentAt: &sent}

	c := msg.ToChat()
	assert.Equal(t, "Maya (automated)", c.SenderName)
	assert.True(t, c.Automated)
	assert.Equal(t, sent, c.SentAt)
	assert.True(t, msg.Sent())
}

func TestScriptDays(t *testing.T) {
	s := NicheScript{Days: []ScriptDay{{Day: 3}, {Day: 1}, {Day: 2}}}
	assert.Equal(t, 1, s.FirstDay())
	assert.Equal(t, 3, s.LastDay())

	_, ok := s.Day(2)
	assert.True(t, ok)
	_, ok = s.Day(4)
	assert.False(t, ok)
}

func chain(n int) []AuditEvent {
	events := make([]AuditEvent, n)
	prev := ""
	for i := range events {
		events[i] = AuditEvent{
			ID:           primitive.NewObjectID().Hex(),
			Timestamp:    time.Date(2026, 5, 4, 9, i, 0, 0, time.UTC),
			ActorID:      "admin",
			Action:       "UPDATE",
			Resource:     "pod",
			Success:      true,
			Status:       200,
			PreviousHash: prev,
		}
		events[i].CurrentHash = events[i].ComputeHash()
		prev = events[i].CurrentHash
	}
	return events
}

func TestVerifyEvents(t *testing.T) {
	events := chain(4)
	assert.Empty(t, VerifyEvents(events))

	tampered := chain(4)
	tampered[2].ResourceID = "other"
	assert.Equal(t, tampered[2].ID, VerifyEvents(tampered))

	removed := chain(4)
	removed = append(removed[:1], removed[2:]...)
	assert.Equal(t, removed[1].ID, VerifyEvents(removed))
}
