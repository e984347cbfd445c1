package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	SenderInstructor = "instructor"
	SenderPeer       = "peer"
	SenderUser       = "user"
)

// AutomatedSuffix is appended to the display name of simulated senders.
const AutomatedSuffix = " (automated)"

// PodMessage is one scheduled or delivered chat line in a pod.
type PodMessage struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PodID        primitive.ObjectID `bson:"pod_id" json:"pod_id"`
	TemplateKey  string             `bson:"template_key" json:"template_key"`
	Day          int                `bson:"day" json:"day"`
	SenderRole   string             `bson:"sender_role" json:"sender_role"`
	SenderName   string             `bson:"sender_name" json:"sender_name"`
	Automated    bool               `bson:"automated" json:"automated"`
	Body         string             `bson:"body" json:"body"`
	ScheduledFor time.Time          `bson:"scheduled_for" json:"scheduled_for"`
	SentAt       *time.Time         `bson:"sent_at" json:"sent_at,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
}

// DisplayName is the sender name shown to readers.
func (m PodMessage) DisplayName() string {
	if m.Automated {
		return m.SenderName + AutomatedSuffix
	}
	return m.SenderName
}

// Sent reports whether the message has been delivered.
func (m PodMessage) Sent() bool {
	return m.SentAt != nil
}

// ChatMessage is the read-side view of a delivered message.
type ChatMessage struct {
	ID         string    `json:"id"`
	Day        int       `json:"day"`
	SenderRole string    `json:"sender_role"`
	SenderName string    `json:"sender_name"`
	Automated  bool      `json:"automated"`
	Body       string    `json:"body"`
	SentAt     time.Time `json:"sent_at"`
}

func (m PodMessage) ToChat() ChatMessage {
	c := ChatMessage{
		ID:         m.ID.Hex(),
		Day:        m.Day,
		SenderRole: m.SenderRole,
		SenderName: m.DisplayName(),
		Automated:  m.Automated,
		Body:       m.Body,
	}
	if m.SentAt != nil {
		c.SentAt = *m.SentAt
	}
	return c
}

type PostMessageRequest struct {
	Text string `json:"text" binding:"required,min=1,max=2000"`
}
