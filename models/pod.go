package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	PodStatusActive    = "active"
	PodStatusCompleted = "completed"
	PodStatusCancelled = "cancelled"
)

// Pod is one lead's masterclass cohort chat. There is at most one per user.
type Pod struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     string             `bson:"user_id" json:"user_id"`
	FirstName  string             `bson:"first_name" json:"first_name"`
	Email      string             `bson:"email,omitempty" json:"email,omitempty"`
	Niche      string             `bson:"niche" json:"niche"`
	PersonaID  primitive.ObjectID `bson:"persona_id" json:"persona_id"`
	PeerName   string             `bson:"peer_name" json:"peer_name"`
	PeerAuto   bool               `bson:"peer_automated" json:"peer_automated"`
	StartAt    time.Time          `bson:"start_at" json:"start_at"`
	CurrentDay int                `bson:"current_day" json:"current_day"`
	Status     string             `bson:"status" json:"status"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at" json:"updated_at"`
}

type CreatePodRequest struct {
	UserID    string `json:"user_id" binding:"required,max=128"`
	FirstName string `json:"first_name" binding:"max=80"`
	Email     string `json:"email" binding:"omitempty,email"`
	Niche     string `json:"niche" binding:"max=64"`
}

type CreatePodResponse struct {
	Pod     Pod  `json:"pod"`
	Created bool `json:"created"`
}
