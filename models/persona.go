package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Persona is a pod participant other than the lead and the instructor.
// Simulated personas are automated and every message they send is marked.
type Persona struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Niche     string             `bson:"niche" json:"niche"`
	Name      string             `bson:"name" json:"name"`
	AvatarURL string             `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`
	Simulated bool               `bson:"simulated" json:"simulated"`
	Active    bool               `bson:"active" json:"active"`
}
