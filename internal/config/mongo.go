package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	// Test connection
	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	err = CreateIndexes(ctx, client.Database(cfg.DBName))
	if err != nil {
		return nil, fmt.Errorf("failed to create indexes: %v", err)
	}

	return client, nil
}

// CreateIndexes sets up the unique constraints the pod store relies on.
func CreateIndexes(ctx context.Context, db *mongo.Database) error {
	// One pod per user
	podIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "start_at", Value: 1}},
		},
	}
	if _, err := db.Collection("pods").Indexes().CreateMany(ctx, podIndexes); err != nil {
		return err
	}

	messageIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "pod_id", Value: 1}, {Key: "template_key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// due-message scan: scheduled_for <= now AND sent_at IS NULL
			Keys: bson.D{{Key: "sent_at", Value: 1}, {Key: "scheduled_for", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "pod_id", Value: 1}, {Key: "scheduled_for", Value: 1}},
		},
	}
	if _, err := db.Collection("pod_messages").Indexes().CreateMany(ctx, messageIndexes); err != nil {
		return err
	}

	personaIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "niche", Value: 1}, {Key: "active", Value: 1}},
		},
	}
	if _, err := db.Collection("personas").Indexes().CreateMany(ctx, personaIndexes); err != nil {
		return err
	}

	return nil
}
