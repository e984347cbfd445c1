package models

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"masterclass-pods/internal/logger"
)

// AuditEvent is an immutable record of an admin action. Events are hash
// chained per actor so edits or deletions in the log can be detected.
type AuditEvent struct {
	ID           string                 `bson:"_id,omitempty" json:"id"`
	Timestamp    time.Time              `bson:"timestamp" json:"timestamp"`
	ActorID      string                 `bson:"actor_id" json:"actor_id"`
	Action       string                 `bson:"action" json:"action"`     // CREATE, READ, UPDATE, DELETE
	Resource     string                 `bson:"resource" json:"resource"` // pod, delivery, sequence
	ResourceID   string                 `bson:"resource_id" json:"resource_id"`
	IPAddress    string                 `bson:"ip_address" json:"ip_address"`
	RequestID    string                 `bson:"request_id" json:"request_id"`
	Success      bool                   `bson:"success" json:"success"`
	Status       int                    `bson:"status" json:"status"`
	Changes      map[string]interface{} `bson:"changes,omitempty" json:"changes,omitempty"`
	PreviousHash string                 `bson:"previous_hash" json:"previous_hash"`
	CurrentHash  string                 `bson:"current_hash" json:"current_hash"`
}

// ComputeHash computes the hash of this audit event
func (e *AuditEvent) ComputeHash() string {
	data := fmt.Sprintf("%s|%s|%s|%s|%s|%t|%d|%s",
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.ActorID,
		e.Action,
		e.Resource,
		e.ResourceID,
		e.Success,
		e.Status,
		e.PreviousHash,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// VerifyEvents checks a chain of events in timestamp order. It returns the
// id of the first broken event, or "" when the chain is intact.
func VerifyEvents(events []AuditEvent) string {
	var previousHash string
	for i := range events {
		e := &events[i]
		if i > 0 && e.PreviousHash != previousHash {
			return e.ID
		}
		if e.CurrentHash != e.ComputeHash() {
			return e.ID
		}
		previousHash = e.CurrentHash
	}
	return ""
}

// AuditLogger handles immutable audit logging
type AuditLogger struct {
	col        *mongo.Collection
	lastHashMu sync.Mutex
	lastHashes map[string]string // actorID -> last hash
}

func NewAuditLogger(ctx context.Context, db *mongo.Database) (*AuditLogger, error) {
	col := db.Collection("audit_logs")

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "actor_id", Value: 1}, {Key: "timestamp", Value: 1}}},
		{Keys: bson.D{{Key: "resource", Value: 1}, {Key: "resource_id", Value: 1}}},
		{Keys: bson.D{{Key: "request_id", Value: 1}}},
	}
	if _, err := col.Indexes().CreateMany(ctx, indexes); err != nil {
		return nil, fmt.Errorf("create audit indexes: %w", err)
	}

	return &AuditLogger{
		col:        col,
		lastHashes: make(map[string]string),
	}, nil
}

// Log chains and stores an event.
func (al *AuditLogger) Log(ctx context.Context, event *AuditEvent) error {
	al.lastHashMu.Lock()
	defer al.lastHashMu.Unlock()

	prev, ok := al.lastHashes[event.ActorID]
	if !ok {
		var err error
		if prev, err = al.loadLastHash(ctx, event.ActorID); err != nil {
			return err
		}
	}

	event.PreviousHash = prev
	// mongo stores milliseconds; hash what will be read back
	event.Timestamp = time.Now().UTC().Truncate(time.Millisecond)
	event.ID = fmt.Sprintf("%d_%s", event.Timestamp.UnixNano(), event.ActorID)
	event.CurrentHash = event.ComputeHash()

	if _, err := al.col.InsertOne(ctx, event); err != nil {
		logger.Error("Failed to log audit event", "error", err)
		return err
	}
	al.lastHashes[event.ActorID] = event.CurrentHash

	logger.Debug("Audit event logged", "action", event.Action, "resource", event.Resource, "resource_id", event.ResourceID)
	return nil
}

// LogAsync logs an audit event without blocking the caller.
func (al *AuditLogger) LogAsync(event *AuditEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := al.Log(ctx, event); err != nil {
			logger.Error("Async audit logging failed", "error", err)
		}
	}()
}

func (al *AuditLogger) loadLastHash(ctx context.Context, actorID string) (string, error) {
	var last AuditEvent
	err := al.col.FindOne(ctx,
		bson.M{"actor_id": actorID},
		options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}}),
	).Decode(&last)
	if err == mongo.ErrNoDocuments {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return last.CurrentHash, nil
}

// VerifyChain verifies the integrity of the audit chain for an actor.
func (al *AuditLogger) VerifyChain(ctx context.Context, actorID string) (bool, int, error) {
	cursor, err := al.col.Find(ctx,
		bson.M{"actor_id": actorID},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}),
	)
	if err != nil {
		return false, 0, err
	}
	defer cursor.Close(ctx)

	var events []AuditEvent
	if err := cursor.All(ctx, &events); err != nil {
		return false, 0, err
	}

	if broken := VerifyEvents(events); broken != "" {
		logger.Warn("Audit chain broken", "actor_id", actorID, "event_id", broken)
		return false, len(events), nil
	}
	return true, len(events), nil
}

// QueryAuditLogs queries audit logs with filters
func (al *AuditLogger) QueryAuditLogs(ctx context.Context, filter bson.M, page, pageSize int) ([]AuditEvent, int64, error) {
	total, err := al.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	skip := (page - 1) * pageSize
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(pageSize))

	cursor, err := al.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var events []AuditEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, 0, err
	}

	return events, total, nil
}
