package pod

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"masterclass-pods/models"
)

// MongoStore keeps pods in "pods", messages in "pod_messages" and personas
// in "personas". Unique indexes come from config.CreateIndexes.
type MongoStore struct {
	pods     *mongo.Collection
	messages *mongo.Collection
	personas *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		pods:     db.Collection("pods"),
		messages: db.Collection("pod_messages"),
		personas: db.Collection("personas"),
	}
}

func (s *MongoStore) CreatePod(ctx context.Context, p *models.Pod) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	_, err := s.pods.InsertOne(ctx, p)
	if mongo.IsDuplicateKeyError(err) {
		return ErrPodExists
	}
	return err
}

func (s *MongoStore) GetPod(ctx context.Context, id primitive.ObjectID) (*models.Pod, error) {
	return s.findPod(ctx, bson.M{"_id": id})
}

func (s *MongoStore) GetPodByUser(ctx context.Context, userID string) (*models.Pod, error) {
	return s.findPod(ctx, bson.M{"user_id": userID})
}

func (s *MongoStore) findPod(ctx context.Context, filter bson.M) (*models.Pod, error) {
	var p models.Pod
	err := s.pods.FindOne(ctx, filter).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrPodNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *MongoStore) ListPods(ctx context.Context, f PodFilter) ([]models.Pod, int64, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Niche != "" {
		filter["niche"] = f.Niche
	}

	total, err := s.pods.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if f.Skip > 0 {
		opts.SetSkip(f.Skip)
	}
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}

	cursor, err := s.pods.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var pods []models.Pod
	if err := cursor.All(ctx, &pods); err != nil {
		return nil, 0, err
	}
	return pods, total, nil
}

func (s *MongoStore) UpdatePodDay(ctx context.Context, id primitive.ObjectID, day int) error {
	// only ever moves forward
	res, err := s.pods.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$max": bson.M{"current_day": day},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrPodNotFound
	}
	return nil
}

func (s *MongoStore) SetPodStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	res, err := s.pods.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrPodNotFound
	}
	return nil
}

func (s *MongoStore) InsertMessages(ctx context.Context, msgs []models.PodMessage) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}

	docs := make([]interface{}, len(msgs))
	for i := range msgs {
		if msgs[i].ID.IsZero() {
			msgs[i].ID = primitive.NewObjectID()
		}
		docs[i] = msgs[i]
	}

	res, err := s.messages.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	inserted := 0
	if res != nil {
		inserted = len(res.InsertedIDs)
	}
	if err != nil && !onlyDuplicateKeys(err) {
		return inserted, err
	}
	return inserted, nil
}

// onlyDuplicateKeys reports whether every write error is an 11000 duplicate,
// which is how a re-scheduled day shows up.
func onlyDuplicateKeys(err error) bool {
	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) {
		return false
	}
	if bwe.WriteConcernError != nil {
		return false
	}
	for _, we := range bwe.WriteErrors {
		if we.Code != 11000 {
			return false
		}
	}
	return true
}

func (s *MongoStore) ListMessages(ctx context.Context, podID primitive.ObjectID, visibleOnly bool) ([]models.PodMessage, error) {
	filter := bson.M{"pod_id": podID}
	if visibleOnly {
		filter["sent_at"] = bson.M{"$ne": nil}
	}
	return s.findMessages(ctx, filter, options.Find().SetSort(bson.D{
		{Key: "scheduled_for", Value: 1},
		{Key: "_id", Value: 1},
	}))
}

func (s *MongoStore) DueMessages(ctx context.Context, now time.Time, limit int) ([]models.PodMessage, error) {
	filter := bson.M{
		"sent_at":       nil,
		"scheduled_for": bson.M{"$lte": now},
	}
	opts := options.Find().SetSort(bson.D{
		{Key: "scheduled_for", Value: 1},
		{Key: "_id", Value: 1},
	})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return s.findMessages(ctx, filter, opts)
}

func (s *MongoStore) findMessages(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.PodMessage, error) {
	cursor, err := s.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var msgs []models.PodMessage
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (s *MongoStore) MarkSent(ctx context.Context, ids []primitive.ObjectID, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.messages.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "sent_at": nil},
		bson.M{"$set": bson.M{"sent_at": at}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (s *MongoStore) DeleteUnsent(ctx context.Context, podID primitive.ObjectID) (int64, error) {
	res, err := s.messages.DeleteMany(ctx, bson.M{"pod_id": podID, "sent_at": nil})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) ListPersonas(ctx context.Context, niche string) ([]models.Persona, error) {
	cursor, err := s.personas.Find(ctx,
		bson.M{"niche": niche, "active": true},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []models.Persona
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) UpsertPersona(ctx context.Context, p *models.Persona) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	_, err := s.personas.ReplaceOne(ctx, bson.M{"_id": p.ID}, p, options.Replace().SetUpsert(true))
	return err
}
