package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/openedx/forum/internal/domain/moderation"
)

type mongoRepository struct {
	threads  *mongo.Collection
	comments *mongo.Collection
}

// NewMongoRepository creates the MongoDB-backed content repository.
// Documents keep their _id as the ObjectID hex string so the rest of
// the system can treat content IDs as opaque strings.
func NewMongoRepository(db *mongo.Database) Repository {
	return &mongoRepository{
		threads:  db.Collection("threads"),
		comments: db.Collection("comments"),
	}
}

func (r *mongoRepository) CreateThread(ctx context.Context, t *Thread) error {
	if t.ID == "" {
		t.ID = primitive.NewObjectID().Hex()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	if _, err := r.threads.InsertOne(ctx, t); err != nil {
		return fmt.Errorf("failed to create thread: %w", err)
	}
	return nil
}

func (r *mongoRepository) GetThread(ctx context.Context, id string) (*Thread, error) {
	var t Thread
	err := r.threads.FindOne(ctx, bson.M{"_id": id}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrThreadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}
	return &t, nil
}

func (r *mongoRepository) ListThreads(ctx context.Context, f ListFilter) ([]Thread, error) {
	filter := bson.M{}
	if f.CourseID != "" {
		filter["course_id"] = f.CourseID
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(f.Limit)).
		SetSkip(int64(f.Offset))

	cursor, err := r.threads.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	defer cursor.Close(ctx)

	threads := []Thread{}
	if err := cursor.All(ctx, &threads); err != nil {
		return nil, fmt.Errorf("failed to decode threads: %w", err)
	}
	return threads, nil
}

func (r *mongoRepository) CreateComment(ctx context.Context, c *Comment) error {
	if c.ID == "" {
		c.ID = primitive.NewObjectID().Hex()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	if _, err := r.comments.InsertOne(ctx, c); err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

func (r *mongoRepository) GetComment(ctx context.Context, id string) (*Comment, error) {
	var c Comment
	err := r.comments.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	return &c, nil
}

func (r *mongoRepository) ListComments(ctx context.Context, threadID string, limit, offset int) ([]Comment, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := r.comments.Find(ctx, bson.M{"thread_id": threadID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer cursor.Close(ctx)

	comments := []Comment{}
	if err := cursor.All(ctx, &comments); err != nil {
		return nil, fmt.Errorf("failed to decode comments: %w", err)
	}
	return comments, nil
}

func (r *mongoRepository) collectionFor(ct moderation.ContentType) (*mongo.Collection, error) {
	switch ct {
	case moderation.ContentTypeThread:
		return r.threads, nil
	case moderation.ContentTypeComment:
		return r.comments, nil
	default:
		return nil, fmt.Errorf("unknown content type: %s", ct)
	}
}

func (r *mongoRepository) FlagAsSpam(ctx context.Context, ref moderation.ContentReference, reason string) error {
	coll, err := r.collectionFor(ref.ContentType)
	if err != nil {
		return err
	}

	update := bson.M{"$set": bson.M{
		"is_spam":              true,
		"ai_moderation_reason": reason,
		"updated_at":           time.Now().UTC(),
	}}
	res, err := coll.UpdateOne(ctx, bson.M{"_id": ref.ContentID}, update)
	if err != nil {
		return fmt.Errorf("failed to flag %s as spam: %w", ref.ContentType, err)
	}
	if res.MatchedCount == 0 {
		return moderation.ErrContentNotFound
	}
	return nil
}

func (r *mongoRepository) UnflagSpam(ctx context.Context, ref moderation.ContentReference) error {
	coll, err := r.collectionFor(ref.ContentType)
	if err != nil {
		return err
	}

	update := bson.M{
		"$set":   bson.M{"is_spam": false, "updated_at": time.Now().UTC()},
		"$unset": bson.M{"ai_moderation_reason": ""},
	}
	res, err := coll.UpdateOne(ctx, bson.M{"_id": ref.ContentID}, update)
	if err != nil {
		return fmt.Errorf("failed to unflag %s: %w", ref.ContentType, err)
	}
	if res.MatchedCount == 0 {
		return moderation.ErrContentNotFound
	}
	return nil
}

func (r *mongoRepository) ReadModerationState(ctx context.Context, ref moderation.ContentReference) (*moderation.ModerationState, error) {
	coll, err := r.collectionFor(ref.ContentType)
	if err != nil {
		return nil, err
	}

	var doc struct {
		IsSpam bool    `bson:"is_spam"`
		Reason *string `bson:"ai_moderation_reason"`
	}
	opts := options.FindOne().SetProjection(bson.M{"is_spam": 1, "ai_moderation_reason": 1})
	err = coll.FindOne(ctx, bson.M{"_id": ref.ContentID}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, moderation.ErrContentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read moderation state: %w", err)
	}
	return &moderation.ModerationState{IsSpam: doc.IsSpam, Reason: doc.Reason}, nil
}
