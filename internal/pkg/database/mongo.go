package database

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// NewMongo connects to MongoDB and returns the named database.
// Used when the document content backend is selected.
func NewMongo(mongoURL, dbName string) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURL))
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, err
	}

	db := client.Database(dbName)

	if err := ensureMongoIndexes(ctx, db); err != nil {
		return nil, err
	}

	log.Info().Str("database", dbName).Msg("Connected to MongoDB")
	return db, nil
}

// CloseMongo disconnects the MongoDB client
func CloseMongo(db *mongo.Database) {
	if db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.Client().Disconnect(ctx); err != nil {
		log.Error().Err(err).Msg("Error closing MongoDB connection")
	} else {
		log.Info().Msg("MongoDB connection closed")
	}
}

func ensureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	// threads: course listing
	if _, err := db.Collection("threads").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "course_id", Value: 1}, {Key: "created_at", Value: -1}},
		Options: options.Index().SetName("idx_course_created"),
	}); err != nil {
		return err
	}

	// comments: lookup by thread
	if _, err := db.Collection("comments").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "thread_id", Value: 1}, {Key: "created_at", Value: 1}},
		Options: options.Index().SetName("idx_thread_created"),
	}); err != nil {
		return err
	}

	return nil
}
