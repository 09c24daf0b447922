package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/open-sun/software/internal/apperr"
	"github.com/open-sun/software/internal/models"
)

// MongoStore keeps AI interaction history and video job snapshots.
type MongoStore struct {
	analyses *mongo.Collection
	jobs     *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		analyses: db.Collection("analyses"),
		jobs:     db.Collection("video_jobs"),
	}
}

func (s *MongoStore) InsertAnalysis(ctx context.Context, a *models.Analysis) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	if _, err := s.analyses.InsertOne(ctx, a); err != nil {
		return fmt.Errorf("mongo insert analysis: %w", err)
	}
	return nil
}

// ListAnalyses returns the newest records first, optionally of one kind.
func (s *MongoStore) ListAnalyses(ctx context.Context, kind string, limit int64) ([]models.Analysis, error) {
	filter := bson.M{}
	if kind != "" {
		filter["kind"] = kind
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cur, err := s.analyses.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find analyses: %w", err)
	}
	defer cur.Close(ctx)

	var out []models.Analysis
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("mongo decode analyses: %w", err)
	}
	return out, nil
}

// SaveJob upserts a video job snapshot by id.
func (s *MongoStore) SaveJob(ctx context.Context, job models.VideoJob) error {
	_, err := s.jobs.ReplaceOne(ctx, bson.M{"_id": job.ID}, job, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo save job: %w", err)
	}
	return nil
}

func (s *MongoStore) GetJob(ctx context.Context, id string) (*models.VideoJob, error) {
	var job models.VideoJob
	if err := s.jobs.FindOne(ctx, bson.M{"_id": id}).Decode(&job); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.New(apperr.NotFound, "video job not found")
		}
		return nil, fmt.Errorf("mongo get job: %w", err)
	}
	return &job, nil
}
