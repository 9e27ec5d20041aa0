package repository

import (
	"context"

	"content-service/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type RecordRepository struct {
	Col *mongo.Collection
}

func NewRecordRepository(db *mongo.Database) *RecordRepository {
	return &RecordRepository{Col: db.Collection("interaction_records")}
}

// Insert stores a sealed interaction record. Satisfies the analytics
// record store.
func (r *RecordRepository) Insert(ctx context.Context, rec *models.InteractionRecord) error {
	_, err := r.Col.InsertOne(ctx, rec)
	return err
}

func (r *RecordRepository) FindByObjectID(ctx context.Context, objectID string) ([]models.InteractionRecord, error) {
	opts := options.Find().SetSort(bson.M{"started_at": -1})
	cur, err := r.Col.Find(ctx, bson.M{"object_id": objectID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var records []models.InteractionRecord
	for cur.Next(ctx) {
		var rec models.InteractionRecord
		if err := cur.Decode(&rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *RecordRepository) FindRecent(ctx context.Context, limit int64) ([]models.InteractionRecord, error) {
	opts := options.Find().SetSort(bson.M{"started_at": -1}).SetLimit(limit)
	cur, err := r.Col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var records []models.InteractionRecord
	for cur.Next(ctx) {
		var rec models.InteractionRecord
		if err := cur.Decode(&rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
