package repository

import (
	"context"

	"content-service/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ContentRepository struct {
	Col *mongo.Collection
}

func NewContentRepository(db *mongo.Database) *ContentRepository {
	return &ContentRepository{Col: db.Collection("contents")}
}

func (r *ContentRepository) FindAll(ctx context.Context) ([]models.Content, error) {
	cur, err := r.Col.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var contents []models.Content
	for cur.Next(ctx) {
		var c models.Content
		if err := cur.Decode(&c); err != nil {
			return nil, err
		}
		contents = append(contents, c)
	}
	return contents, nil
}

func (r *ContentRepository) FindByObjectID(ctx context.Context, objectID string) (*models.Content, error) {
	var content models.Content
	err := r.Col.FindOne(ctx, bson.M{"object_id": objectID}).Decode(&content)
	if err != nil {
		return nil, err
	}
	return &content, nil
}

// Upsert stores the content entry for its scene object, replacing any
// previous binding.
func (r *ContentRepository) Upsert(ctx context.Context, content *models.Content) error {
	opts := options.Update().SetUpsert(true)
	_, err := r.Col.UpdateOne(ctx, bson.M{"object_id": content.ObjectID}, bson.M{
		"$set": bson.M{
			"content_type": content.ContentType,
			"payload":      content.Payload,
		},
		"$setOnInsert": bson.M{"_id": uuid.New().String()},
	}, opts)
	return err
}

func (r *ContentRepository) Delete(ctx context.Context, objectID string) error {
	_, err := r.Col.DeleteOne(ctx, bson.M{"object_id": objectID})
	return err
}
