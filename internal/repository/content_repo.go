package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/quillforge/quillforge-api/internal/models"
)

// blogCollection is the MongoDB collection holding generated blog posts.
const blogCollection = "blogs"

// MongoContentRepository implements ContentRepository over MongoDB.
type MongoContentRepository struct {
	db *mongo.Database
}

// NewMongoContentRepository creates a new Mongo content repository.
func NewMongoContentRepository(db *mongo.Database) *MongoContentRepository {
	return &MongoContentRepository{db: db}
}

// FindActiveContent returns blog documents that are active or predate the
// is_active flag, and that carry both user_id and project_id. Documents
// missing either id are unbillable and unattributable, so they are
// filtered at the query.
func (r *MongoContentRepository) FindActiveContent(ctx context.Context) ([]models.ContentDoc, error) {
	filter := bson.M{
		"$and": bson.A{
			bson.M{"$or": bson.A{
				bson.M{"is_active": true},
				bson.M{"is_active": bson.M{"$exists": false}},
			}},
			bson.M{"user_id": bson.M{"$exists": true}},
			bson.M{"project_id": bson.M{"$exists": true}},
		},
	}

	cursor, err := r.db.Collection(blogCollection).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query content store: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []models.ContentDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode content documents: %w", err)
	}
	return docs, nil
}
