package chat

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Aggregator executes a validated Plan against the log store and returns the
// result set as produced by the store, with no reshaping.
type Aggregator interface {
	Aggregate(ctx context.Context, plan Plan) ([]map[string]interface{}, error)
}

// MongoExecutor runs plans through a MongoDB collection's aggregation
// capability. Store-level rejections (invalid operator, type mismatch,
// unknown field) surface as plain errors for the pipeline to classify.
type MongoExecutor struct {
	coll *mongo.Collection
}

func NewMongoExecutor(coll *mongo.Collection) *MongoExecutor {
	return &MongoExecutor{coll: coll}
}

func (e *MongoExecutor) Aggregate(ctx context.Context, plan Plan) ([]map[string]interface{}, error) {
	pipeline := make(bson.A, len(plan))
	for i, stage := range plan {
		pipeline[i] = bson.M(stage)
	}

	cursor, err := e.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var result []map[string]interface{}
	if err := cursor.All(ctx, &result); err != nil {
		return nil, err
	}
	if result == nil {
		result = []map[string]interface{}{}
	}
	return result, nil
}
