package joblogs

import (
	"context"

	"joblog-insights/internal/common/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repository runs the dashboard queries against the joblogs collection.
type Repository struct {
	coll   *mongo.Collection
	logger logger.Logger
}

func NewRepository(coll *mongo.Collection, log logger.Logger) *Repository {
	return &Repository{
		coll: coll,
		logger: log.WithFields(map[string]interface{}{
			"component": "joblogs",
		}),
	}
}

// List returns one page of records matching the filter, newest first by
// default, together with the total match count.
func (r *Repository) List(ctx context.Context, p ListParams) (*ListResult, error) {
	p.ApplyDefaults()
	filter := buildListFilter(p)

	opts := options.Find().
		SetSort(buildListSort(p)).
		SetSkip((p.Page - 1) * p.Limit).
		SetLimit(p.Limit)

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	records := []JobLog{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &ListResult{
		Data:  records,
		Total: total,
		Page:  p.Page,
		Limit: p.Limit,
	}, nil
}

// General returns the per-group average or total of one progress counter.
func (r *Repository) General(ctx context.Context, p MetricParams) ([]map[string]interface{}, error) {
	p.ApplyDefaults()
	return r.aggregate(ctx, buildGeneralPipeline(p))
}

// Delta returns the per-group change of one progress counter between the
// first and last record of the period.
func (r *Repository) Delta(ctx context.Context, p MetricParams) ([]map[string]interface{}, error) {
	p.ApplyDefaults()
	return r.aggregate(ctx, buildDeltaPipeline(p))
}

func (r *Repository) aggregate(ctx context.Context, pipeline interface{}) ([]map[string]interface{}, error) {
	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	results := []map[string]interface{}{}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	return results, nil
}
