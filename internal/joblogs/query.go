package joblogs

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// ListParams are the filter/pagination/sort parameters of the listing query.
type ListParams struct {
	StartDate *time.Time
	EndDate   *time.Time
	Client    string
	Country   string
	Page      int64
	Limit     int64
	SortField string
	SortOrder string
}

// ApplyDefaults fills the defaults of the listing endpoint.
func (p *ListParams) ApplyDefaults() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = 20
	}
	if p.SortField == "" {
		p.SortField = "timestamp"
	}
	if p.SortOrder == "" {
		p.SortOrder = "desc"
	}
}

// MetricParams are the parameters of the grouped-aggregate and delta queries.
type MetricParams struct {
	Field     string // progress counter name, e.g. TOTAL_JOBS_SENT_TO_INDEX
	GroupBy   string
	StartDate *time.Time
	EndDate   *time.Time
	Client    string
	Country   string
	Agg       string // "average" or "sum"; general query only
}

// ApplyDefaults fills the defaults of the metric endpoints.
func (p *MetricParams) ApplyDefaults() {
	if p.GroupBy == "" {
		p.GroupBy = "transactionSourceName"
	}
	if p.Agg == "" {
		p.Agg = "average"
	}
}

// CacheKey derives a stable Redis key for one metric query.
func (p MetricParams) CacheKey(kind string) string {
	start, end := "", ""
	if p.StartDate != nil {
		start = p.StartDate.UTC().Format(time.RFC3339)
	}
	if p.EndDate != nil {
		end = p.EndDate.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("metrics:%s:%s:%s:%s:%s:%s:%s:%s",
		kind, p.Field, p.GroupBy, start, end, p.Client, p.Country, p.Agg)
}

// buildMatch assembles the shared $match filter of all dashboard queries.
func buildMatch(start, end *time.Time, client, country string) bson.M {
	match := bson.M{}
	if start != nil || end != nil {
		ts := bson.M{}
		if start != nil {
			ts["$gte"] = *start
		}
		if end != nil {
			ts["$lte"] = *end
		}
		match["timestamp"] = ts
	}
	if client != "" {
		match["transactionSourceName"] = client
	}
	if country != "" {
		match["country_code"] = country
	}
	return match
}

func buildListFilter(p ListParams) bson.M {
	return buildMatch(p.StartDate, p.EndDate, p.Client, p.Country)
}

func buildListSort(p ListParams) bson.D {
	order := -1
	if p.SortOrder == "asc" {
		order = 1
	}
	return bson.D{{Key: p.SortField, Value: order}}
}

// buildGeneralPipeline aggregates progress.<field> per group: count plus
// either an average or a total, sorted descending by the aggregate.
func buildGeneralPipeline(p MetricParams) bson.A {
	valueField := "$progress." + p.Field
	groupStage := bson.M{
		"_id":   "$" + p.GroupBy,
		"count": bson.M{"$sum": 1},
	}
	sortKey := "average"
	if p.Agg == "sum" {
		groupStage["total"] = bson.M{"$sum": valueField}
		sortKey = "total"
	} else {
		groupStage["average"] = bson.M{"$avg": valueField}
	}

	return bson.A{
		bson.M{"$match": buildMatch(p.StartDate, p.EndDate, p.Client, p.Country)},
		bson.M{"$group": groupStage},
		bson.M{"$sort": bson.M{sortKey: -1}},
	}
}

// buildDeltaPipeline computes the change of progress.<field> between the
// first and last record of the period, per group, sorted by delta.
func buildDeltaPipeline(p MetricParams) bson.A {
	valueField := "$progress." + p.Field
	return bson.A{
		bson.M{"$match": buildMatch(p.StartDate, p.EndDate, p.Client, p.Country)},
		bson.M{"$sort": bson.M{"timestamp": 1}},
		bson.M{"$group": bson.M{
			"_id":   "$" + p.GroupBy,
			"first": bson.M{"$first": valueField},
			"last":  bson.M{"$last": valueField},
			"count": bson.M{"$sum": 1},
		}},
		bson.M{"$project": bson.M{
			"delta": bson.M{"$subtract": bson.A{"$last", "$first"}},
			"first": 1,
			"last":  1,
			"count": 1,
		}},
		bson.M{"$sort": bson.M{"delta": -1}},
	}
}
