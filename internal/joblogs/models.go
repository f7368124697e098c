// Package joblogs provides the Log Record model and the dashboard queries:
// filtered listing, grouped aggregates, and first/last delta metrics.
package joblogs

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Progress holds the per-run pipeline counters of one feed processing run.
type Progress struct {
	SwitchIndex                 bool `bson:"SWITCH_INDEX" json:"SWITCH_INDEX"`
	TotalRecordsInFeed          int  `bson:"TOTAL_RECORDS_IN_FEED" json:"TOTAL_RECORDS_IN_FEED"`
	TotalJobsFailIndexed        int  `bson:"TOTAL_JOBS_FAIL_INDEXED" json:"TOTAL_JOBS_FAIL_INDEXED"`
	TotalJobsInFeed             int  `bson:"TOTAL_JOBS_IN_FEED" json:"TOTAL_JOBS_IN_FEED"`
	TotalJobsSentToEnrich       int  `bson:"TOTAL_JOBS_SENT_TO_ENRICH" json:"TOTAL_JOBS_SENT_TO_ENRICH"`
	TotalJobsDontHaveMetadata   int  `bson:"TOTAL_JOBS_DONT_HAVE_METADATA" json:"TOTAL_JOBS_DONT_HAVE_METADATA"`
	TotalJobsDontHaveMetadataV2 int  `bson:"TOTAL_JOBS_DONT_HAVE_METADATA_V2" json:"TOTAL_JOBS_DONT_HAVE_METADATA_V2"`
	TotalJobsSentToIndex        int  `bson:"TOTAL_JOBS_SENT_TO_INDEX" json:"TOTAL_JOBS_SENT_TO_INDEX"`
}

// JobLog is one stored observation of a job-feed processing run. The service
// reads these records; it never mutates them.
type JobLog struct {
	ID                    primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	CountryCode           string             `bson:"country_code" json:"country_code"`
	CurrencyCode          string             `bson:"currency_code" json:"currency_code"`
	Progress              Progress           `bson:"progress" json:"progress"`
	Status                string             `bson:"status" json:"status"`
	Timestamp             time.Time          `bson:"timestamp" json:"timestamp"`
	TransactionSourceName string             `bson:"transactionSourceName" json:"transactionSourceName"`
	NoCoordinatesCount    int                `bson:"noCoordinatesCount" json:"noCoordinatesCount"`
	RecordCount           int                `bson:"recordCount" json:"recordCount"`
	UniqueRefNumberCount  int                `bson:"uniqueRefNumberCount" json:"uniqueRefNumberCount"`
}

// ListResult is the paginated listing payload.
type ListResult struct {
	Data  []JobLog `json:"data"`
	Total int64    `json:"total"`
	Page  int64    `json:"page"`
	Limit int64    `json:"limit"`
}
