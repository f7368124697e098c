// Package chat implements the natural-language query pipeline: a free-text
// question is translated into an aggregation plan by a completion service,
// the plan is validated and executed against the log store, and the result
// is summarized by a second completion call.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "joblog-insights/internal/common/errors"
	"joblog-insights/internal/common/logger"
	"joblog-insights/internal/common/metrics"
	"joblog-insights/internal/llm"

	"github.com/google/uuid"
)

const planSystemPrompt = `You are an assistant for analyzing job-feed processing logs. The MongoDB collection is called joblogs. The schema is: { country_code, currency_code, progress: { SWITCH_INDEX, TOTAL_RECORDS_IN_FEED, TOTAL_JOBS_FAIL_INDEXED, TOTAL_JOBS_IN_FEED, TOTAL_JOBS_SENT_TO_ENRICH, TOTAL_JOBS_DONT_HAVE_METADATA, TOTAL_JOBS_DONT_HAVE_METADATA_V2, TOTAL_JOBS_SENT_TO_INDEX }, status, timestamp, transactionSourceName, noCoordinatesCount, recordCount, uniqueRefNumberCount }. Given a user question, respond ONLY with a valid MongoDB aggregation pipeline as a JSON array, and nothing else. Use only valid JSON. Do not use JavaScript or shell helpers like ISODate(). For dates, use ISO 8601 strings (e.g., '2025-07-01T00:00:00Z'). Always quote all keys in the JSON output.`

const summarySystemPrompt = `You are a helpful assistant.`

// Answer is the combined payload returned on full success.
type Answer struct {
	Data    []map[string]interface{} `json:"data"`
	Summary string                   `json:"summary"`
}

// Pipeline sequences plan generation, extraction, execution and
// summarization for one request. The stages are strictly sequential and
// all-or-nothing: any failure is terminal, no stage is retried, and no
// partial result is ever returned (a summarization failure discards the
// already-computed result set).
type Pipeline struct {
	llm        llm.Completer
	store      Aggregator
	maxRecords int
	logger     logger.Logger
}

func NewPipeline(completer llm.Completer, store Aggregator, maxRecords int, log logger.Logger) *Pipeline {
	return &Pipeline{
		llm:        completer,
		store:      store,
		maxRecords: maxRecords,
		logger: log.WithFields(map[string]interface{}{
			"component": "chat",
		}),
	}
}

// Ask runs the full pipeline for one question. Input checks happen before
// any outbound call; every failure is returned as a *errors.StandardError.
func (p *Pipeline) Ask(ctx context.Context, question string) (*Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, p.fail(p.logger, apperrors.NewMissingQuestionError())
	}
	if !p.llm.Configured() {
		return nil, p.fail(p.logger, apperrors.NewLLMNotConfiguredError())
	}

	log := p.logger.WithFields(map[string]interface{}{
		"requestId": uuid.NewString(),
	})
	log.Info("chat request received", map[string]interface{}{
		"questionLength": len(question),
	})

	raw, err := p.generate(ctx, question)
	if err != nil {
		return nil, p.fail(log, apperrors.NewLLMCallFailedError(err))
	}

	plan, err := p.extract(raw)
	if err != nil {
		return nil, p.fail(log, apperrors.Normalize(err))
	}

	result, err := p.execute(ctx, plan)
	if err != nil {
		return nil, p.fail(log, apperrors.Normalize(err))
	}

	summary, err := p.summarize(ctx, question, result)
	if err != nil {
		// The computed result set is discarded; no data-only body exists.
		return nil, p.fail(log, apperrors.NewLLMCallFailedError(err))
	}

	metrics.ChatRequestsTotal.WithLabelValues("succeeded").Inc()
	log.Info("chat request completed", map[string]interface{}{
		"planStages":    len(plan),
		"resultRecords": len(result),
	})

	return &Answer{Data: result, Summary: summary}, nil
}

// generate asks the completion service for an aggregation plan and returns
// the raw response text unchanged; parsing is the extractor's job because
// the model's output is untrusted input, not a typed contract.
func (p *Pipeline) generate(ctx context.Context, question string) (string, error) {
	defer p.observeStage("generate", time.Now())
	return p.llm.Complete(ctx, []llm.Message{
		{Role: "system", Content: planSystemPrompt},
		{Role: "user", Content: question},
	})
}

func (p *Pipeline) extract(raw string) (Plan, error) {
	defer p.observeStage("extract", time.Now())
	plan, err := ExtractPlan(raw)
	if err != nil {
		return nil, err
	}
	return NormalizePlan(plan)
}

func (p *Pipeline) execute(ctx context.Context, plan Plan) ([]map[string]interface{}, error) {
	defer p.observeStage("execute", time.Now())
	result, err := p.store.Aggregate(ctx, plan)
	if err != nil {
		return nil, apperrors.NewStoreExecutionFailedError(err)
	}
	if len(result) > p.maxRecords {
		return nil, apperrors.NewResultTooLargeError(len(result), p.maxRecords)
	}
	return result, nil
}

func (p *Pipeline) summarize(ctx context.Context, question string, result []map[string]interface{}) (string, error) {
	defer p.observeStage("summarize", time.Now())
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	prompt := fmt.Sprintf(
		"Given the following MongoDB aggregation result, summarize the answer to the user's question. User question: %q. Result: %s",
		question, resultJSON,
	)
	return p.llm.Complete(ctx, []llm.Message{
		{Role: "system", Content: summarySystemPrompt},
		{Role: "user", Content: prompt},
	})
}

func (p *Pipeline) observeStage(stage string, start time.Time) {
	metrics.ChatStageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (p *Pipeline) fail(log logger.Logger, stdErr *apperrors.StandardError) error {
	metrics.ChatRequestsTotal.WithLabelValues("failed").Inc()
	metrics.ChatFailuresTotal.WithLabelValues(string(stdErr.Code)).Inc()
	log.WithError(stdErr).Error("chat request failed", map[string]interface{}{
		"errorCode": string(stdErr.Code),
		"details":   stdErr.Details,
	})
	return stdErr
}
