package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "joblog-insights/internal/common/errors"
	"joblog-insights/internal/common/logger"
	"joblog-insights/internal/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Fakes
// ==========================

type fakeCompleter struct {
	responses    []string
	errs         []error
	calls        [][]llm.Message
	unconfigured bool
}

func (f *fakeCompleter) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	i := len(f.calls)
	f.calls = append(f.calls, messages)
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return "", errors.New("unexpected completion call")
}

func (f *fakeCompleter) Configured() bool {
	return !f.unconfigured
}

type fakeStore struct {
	result []map[string]interface{}
	err    error
	calls  int
	got    Plan
}

func (f *fakeStore) Aggregate(ctx context.Context, plan Plan) ([]map[string]interface{}, error) {
	f.calls++
	f.got = plan
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newTestPipeline(completer *fakeCompleter, store *fakeStore, maxRecords int) *Pipeline {
	return NewPipeline(completer, store, maxRecords, logger.NewNoOpLogger())
}

func assertCode(t *testing.T, err error, code apperrors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, apperrors.Normalize(err).Code)
}

// ==========================
// Pipeline Tests
// ==========================

func TestPipeline_MissingQuestion(t *testing.T) {
	for _, question := range []string{"", "   ", "\n\t"} {
		completer := &fakeCompleter{}
		store := &fakeStore{}
		p := newTestPipeline(completer, store, 500)

		answer, err := p.Ask(context.Background(), question)

		assert.Nil(t, answer)
		assertCode(t, err, apperrors.ErrCodeMissingQuestion)
		assert.Len(t, completer.calls, 0, "no outbound call on missing input")
		assert.Equal(t, 0, store.calls)
	}
}

func TestPipeline_NotConfigured(t *testing.T) {
	completer := &fakeCompleter{unconfigured: true}
	store := &fakeStore{}
	p := newTestPipeline(completer, store, 500)

	answer, err := p.Ask(context.Background(), "how many runs failed today?")

	assert.Nil(t, answer)
	assertCode(t, err, apperrors.ErrCodeLLMNotConfigured)
	assert.Len(t, completer.calls, 0)
	assert.Equal(t, 0, store.calls)
}

func TestPipeline_GeneratorFailure(t *testing.T) {
	completer := &fakeCompleter{errs: []error{errors.New("status 429: rate limited")}}
	store := &fakeStore{}
	p := newTestPipeline(completer, store, 500)

	answer, err := p.Ask(context.Background(), "how many runs failed today?")

	assert.Nil(t, answer)
	assertCode(t, err, apperrors.ErrCodeLLMCallFailed)
	assert.Contains(t, apperrors.Normalize(err).Details, "rate limited")
	assert.Equal(t, 0, store.calls, "executor never invoked on generator failure")
}

func TestPipeline_UnparseableModelOutput(t *testing.T) {
	completer := &fakeCompleter{responses: []string{"Sorry, I can't answer that."}}
	store := &fakeStore{}
	p := newTestPipeline(completer, store, 500)

	answer, err := p.Ask(context.Background(), "how many runs failed today?")

	assert.Nil(t, answer)
	assertCode(t, err, apperrors.ErrCodePlanParseFailed)
	assert.Len(t, completer.calls, 1, "summarizer never invoked")
	assert.Equal(t, 0, store.calls, "executor never invoked")
}

func TestPipeline_EndToEnd(t *testing.T) {
	question := "How many jobs were sent to index last month for ClientA?"
	planText := "```json\n" +
		`[{"$match": {"transactionSourceName": "ClientA", "timestamp": {"$gte": "2025-06-01T00:00:00Z", "$lt": "2025-07-01T00:00:00Z"}}}, ` +
		`{"$group": {"_id": null, "total": {"$sum": "$progress.TOTAL_JOBS_SENT_TO_INDEX"}}}]` +
		"\n```"
	storeResult := []map[string]interface{}{{"_id": nil, "total": 4200}}

	completer := &fakeCompleter{responses: []string{
		planText,
		"ClientA had 4200 jobs sent to index last month.",
	}}
	store := &fakeStore{result: storeResult}
	p := newTestPipeline(completer, store, 500)

	answer, err := p.Ask(context.Background(), question)
	require.NoError(t, err)
	require.NotNil(t, answer)

	assert.Equal(t, storeResult, answer.Data)
	assert.Contains(t, answer.Summary, "4200")

	// Two completion calls: plan generation then summarization.
	require.Len(t, completer.calls, 2)
	assert.Equal(t, "system", completer.calls[0][0].Role)
	assert.Contains(t, completer.calls[0][0].Content, "MongoDB aggregation pipeline")
	assert.Equal(t, question, completer.calls[0][1].Content)
	assert.Contains(t, completer.calls[1][1].Content, question)
	assert.Contains(t, completer.calls[1][1].Content, "4200")

	// The executed plan carries native timestamps, not strings.
	require.Equal(t, 1, store.calls)
	require.Len(t, store.got, 2)
	bounds := store.got[0]["$match"].(map[string]interface{})["timestamp"].(map[string]interface{})
	gte, ok := bounds["$gte"].(time.Time)
	require.True(t, ok)
	assert.True(t, gte.Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)))
}

func TestPipeline_StoreFailure(t *testing.T) {
	completer := &fakeCompleter{responses: []string{`[{"$bogus": {}}]`}}
	store := &fakeStore{err: errors.New("unknown top level operator: $bogus")}
	p := newTestPipeline(completer, store, 500)

	answer, err := p.Ask(context.Background(), "count everything")

	assert.Nil(t, answer)
	assertCode(t, err, apperrors.ErrCodeStoreExecutionFailed)
	assert.Contains(t, apperrors.Normalize(err).Details, "$bogus")
	assert.Len(t, completer.calls, 1, "summarizer never invoked after store failure")
}

func TestPipeline_SummarizerFailureDiscardsResult(t *testing.T) {
	completer := &fakeCompleter{
		responses: []string{`[{"$match": {"status": "completed"}}]`, ""},
		errs:      []error{nil, errors.New("status 500")},
	}
	store := &fakeStore{result: []map[string]interface{}{{"status": "completed"}}}
	p := newTestPipeline(completer, store, 500)

	answer, err := p.Ask(context.Background(), "what completed?")

	assert.Nil(t, answer, "no partial data-only body on summarizer failure")
	assertCode(t, err, apperrors.ErrCodeLLMCallFailed)
	assert.Equal(t, 1, store.calls)
	assert.Len(t, completer.calls, 2)
}

func TestPipeline_ResultTooLarge(t *testing.T) {
	oversized := make([]map[string]interface{}, 3)
	for i := range oversized {
		oversized[i] = map[string]interface{}{"i": i}
	}

	completer := &fakeCompleter{responses: []string{`[{"$match": {}}]`}}
	store := &fakeStore{result: oversized}
	p := newTestPipeline(completer, store, 2)

	answer, err := p.Ask(context.Background(), "list everything")

	assert.Nil(t, answer)
	assertCode(t, err, apperrors.ErrCodeResultTooLarge)
	assert.Len(t, completer.calls, 1, "oversized result is never sent upstream")
}
