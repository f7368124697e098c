package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"joblog-insights/internal/chat"
	"joblog-insights/internal/common/config"
	"joblog-insights/internal/common/database"
	apperrors "joblog-insights/internal/common/errors"
	"joblog-insights/internal/common/logger"
	"joblog-insights/internal/joblogs"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePipeline struct {
	answer *chat.Answer
	err    error

	calls    int
	question string
}

func (f *fakePipeline) Ask(_ context.Context, question string) (*chat.Answer, error) {
	f.calls++
	f.question = question
	if f.err != nil {
		return nil, f.err
	}
	return f.answer, nil
}

type fakeStore struct {
	listResult   *joblogs.ListResult
	metricResult []map[string]interface{}
	err          error

	listCalls    int
	generalCalls int
	deltaCalls   int

	listParams   joblogs.ListParams
	metricParams joblogs.MetricParams
}

func (f *fakeStore) List(_ context.Context, p joblogs.ListParams) (*joblogs.ListResult, error) {
	f.listCalls++
	f.listParams = p
	return f.listResult, f.err
}

func (f *fakeStore) General(_ context.Context, p joblogs.MetricParams) ([]map[string]interface{}, error) {
	f.generalCalls++
	f.metricParams = p
	return f.metricResult, f.err
}

func (f *fakeStore) Delta(_ context.Context, p joblogs.MetricParams) ([]map[string]interface{}, error) {
	f.deltaCalls++
	f.metricParams = p
	return f.metricResult, f.err
}

func testConfig() *config.Config {
	return &config.Config{
		App:  config.AppConfig{Name: "joblog-insights", Version: "1.0.0"},
		Chat: config.ChatConfig{MaxResultRecords: 500, RequestTimeout: 5000},
	}
}

func newTestServer(t *testing.T, pipeline ChatPipeline, store LogStore, cache *joblogs.MetricsCache, health HealthCheck) http.Handler {
	t.Helper()
	h := NewHandler(pipeline, store, cache, health, testConfig(), logger.NewTestLogger(t))
	return New(h)
}

func doRequest(t *testing.T, srv http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

// doJSON is for endpoints whose body is a JSON object; array-bodied
// responses go through doRequest directly.
func doJSON(t *testing.T, srv http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := doRequest(t, srv, method, target, body)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	return rec, decoded
}

func TestHandleChat_Success(t *testing.T) {
	pipeline := &fakePipeline{answer: &chat.Answer{
		Data:    []map[string]interface{}{{"_id": "ClientA", "total": float64(4200)}},
		Summary: "ClientA indexed 4200 jobs in July.",
	}}
	srv := newTestServer(t, pipeline, &fakeStore{}, nil, nil)

	rec, body := doJSON(t, srv, http.MethodPost, "/api/chat",
		`{"question": "How many jobs did ClientA index in July?"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, pipeline.calls)
	assert.Equal(t, "How many jobs did ClientA index in July?", pipeline.question)
	assert.Equal(t, "ClientA indexed 4200 jobs in July.", body["summary"])
	assert.Len(t, body["data"], 1)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestHandleChat_ErrorStatuses(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing question",
			err:        apperrors.NewMissingQuestionError(),
			wantStatus: http.StatusBadRequest,
			wantError:  "Missing question",
		},
		{
			name:       "unparseable plan",
			err:        apperrors.NewPlanParseFailedError(assert.AnError),
			wantStatus: http.StatusBadRequest,
			wantError:  "Failed to parse aggregation pipeline from LLM response",
		},
		{
			name:       "llm not configured",
			err:        apperrors.NewLLMNotConfiguredError(),
			wantStatus: http.StatusInternalServerError,
			wantError:  "Completion service is not configured",
		},
		{
			name:       "llm call failed",
			err:        apperrors.NewLLMCallFailedError(assert.AnError),
			wantStatus: http.StatusInternalServerError,
			wantError:  "AI API error",
		},
		{
			name:       "store failed",
			err:        apperrors.NewStoreExecutionFailedError(assert.AnError),
			wantStatus: http.StatusInternalServerError,
			wantError:  "Database error",
		},
		{
			name:       "unclassified",
			err:        assert.AnError,
			wantStatus: http.StatusInternalServerError,
			wantError:  "Server error",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, &fakePipeline{err: tc.err}, &fakeStore{}, nil, nil)

			rec, body := doJSON(t, srv, http.MethodPost, "/api/chat", `{"question": "anything"}`)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, tc.wantError, body["error"])
			assert.NotEmpty(t, body["details"])
		})
	}
}

func TestHandleJobLogs_ParamParsing(t *testing.T) {
	store := &fakeStore{listResult: &joblogs.ListResult{
		Data:  []joblogs.JobLog{},
		Total: 0,
		Page:  2,
		Limit: 10,
	}}
	srv := newTestServer(t, &fakePipeline{}, store, nil, nil)

	rec, _ := doJSON(t, srv, http.MethodGet,
		"/api/joblogs?startDate=2025-07-01&endDate=2025-07-31&client=ClientA&country=US&page=2&limit=10&sortField=status&sortOrder=asc", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, store.listCalls)

	p := store.listParams
	require.NotNil(t, p.StartDate)
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), *p.StartDate)
	require.NotNil(t, p.EndDate)
	assert.Equal(t, "ClientA", p.Client)
	assert.Equal(t, "US", p.Country)
	assert.Equal(t, int64(2), p.Page)
	assert.Equal(t, int64(10), p.Limit)
	assert.Equal(t, "status", p.SortField)
	assert.Equal(t, "asc", p.SortOrder)
}

func TestHandleJobLogs_BadParamsFallBack(t *testing.T) {
	store := &fakeStore{listResult: &joblogs.ListResult{Page: 1, Limit: 20}}
	srv := newTestServer(t, &fakePipeline{}, store, nil, nil)

	rec, _ := doJSON(t, srv, http.MethodGet, "/api/joblogs?page=zero&limit=-5&startDate=not-a-date", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, store.listParams.StartDate)
	assert.Equal(t, int64(1), store.listParams.Page)
	assert.Equal(t, int64(20), store.listParams.Limit)
}

func TestHandleGeneralMetrics_RequiresField(t *testing.T) {
	store := &fakeStore{}
	srv := newTestServer(t, &fakePipeline{}, store, nil, nil)

	rec, body := doJSON(t, srv, http.MethodGet, "/api/metrics/general", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing field parameter", body["error"])
	assert.Equal(t, 0, store.generalCalls)
}

func TestHandleGeneralMetrics_DefaultsApplied(t *testing.T) {
	store := &fakeStore{metricResult: []map[string]interface{}{}}
	srv := newTestServer(t, &fakePipeline{}, store, nil, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/metrics/general?field=TOTAL_JOBS_SENT_TO_INDEX", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	assert.Empty(t, decoded)
	require.Equal(t, 1, store.generalCalls)
	assert.Equal(t, "TOTAL_JOBS_SENT_TO_INDEX", store.metricParams.Field)
	assert.Equal(t, "transactionSourceName", store.metricParams.GroupBy)
	assert.Equal(t, "average", store.metricParams.Agg)
}

func TestHandleDeltaMetrics_CacheHitSkipsStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := database.NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	cache := joblogs.NewMetricsCache(client, time.Minute, logger.NewNoOpLogger())

	store := &fakeStore{metricResult: []map[string]interface{}{
		{"_id": "ClientA", "delta": float64(120)},
	}}
	srv := newTestServer(t, &fakePipeline{}, store, cache, nil)

	target := "/api/metrics/delta?field=TOTAL_JOBS_SENT_TO_INDEX&groupBy=country_code"

	rec := doRequest(t, srv, http.MethodGet, target, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, store.deltaCalls)

	rec = doRequest(t, srv, http.MethodGet, target, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, store.deltaCalls, "second request is served from cache")

	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, float64(120), decoded[0]["delta"])
}

func TestHandleHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		srv := newTestServer(t, &fakePipeline{}, &fakeStore{}, nil,
			func(context.Context) error { return nil })

		rec, body := doJSON(t, srv, http.MethodGet, "/health", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, "joblog-insights", body["service"])
	})

	t.Run("store unreachable", func(t *testing.T) {
		srv := newTestServer(t, &fakePipeline{}, &fakeStore{}, nil,
			func(context.Context) error { return assert.AnError })

		rec, body := doJSON(t, srv, http.MethodGet, "/health", "")

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "degraded", body["status"])
	})
}
