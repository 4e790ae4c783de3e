package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/loglens-go/internal/adapters/corpus"
	"github.com/0xcro3dile/loglens-go/internal/adapters/loader"
	"github.com/0xcro3dile/loglens-go/internal/domain/entities"
	"github.com/0xcro3dile/loglens-go/internal/domain/ports"
	"github.com/0xcro3dile/loglens-go/internal/domain/usecases"
)

type stubPlanner struct {
	plan string
	err  error
}

func (p stubPlanner) Plan(ctx context.Context, req entities.PlanRequest) ([]byte, error) {
	return []byte(p.plan), p.err
}

func testServer(t *testing.T, planner ports.PlanSource) *Server {
	t.Helper()
	schema := entities.Schema{
		Columns:      []string{"timestamp", "severity", "message", "cm_mac", "rpdname"},
		EntityFields: entities.DefaultEntityFields,
	}
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	records := entities.RecordSet{
		{Line: 1, Timestamp: ts, Severity: entities.SeverityError, Message: "T3 timeout", Fields: map[string]string{"cm_mac": "m1", "rpdname": "r1"}},
		{Line: 2, Timestamp: ts, Severity: entities.SeverityWarning, Message: "retry", Fields: map[string]string{"cm_mac": "m2"}},
		{Line: 3, Timestamp: ts, Severity: entities.SeverityError, Message: "T4 timeout", Fields: map[string]string{"cm_mac": "m2", "rpdname": "r2"}},
	}

	store := corpus.NewInMemoryStore()
	require.NoError(t, store.Put(context.Background(), &entities.Corpus{Name: "default", Schema: schema, Records: records}))

	executor := usecases.NewPlanExecutor(schema, nil)
	queryUC := usecases.NewQueryUseCase(planner, store, executor, schema.EntityFields, nil)
	ingestUC := usecases.NewIngestUseCase(loader.NewCSVLoader(), store, ports.LoadOptions{}, nil)
	return NewServer(queryUC, ingestUC, store, "default", ":0", nil)
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestServer_PlanCount(t *testing.T) {
	h := testServer(t, nil).Handler()

	rec, out := do(t, h, http.MethodPost, "/api/plan",
		`{"operations":["search_logs","filter_severity","count"],"params":{"query":"","severities":["error"]}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "scalar", out["kind"])
	assert.Equal(t, "count", out["operation"])
	assert.EqualValues(t, 2, out["value"])
	assert.NotEmpty(t, out["execution_id"])
}

func TestServer_PlanInvalid(t *testing.T) {
	h := testServer(t, nil).Handler()

	rec, out := do(t, h, http.MethodPost, "/api/plan", `{"operations":[],"params":{}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PLAN", out["code"])
	issues, ok := out["issues"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, issues)
	assert.Equal(t, entities.RuleOperationsEmpty, issues[0].(map[string]any)["rule"])
}

func TestServer_PlanExecutionError(t *testing.T) {
	h := testServer(t, nil).Handler()

	rec, out := do(t, h, http.MethodPost, "/api/plan",
		`{"operations":["search_logs","filter_severity","bogus"],"params":{"query":"timeout","severities":["error"]}}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "UNKNOWN_OPERATION", out["code"])
	assert.EqualValues(t, 2, out["index"])
	assert.Equal(t, "bogus", out["operation"])
	assert.EqualValues(t, 2, out["working_set_size"])
}

func TestServer_PlanUnknownCorpus(t *testing.T) {
	h := testServer(t, nil).Handler()

	rec, _ := do(t, h, http.MethodPost, "/api/plan?corpus=missing",
		`{"operations":["search_logs"],"params":{}}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Query(t *testing.T) {
	planner := stubPlanner{plan: `{"operations":["search_logs","relate_entities"],"params":{"query":"","type_a":"cm_mac","type_b":"rpdname"}}`}
	h := testServer(t, planner).Handler()

	rec, out := do(t, h, http.MethodPost, "/api/query", `{"question":"which modems sit on which rpd?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "which modems sit on which rpd?", out["question"])
	assert.NotNil(t, out["plan"])

	result := out["result"].(map[string]any)
	assert.Equal(t, "mapping", result["kind"])
	assert.Equal(t, map[string]any{
		"m1": map[string]any{"r1": float64(1)},
		"m2": map[string]any{"r2": float64(1)},
	}, result["value"])
}

func TestServer_QueryReturnsPlanOnFailure(t *testing.T) {
	planner := stubPlanner{plan: `{"operations":["count"],"params":{}}`}
	h := testServer(t, planner).Handler()

	rec, out := do(t, h, http.MethodPost, "/api/query", `{"question":"how many?"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, map[string]any{"operations": []any{"count"}, "params": map[string]any{}}, out["plan"])
}

func TestServer_QueryPlannerError(t *testing.T) {
	h := testServer(t, stubPlanner{err: errors.New("model offline")}).Handler()

	rec, out := do(t, h, http.MethodPost, "/api/query", `{"question":"anything"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, out["error"], "model offline")
}

func TestServer_QueryValidation(t *testing.T) {
	h := testServer(t, nil).Handler()

	rec, _ := do(t, h, http.MethodPost, "/api/query", `{"question":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/api/query", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_CorpusLifecycle(t *testing.T) {
	h := testServer(t, nil).Handler()

	path := filepath.Join(t.TempDir(), "extra.csv")
	require.NoError(t, os.WriteFile(path, []byte("timestamp,severity,message\n2024-03-01,info,hello\n"), 0o644))

	body, _ := json.Marshal(loadRequest{Name: "extra", Path: path})
	rec, out := do(t, h, http.MethodPost, "/api/corpus", string(body))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "extra", out["name"])
	assert.EqualValues(t, 1, out["records"])

	rec, _ = do(t, h, http.MethodGet, "/api/corpus", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []corpusInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "default", list[0].Name)
	assert.Equal(t, "extra", list[1].Name)

	rec, _ = do(t, h, http.MethodDelete, "/api/corpus/extra", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/api/plan?corpus=extra", `{"operations":["search_logs"],"params":{}}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_CorpusLoadSchemaError(t *testing.T) {
	h := testServer(t, nil).Handler()

	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("timestamp,severity,message\n2024-03-01,fatal,boom\n"), 0o644))

	body, _ := json.Marshal(loadRequest{Name: "bad", Path: path})
	rec, out := do(t, h, http.MethodPost, "/api/corpus", string(body))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "SCHEMA_ERROR", out["code"])
	assert.EqualValues(t, 2, out["line"])
	assert.Equal(t, "severity", out["column"])
}

func TestServer_HealthAndCORS(t *testing.T) {
	h := testServer(t, nil).Handler()

	rec, out := do(t, h, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec, _ = do(t, h, http.MethodOptions, "/api/plan", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
