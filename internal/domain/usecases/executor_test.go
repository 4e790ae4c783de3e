package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/0xcro3dile/loglens-go/internal/domain/entities"
)

func execErr(t *testing.T, err error) *entities.ExecError {
	t.Helper()
	var ee *entities.ExecError
	require.True(t, errors.As(err, &ee), "want *ExecError, got %v", err)
	return ee
}

func TestPlanExecutor_EmptyOperations(t *testing.T) {
	e := NewPlanExecutor(testSchema, nil)
	_, err := e.Execute(context.Background(), tenRows(), []byte(`{"operations": [], "params": {}}`))
	assert.Equal(t, []string{entities.RuleOperationsEmpty}, rules(t, err))
}

func TestPlanExecutor_WrongFirstOperation(t *testing.T) {
	e := NewPlanExecutor(testSchema, nil)
	_, err := e.Execute(context.Background(), tenRows(), []byte(`{"operations": ["bogus"], "params": {}}`))
	assert.Equal(t, []string{entities.RuleFirstOperation}, rules(t, err))
}

func TestPlanExecutor_EmptyQueryReturnsCorpus(t *testing.T) {
	e := NewPlanExecutor(testSchema, nil)
	corpus := telemetry()

	res, err := e.Execute(context.Background(), corpus, []byte(`{"operations": ["search_logs"], "params": {"query": ""}}`))
	require.NoError(t, err)
	assert.Equal(t, ResultRecords, res.Kind)
	assert.Equal(t, entities.OpSearchLogs, res.Op)
	assert.Equal(t, corpus, res.Records)
	assert.NotEmpty(t, res.ExecutionID)
}

func TestPlanExecutor_CountErrors(t *testing.T) {
	e := NewPlanExecutor(testSchema, nil)
	raw := `{"operations": ["search_logs", "filter_severity", "count"],
		"params": {"query": "", "severities": ["error"]}}`

	res, err := e.Execute(context.Background(), tenRows(), []byte(raw))
	require.NoError(t, err)
	assert.Equal(t, ResultScalar, res.Kind)
	assert.Equal(t, entities.OpCount, res.Op)
	assert.Equal(t, 6, res.Scalar)

	require.Len(t, res.Trace, 3)
	assert.Equal(t, entities.StepTrace{Index: 1, Op: "filter_severity", In: 10, Out: 6, Elapsed: res.Trace[1].Elapsed}, res.Trace[1])
	assert.Equal(t, 6, res.Trace[2].Out, "count keeps the working set")
}

func TestPlanExecutor_RelateEntities(t *testing.T) {
	e := NewPlanExecutor(testSchema, nil)
	raw := `{"operations": ["search_logs", "relate_entities"],
		"params": {"query": "", "type_a": "cm_mac", "type_b": "rpdname"}}`

	res, err := e.Execute(context.Background(), telemetry(), []byte(raw))
	require.NoError(t, err)
	assert.Equal(t, ResultMapping, res.Kind)
	require.NotNil(t, res.Relation)
	assert.Equal(t, 3, res.Relation.Len())
	for _, p := range res.Relation.Pairings() {
		assert.Equal(t, 1, p.Count, "%s/%s", p.A, p.B)
	}
	assert.Equal(t, map[string]map[string]int{
		"aa:01": {"rpd-north": 1},
		"aa:02": {"rpd-south": 1},
		"AA:03": {"rpd-east": 1},
	}, res.Relation.Pairs)
}

func TestPlanExecutor_UniqueEntities(t *testing.T) {
	e := NewPlanExecutor(testSchema, nil)
	raw := `{"operations": ["search_logs", "filter_severity", "unique_entities"],
		"params": {"query": "", "severities": ["error", "warning"], "unique_type": "cm_mac"}}`

	res, err := e.Execute(context.Background(), telemetry(), []byte(raw))
	require.NoError(t, err)
	assert.Equal(t, ResultScalar, res.Kind)
	assert.Equal(t, 3, res.Scalar)
	assert.Equal(t, "cm_mac", res.EntityType)
	assert.Equal(t, []string{"aa:01", "aa:02", "AA:03"}, res.Values)
}

func TestPlanExecutor_AccumulatesIndexAndRelations(t *testing.T) {
	e := NewPlanExecutor(testSchema, nil)
	raw := `{"operations": ["search_logs", "unique_entities", "relate_entities", "count"],
		"params": {"query": "timeout", "unique_type": "rpdname", "type_a": "cm_mac", "type_b": "rpdname"}}`

	res, err := e.Execute(context.Background(), telemetry(), []byte(raw))
	require.NoError(t, err)
	assert.Equal(t, ResultScalar, res.Kind)
	assert.Equal(t, 2, res.Scalar)

	assert.Equal(t, entities.EntityIndex{"rpdname": {"rpd-north", "rpd-east"}}, res.Index)
	forward, ok := res.Relations.Get("cm_mac", "rpdname")
	require.True(t, ok)
	assert.Equal(t, 1, forward.Count("AA:03", "rpd-east"))
	back, ok := res.Relations.Get("rpdname", "cm_mac")
	require.True(t, ok)
	assert.Equal(t, 1, back.Count("rpd-north", "aa:01"))

	data, err := json.Marshal(res)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, map[string]any{"rpdname": []any{"rpd-north", "rpd-east"}}, out["entities"])
}

func TestPlanExecutor_ExecuteCorpusUsesCorpusSchema(t *testing.T) {
	e := NewPlanExecutor(testSchema, nil)
	corpus := &entities.Corpus{
		Name:   "sites",
		Schema: entities.Schema{EntityFields: []string{"site"}},
		Records: entities.RecordSet{
			rec(1, entities.SeverityError, "T3 timeout", "site", "north"),
			rec(2, entities.SeverityWarning, "ranging retry", "site", "south"),
		},
	}

	res, err := e.ExecuteCorpus(context.Background(), corpus,
		[]byte(`{"operations": ["search_logs", "filter_entity", "count"], "params": {"entity_type": "Site", "entity_value": "NORTH"}}`))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Scalar)

	_, err = e.Execute(context.Background(), corpus.Records,
		[]byte(`{"operations": ["search_logs", "filter_entity"], "params": {"entity_type": "site", "entity_value": "north"}}`))
	assert.True(t, errors.Is(err, entities.CodeEntityNotFound), "the executor's own schema is unchanged")
}

func TestPlanExecutor_ChunkOutput(t *testing.T) {
	e := NewPlanExecutor(testSchema, nil)
	raw := `{"operations": ["search_logs", "chunk_output"], "params": {"query": "", "budget": 4}}`

	res, err := e.Execute(context.Background(), tenRows(), []byte(raw))
	require.NoError(t, err)
	assert.Equal(t, ResultChunks, res.Kind)
	assert.Equal(t, entities.MetricRecords, res.Metric)

	chunks := res.Chunks.Collect()
	require.Len(t, chunks, 3)
	assert.Equal(t, 4, chunks[0].Size)
	assert.Equal(t, 2, chunks[2].Size)
}

func TestPlanExecutor_DefaultMetricOption(t *testing.T) {
	e := NewPlanExecutor(testSchema, nil, WithDefaultMetric(entities.MetricTokens))
	raw := `{"operations": ["search_logs", "chunk_output"], "params": {"budget": 50}}`

	res, err := e.Execute(context.Background(), telemetry(), []byte(raw))
	require.NoError(t, err)
	assert.Equal(t, entities.MetricTokens, res.Metric)
}

func TestPlanExecutor_UnknownOperationMidPlan(t *testing.T) {
	e := NewPlanExecutor(testSchema, nil)
	raw := `{"operations": ["search_logs", "filter_severity", "bogus", "count"],
		"params": {"query": "", "severities": ["error"]}}`

	res, err := e.Execute(context.Background(), tenRows(), []byte(raw))
	assert.Nil(t, res)
	ee := execErr(t, err)
	assert.Equal(t, entities.CodeUnknownOperation, ee.Code)
	assert.True(t, errors.Is(err, entities.CodeUnknownOperation))
	assert.Equal(t, 2, ee.Index)
	assert.Equal(t, "bogus", ee.Op)
	assert.Equal(t, 6, ee.WorkingSetSize())
	assert.Len(t, ee.Trace, 2)
}

func TestPlanExecutor_ExecutionFailures(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		code  entities.Code
		index int
		size  int
	}{
		{
			name:  "unknown severity",
			raw:   `{"operations": ["search_logs", "filter_severity"], "params": {"query": "timeout", "severities": ["fatal"]}}`,
			code:  entities.CodeInvalidParam,
			index: 1,
			size:  2,
		},
		{
			name:  "time range inverted",
			raw:   `{"operations": ["search_logs", "filter_time_range"], "params": {"start": "2024-03-02", "end": "2024-03-01"}}`,
			code:  entities.CodeTimeRangeInvalid,
			index: 1,
			size:  6,
		},
		{
			name:  "unrecognized entity type",
			raw:   `{"operations": ["search_logs", "relate_entities"], "params": {"type_a": "cm_mac", "type_b": "site"}}`,
			code:  entities.CodeEntityNotFound,
			index: 1,
			size:  6,
		},
		{
			name:  "infinite start",
			raw:   `{"operations": ["search_logs", "filter_time_range"], "params": {"start": "inf", "end": "2024-03-01T10:03:00Z"}}`,
			code:  entities.CodeInvalidParam,
			index: 1,
			size:  6,
		},
		{
			name:  "epoch end overflows",
			raw:   `{"operations": ["search_logs", "filter_time_range"], "params": {"start": "2024-03-01T10:03:00Z", "end": 1e300}}`,
			code:  entities.CodeInvalidParam,
			index: 1,
			size:  6,
		},
		{
			name:  "non-positive budget",
			raw:   `{"operations": ["search_logs", "filter_entity", "chunk_output"], "params": {"entity_type": "cm_mac", "entity_value": "aa:02", "budget": 0}}`,
			code:  entities.CodeInvalidParam,
			index: 2,
			size:  2,
		},
		{
			name:  "bad search query",
			raw:   `{"operations": ["search_logs"], "params": {"query": ["t3"]}}`,
			code:  entities.CodeInvalidParam,
			index: 0,
			size:  6,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewPlanExecutor(testSchema, nil)
			_, err := e.Execute(context.Background(), telemetry(), []byte(tt.raw))
			ee := execErr(t, err)
			assert.Equal(t, tt.code, ee.Code)
			assert.Equal(t, tt.index, ee.Index)
			assert.Equal(t, tt.size, ee.WorkingSetSize())
		})
	}
}

func TestPlanExecutor_Cancelled(t *testing.T) {
	e := NewPlanExecutor(testSchema, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Execute(ctx, tenRows(), []byte(`{"operations": ["search_logs"], "params": {}}`))
	ee := execErr(t, err)
	assert.Equal(t, entities.Code(""), ee.Code)
	assert.Equal(t, 0, ee.Index)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPlanExecutor_IndependentExecutions(t *testing.T) {
	e := NewPlanExecutor(testSchema, nil)
	corpus := tenRows()
	raw := []byte(`{"operations": ["search_logs", "filter_severity"], "params": {"severities": ["warning"]}}`)

	a, err := e.Execute(context.Background(), corpus, raw)
	require.NoError(t, err)
	b, err := e.Execute(context.Background(), corpus, raw)
	require.NoError(t, err)

	assert.NotEqual(t, a.ExecutionID, b.ExecutionID)
	assert.Equal(t, lines(a.Records), lines(b.Records))
	assert.Len(t, corpus, 10, "corpus is never narrowed in place")
}

func TestPlanExecutor_LogsOutcome(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	e := NewPlanExecutor(testSchema, zap.New(core))

	_, err := e.Execute(context.Background(), tenRows(), []byte(`{"operations": ["search_logs", "count"], "params": {}}`))
	require.NoError(t, err)
	_, _ = e.Execute(context.Background(), tenRows(), []byte(`{"operations": ["search_logs", "nope"], "params": {}}`))

	assert.Equal(t, 1, logs.FilterMessage("plan done").Len())
	failed := logs.FilterMessage("plan failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "UNKNOWN_OPERATION", failed[0].ContextMap()["code"])
}

func TestResult_MarshalJSON(t *testing.T) {
	e := NewPlanExecutor(testSchema, nil)

	res, err := e.Execute(context.Background(), tenRows(), []byte(`{"operations": ["search_logs", "count"], "params": {}}`))
	require.NoError(t, err)
	data, err := json.Marshal(res)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "scalar", out["kind"])
	assert.Equal(t, "count", out["operation"])
	assert.EqualValues(t, 10, out["value"])

	res, err = e.Execute(context.Background(), telemetry(), []byte(`{"operations": ["search_logs", "chunk_output"], "params": {"query": "timeout", "budget": 1}}`))
	require.NoError(t, err)
	data, err = json.Marshal(res)
	require.NoError(t, err)

	out = nil
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "chunks", out["kind"])
	assert.EqualValues(t, 1, out["budget"])
	chunks := out["value"].([]any)
	require.Len(t, chunks, 2)
	first := chunks[0].(map[string]any)["records"].([]any)[0].(map[string]any)
	assert.Equal(t, "T3 timeout", first["message"])
	assert.Equal(t, "error", first["severity"])
	assert.Equal(t, "aa:01", first["cm_mac"])
}
