package entities

import "time"

// Plan is a decoded plan payload: ordered operation names plus the flat
// parameter mapping shared by all operations. Immutable once received.
type Plan struct {
	Operations []string
	Params     map[string]any
}

// Plan parameter keys.
const (
	ParamQuery       = "query"
	ParamSeverities  = "severities"
	ParamStart       = "start"
	ParamEnd         = "end"
	ParamEntityType  = "entity_type"
	ParamEntityValue = "entity_value"
	ParamUniqueType  = "unique_type"
	ParamTypeA       = "type_a"
	ParamTypeB       = "type_b"
	ParamBudget      = "budget"
	ParamMetric      = "metric"
)

// OpKind is the closed operation vocabulary.
type OpKind int

const (
	OpUnknown OpKind = iota
	OpSearchLogs
	OpFilterSeverity
	OpFilterTimeRange
	OpFilterEntity
	OpCount
	OpUniqueEntities
	OpRelateEntities
	OpChunkOutput
)

var opNames = [...]string{
	OpUnknown:         "unknown",
	OpSearchLogs:      "search_logs",
	OpFilterSeverity:  "filter_severity",
	OpFilterTimeRange: "filter_time_range",
	OpFilterEntity:    "filter_entity",
	OpCount:           "count",
	OpUniqueEntities:  "unique_entities",
	OpRelateEntities:  "relate_entities",
	OpChunkOutput:     "chunk_output",
}

func (k OpKind) String() string {
	if k < 0 || int(k) >= len(opNames) {
		return opNames[OpUnknown]
	}
	return opNames[k]
}

// ParseOpKind resolves an operation name. Names are matched exactly.
func ParseOpKind(name string) (OpKind, bool) {
	for k := OpSearchLogs; int(k) < len(opNames); k++ {
		if opNames[k] == name {
			return k, true
		}
	}
	return OpUnknown, false
}

// Vocabulary lists every recognized operation name in canonical order.
func Vocabulary() []string {
	out := make([]string, 0, len(opNames)-1)
	for k := OpSearchLogs; int(k) < len(opNames); k++ {
		out = append(out, opNames[k])
	}
	return out
}

// Step is one decoded operation with statically shaped parameters.
type Step interface {
	Kind() OpKind
	step() // marker method
}

// SearchStep matches query against message text and entity values.
type SearchStep struct {
	Query string
}

// FilterSeverityStep keeps records whose severity is listed.
type FilterSeverityStep struct {
	Severities []Severity
}

// FilterTimeRangeStep keeps records with Start <= timestamp < End.
type FilterTimeRangeStep struct {
	Start time.Time
	End   time.Time
}

// FilterEntityStep keeps records whose Type field equals Value.
type FilterEntityStep struct {
	Type  string
	Value string
}

// CountStep counts the working set.
type CountStep struct{}

// UniqueEntitiesStep counts distinct values of Type.
type UniqueEntitiesStep struct {
	Type string
}

// RelateEntitiesStep builds the co-occurrence relation between TypeA and TypeB.
type RelateEntitiesStep struct {
	TypeA string
	TypeB string
}

// ChunkOutputStep splits the working set into budgeted chunks.
type ChunkOutputStep struct {
	Budget int
	Metric MetricKind
}

func (SearchStep) Kind() OpKind          { return OpSearchLogs }
func (FilterSeverityStep) Kind() OpKind  { return OpFilterSeverity }
func (FilterTimeRangeStep) Kind() OpKind { return OpFilterTimeRange }
func (FilterEntityStep) Kind() OpKind    { return OpFilterEntity }
func (CountStep) Kind() OpKind           { return OpCount }
func (UniqueEntitiesStep) Kind() OpKind  { return OpUniqueEntities }
func (RelateEntitiesStep) Kind() OpKind  { return OpRelateEntities }
func (ChunkOutputStep) Kind() OpKind     { return OpChunkOutput }

func (SearchStep) step()          {}
func (FilterSeverityStep) step()  {}
func (FilterTimeRangeStep) step() {}
func (FilterEntityStep) step()    {}
func (CountStep) step()           {}
func (UniqueEntitiesStep) step()  {}
func (RelateEntitiesStep) step()  {}
func (ChunkOutputStep) step()     {}

// StepTrace records how one operation changed the working set.
type StepTrace struct {
	Index   int           `json:"index"`
	Op      string        `json:"op"`
	In      int           `json:"in"`
	Out     int           `json:"out"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

// PlanRequest is what a PlanSource needs to translate a question.
type PlanRequest struct {
	Question     string
	Vocabulary   []string
	EntityFields []string
}
