package usecases

import (
	"encoding/json"

	"github.com/0xcro3dile/loglens-go/internal/domain/entities"
)

// ResultKind tags the shape of a plan result.
type ResultKind int

const (
	ResultRecords ResultKind = iota
	ResultScalar
	ResultMapping
	ResultChunks
)

func (k ResultKind) String() string {
	switch k {
	case ResultRecords:
		return "records"
	case ResultScalar:
		return "scalar"
	case ResultMapping:
		return "mapping"
	case ResultChunks:
		return "chunks"
	default:
		return "unknown"
	}
}

// Result is the typed output of a completed plan, tagged by the operation
// that produced it.
type Result struct {
	ExecutionID string
	Op          entities.OpKind
	Kind        ResultKind

	Scalar     int
	EntityType string   // unique_entities: the counted type
	Values     []string // unique_entities: distinct values, first-seen order

	Relation *entities.Relation

	Records entities.RecordSet

	Chunks *ChunkSequence
	Metric entities.MetricKind

	Trace []entities.StepTrace

	// Index and Relations accumulate every unique_entities and
	// relate_entities step of the plan, not just the last one. Relations
	// holds both directions of each relation.
	Index     entities.EntityIndex
	Relations entities.RelationGraph
}

type chunkJSON struct {
	Index   int                 `json:"index"`
	Size    int                 `json:"size"`
	Records []map[string]string `json:"records"`
}

// MarshalJSON renders the result for downstream consumers. Chunk sequences
// are walked once during encoding.
func (r *Result) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"execution_id": r.ExecutionID,
		"operation":    r.Op.String(),
		"kind":         r.Kind.String(),
		"trace":        r.Trace,
	}
	if len(r.Index) > 0 {
		out["entities"] = r.Index
	}
	switch r.Kind {
	case ResultScalar:
		out["value"] = r.Scalar
		if r.EntityType != "" {
			out["entity_type"] = r.EntityType
			out["values"] = r.Values
		}
	case ResultMapping:
		out["type_a"] = r.Relation.TypeA
		out["type_b"] = r.Relation.TypeB
		out["value"] = r.Relation.Pairs
		out["pairings"] = r.Relation.Pairings()
	case ResultRecords:
		out["count"] = len(r.Records)
		out["value"] = ProjectRecords(r.Records)
	case ResultChunks:
		chunks := []chunkJSON{}
		for c := range r.Chunks.All() {
			chunks = append(chunks, chunkJSON{Index: c.Index, Size: c.Size, Records: ProjectRecords(c.Records)})
		}
		out["budget"] = r.Chunks.Budget()
		out["metric"] = r.Metric
		out["value"] = chunks
	}
	return json.Marshal(out)
}

// ProjectRecords renders records as column → value maps, in order.
func ProjectRecords(records entities.RecordSet) []map[string]string {
	out := make([]map[string]string, len(records))
	for i, rec := range records {
		out[i] = rec.Project()
	}
	return out
}
