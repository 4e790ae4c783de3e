package usecases

import (
	"strings"

	"github.com/0xcro3dile/loglens-go/internal/domain/entities"
)

// EntityManager extracts typed entity values from records and computes
// co-occurrence relations between entity types. Results are recomputed from
// the given records on every call.
type EntityManager struct {
	schema entities.Schema
}

// NewEntityManager creates an EntityManager for corpora with schema.
func NewEntityManager(schema entities.Schema) *EntityManager {
	return &EntityManager{schema: schema}
}

func (m *EntityManager) checkType(typ string) error {
	if !m.schema.IsEntityField(typ) {
		return entities.Errorf(entities.CodeEntityNotFound, "unknown entity type %q (valid: %s)",
			typ, strings.Join(m.schema.EntityFields, ", "))
	}
	return nil
}

// Extract returns the distinct values of typ in first-seen order.
// Records without the field are skipped.
func (m *EntityManager) Extract(records entities.RecordSet, typ string) ([]string, error) {
	if err := m.checkType(typ); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	values := []string{}
	for _, r := range records {
		v, ok := r.Fields[typ]
		if !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	return values, nil
}

// UniqueCount returns the number of distinct values of typ.
func (m *EntityManager) UniqueCount(records entities.RecordSet, typ string) (int, error) {
	values, err := m.Extract(records, typ)
	if err != nil {
		return 0, err
	}
	return len(values), nil
}

// Index extracts every listed type into an EntityIndex.
func (m *EntityManager) Index(records entities.RecordSet, types ...string) (entities.EntityIndex, error) {
	if len(types) == 0 {
		types = m.schema.EntityFields
	}
	idx := make(entities.EntityIndex, len(types))
	for _, typ := range types {
		values, err := m.Extract(records, typ)
		if err != nil {
			return nil, err
		}
		idx[typ] = values
	}
	return idx, nil
}

// Relate pairs typeA and typeB values on every record carrying both.
// The result is symmetric: Relate(R, B, A) equals Relate(R, A, B).Invert().
func (m *EntityManager) Relate(records entities.RecordSet, typeA, typeB string) (*entities.Relation, error) {
	if err := m.checkType(typeA); err != nil {
		return nil, err
	}
	if err := m.checkType(typeB); err != nil {
		return nil, err
	}
	rel := entities.NewRelation(typeA, typeB)
	for _, r := range records {
		a, okA := r.Fields[typeA]
		b, okB := r.Fields[typeB]
		if okA && okB {
			rel.Add(a, b)
		}
	}
	return rel, nil
}
