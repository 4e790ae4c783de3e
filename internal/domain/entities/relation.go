package entities

// Pairing is one co-occurring (a, b) value pair and the number of records
// that carried both.
type Pairing struct {
	A     string `json:"a"`
	B     string `json:"b"`
	Count int    `json:"count"`
}

// Relation is the co-occurrence map between two entity types.
// Pairs[a][b] is the number of records carrying TypeA=a and TypeB=b.
type Relation struct {
	TypeA string
	TypeB string
	Pairs map[string]map[string]int

	order []Pairing // first-seen order; counts live in Pairs
}

// NewRelation returns an empty relation between typeA and typeB.
func NewRelation(typeA, typeB string) *Relation {
	return &Relation{
		TypeA: typeA,
		TypeB: typeB,
		Pairs: make(map[string]map[string]int),
	}
}

// Add records one co-occurrence of a and b.
func (r *Relation) Add(a, b string) {
	row, ok := r.Pairs[a]
	if !ok {
		row = make(map[string]int)
		r.Pairs[a] = row
	}
	if _, seen := row[b]; !seen {
		r.order = append(r.order, Pairing{A: a, B: b})
	}
	row[b]++
}

// Count returns how many records paired a with b.
func (r *Relation) Count(a, b string) int {
	return r.Pairs[a][b]
}

// Len returns the number of distinct pairs.
func (r *Relation) Len() int {
	return len(r.order)
}

// Pairings lists every pair with its count in first-seen order.
func (r *Relation) Pairings() []Pairing {
	out := make([]Pairing, len(r.order))
	for i, p := range r.order {
		out[i] = Pairing{A: p.A, B: p.B, Count: r.Pairs[p.A][p.B]}
	}
	return out
}

// Invert returns the same relation viewed from TypeB to TypeA.
// Every pair appears with an identical count.
func (r *Relation) Invert() *Relation {
	inv := NewRelation(r.TypeB, r.TypeA)
	for _, p := range r.order {
		row, ok := inv.Pairs[p.B]
		if !ok {
			row = make(map[string]int)
			inv.Pairs[p.B] = row
		}
		row[p.A] = r.Pairs[p.A][p.B]
		inv.order = append(inv.order, Pairing{A: p.B, B: p.A})
	}
	return inv
}

// TypePair keys a RelationGraph.
type TypePair struct {
	A, B string
}

// RelationGraph holds relations keyed by entity-type pair.
// Put stores both directions so lookups are symmetric.
type RelationGraph map[TypePair]*Relation

// Put stores rel and its inverse.
func (g RelationGraph) Put(rel *Relation) {
	g[TypePair{A: rel.TypeA, B: rel.TypeB}] = rel
	g[TypePair{A: rel.TypeB, B: rel.TypeA}] = rel.Invert()
}

// Get returns the relation from typeA to typeB, if computed.
func (g RelationGraph) Get(typeA, typeB string) (*Relation, bool) {
	rel, ok := g[TypePair{A: typeA, B: typeB}]
	return rel, ok
}
