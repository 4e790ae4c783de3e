package usecases

import (
	"iter"

	"github.com/0xcro3dile/loglens-go/internal/domain/entities"
)

// LogChunker splits record sequences into size-bounded chunks.
type LogChunker struct{}

// NewLogChunker creates a LogChunker.
func NewLogChunker() *LogChunker {
	return &LogChunker{}
}

// Chunk returns the lazy chunk sequence of records under budget.
// A nil metric counts records.
func (c *LogChunker) Chunk(records entities.RecordSet, budget int, metric entities.SizeMetric) (*ChunkSequence, error) {
	if budget <= 0 {
		return nil, entities.Errorf(entities.CodeInvalidParam, "%s must be > 0, got %d", entities.ParamBudget, budget)
	}
	if metric == nil {
		metric = entities.RecordCount
	}
	return &ChunkSequence{records: records, budget: budget, metric: metric}, nil
}

// ChunkSequence is a finite, restartable sequence of chunks. It holds no
// iteration state; each Iter call starts an independent pass.
type ChunkSequence struct {
	records entities.RecordSet
	budget  int
	metric  entities.SizeMetric
}

// Budget returns the per-chunk size budget.
func (s *ChunkSequence) Budget() int { return s.budget }

// Records returns the full sequence being chunked.
func (s *ChunkSequence) Records() entities.RecordSet { return s.records }

// Iter starts a new pass over the chunks.
func (s *ChunkSequence) Iter() *ChunkIterator {
	return &ChunkIterator{seq: s}
}

// All yields every chunk in order.
func (s *ChunkSequence) All() iter.Seq[entities.Chunk] {
	return func(yield func(entities.Chunk) bool) {
		it := s.Iter()
		for {
			c, ok := it.Next()
			if !ok || !yield(c) {
				return
			}
		}
	}
}

// Collect materializes every chunk.
func (s *ChunkSequence) Collect() []entities.Chunk {
	var out []entities.Chunk
	for c := range s.All() {
		out = append(out, c)
	}
	return out
}

// ChunkIterator walks one pass of a ChunkSequence.
type ChunkIterator struct {
	seq   *ChunkSequence
	pos   int
	index int
}

// Next returns the next chunk, or false once the records are exhausted.
// Records are packed greedily; a record larger than the budget on its own
// becomes a one-record chunk.
func (it *ChunkIterator) Next() (entities.Chunk, bool) {
	records := it.seq.records
	if it.pos >= len(records) {
		return entities.Chunk{}, false
	}

	start := it.pos
	size := it.seq.metric(records[start])
	it.pos++
	for it.pos < len(records) {
		next := it.seq.metric(records[it.pos])
		if size+next > it.seq.budget {
			break
		}
		size += next
		it.pos++
	}

	c := entities.Chunk{
		Index:   it.index,
		Records: records[start:it.pos:it.pos],
		Size:    size,
	}
	it.index++
	return c, true
}
