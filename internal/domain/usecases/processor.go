package usecases

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/0xcro3dile/loglens-go/internal/domain/entities"
)

// LogProcessor performs free-text search and field-level filtering over a
// RecordSet. Every operation is order-stable: output keeps input order.
type LogProcessor struct {
	schema         entities.Schema
	shards         int
	shardThreshold int
}

// ProcessorOption configures a LogProcessor.
type ProcessorOption func(*LogProcessor)

// WithSharding splits working sets of at least threshold records into
// shards contiguous partitions that are filtered in parallel.
func WithSharding(shards, threshold int) ProcessorOption {
	return func(p *LogProcessor) {
		p.shards = shards
		p.shardThreshold = threshold
	}
}

// NewLogProcessor creates a LogProcessor for corpora with schema.
func NewLogProcessor(schema entities.Schema, opts ...ProcessorOption) *LogProcessor {
	p := &LogProcessor{schema: schema, shards: 1}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// withSchema returns a copy of p that recognizes schema's entity columns.
func (p *LogProcessor) withSchema(schema entities.Schema) *LogProcessor {
	cp := *p
	cp.schema = schema
	return &cp
}

// Search keeps records whose message or any recognized entity value
// contains query, case-insensitively. An empty query is the identity.
func (p *LogProcessor) Search(ctx context.Context, records entities.RecordSet, query string) (entities.RecordSet, error) {
	if query == "" {
		return records, nil
	}
	q := strings.ToLower(query)
	return p.filter(ctx, records, func(r *entities.LogRecord) bool {
		if containsFold(r.Message, q) {
			return true
		}
		for _, f := range p.schema.EntityFields {
			if v, ok := r.Fields[f]; ok && containsFold(v, q) {
				return true
			}
		}
		return false
	})
}

// ParseSeverities resolves severity literals. Any unknown literal is an
// INVALID_PARAM error naming all of them.
func ParseSeverities(names []string) ([]entities.Severity, error) {
	if len(names) == 0 {
		return nil, entities.Errorf(entities.CodeInvalidParam, "%s must list at least one severity", entities.ParamSeverities)
	}
	out := make([]entities.Severity, 0, len(names))
	var unknown []string
	for _, n := range names {
		sev, ok := entities.ParseSeverity(n)
		if !ok {
			unknown = append(unknown, n)
			continue
		}
		out = append(out, sev)
	}
	if len(unknown) > 0 {
		return nil, entities.Errorf(entities.CodeInvalidParam, "unknown severity %q (valid: info, warning, error)", unknown)
	}
	return out, nil
}

// FilterSeverity keeps records whose severity is in severities.
func (p *LogProcessor) FilterSeverity(ctx context.Context, records entities.RecordSet, severities []entities.Severity) (entities.RecordSet, error) {
	var want [entities.SeverityError + 1]bool
	for _, s := range severities {
		if s <= entities.SeverityUnknown || s > entities.SeverityError {
			return nil, entities.Errorf(entities.CodeInvalidParam, "invalid severity %d", s)
		}
		want[s] = true
	}
	return p.filter(ctx, records, func(r *entities.LogRecord) bool {
		return want[r.Severity]
	})
}

// FilterTimeRange keeps records with start <= timestamp < end.
func (p *LogProcessor) FilterTimeRange(ctx context.Context, records entities.RecordSet, start, end time.Time) (entities.RecordSet, error) {
	if start.After(end) {
		return nil, entities.Errorf(entities.CodeTimeRangeInvalid, "start %s is after end %s",
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return p.filter(ctx, records, func(r *entities.LogRecord) bool {
		return !r.Timestamp.Before(start) && r.Timestamp.Before(end)
	})
}

// FilterEntity keeps records whose field typ equals value, case-insensitively.
func (p *LogProcessor) FilterEntity(ctx context.Context, records entities.RecordSet, typ, value string) (entities.RecordSet, error) {
	if !p.schema.IsEntityField(typ) {
		return nil, entities.Errorf(entities.CodeEntityNotFound, "unknown entity type %q (valid: %s)",
			typ, strings.Join(p.schema.EntityFields, ", "))
	}
	return p.filter(ctx, records, func(r *entities.LogRecord) bool {
		v, ok := r.Fields[typ]
		return ok && strings.EqualFold(v, value)
	})
}

// Count returns the number of records.
func (p *LogProcessor) Count(records entities.RecordSet) int {
	return len(records)
}

// filter applies keep to records. Large inputs are partitioned into
// contiguous shards filtered concurrently; shard outputs are concatenated
// in shard order so the result keeps ingestion order.
func (p *LogProcessor) filter(ctx context.Context, records entities.RecordSet, keep func(*entities.LogRecord) bool) (entities.RecordSet, error) {
	if p.shards <= 1 || len(records) < p.shardThreshold || len(records) < p.shards {
		out := make(entities.RecordSet, 0, len(records)/4)
		for _, r := range records {
			if keep(r) {
				out = append(out, r)
			}
		}
		return out, nil
	}

	parts := make([]entities.RecordSet, p.shards)
	size := (len(records) + p.shards - 1) / p.shards

	g, gctx := errgroup.WithContext(ctx)
	for i := range parts {
		lo := i * size
		if lo >= len(records) {
			break
		}
		hi := min(lo+size, len(records))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var part entities.RecordSet
			for _, r := range records[lo:hi] {
				if keep(r) {
					part = append(part, r)
				}
			}
			parts[i] = part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, part := range parts {
		total += len(part)
	}
	out := make(entities.RecordSet, 0, total)
	for _, part := range parts {
		out = append(out, part...)
	}
	return out, nil
}

// containsFold reports whether s contains the lower-cased needle.
func containsFold(s, lowerNeedle string) bool {
	return strings.Contains(strings.ToLower(s), lowerNeedle)
}
