// Package entities contains core business entities.
// These are pure domain objects: log records, the corpus they live in,
// the entity index and relation types derived from them, and chunks.
package entities

import (
	"strings"
	"time"
)

// Column names every corpus understands.
const (
	FieldTimestamp = "timestamp"
	FieldSeverity  = "severity"
	FieldMessage   = "message"

	FieldCMMac   = "cm_mac"
	FieldRPDName = "rpdname"
	FieldMDID    = "md_id"
)

// DefaultEntityFields are the recognized entity columns for network telemetry logs.
var DefaultEntityFields = []string{FieldCMMac, FieldRPDName, FieldMDID}

// BaseColumns must be present in every corpus header.
var BaseColumns = []string{FieldTimestamp, FieldSeverity, FieldMessage}

// NormalizeColumn folds a header or configured column name to its canonical
// form: trimmed, lower-case, spaces replaced by underscores.
func NormalizeColumn(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, " ", "_")
}

// NormalizeColumns applies NormalizeColumn to every name.
func NormalizeColumns(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = NormalizeColumn(n)
	}
	return out
}

// IsBaseColumn reports whether name, once normalized, is a base column.
func IsBaseColumn(name string) bool {
	name = NormalizeColumn(name)
	for _, b := range BaseColumns {
		if b == name {
			return true
		}
	}
	return false
}

// Severity is the closed set of log severities.
type Severity int

const (
	SeverityUnknown Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseSeverity maps a severity literal to a Severity. Matching is
// case-insensitive and accepts the common short forms.
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info", "information":
		return SeverityInfo, true
	case "warning", "warn":
		return SeverityWarning, true
	case "error", "err":
		return SeverityError, true
	default:
		return SeverityUnknown, false
	}
}

// LogRecord is one ingested log line. Immutable once loaded.
type LogRecord struct {
	Line      int // 1-based data row in the source
	Timestamp time.Time
	Severity  Severity
	Message   string
	Fields    map[string]string // recognized entity fields present on this record
	Extra     map[string]string // unrecognized columns, kept for projection only
}

// Field returns the value of a recognized entity field.
func (r *LogRecord) Field(name string) (string, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// Project renders the record as a flat column → value mapping,
// including unrecognized columns.
func (r *LogRecord) Project() map[string]string {
	out := make(map[string]string, 3+len(r.Fields)+len(r.Extra))
	for k, v := range r.Extra {
		out[k] = v
	}
	for k, v := range r.Fields {
		out[k] = v
	}
	out[FieldTimestamp] = r.Timestamp.UTC().Format(time.RFC3339Nano)
	out[FieldSeverity] = r.Severity.String()
	out[FieldMessage] = r.Message
	return out
}

// RecordSet is an ordered sequence of records in ingestion order.
// Filtering produces new RecordSets that share the underlying records.
type RecordSet []*LogRecord

// Schema describes a corpus header.
type Schema struct {
	Columns      []string // header order, normalized
	EntityFields []string // recognized entity columns
}

// IsEntityField reports whether name is a recognized entity column.
func (s Schema) IsEntityField(name string) bool {
	for _, f := range s.EntityFields {
		if f == name {
			return true
		}
	}
	return false
}

// HasColumn reports whether the header carried name.
func (s Schema) HasColumn(name string) bool {
	for _, c := range s.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Corpus is a loaded, read-only record set plus its schema.
type Corpus struct {
	Name     string
	Source   string
	Schema   Schema
	Records  RecordSet
	LoadedAt time.Time
}

// EntityIndex maps an entity type to its distinct values in first-seen order.
type EntityIndex map[string][]string

// Chunk is a contiguous, order-preserving slice of a record sequence.
type Chunk struct {
	Index   int
	Records RecordSet
	Size    int // size under the metric that produced the chunk
}

// SizeMetric measures a single record for chunk budgeting.
type SizeMetric func(*LogRecord) int

// MetricKind selects a SizeMetric by name.
type MetricKind string

const (
	MetricRecords MetricKind = "records"
	MetricTokens  MetricKind = "tokens"
)

// ParseMetricKind resolves a metric name. The empty name selects records.
func ParseMetricKind(s string) (MetricKind, bool) {
	switch MetricKind(strings.ToLower(strings.TrimSpace(s))) {
	case "", MetricRecords:
		return MetricRecords, true
	case MetricTokens:
		return MetricTokens, true
	default:
		return "", false
	}
}

// Func returns the SizeMetric for k.
func (k MetricKind) Func() SizeMetric {
	if k == MetricTokens {
		return TokenEstimate
	}
	return RecordCount
}

// RecordCount counts every record as one unit.
func RecordCount(*LogRecord) int { return 1 }

// TokenEstimate approximates the language-model tokens a record costs
// (~4 bytes per token over message and field values).
func TokenEstimate(r *LogRecord) int {
	n := len(r.Message) + len(time.RFC3339) + len(r.Severity.String())
	for k, v := range r.Fields {
		n += len(k) + len(v)
	}
	tokens := n / 4
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
