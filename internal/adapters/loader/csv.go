// Package loader provides corpus loading adapters.
package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/0xcro3dile/loglens-go/internal/domain/entities"
	"github.com/0xcro3dile/loglens-go/internal/domain/ports"
)

// Compression suffixes, stripped before the format suffix is inspected.
const (
	extGzip = ".gz"
	extZstd = ".zst"
)

// CSVLoader loads delimited log exports (.csv, .tsv), optionally gzip or
// zstd compressed.
type CSVLoader struct{}

// NewCSVLoader creates a new CSV corpus loader.
func NewCSVLoader() *CSVLoader {
	return &CSVLoader{}
}

// SupportedExtensions returns file suffixes this loader handles.
func (l *CSVLoader) SupportedExtensions() []string {
	return []string{
		".csv", ".tsv",
		".csv" + extGzip, ".tsv" + extGzip,
		".csv" + extZstd, ".tsv" + extZstd,
	}
}

// Supports reports whether path carries one of the supported suffixes.
func (l *CSVLoader) Supports(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range l.SupportedExtensions() {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Load reads the corpus at path. Nothing is returned unless every row is
// valid.
func (l *CSVLoader) Load(ctx context.Context, path string, opts ports.LoadOptions) (*entities.Corpus, error) {
	if !l.Supports(path) {
		return nil, &entities.SchemaError{Source: path, Message: "unsupported file type"}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &entities.SchemaError{Source: path, Message: "cannot open", Err: err}
	}
	defer f.Close()

	r, closeFn, err := decompress(f, path)
	if err != nil {
		return nil, &entities.SchemaError{Source: path, Message: "cannot decompress", Err: err}
	}
	defer closeFn()

	return Read(ctx, r, path, delimiterFor(path), opts)
}

// decompress wraps r according to the compression suffix of path.
func decompress(r io.Reader, path string) (io.Reader, func(), error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, extGzip):
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return gz, func() { _ = gz.Close() }, nil
	case strings.HasSuffix(lower, extZstd):
		zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, nil, err
		}
		return zr, zr.Close, nil
	default:
		return r, func() {}, nil
	}
}

func delimiterFor(path string) rune {
	lower := strings.ToLower(path)
	lower = strings.TrimSuffix(lower, extGzip)
	lower = strings.TrimSuffix(lower, extZstd)
	if strings.HasSuffix(lower, ".tsv") {
		return '\t'
	}
	return ','
}

// Read parses a delimited record stream. source names the stream in errors.
// ctx is checked before every row.
func Read(ctx context.Context, r io.Reader, source string, comma rune, opts ports.LoadOptions) (*entities.Corpus, error) {
	if len(opts.EntityFields) == 0 {
		opts.EntityFields = entities.DefaultEntityFields
	}

	cr := csv.NewReader(r)
	cr.Comma = comma
	// Leading-space trimming would swallow empty tab-separated cells.
	cr.TrimLeadingSpace = comma != '\t'

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &entities.SchemaError{Source: source, Message: "empty input, no header"}
	}
	if err != nil {
		return nil, rowError(source, err)
	}

	schema, err := parseHeader(source, header, opts)
	if err != nil {
		return nil, err
	}
	cols := newColumnMap(schema)

	var records entities.RecordSet
	for row := 1; ; row++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, rowError(source, err)
		}
		line, _ := cr.FieldPos(0)

		rec, err := cols.record(row, fields)
		if err != nil {
			var se *entities.SchemaError
			if errors.As(err, &se) {
				se.Source = source
				se.Line = line
			}
			return nil, err
		}
		records = append(records, rec)
	}

	return &entities.Corpus{
		Source:   source,
		Schema:   schema,
		Records:  records,
		LoadedAt: time.Now(),
	}, nil
}

func rowError(source string, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &entities.SchemaError{Source: source, Line: pe.Line, Message: "malformed row", Err: pe.Err}
	}
	return &entities.SchemaError{Source: source, Message: "read failed", Err: err}
}

// parseHeader normalizes column names and enforces the base and required
// columns.
func parseHeader(source string, header []string, opts ports.LoadOptions) (entities.Schema, error) {
	columns := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		name := entities.NormalizeColumn(h)
		if name == "" {
			return entities.Schema{}, &entities.SchemaError{Source: source, Message: fmt.Sprintf("header column %d is blank", i+1)}
		}
		if seen[name] {
			return entities.Schema{}, &entities.SchemaError{Source: source, Column: name, Message: "duplicate column"}
		}
		seen[name] = true
		columns[i] = name
	}

	required := append(append([]string{}, entities.BaseColumns...), opts.Required...)
	for _, name := range required {
		name = entities.NormalizeColumn(name)
		if !seen[name] {
			return entities.Schema{}, &entities.SchemaError{Source: source, Column: name, Message: "required column missing from header"}
		}
	}

	return entities.Schema{Columns: columns, EntityFields: entities.NormalizeColumns(opts.EntityFields)}, nil
}

type columnRole int

const (
	roleExtra columnRole = iota
	roleTimestamp
	roleSeverity
	roleMessage
	roleEntity
)

// columnMap resolves each header position to its role once per load.
type columnMap struct {
	names []string
	roles []columnRole
}

func newColumnMap(schema entities.Schema) columnMap {
	m := columnMap{names: schema.Columns, roles: make([]columnRole, len(schema.Columns))}
	for i, name := range schema.Columns {
		switch {
		case name == entities.FieldTimestamp:
			m.roles[i] = roleTimestamp
		case name == entities.FieldSeverity:
			m.roles[i] = roleSeverity
		case name == entities.FieldMessage:
			m.roles[i] = roleMessage
		case schema.IsEntityField(name):
			m.roles[i] = roleEntity
		}
	}
	return m
}

// record builds a LogRecord from one row. Empty entity and extra cells are
// treated as absent.
func (m columnMap) record(row int, fields []string) (*entities.LogRecord, error) {
	rec := &entities.LogRecord{Line: row, Fields: map[string]string{}}
	for i, raw := range fields {
		v := strings.TrimSpace(raw)
		switch m.roles[i] {
		case roleTimestamp:
			ts, err := entities.ParseTimestamp(v)
			if err != nil {
				return nil, &entities.SchemaError{Column: m.names[i], Message: "invalid timestamp", Err: err}
			}
			rec.Timestamp = ts
		case roleSeverity:
			sev, ok := entities.ParseSeverity(v)
			if !ok {
				return nil, &entities.SchemaError{Column: m.names[i], Message: fmt.Sprintf("unknown severity %q", v)}
			}
			rec.Severity = sev
		case roleMessage:
			rec.Message = raw
		case roleEntity:
			if v != "" {
				rec.Fields[m.names[i]] = v
			}
		default:
			if v != "" {
				if rec.Extra == nil {
					rec.Extra = map[string]string{}
				}
				rec.Extra[m.names[i]] = v
			}
		}
	}
	return rec, nil
}
