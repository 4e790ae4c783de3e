package entities

import (
	"errors"
	"fmt"
	"strings"
)

// Code is a stable error category. Codes are usable as errors.Is targets:
//
//	errors.Is(err, entities.CodeInvalidPlan)
type Code string

const (
	CodeSchema           Code = "SCHEMA_ERROR"
	CodeInvalidPlan      Code = "INVALID_PLAN"
	CodeUnknownOperation Code = "UNKNOWN_OPERATION"
	CodeInvalidParam     Code = "INVALID_PARAM"
	CodeTimeRangeInvalid Code = "TIME_RANGE_INVALID"
	CodeEntityNotFound   Code = "ENTITY_NOT_FOUND"
)

func (c Code) Error() string { return string(c) }

// ErrCorpusNotFound is returned when a named corpus has not been loaded.
var ErrCorpusNotFound = errors.New("corpus not found")

// CodeError is a categorized failure raised by a component.
type CodeError struct {
	Code    Code
	Message string
}

// Errorf builds a CodeError.
func Errorf(code Code, format string, args ...any) *CodeError {
	return &CodeError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *CodeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CodeError) Unwrap() error { return e.Code }

// CodeOf extracts the category of err, or "" if it has none.
func CodeOf(err error) Code {
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return ""
}

// Issue is one violated plan rule.
type Issue struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func (i Issue) Error() string {
	return i.Rule + ": " + i.Message
}

// Plan validation rules.
const (
	RuleMalformedJSON     = "malformed_json"
	RuleNotObject         = "payload_not_object"
	RuleUnexpectedKey     = "unexpected_key"
	RuleOperationsMissing = "operations_missing"
	RuleOperationsNotList = "operations_not_list"
	RuleOperationsEmpty   = "operations_empty"
	RuleOperationNotName  = "operation_not_string"
	RuleParamsMissing     = "params_missing"
	RuleParamsNotObject   = "params_not_object"
	RuleFirstOperation    = "first_operation"
	RuleChunkNotLast      = "chunk_output_not_last"
)

// PlanError reports every structural problem found in a plan payload.
type PlanError struct {
	Issues []Issue
}

func (e *PlanError) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		msgs[i] = is.Error()
	}
	return fmt.Sprintf("%s: %s", CodeInvalidPlan, strings.Join(msgs, "; "))
}

func (e *PlanError) Unwrap() error { return CodeInvalidPlan }

// HasRule reports whether rule is among the issues.
func (e *PlanError) HasRule(rule string) bool {
	for _, is := range e.Issues {
		if is.Rule == rule {
			return true
		}
	}
	return false
}

// ExecError aborts a running plan. It carries how far execution got.
type ExecError struct {
	Code       Code
	Index      int    // position of the failing operation
	Op         string // name of the failing operation as received
	WorkingSet RecordSet
	Trace      []StepTrace // operations that completed before the failure
	Err        error
}

func (e *ExecError) Error() string {
	code := string(e.Code)
	if code == "" {
		code = "EXECUTION_ABORTED"
	}
	return fmt.Sprintf("%s at operation %d (%s): %v", code, e.Index, e.Op, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// WorkingSetSize is the size of the last successfully computed working set.
func (e *ExecError) WorkingSetSize() int { return len(e.WorkingSet) }

// SchemaError rejects an unreadable or malformed corpus.
type SchemaError struct {
	Source  string
	Line    int    // 0 when the header itself is at fault
	Column  string // offending column, if any
	Message string
	Err     error
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString(string(CodeSchema))
	if e.Source != "" {
		b.WriteString(" in ")
		b.WriteString(e.Source)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " line %d", e.Line)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, " column %q", e.Column)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *SchemaError) Unwrap() []error {
	if e.Err == nil {
		return []error{CodeSchema}
	}
	return []error{CodeSchema, e.Err}
}
