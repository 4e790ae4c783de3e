package usecases

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/0xcro3dile/loglens-go/internal/domain/entities"
	"github.com/0xcro3dile/loglens-go/internal/logging"
)

// State is a plan execution's position in its lifecycle.
type State int

const (
	StateInit State = iota
	StateValidated
	StateRunning
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateValidated:
		return "VALIDATED"
	case StateRunning:
		return "RUNNING"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// ExecutionContext is the mutable state of one plan execution.
// It is owned by that execution and never shared.
type ExecutionContext struct {
	ID         string
	State      State
	WorkingSet entities.RecordSet
	Index      entities.EntityIndex
	Relations  entities.RelationGraph
	Trace      []entities.StepTrace
}

func newExecutionContext(corpus entities.RecordSet) *ExecutionContext {
	return &ExecutionContext{
		ID:         uuid.NewString(),
		State:      StateInit,
		WorkingSet: corpus,
		Index:      make(entities.EntityIndex),
		Relations:  make(entities.RelationGraph),
	}
}

// fail moves ec to FAILED and wraps err with the progress made so far.
func (ec *ExecutionContext) fail(index int, op string, err error) *entities.ExecError {
	ec.State = StateFailed
	return &entities.ExecError{
		Code:       entities.CodeOf(err),
		Index:      index,
		Op:         op,
		WorkingSet: ec.WorkingSet,
		Trace:      ec.Trace,
		Err:        err,
	}
}

// PlanExecutor validates plans and runs them against a record set.
// It holds no per-execution state and is safe for concurrent use.
type PlanExecutor struct {
	processor *LogProcessor
	entities  *EntityManager
	chunker   *LogChunker
	decoder   stepDecoder
	logger    *zap.Logger
}

// ExecutorOption configures a PlanExecutor.
type ExecutorOption func(*PlanExecutor)

// WithDefaultMetric sets the chunk metric used when a plan names none.
func WithDefaultMetric(m entities.MetricKind) ExecutorOption {
	return func(e *PlanExecutor) { e.decoder.defaultMetric = m }
}

// WithProcessor replaces the LogProcessor, e.g. to enable sharding.
func WithProcessor(p *LogProcessor) ExecutorOption {
	return func(e *PlanExecutor) { e.processor = p }
}

// NewPlanExecutor creates a PlanExecutor for corpora with schema.
func NewPlanExecutor(schema entities.Schema, logger *zap.Logger, opts ...ExecutorOption) *PlanExecutor {
	e := &PlanExecutor{
		processor: NewLogProcessor(schema),
		entities:  NewEntityManager(schema),
		chunker:   NewLogChunker(),
		decoder:   stepDecoder{schema: schema, defaultMetric: entities.MetricRecords},
		logger:    logging.Default(logger).Named("executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecuteCorpus runs raw against a loaded corpus. Entity types resolve
// against the corpus's own schema when it names any, otherwise against the
// schema the executor was built with.
func (e *PlanExecutor) ExecuteCorpus(ctx context.Context, c *entities.Corpus, raw []byte) (*Result, error) {
	return e.forSchema(c.Schema).Execute(ctx, c.Records, raw)
}

// forSchema returns a copy of e whose components recognize schema's
// entity columns. e itself is left untouched.
func (e *PlanExecutor) forSchema(schema entities.Schema) *PlanExecutor {
	if len(schema.EntityFields) == 0 {
		return e
	}
	cp := *e
	cp.processor = e.processor.withSchema(schema)
	cp.entities = NewEntityManager(schema)
	cp.decoder.schema = schema
	return &cp
}

// Execute validates raw and runs it against corpus. Validation failures
// return *entities.PlanError; execution failures return *entities.ExecError.
func (e *PlanExecutor) Execute(ctx context.Context, corpus entities.RecordSet, raw []byte) (*Result, error) {
	plan, err := DecodePlan(raw)
	if err != nil {
		var pe *entities.PlanError
		if errors.As(err, &pe) {
			e.logger.Info("plan rejected", zap.Int("issues", len(pe.Issues)), zap.Error(err))
		}
		return nil, err
	}
	return e.Run(ctx, corpus, plan)
}

// Run executes an already decoded plan. Each operation is decoded into a
// typed step just before it runs and consumes the previous working set.
func (e *PlanExecutor) Run(ctx context.Context, corpus entities.RecordSet, plan *entities.Plan) (*Result, error) {
	if len(plan.Operations) == 0 {
		return nil, &entities.PlanError{Issues: []entities.Issue{{
			Rule:    entities.RuleOperationsEmpty,
			Message: "plan has no operations",
		}}}
	}
	ec := newExecutionContext(corpus)
	ec.State = StateValidated
	logger := e.logger.With(zap.String("execution_id", ec.ID))
	logger.Debug("plan started", zap.Strings("operations", plan.Operations), zap.Int("records", len(corpus)))

	ec.State = StateRunning
	var res *Result
	for i, name := range plan.Operations {
		if err := ctx.Err(); err != nil {
			return nil, e.abort(logger, ec.fail(i, name, err))
		}
		step, err := e.decoder.decode(name, plan.Params)
		if err != nil {
			return nil, e.abort(logger, ec.fail(i, name, err))
		}

		started := time.Now()
		in := len(ec.WorkingSet)
		res, err = e.apply(ctx, ec, step)
		if err != nil {
			return nil, e.abort(logger, ec.fail(i, name, err))
		}
		ec.Trace = append(ec.Trace, entities.StepTrace{
			Index:   i,
			Op:      name,
			In:      in,
			Out:     len(ec.WorkingSet),
			Elapsed: time.Since(started),
		})
	}

	ec.State = StateDone
	res.ExecutionID = ec.ID
	res.Trace = ec.Trace
	res.Index = ec.Index
	res.Relations = ec.Relations
	logger.Info("plan done", zap.Stringer("result", res.Kind), zap.Stringer("op", res.Op),
		zap.Int("working_set", len(ec.WorkingSet)))
	return res, nil
}

func (e *PlanExecutor) abort(logger *zap.Logger, err *entities.ExecError) error {
	logger.Info("plan failed",
		zap.String("code", string(err.Code)),
		zap.Int("index", err.Index),
		zap.String("op", err.Op),
		zap.Int("working_set", err.WorkingSetSize()),
		zap.Error(err.Err))
	return err
}

// apply runs one step against ec. The working set only changes on success.
func (e *PlanExecutor) apply(ctx context.Context, ec *ExecutionContext, step entities.Step) (*Result, error) {
	var (
		ws  entities.RecordSet
		err error
	)
	switch s := step.(type) {
	case entities.SearchStep:
		ws, err = e.processor.Search(ctx, ec.WorkingSet, s.Query)
	case entities.FilterSeverityStep:
		ws, err = e.processor.FilterSeverity(ctx, ec.WorkingSet, s.Severities)
	case entities.FilterTimeRangeStep:
		ws, err = e.processor.FilterTimeRange(ctx, ec.WorkingSet, s.Start, s.End)
	case entities.FilterEntityStep:
		ws, err = e.processor.FilterEntity(ctx, ec.WorkingSet, s.Type, s.Value)

	case entities.CountStep:
		return &Result{Op: s.Kind(), Kind: ResultScalar, Scalar: e.processor.Count(ec.WorkingSet)}, nil

	case entities.UniqueEntitiesStep:
		idx, err := e.entities.Index(ec.WorkingSet, s.Type)
		if err != nil {
			return nil, err
		}
		values := idx[s.Type]
		ec.Index[s.Type] = values
		return &Result{Op: s.Kind(), Kind: ResultScalar, Scalar: len(values), EntityType: s.Type, Values: values}, nil

	case entities.RelateEntitiesStep:
		rel, err := e.entities.Relate(ec.WorkingSet, s.TypeA, s.TypeB)
		if err != nil {
			return nil, err
		}
		ec.Relations.Put(rel)
		return &Result{Op: s.Kind(), Kind: ResultMapping, Relation: rel}, nil

	case entities.ChunkOutputStep:
		seq, err := e.chunker.Chunk(ec.WorkingSet, s.Budget, s.Metric.Func())
		if err != nil {
			return nil, err
		}
		return &Result{Op: s.Kind(), Kind: ResultChunks, Chunks: seq, Metric: s.Metric}, nil

	default:
		return nil, entities.Errorf(entities.CodeUnknownOperation, "unsupported step %T", step)
	}
	if err != nil {
		return nil, err
	}
	ec.WorkingSet = ws
	return &Result{Op: step.Kind(), Kind: ResultRecords, Records: ws}, nil
}
