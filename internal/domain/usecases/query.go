// Package usecases - query.go turns questions and raw plans into results.
package usecases

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/0xcro3dile/loglens-go/internal/domain/entities"
	"github.com/0xcro3dile/loglens-go/internal/domain/ports"
	"github.com/0xcro3dile/loglens-go/internal/logging"
)

// Answer pairs a question with the plan it produced and that plan's result.
type Answer struct {
	Question string
	Plan     []byte
	Result   *Result
}

// QueryUseCase resolves a corpus and runs plans against it.
type QueryUseCase struct {
	planner      ports.PlanSource
	store        ports.CorpusStore
	executor     *PlanExecutor
	entityFields []string
	logger       *zap.Logger
}

// NewQueryUseCase creates a QueryUseCase with injected dependencies.
// planner may be nil when only raw plans are executed.
func NewQueryUseCase(
	planner ports.PlanSource,
	store ports.CorpusStore,
	executor *PlanExecutor,
	entityFields []string,
	logger *zap.Logger,
) *QueryUseCase {
	return &QueryUseCase{
		planner:      planner,
		store:        store,
		executor:     executor,
		entityFields: entityFields,
		logger:       logging.Default(logger).Named("query"),
	}
}

// Execute runs a raw plan payload against the named corpus.
func (uc *QueryUseCase) Execute(ctx context.Context, corpusName string, raw []byte) (*Result, error) {
	corpus, err := uc.store.Get(ctx, corpusName)
	if err != nil {
		return nil, fmt.Errorf("loading corpus %q: %w", corpusName, err)
	}
	return uc.executor.ExecuteCorpus(ctx, corpus, raw)
}

// Ask asks the plan source for a plan answering question, then executes it.
// The plan is returned alongside any execution error so callers can retry
// with a corrected plan.
func (uc *QueryUseCase) Ask(ctx context.Context, corpusName, question string) (*Answer, error) {
	if uc.planner == nil {
		return nil, fmt.Errorf("no plan source configured")
	}
	corpus, err := uc.store.Get(ctx, corpusName)
	if err != nil {
		return nil, fmt.Errorf("loading corpus %q: %w", corpusName, err)
	}

	raw, err := uc.planner.Plan(ctx, entities.PlanRequest{
		Question:     question,
		Vocabulary:   entities.Vocabulary(),
		EntityFields: uc.fieldsOf(corpus),
	})
	if err != nil {
		return nil, fmt.Errorf("generating plan: %w", err)
	}
	uc.logger.Debug("plan generated", zap.String("question", question), zap.ByteString("plan", raw))

	answer := &Answer{Question: question, Plan: raw}
	answer.Result, err = uc.executor.ExecuteCorpus(ctx, corpus, raw)
	if err != nil {
		return answer, err
	}
	return answer, nil
}

// fieldsOf lists the entity columns a planner may reference for corpus.
func (uc *QueryUseCase) fieldsOf(corpus *entities.Corpus) []string {
	if len(corpus.Schema.EntityFields) > 0 {
		return corpus.Schema.EntityFields
	}
	return uc.entityFields
}
