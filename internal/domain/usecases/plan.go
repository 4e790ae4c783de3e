package usecases

import (
	"fmt"

	"github.com/valyala/fastjson"
	"go.uber.org/multierr"

	"github.com/0xcro3dile/loglens-go/internal/domain/entities"
)

const (
	keyOperations = "operations"
	keyParams     = "params"
)

var planParsers fastjson.ParserPool

// DecodePlan validates a raw plan payload and decodes it. Every violated
// rule is reported in a single *entities.PlanError; nothing is repaired.
func DecodePlan(raw []byte) (*entities.Plan, error) {
	p := planParsers.Get()
	defer planParsers.Put(p)

	v, err := p.ParseBytes(raw)
	if err != nil {
		return nil, &entities.PlanError{Issues: []entities.Issue{{
			Rule:    entities.RuleMalformedJSON,
			Message: err.Error(),
		}}}
	}
	obj, err := v.Object()
	if err != nil {
		return nil, &entities.PlanError{Issues: []entities.Issue{{
			Rule:    entities.RuleNotObject,
			Message: fmt.Sprintf("plan must be a JSON object, got %s", v.Type()),
		}}}
	}

	var errs error
	issue := func(rule, format string, args ...any) {
		errs = multierr.Append(errs, entities.Issue{Rule: rule, Message: fmt.Sprintf(format, args...)})
	}

	obj.Visit(func(key []byte, _ *fastjson.Value) {
		if k := string(key); k != keyOperations && k != keyParams {
			issue(entities.RuleUnexpectedKey, "unexpected top-level key %q", k)
		}
	})

	plan := &entities.Plan{}

	ops := obj.Get(keyOperations)
	switch {
	case ops == nil:
		issue(entities.RuleOperationsMissing, "%q key is required", keyOperations)
	case ops.Type() != fastjson.TypeArray:
		issue(entities.RuleOperationsNotList, "%q must be a list, got %s", keyOperations, ops.Type())
	default:
		items, _ := ops.Array()
		if len(items) == 0 {
			issue(entities.RuleOperationsEmpty, "%q must not be empty", keyOperations)
		}
		for i, item := range items {
			if item.Type() != fastjson.TypeString {
				issue(entities.RuleOperationNotName, "operation %d must be a string, got %s", i, item.Type())
				plan.Operations = append(plan.Operations, "")
				continue
			}
			plan.Operations = append(plan.Operations, string(item.GetStringBytes()))
		}
		if len(items) > 0 && items[0].Type() == fastjson.TypeString && plan.Operations[0] != entities.OpSearchLogs.String() {
			issue(entities.RuleFirstOperation, "first operation must be %q, got %q", entities.OpSearchLogs, plan.Operations[0])
		}
		chunkName := entities.OpChunkOutput.String()
		for i, name := range plan.Operations {
			if name == chunkName && i != len(plan.Operations)-1 {
				issue(entities.RuleChunkNotLast, "%q at position %d must be the last operation", chunkName, i)
			}
		}
	}

	params := obj.Get(keyParams)
	switch {
	case params == nil:
		issue(entities.RuleParamsMissing, "%q key is required", keyParams)
	case params.Type() != fastjson.TypeObject:
		issue(entities.RuleParamsNotObject, "%q must be an object, got %s", keyParams, params.Type())
	default:
		plan.Params = toGo(params).(map[string]any)
	}

	if errs != nil {
		pe := &entities.PlanError{}
		for _, e := range multierr.Errors(errs) {
			pe.Issues = append(pe.Issues, e.(entities.Issue))
		}
		return nil, pe
	}
	return plan, nil
}

// toGo copies a fastjson value into plain Go values so it outlives the parser.
func toGo(v *fastjson.Value) any {
	switch v.Type() {
	case fastjson.TypeObject:
		obj, _ := v.Object()
		out := make(map[string]any, obj.Len())
		obj.Visit(func(key []byte, val *fastjson.Value) {
			out[string(key)] = toGo(val)
		})
		return out
	case fastjson.TypeArray:
		items, _ := v.Array()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = toGo(item)
		}
		return out
	case fastjson.TypeString:
		return string(v.GetStringBytes())
	case fastjson.TypeNumber:
		return v.GetFloat64()
	case fastjson.TypeTrue:
		return true
	case fastjson.TypeFalse:
		return false
	default:
		return nil
	}
}
