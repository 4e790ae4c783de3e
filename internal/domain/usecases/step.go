package usecases

import (
	"fmt"
	"math"
	"time"

	"github.com/0xcro3dile/loglens-go/internal/domain/entities"
)

// stepDecoder turns an operation name plus the plan's params into a typed
// step. It is the only place loosely typed params are inspected.
type stepDecoder struct {
	schema        entities.Schema
	defaultMetric entities.MetricKind
}

func (d stepDecoder) decode(name string, params map[string]any) (entities.Step, error) {
	kind, ok := entities.ParseOpKind(name)
	if !ok {
		return nil, entities.Errorf(entities.CodeUnknownOperation, "unknown operation %q", name)
	}

	switch kind {
	case entities.OpSearchLogs:
		q, _, err := stringParam(params, entities.ParamQuery)
		if err != nil {
			return nil, err
		}
		return entities.SearchStep{Query: q}, nil

	case entities.OpFilterSeverity:
		names, err := stringListParam(params, entities.ParamSeverities)
		if err != nil {
			return nil, err
		}
		sevs, err := ParseSeverities(names)
		if err != nil {
			return nil, err
		}
		return entities.FilterSeverityStep{Severities: sevs}, nil

	case entities.OpFilterTimeRange:
		start, err := timeParam(params, entities.ParamStart)
		if err != nil {
			return nil, err
		}
		end, err := timeParam(params, entities.ParamEnd)
		if err != nil {
			return nil, err
		}
		if start.After(end) {
			return nil, entities.Errorf(entities.CodeTimeRangeInvalid, "start %s is after end %s",
				start.Format(time.RFC3339), end.Format(time.RFC3339))
		}
		return entities.FilterTimeRangeStep{Start: start, End: end}, nil

	case entities.OpFilterEntity:
		typ, err := d.entityTypeParam(params, entities.ParamEntityType)
		if err != nil {
			return nil, err
		}
		value, err := requiredString(params, entities.ParamEntityValue)
		if err != nil {
			return nil, err
		}
		return entities.FilterEntityStep{Type: typ, Value: value}, nil

	case entities.OpCount:
		return entities.CountStep{}, nil

	case entities.OpUniqueEntities:
		key := entities.ParamUniqueType
		if _, ok := params[key]; !ok {
			key = entities.ParamEntityType
		}
		typ, err := d.entityTypeParam(params, key)
		if err != nil {
			return nil, err
		}
		return entities.UniqueEntitiesStep{Type: typ}, nil

	case entities.OpRelateEntities:
		a, err := d.entityTypeParam(params, entities.ParamTypeA)
		if err != nil {
			return nil, err
		}
		b, err := d.entityTypeParam(params, entities.ParamTypeB)
		if err != nil {
			return nil, err
		}
		return entities.RelateEntitiesStep{TypeA: a, TypeB: b}, nil

	case entities.OpChunkOutput:
		budget, err := intParam(params, entities.ParamBudget)
		if err != nil {
			return nil, err
		}
		if budget <= 0 {
			return nil, entities.Errorf(entities.CodeInvalidParam, "%s must be > 0, got %d", entities.ParamBudget, budget)
		}
		metric := d.defaultMetric
		if s, ok, err := stringParam(params, entities.ParamMetric); err != nil {
			return nil, err
		} else if ok {
			m, valid := entities.ParseMetricKind(s)
			if !valid {
				return nil, entities.Errorf(entities.CodeInvalidParam, "%s: unknown metric %q (valid: records, tokens)", entities.ParamMetric, s)
			}
			metric = m
		}
		return entities.ChunkOutputStep{Budget: budget, Metric: metric}, nil
	}

	return nil, entities.Errorf(entities.CodeUnknownOperation, "unknown operation %q", name)
}

// entityTypeParam resolves an entity type param against the schema. Names
// are folded the same way header columns are.
func (d stepDecoder) entityTypeParam(params map[string]any, key string) (string, error) {
	raw, err := requiredString(params, key)
	if err != nil {
		return "", err
	}
	typ := entities.NormalizeColumn(raw)
	if !d.schema.IsEntityField(typ) {
		return "", entities.Errorf(entities.CodeEntityNotFound, "%s: unknown entity type %q", key, raw)
	}
	return typ, nil
}

// stringParam returns params[key] as a string. ok is false when absent or null.
func stringParam(params map[string]any, key string) (string, bool, error) {
	v, present := params[key]
	if !present || v == nil {
		return "", false, nil
	}
	s, isString := v.(string)
	if !isString {
		return "", false, entities.Errorf(entities.CodeInvalidParam, "%s must be a string, got %s", key, typeName(v))
	}
	return s, true, nil
}

func requiredString(params map[string]any, key string) (string, error) {
	s, ok, err := stringParam(params, key)
	if err != nil {
		return "", err
	}
	if !ok || s == "" {
		return "", entities.Errorf(entities.CodeInvalidParam, "%s is required", key)
	}
	return s, nil
}

func stringListParam(params map[string]any, key string) ([]string, error) {
	v, present := params[key]
	if !present || v == nil {
		return nil, entities.Errorf(entities.CodeInvalidParam, "%s is required", key)
	}
	items, ok := v.([]any)
	if !ok {
		return nil, entities.Errorf(entities.CodeInvalidParam, "%s must be a list, got %s", key, typeName(v))
	}
	out := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, entities.Errorf(entities.CodeInvalidParam, "%s[%d] must be a string, got %s", key, i, typeName(item))
		}
		out[i] = s
	}
	return out, nil
}

func intParam(params map[string]any, key string) (int, error) {
	v, present := params[key]
	if !present || v == nil {
		return 0, entities.Errorf(entities.CodeInvalidParam, "%s is required", key)
	}
	f, ok := v.(float64)
	if !ok {
		return 0, entities.Errorf(entities.CodeInvalidParam, "%s must be an integer, got %s", key, typeName(v))
	}
	if f != math.Trunc(f) || f >= math.MaxInt || f <= math.MinInt {
		return 0, entities.Errorf(entities.CodeInvalidParam, "%s must be an integer, got %v", key, f)
	}
	return int(f), nil
}

// timeParam accepts a timestamp string or Unix epoch seconds.
func timeParam(params map[string]any, key string) (time.Time, error) {
	v, present := params[key]
	if !present || v == nil {
		return time.Time{}, entities.Errorf(entities.CodeInvalidParam, "%s is required", key)
	}
	switch t := v.(type) {
	case string:
		ts, err := entities.ParseTimestamp(t)
		if err != nil {
			return time.Time{}, entities.Errorf(entities.CodeInvalidParam, "%s: %v", key, err)
		}
		return ts, nil
	case float64:
		ts, err := entities.EpochSeconds(t)
		if err != nil {
			return time.Time{}, entities.Errorf(entities.CodeInvalidParam, "%s: %v", key, err)
		}
		return ts, nil
	default:
		return time.Time{}, entities.Errorf(entities.CodeInvalidParam, "%s must be a timestamp, got %s", key, typeName(v))
	}
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "list"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
