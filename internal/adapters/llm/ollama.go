// Package llm provides the Ollama plan source adapter.
// Clean Architecture: Adapter implementing ports.PlanSource.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/valyala/fastjson"
	"go.uber.org/zap"

	"github.com/0xcro3dile/loglens-go/internal/domain/entities"
	"github.com/0xcro3dile/loglens-go/internal/logging"
)

// ErrNoPlan is returned when the model reply holds no JSON object.
var ErrNoPlan = errors.New("model reply contains no plan object")

// OllamaPlanSource implements ports.PlanSource using the Ollama generate API.
type OllamaPlanSource struct {
	baseURL  string
	model    string
	attempts int
	client   *http.Client
	logger   *zap.Logger
}

// NewOllamaPlanSource creates a new Ollama plan source. attempts bounds how
// many times a failed or unparseable reply is requested again.
func NewOllamaPlanSource(baseURL, model string, timeout time.Duration, attempts int, logger *zap.Logger) *OllamaPlanSource {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.2"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if attempts < 1 {
		attempts = 1
	}
	return &OllamaPlanSource{
		baseURL:  strings.TrimRight(baseURL, "/"),
		model:    model,
		attempts: attempts,
		client:   &http.Client{Timeout: timeout},
		logger:   logging.Default(logger).Named("llm"),
	}
}

// ollamaGenerateRequest is the Ollama generate API request.
type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Format string `json:"format,omitempty"`
	Stream bool   `json:"stream"`
}

// ollamaGenerateResponse is the Ollama generate API response.
type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Plan asks the model for a plan answering req.Question and returns the raw
// plan object. The payload is not validated beyond being a JSON object.
func (s *OllamaPlanSource) Plan(ctx context.Context, req entities.PlanRequest) ([]byte, error) {
	prompt := BuildPrompt(req)

	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		reply, err := s.generate(ctx, prompt)
		if err == nil {
			var plan []byte
			plan, err = ExtractPlan(reply)
			if err == nil {
				return plan, nil
			}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		s.logger.Warn("plan generation attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("attempts", s.attempts),
			zap.Error(err))
	}
	return nil, fmt.Errorf("after %d attempts: %w", s.attempts, lastErr)
}

func (s *OllamaPlanSource) generate(ctx context.Context, prompt string) (string, error) {
	jsonData, err := json.Marshal(ollamaGenerateRequest{
		Model:  s.model,
		Prompt: prompt,
		Format: "json",
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/generate", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling Ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Ollama returned status %d", resp.StatusCode)
	}

	var genResp ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	return genResp.Response, nil
}

// ExtractPlan pulls the outermost JSON object out of a model reply, dropping
// markdown code fences and surrounding prose.
func ExtractPlan(reply string) ([]byte, error) {
	s := strings.TrimSpace(reply)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:] // language tag
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return nil, ErrNoPlan
	}
	obj := s[start : end+1]

	v, err := fastjson.Parse(obj)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoPlan, err)
	}
	if v.Type() != fastjson.TypeObject {
		return nil, ErrNoPlan
	}
	return []byte(obj), nil
}

// BuildPrompt renders the instruction sent to the model. It lists the closed
// operation vocabulary, the parameters each takes, and the entity fields the
// corpus recognizes.
func BuildPrompt(req entities.PlanRequest) string {
	var b strings.Builder
	b.WriteString("You translate questions about network telemetry logs into a JSON query plan.\n")
	b.WriteString("Reply with exactly one JSON object with two keys: \"operations\" and \"params\".\n")
	b.WriteString("\"operations\" is an ordered list of operation names. The first must be \"search_logs\".\n")
	b.WriteString("\"chunk_output\" may only appear last. Filters narrow the records in order.\n\n")

	b.WriteString("Operations:\n")
	for _, op := range req.Vocabulary {
		b.WriteString("- ")
		b.WriteString(op)
		if hint, ok := paramHints[op]; ok {
			b.WriteString(": ")
			b.WriteString(hint)
		}
		b.WriteByte('\n')
	}

	fmt.Fprintf(&b, "\nEntity types: %s\n", strings.Join(req.EntityFields, ", "))
	b.WriteString("Severities: info, warning, error\n\n")
	b.WriteString("Example:\n")
	b.WriteString(`{"operations": ["search_logs", "filter_severity", "count"], "params": {"query": "", "severities": ["error"]}}`)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(req.Question)
	b.WriteString("\nPlan:")
	return b.String()
}

var paramHints = map[string]string{
	"search_logs":       `params.query (string, "" matches everything)`,
	"filter_severity":   `params.severities (list of severities)`,
	"filter_time_range": `params.start, params.end (RFC3339 or epoch seconds, start inclusive, end exclusive)`,
	"filter_entity":     `params.entity_type, params.entity_value`,
	"count":             `no params, returns the number of records`,
	"unique_entities":   `params.unique_type (entity type), returns the distinct count`,
	"relate_entities":   `params.type_a, params.type_b (entity types), returns co-occurrence counts`,
	"chunk_output":      `params.budget (positive integer), params.metric ("records" or "tokens")`,
}
