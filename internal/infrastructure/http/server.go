// Package http provides the HTTP server infrastructure.
// Clean Architecture: Framework/driver layer - outermost circle.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/0xcro3dile/loglens-go/internal/domain/entities"
	"github.com/0xcro3dile/loglens-go/internal/domain/ports"
	"github.com/0xcro3dile/loglens-go/internal/domain/usecases"
	"github.com/0xcro3dile/loglens-go/internal/logging"
)

const maxBodyBytes = 1 << 20

// Server is the HTTP server for the plan API.
type Server struct {
	queryUseCase  *usecases.QueryUseCase
	ingestUseCase *usecases.IngestUseCase
	store         ports.CorpusStore
	defaultCorpus string
	addr          string
	logger        *zap.Logger
}

// NewServer creates a new HTTP server. Requests that name no corpus use
// defaultCorpus.
func NewServer(
	queryUC *usecases.QueryUseCase,
	ingestUC *usecases.IngestUseCase,
	store ports.CorpusStore,
	defaultCorpus string,
	addr string,
	logger *zap.Logger,
) *Server {
	return &Server{
		queryUseCase:  queryUC,
		ingestUseCase: ingestUC,
		store:         store,
		defaultCorpus: defaultCorpus,
		addr:          addr,
		logger:        logging.Default(logger).Named("http"),
	}
}

// Handler returns the routed API with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/plan", s.handlePlan)
	mux.HandleFunc("POST /api/query", s.handleQuery)
	mux.HandleFunc("GET /api/corpus", s.handleListCorpora)
	mux.HandleFunc("POST /api/corpus", s.handleLoadCorpus)
	mux.HandleFunc("DELETE /api/corpus/{name}", s.handleDeleteCorpus)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	return corsMiddleware(s.loggingMiddleware(mux))
}

// Start runs the HTTP server until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 300 * time.Second, // ask waits on the model
	}

	s.logger.Info("server starting", zap.String("addr", s.addr))

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) corpusName(r *http.Request, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	if q := r.URL.Query().Get("corpus"); q != "" {
		return q
	}
	return s.defaultCorpus
}

// handlePlan executes a raw plan payload. The body is the plan itself.
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: err.Error()})
		return
	}

	res, err := s.queryUseCase.Execute(r.Context(), s.corpusName(r, ""), raw)
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type queryRequest struct {
	Question string `json:"question"`
	Corpus   string `json:"corpus"`
}

type answerBody struct {
	Question string           `json:"question"`
	Plan     json.RawMessage  `json:"plan"`
	Result   *usecases.Result `json:"result"`
}

// handleQuery turns a question into a plan and executes it.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return
	}
	if req.Question == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "question required"})
		return
	}

	answer, err := s.queryUseCase.Ask(r.Context(), s.corpusName(r, req.Corpus), req.Question)
	if err != nil {
		var plan json.RawMessage
		if answer != nil {
			plan = answer.Plan
		}
		s.writeError(w, err, plan)
		return
	}
	writeJSON(w, http.StatusOK, answerBody{
		Question: answer.Question,
		Plan:     answer.Plan,
		Result:   answer.Result,
	})
}

type corpusInfo struct {
	Name         string    `json:"name"`
	Source       string    `json:"source"`
	Records      int       `json:"records"`
	Columns      []string  `json:"columns"`
	EntityFields []string  `json:"entity_fields"`
	LoadedAt     time.Time `json:"loaded_at"`
}

func newCorpusInfo(c *entities.Corpus) corpusInfo {
	return corpusInfo{
		Name:         c.Name,
		Source:       c.Source,
		Records:      len(c.Records),
		Columns:      c.Schema.Columns,
		EntityFields: c.Schema.EntityFields,
		LoadedAt:     c.LoadedAt,
	}
}

func (s *Server) handleListCorpora(w http.ResponseWriter, r *http.Request) {
	corpora, err := s.store.List(r.Context())
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	out := make([]corpusInfo, len(corpora))
	for i, c := range corpora {
		out[i] = newCorpusInfo(c)
	}
	writeJSON(w, http.StatusOK, out)
}

type loadRequest struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// handleLoadCorpus loads (or reloads) a corpus from a server-side path.
func (s *Server) handleLoadCorpus(w http.ResponseWriter, r *http.Request) {
	var req loadRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "path required"})
		return
	}

	corpus, err := s.ingestUseCase.Ingest(r.Context(), s.corpusName(r, req.Name), req.Path)
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, newCorpusInfo(corpus))
}

func (s *Server) handleDeleteCorpus(w http.ResponseWriter, r *http.Request) {
	if err := s.ingestUseCase.Delete(r.Context(), r.PathValue("name")); err != nil {
		s.writeError(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorBody struct {
	Error          string               `json:"error"`
	Code           entities.Code        `json:"code,omitempty"`
	Issues         []entities.Issue     `json:"issues,omitempty"`
	Index          *int                 `json:"index,omitempty"`
	Op             string               `json:"operation,omitempty"`
	WorkingSetSize *int                 `json:"working_set_size,omitempty"`
	Trace          []entities.StepTrace `json:"trace,omitempty"`
	Line           int                  `json:"line,omitempty"`
	Column         string               `json:"column,omitempty"`
	Plan           json.RawMessage      `json:"plan,omitempty"`
}

// writeError maps domain errors onto status codes and structured bodies.
func (s *Server) writeError(w http.ResponseWriter, err error, plan json.RawMessage) {
	body := errorBody{Error: err.Error(), Code: entities.CodeOf(err)}
	if json.Valid(plan) {
		body.Plan = plan
	}

	var (
		planErr   *entities.PlanError
		execErr   *entities.ExecError
		schemaErr *entities.SchemaError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &planErr):
		status = http.StatusBadRequest
		body.Issues = planErr.Issues
	case errors.As(err, &execErr):
		status = http.StatusUnprocessableEntity
		idx, size := execErr.Index, execErr.WorkingSetSize()
		body.Index = &idx
		body.Op = execErr.Op
		body.WorkingSetSize = &size
		body.Trace = execErr.Trace
		if execErr.Code == "" {
			status = http.StatusServiceUnavailable
		}
	case errors.As(err, &schemaErr):
		status = http.StatusUnprocessableEntity
		body.Line = schemaErr.Line
		body.Column = schemaErr.Column
	case errors.Is(err, entities.ErrCorpusNotFound):
		status = http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}
