package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/phishguard/phish-detector/internal/domain"
)

// Classifier runs classifications against the current rules
type Classifier interface {
	ClassifySample(sample domain.EmailSample) domain.ClassificationResult
	ClassifyBatch(ctx context.Context, samples []domain.EmailSample) ([]domain.ClassificationResult, error)
}

// RuleAdmin reads and edits the rule configuration
type RuleAdmin interface {
	Snapshot() *domain.RuleConfig
	Add(ctx context.Context, list domain.RuleList, values ...string) (int, error)
	Remove(ctx context.Context, list domain.RuleList, values ...string) (int, error)
	SetThreshold(ctx context.Context, name string, value float64) error
	Reset(ctx context.Context) error
}

// Server exposes classification and rule administration over JSON/HTTP
type Server struct {
	classifier   Classifier
	rules        RuleAdmin
	logger       *zap.Logger
	maxBodyBytes int64
}

// New creates an HTTP server adapter. maxBodyBytes caps request bodies.
func New(classifier Classifier, rules RuleAdmin, logger *zap.Logger, maxBodyBytes int64) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = 1 << 20
	}
	return &Server{classifier: classifier, rules: rules, logger: logger, maxBodyBytes: maxBodyBytes}
}

// Routes returns a chi.Router with every endpoint mounted
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.getHealthz)
	r.Post("/classify", s.postClassify)
	r.Post("/classify/batch", s.postClassifyBatch)

	r.Route("/rules", func(r chi.Router) {
		r.Get("/", s.getRules)
		r.Post("/reset", s.postReset)
		r.Put("/thresholds/{name}", s.putThreshold)
		r.Post("/{list}", s.postRuleValues)
		r.Delete("/{list}", s.deleteRuleValues)
	})
	return r
}

type classifyResponse struct {
	domain.ClassificationResult
	Reasons []string `json:"reasons"`
}

func newClassifyResponse(result domain.ClassificationResult) classifyResponse {
	return classifyResponse{ClassificationResult: result, Reasons: result.Reasons()}
}

type batchRequest struct {
	Emails []domain.EmailSample `json:"emails"`
}

type batchResponse struct {
	Results []classifyResponse `json:"results"`
}

type valuesRequest struct {
	Values []string `json:"values"`
}

type valuesResponse struct {
	List    domain.RuleList `json:"list"`
	Changed int             `json:"changed"`
}

type thresholdRequest struct {
	Value *float64 `json:"value"`
}

type thresholdResponse struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) getHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) postClassify(w http.ResponseWriter, r *http.Request) {
	var sample domain.EmailSample
	if !s.decode(w, r, &sample) {
		return
	}

	result := s.classifier.ClassifySample(sample)
	s.writeJSON(w, http.StatusOK, newClassifyResponse(result))
}

func (s *Server) postClassifyBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !s.decode(w, r, &req) {
		return
	}

	results, err := s.classifier.ClassifyBatch(r.Context(), req.Emails)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := batchResponse{Results: make([]classifyResponse, 0, len(results))}
	for _, result := range results {
		resp.Results = append(resp.Results, newClassifyResponse(result))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getRules(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.rules.Snapshot())
}

func (s *Server) postRuleValues(w http.ResponseWriter, r *http.Request) {
	s.editRuleValues(w, r, s.rules.Add)
}

func (s *Server) deleteRuleValues(w http.ResponseWriter, r *http.Request) {
	s.editRuleValues(w, r, s.rules.Remove)
}

func (s *Server) editRuleValues(
	w http.ResponseWriter,
	r *http.Request,
	edit func(ctx context.Context, list domain.RuleList, values ...string) (int, error),
) {
	list, err := domain.ParseRuleList(chi.URLParam(r, "list"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req valuesRequest
	if !s.decode(w, r, &req) {
		return
	}

	changed, err := edit(r.Context(), list, req.Values...)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, valuesResponse{List: list, Changed: changed})
}

func (s *Server) putThreshold(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req thresholdRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Value == nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing value"})
		return
	}

	if err := s.rules.SetThreshold(r.Context(), name, *req.Value); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, thresholdResponse{Name: name, Value: *req.Value})
}

func (s *Server) postReset(w http.ResponseWriter, r *http.Request) {
	if err := s.rules.Reset(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.rules.Snapshot())
}

// decode reads a JSON body and answers 400 on failure
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

// writeError maps domain errors to status codes
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUnknownList),
		errors.Is(err, domain.ErrUnknownThreshold),
		errors.Is(err, domain.ErrInvalidThreshold):
		status = http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	default:
		s.logger.Error("Request failed", zap.Error(err))
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to write response", zap.Error(err))
	}
}

// requestLogger logs one line per request
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
