package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-formrules/components/timezones"
	"github.com/goliatone/go-formrules/pkg/lookup"
	"github.com/goliatone/go-formrules/pkg/model"
	"github.com/goliatone/go-formrules/pkg/orchestrator"
)

// RequestIDHeader carries the request id in and out of the server.
const RequestIDHeader = "X-Request-ID"

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// server answers form requests against the current schema. The schema is
// swapped atomically on reload.
type server struct {
	orchestrator *orchestrator.Orchestrator
	lookups      *lookup.Service
	logger       *zap.Logger
	locale       string

	mu   sync.RWMutex
	form model.FormSchema
}

func newServer(rt *runtime, form model.FormSchema, logger *zap.Logger, locale string) *server {
	return &server{
		orchestrator: rt.orchestrator,
		lookups:      rt.lookups,
		logger:       logger,
		locale:       locale,
		form:         form,
	}
}

func (s *server) schema() model.FormSchema {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.form
}

// reload installs form, re-registering its lookup definitions and dropping
// their cached options.
func (s *server) reload(form model.FormSchema) {
	for _, def := range form.Lookups {
		if err := s.lookups.Define(def); err != nil {
			s.logger.Warn("lookup definition rejected", zap.String("ref", def.Ref), zap.Error(err))
			continue
		}
		s.lookups.Invalidate(def.Ref)
	}
	s.mu.Lock()
	s.form = form
	s.mu.Unlock()
	s.logger.Info("schema reloaded", zap.String("schema", form.ID), zap.Int("fields", len(form.Fields)))
}

// routes mounts the API under basePath.
func (s *server) routes(basePath string) (http.Handler, error) {
	base := "/" + strings.Trim(strings.TrimSpace(basePath), "/")
	if base == "/" {
		base = ""
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+base+"/schema", s.handleSchema)
	mux.HandleFunc("POST "+base+"/validate", s.handleValidate)
	mux.HandleFunc("POST "+base+"/state", s.handleState)
	mux.HandleFunc("POST "+base+"/options/{field}", s.handleOptions)
	mux.HandleFunc("GET "+base+"/lookups/{ref}", s.handleLookup)
	if _, err := timezones.RegisterRoutes(mux, base); err != nil {
		return nil, err
	}
	return s.withRequestID(mux), nil
}

type formRequest struct {
	Data    map[string]any `json:"data"`
	Trigger model.Trigger  `json:"trigger,omitempty"`
	Locale  string         `json:"locale,omitempty"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

func (s *server) handleSchema(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.schema())
}

func (s *server) handleValidate(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	if req.Trigger != "" && !req.Trigger.Valid() {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid trigger %q", req.Trigger))
		return
	}
	locale := req.Locale
	if locale == "" {
		locale = s.locale
	}
	report, err := s.orchestrator.Validate(r.Context(), s.schema(), req.Data, req.Trigger, orchestrator.WithLocale(locale))
	if err != nil {
		s.writeError(w, r, http.StatusServiceUnavailable, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, report)
}

func (s *server) handleState(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, r, http.StatusOK, s.orchestrator.State(s.schema(), req.Data))
}

func (s *server) handleOptions(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	options, err := s.orchestrator.Options(r.Context(), s.schema(), r.PathValue("field"), req.Data)
	if err != nil {
		s.writeError(w, r, lookupStatus(err), err)
		return
	}
	if options == nil {
		options = []model.LookupOption{}
	}
	s.writeJSON(w, r, http.StatusOK, optionsResponse{Data: options})
}

func (s *server) handleLookup(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	params := make(map[string]any, len(query))
	for key := range query {
		params[key] = query.Get(key)
	}
	options, err := s.lookups.GetLookup(r.Context(), r.PathValue("ref"), params)
	if err != nil {
		s.writeError(w, r, lookupStatus(err), err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, optionsResponse{Data: options})
}

func lookupStatus(err error) int {
	var lookupErr *lookup.Error
	switch {
	case errors.Is(err, orchestrator.ErrUnknownField), errors.Is(err, lookup.ErrUnknownLookup),
		errors.Is(err, lookup.ErrNoEndpoint):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.As(err, &lookupErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) decode(w http.ResponseWriter, r *http.Request) (formRequest, bool) {
	var req formRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return req, false
	}
	if req.Data == nil {
		req.Data = map[string]any{}
	}
	return req, true
}

func (s *server) writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		requestLogger(r.Context(), s.logger).Warn("write response failed", zap.Error(err))
	}
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	requestLogger(r.Context(), s.logger).Debug("request failed", zap.Int("status", status), zap.Error(err))
	s.writeJSON(w, r, status, errorResponse{Error: err.Error(), RequestID: w.Header().Get(RequestIDHeader)})
}

type loggerKey struct{}

func requestLogger(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok {
		return logger
	}
	return fallback
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withRequestID tags every request with an id, taken from the request header
// or generated, and logs its outcome.
func (s *server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		logger := s.logger.With(zap.String("request_id", id))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), loggerKey{}, logger)))

		logger.Info("request served",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
