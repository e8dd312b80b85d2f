package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/raysh454/offerlens/internal/app"
	"github.com/raysh454/offerlens/internal/extractor"
	"github.com/raysh454/offerlens/internal/history"
	"github.com/raysh454/offerlens/internal/logging"
	"github.com/raysh454/offerlens/internal/model"
	"github.com/raysh454/offerlens/internal/network"
	_ "github.com/raysh454/offerlens/internal/server/docs"
	"github.com/raysh454/offerlens/internal/source"
)

const (
	defaultHistoryLimit = 50
	maxBulkURLs         = 500
)

// Server is the HTTP + WebSocket API surface for OfferLens.
type Server struct {
	cfg          Config
	orchestrator *app.Orchestrator
	router       chi.Router
	upgrader     websocket.Upgrader
	logger       logging.Logger
}

// NewServer creates a new Server, building its own Orchestrator unless one
// is supplied in cfg.
func NewServer(cfg Config) (*Server, error) {
	if cfg.AppConfig == nil {
		cfg.AppConfig = app.DefaultConfig()
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = cfg.AppConfig.Listen
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("server")
	}

	orch := cfg.Orchestrator
	if orch == nil {
		comps, err := app.NewComponents(context.Background(), cfg.AppConfig, logger)
		if err != nil {
			return nil, fmt.Errorf("building components: %w", err)
		}
		orch = app.NewOrchestrator(cfg.AppConfig, comps, logger)
	}

	r := chi.NewRouter()
	s := &Server{
		cfg:          cfg,
		orchestrator: orch,
		router:       r,
		logger:       logger.With(logging.Field{Key: "component", Value: "server"}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	s.routes()
	return s, nil
}

// Orchestrator returns the underlying orchestrator for advanced use (tests, etc.).
func (s *Server) Orchestrator() *app.Orchestrator {
	return s.orchestrator
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	// CORS preflight
	r.Options("/networks", s.optionsHandler("GET"))
	r.Options("/offers/validate", s.optionsHandler("POST"))
	r.Options("/offers/validate/bulk", s.optionsHandler("POST"))
	r.Options("/jobs", s.optionsHandler("GET"))
	r.Options("/jobs/bulk", s.optionsHandler("POST"))
	r.Options("/jobs/{jobID}", s.optionsHandler("GET, DELETE"))
	r.Options("/history", s.optionsHandler("GET"))
	r.Options("/history/export", s.optionsHandler("GET"))
	r.Options("/history/errors", s.optionsHandler("GET"))

	r.Get("/networks", s.handleListNetworks)

	// Validation
	r.Post("/offers/validate", s.handleValidateOffer)
	r.Post("/offers/validate/bulk", s.handleValidateBulk)

	// Jobs over REST
	r.Post("/jobs/bulk", s.handleStartBulkJob)
	r.Get("/jobs", s.handleListJobs)
	r.Get("/jobs/{jobID}", s.handleGetJob)
	r.Delete("/jobs/{jobID}", s.handleCancelJob)

	// WebSocket for job progress
	r.Get("/ws/bulk", s.handleBulkWS)

	// History
	r.Get("/history", s.handleHistory)
	r.Get("/history/export", s.handleExport)
	r.Get("/history/errors", s.handleHistoryErrors)

	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := []logging.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
	}

	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, logging.Field{Key: "query", Value: q})
	}

	if r.Body != nil && (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) {
		if bodyBytes, err := io.ReadAll(r.Body); err == nil {
			fields = append(fields, logging.Field{Key: "body", Value: string(bodyBytes)})
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}
	}

	s.logger.Debug("http_request", fields...)

	s.router.ServeHTTP(w, r)
}

// Close shuts down the orchestrator and underlying resources.
func (s *Server) Close() {
	if s.orchestrator != nil {
		if err := s.orchestrator.Close(); err != nil {
			s.logger.Warn("closing orchestrator", logging.Field{Key: "error", Value: err.Error()})
		}
	}
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // allow streaming
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// statusFor maps the validation error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	var (
		parseErr *network.ParseError
		fetchErr *source.FetchError
	)
	switch {
	case errors.As(err, &parseErr):
		return http.StatusBadRequest
	case errors.Is(err, network.ErrNetworkNotSupported), errors.Is(err, extractor.ErrInvalidProductURL):
		return http.StatusUnprocessableEntity
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway
	case errors.Is(err, history.ErrUnsupportedFormat), errors.Is(err, app.ErrNoURLs):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeBulk(r *http.Request) (BulkValidateRequest, error) {
	var body BulkValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return body, errors.New("invalid JSON")
	}
	kept := body.URLs[:0]
	for _, u := range body.URLs {
		if u = strings.TrimSpace(u); u != "" {
			kept = append(kept, u)
		}
	}
	body.URLs = kept
	if len(body.URLs) == 0 {
		return body, app.ErrNoURLs
	}
	if len(body.URLs) > maxBulkURLs {
		return body, fmt.Errorf("at most %d urls per request", maxBulkURLs)
	}
	return body, nil
}

// --- HTTP handlers ---

// handleListNetworks godoc
// @Summary List supported affiliate networks and their thresholds
// @Tags networks
// @Produce json
// @Success 200 {array} object
// @Router /networks [get]
func (s *Server) handleListNetworks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orchestrator.Networks())
}

// handleValidateOffer godoc
// @Summary Validate and score one offer URL
// @Tags offers
// @Accept json
// @Produce json
// @Param request body ValidateOfferRequest true "Offer"
// @Success 200 {object} object
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /offers/validate [post]
func (s *Server) handleValidateOffer(w http.ResponseWriter, r *http.Request) {
	var body ValidateOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(body.URL) == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	res, err := s.orchestrator.ValidateOffer(r.Context(), body.URL)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleValidateBulk godoc
// @Summary Validate a list of offer URLs in batches
// @Description Failures are reported inline at the position of their URL.
// @Tags offers
// @Accept json
// @Produce json
// @Param request body BulkValidateRequest true "Offers"
// @Success 200 {array} object
// @Failure 400 {object} ErrorResponse
// @Router /offers/validate/bulk [post]
func (s *Server) handleValidateBulk(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBulk(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items := s.orchestrator.ValidateBulk(r.Context(), body.URLs, body.BatchSize)
	s.logger.Info("bulk validation finished", logging.Field{Key: "count", Value: len(items)})
	writeJSON(w, http.StatusOK, items)
}

// handleStartBulkJob godoc
// @Summary Start a background bulk validation job
// @Tags jobs
// @Accept json
// @Produce json
// @Param request body BulkValidateRequest true "Offers"
// @Success 202 {object} object
// @Failure 400 {object} ErrorResponse
// @Router /jobs/bulk [post]
func (s *Server) handleStartBulkJob(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBulk(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := s.orchestrator.StartBulkJob(context.Background(), body.URLs, body.BatchSize)
	if err != nil {
		s.logger.Warn("starting bulk job", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, statusFor(err), err.Error())
		return
	}
	s.logger.Info("started bulk job", logging.Field{Key: "job_id", Value: job.ID}, logging.Field{Key: "total", Value: job.Total})
	writeJSON(w, http.StatusAccepted, job)
}

// handleGetJob godoc
// @Summary Get a job and its results
// @Tags jobs
// @Produce json
// @Param jobID path string true "Job ID"
// @Success 200 {object} object
// @Failure 404 {object} ErrorResponse
// @Router /jobs/{jobID} [get]
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		s.logger.Warn("getting job: not found", logging.Field{Key: "job_id", Value: jobID})
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleCancelJob godoc
// @Summary Cancel a running job
// @Tags jobs
// @Param jobID path string true "Job ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /jobs/{jobID} [delete]
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if !s.orchestrator.CancelJob(jobID) {
		s.logger.Warn("canceling job: not found", logging.Field{Key: "job_id", Value: jobID})
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.logger.Info("canceled job", logging.Field{Key: "job_id", Value: jobID})
	w.WriteHeader(http.StatusNoContent)
}

// handleListJobs godoc
// @Summary List jobs, newest first
// @Tags jobs
// @Produce json
// @Success 200 {array} object
// @Router /jobs [get]
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orchestrator.ListJobs())
}

// handleHistory godoc
// @Summary Recent validation results, newest first
// @Tags history
// @Produce json
// @Param limit query int false "Maximum number of results" default(50)
// @Param url query string false "Only results for this offer URL"
// @Success 200 {array} object
// @Router /history [get]
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := historyLimit(r)

	var (
		results []*model.ValidationResult
		err     error
	)
	if offerURL := strings.TrimSpace(r.URL.Query().Get("url")); offerURL != "" {
		results, err = s.orchestrator.OfferHistory(r.Context(), offerURL, limit)
	} else {
		results, err = s.orchestrator.History(r.Context(), limit)
	}
	if err != nil {
		s.logger.Warn("reading history", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// handleHistoryErrors godoc
// @Summary Recent failed validations, newest first
// @Tags history
// @Produce json
// @Param limit query int false "Maximum number of records" default(50)
// @Success 200 {array} object
// @Router /history/errors [get]
func (s *Server) handleHistoryErrors(w http.ResponseWriter, r *http.Request) {
	records, err := s.orchestrator.Errors(r.Context(), historyLimit(r))
	if err != nil {
		s.logger.Warn("reading error history", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func historyLimit(r *http.Request) int {
	if ls := r.URL.Query().Get("limit"); ls != "" {
		if v, err := strconv.Atoi(ls); err == nil && v > 0 {
			return v
		}
	}
	return defaultHistoryLimit
}

// handleExport godoc
// @Summary Export the validation history
// @Tags history
// @Produce json
// @Produce text/csv
// @Param format query string false "json or csv" default(json)
// @Success 200 {string} string
// @Failure 400 {object} ErrorResponse
// @Router /history/export [get]
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = history.FormatJSON
	}

	out, err := s.orchestrator.Export(r.Context(), format)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	ext := strings.ToLower(strings.TrimSpace(format))
	w.Header().Set("Content-Type", history.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="offer-validations.%s"`, ext))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// WebSockets

// handleBulkWS starts a bulk job for the url query params and streams its
// events until the job ends or the client goes away.
func (s *Server) handleBulkWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	urls := q["url"]
	batchSize := 0
	if bs := q.Get("batch_size"); bs != "" {
		if v, err := strconv.Atoi(bs); err == nil && v > 0 {
			batchSize = v
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Field{Key: "error", Value: err.Error()})
		return
	}
	defer conn.Close()

	job, err := s.orchestrator.StartBulkJob(r.Context(), urls, batchSize)
	if err != nil {
		s.logger.Warn("starting bulk job", logging.Field{Key: "error", Value: err.Error()})
		_ = conn.WriteJSON(ErrorResponse{Error: err.Error()})
		return
	}

	s.logger.Info("started bulk job", logging.Field{Key: "job_id", Value: job.ID})
	_ = conn.WriteJSON(job)

	for ev := range job.Events {
		if err := conn.WriteJSON(ev); err != nil {
			// Assume client disconnected; cancel job
			s.orchestrator.CancelJob(job.ID)
			return
		}
	}
}
