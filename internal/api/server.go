// Package api exposes the build queue and billing pipeline over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/techwithparamesh/applyn-sub004/pkg/billing"
	"github.com/techwithparamesh/applyn-sub004/pkg/core"
	"github.com/techwithparamesh/applyn-sub004/pkg/queue"
	"github.com/techwithparamesh/applyn-sub004/pkg/stats"
)

// Server holds the handler dependencies. Routes() wires them to a chi router.
type Server struct {
	queue   *queue.BuildQueue
	store   core.Storage
	billing *billing.Service
	history stats.Store
	logger  *zap.Logger
}

// NewServer returns a Server. A nil logger disables request logging.
func NewServer(q *queue.BuildQueue, store core.Storage, b *billing.Service, history stats.Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{queue: q, store: store, billing: b, history: history, logger: logger}
}

// Routes builds the HTTP routing table.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/apps", s.handleCreateApp)
		r.Get("/apps/{appID}", s.handleGetApp)
		r.Post("/apps/{appID}/builds", s.handleEnqueueBuild)
		r.Get("/apps/{appID}/builds", s.handleListBuilds)

		r.Get("/builds/{buildID}", s.handleGetBuild)

		r.Get("/ops/stats", s.handleStats)
		r.Get("/ops/builds", s.handleSearchBuilds)
		r.Get("/ops/history", s.handleStatsHistory)

		r.Post("/payments", s.handleCreatePayment)
		r.Get("/payments/{paymentID}", s.handleGetPayment)
		r.Post("/payments/webhook", s.handlePaymentWebhook)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encode response", zap.Error(err))
	}
}

// respondError maps the domain sentinels onto HTTP statuses. Anything
// unrecognized is a 500 and gets logged; sentinel errors are the caller's
// problem and are only echoed back.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrAppNotFound),
		errors.Is(err, core.ErrJobNotFound),
		errors.Is(err, core.ErrPaymentNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrInvalidID),
		errors.Is(err, core.ErrInvalidPackageName),
		errors.Is(err, core.ErrInvalidPlan),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidStatus):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	s.respond(w, status, errorResponse{Error: err.Error()})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
