package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/techwithparamesh/applyn-sub004/pkg/core"
	"github.com/techwithparamesh/applyn-sub004/pkg/queue"
	"github.com/techwithparamesh/applyn-sub004/pkg/security"
	"github.com/techwithparamesh/applyn-sub004/pkg/stats"
)

const defaultListLimit = 50

type createAppRequest struct {
	OwnerID     string `json:"owner_id"`
	Name        string `json:"name"`
	Platform    string `json:"platform"`
	PackageName string `json:"package_name"`
}

// POST /v1/apps
func (s *Server) handleCreateApp(w http.ResponseWriter, r *http.Request) {
	var req createAppRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respond(w, http.StatusBadRequest, errorResponse{Error: "malformed JSON body"})
		return
	}
	if err := security.ValidateID(req.OwnerID); err != nil {
		s.respondError(w, err)
		return
	}
	if req.PackageName != "" {
		if err := security.ValidatePackageName(req.PackageName); err != nil {
			s.respondError(w, err)
			return
		}
	}

	app := &core.App{
		OwnerID:     req.OwnerID,
		Name:        req.Name,
		Platform:    req.Platform,
		PackageName: req.PackageName,
	}
	if err := s.store.CreateApp(r.Context(), app); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, app)
}

// GET /v1/apps/{appID}
func (s *Server) handleGetApp(w http.ResponseWriter, r *http.Request) {
	app, err := s.store.GetApp(r.Context(), chi.URLParam(r, "appID"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	if app == nil {
		s.respondError(w, core.ErrAppNotFound)
		return
	}
	s.respond(w, http.StatusOK, app)
}

type enqueueBuildRequest struct {
	MaxAttempts int `json:"max_attempts"`
}

// POST /v1/apps/{appID}/builds
func (s *Server) handleEnqueueBuild(w http.ResponseWriter, r *http.Request) {
	var req enqueueBuildRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		s.respond(w, http.StatusBadRequest, errorResponse{Error: "malformed JSON body"})
		return
	}

	app, err := s.store.GetApp(r.Context(), chi.URLParam(r, "appID"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	if app == nil {
		s.respondError(w, core.ErrAppNotFound)
		return
	}

	var opts []queue.EnqueueOption
	if req.MaxAttempts > 0 {
		opts = append(opts, queue.Attempts(req.MaxAttempts))
	}
	job, err := s.queue.Enqueue(r.Context(), app.OwnerID, app.ID, opts...)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusAccepted, job)
}

type buildListResponse struct {
	Builds []*core.BuildJob `json:"builds"`
	Total  int64            `json:"total,omitempty"`
}

// GET /v1/apps/{appID}/builds
func (s *Server) handleListBuilds(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil {
		s.respond(w, http.StatusBadRequest, errorResponse{Error: "limit must be an integer"})
		return
	}

	jobs, err := s.queue.ListForApp(r.Context(), chi.URLParam(r, "appID"), limit)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if jobs == nil {
		jobs = []*core.BuildJob{}
	}
	s.respond(w, http.StatusOK, buildListResponse{Builds: jobs})
}

// GET /v1/builds/{buildID}
func (s *Server) handleGetBuild(w http.ResponseWriter, r *http.Request) {
	job, err := s.queue.GetJob(r.Context(), chi.URLParam(r, "buildID"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, job)
}

// GET /v1/ops/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.queue.Stats(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, stats)
}

// GET /v1/ops/builds
func (s *Server) handleSearchBuilds(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil {
		s.respond(w, http.StatusBadRequest, errorResponse{Error: "limit must be an integer"})
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.respond(w, http.StatusBadRequest, errorResponse{Error: "offset must be an integer"})
		return
	}

	filter := core.JobFilter{
		AppID:   r.URL.Query().Get("app_id"),
		OwnerID: r.URL.Query().Get("owner_id"),
		Status:  core.JobStatus(r.URL.Query().Get("status")),
		Limit:   limit,
		Offset:  offset,
	}
	jobs, total, err := s.queue.SearchJobs(r.Context(), filter)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if jobs == nil {
		jobs = []*core.BuildJob{}
	}
	s.respond(w, http.StatusOK, buildListResponse{Builds: jobs, Total: total})
}

type historyResponse struct {
	Buckets []stats.BuildStat `json:"buckets"`
}

// GET /v1/ops/history
func (s *Server) handleStatsHistory(w http.ResponseWriter, r *http.Request) {
	since, err := queryTime(r, "since", time.Now().Add(-24*time.Hour))
	if err != nil {
		s.respond(w, http.StatusBadRequest, errorResponse{Error: "since must be RFC 3339"})
		return
	}
	until, err := queryTime(r, "until", time.Time{})
	if err != nil {
		s.respond(w, http.StatusBadRequest, errorResponse{Error: "until must be RFC 3339"})
		return
	}

	buckets, err := s.history.History(r.Context(), since, until)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if buckets == nil {
		buckets = []stats.BuildStat{}
	}
	s.respond(w, http.StatusOK, historyResponse{Buckets: buckets})
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func queryTime(r *http.Request, key string, def time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return time.Parse(time.RFC3339, raw)
}
