package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"helix/internal/api"
	"helix/internal/catalog"
	"helix/internal/config"
	"helix/internal/lease"
	"helix/internal/logging"
)

type apiServer struct {
	bind      string
	logger    *slog.Logger
	daemon    *Daemon
	entitySvc *api.EntityService

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:      bind,
		logger:    logger,
		daemon:    d,
		entitySvc: api.NewEntityService(d.store),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/entities", srv.handleEntities)
	mux.HandleFunc("/api/stats", srv.handleStats)
	mux.HandleFunc("/api/entities/", srv.handleEntity)
	mux.HandleFunc("/api/workers", srv.handleWorkers)
	mux.Handle("/metrics", d.metrics.handler())

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
	s.entitySvc.Close()
}

// addr reports the bound address, useful when the config asked for port 0.
func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleEntities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	kind, ok := catalog.ParseKind(strings.TrimSpace(r.URL.Query().Get("kind")))
	if !ok {
		s.writeError(w, http.StatusBadRequest, "unknown or missing kind")
		return
	}
	var statuses []catalog.Status
	for _, value := range r.URL.Query()["status"] {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		statuses = append(statuses, catalog.Status(trimmed))
	}

	entities, err := s.entitySvc.List(r.Context(), kind, statuses...)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ListResponse{Entities: entities})
}

func (s *apiServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	kind, ok := catalog.ParseKind(strings.TrimSpace(r.URL.Query().Get("kind")))
	if !ok {
		s.writeError(w, http.StatusBadRequest, "unknown or missing kind")
		return
	}
	stats, err := s.entitySvc.Stats(r.Context(), kind)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// handleEntity serves /api/entities/{kind}/{id}[/history|/claim|/renew|/release].
func (s *apiServer) handleEntity(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/entities/")
	parts := strings.Split(rest, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		s.writeError(w, http.StatusNotFound, "entity not found")
		return
	}
	kind, ok := catalog.ParseKind(parts[0])
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown kind")
		return
	}
	id := parts[1]

	action := ""
	if len(parts) > 2 {
		action = parts[2]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.handleEntityDetail(w, r, kind, id)
	case action == "history" && r.Method == http.MethodGet:
		s.handleEntityHistory(w, r, kind, id)
	case action == "claim" && r.Method == http.MethodPost:
		s.handleClaim(w, r, kind, id)
	case action == "renew" && r.Method == http.MethodPost:
		s.handleRenew(w, r, kind, id)
	case action == "release" && r.Method == http.MethodPost:
		s.handleRelease(w, r, kind, id)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleEntityDetail(w http.ResponseWriter, r *http.Request, kind catalog.Kind, id string) {
	detail, err := s.entitySvc.Describe(r.Context(), kind, id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

func (s *apiServer) handleEntityHistory(w http.ResponseWriter, r *http.Request, kind catalog.Kind, id string) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))

	page, err := s.entitySvc.History(r.Context(), kind, id, limit, offset)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

type claimRequest struct {
	WorkerID string `json:"workerId"`
}

func (s *apiServer) handleClaim(w http.ResponseWriter, r *http.Request, kind catalog.Kind, id string) {
	var req claimRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.WorkerID) == "" {
		s.writeError(w, http.StatusBadRequest, "workerId is required")
		return
	}

	entity, err := s.daemon.leases.Claim(r.Context(), kind, id, req.WorkerID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.daemon.metrics.recordClaim()
	detail := api.DetailFromEntity(entity)
	s.writeJSON(w, http.StatusOK, detail)
}

func (s *apiServer) handleRenew(w http.ResponseWriter, r *http.Request, kind catalog.Kind, id string) {
	var req claimRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.daemon.leases.Renew(r.Context(), kind, id, req.WorkerID); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "renewed"})
}

type releaseRequest struct {
	WorkerID    string          `json:"workerId"`
	Outcome     string          `json:"outcome"`
	NextStatus  string          `json:"nextStatus,omitempty"`
	Flags       map[string]bool `json:"flags,omitempty"`
	FailureKind string          `json:"failureKind,omitempty"`
	Message     string          `json:"message,omitempty"`
	Event       string          `json:"event,omitempty"`
}

func (s *apiServer) handleRelease(w http.ResponseWriter, r *http.Request, kind catalog.Kind, id string) {
	var req releaseRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.WorkerID) == "" {
		s.writeError(w, http.StatusBadRequest, "workerId is required")
		return
	}

	var outcome lease.Outcome
	switch strings.ToLower(strings.TrimSpace(req.Outcome)) {
	case "success":
		target, ok := catalog.ParseStatus(kind, req.NextStatus)
		if !ok {
			s.writeError(w, http.StatusUnprocessableEntity, "unknown nextStatus for kind")
			return
		}
		outcome = lease.Success(target, req.Flags, req.Event)
	case "failure":
		outcome = lease.Failure(req.FailureKind, req.Message)
	case "abandoned":
		outcome = lease.Abandon()
	default:
		s.writeError(w, http.StatusBadRequest, "outcome must be success, failure, or abandoned")
		return
	}

	if err := s.daemon.leases.Release(r.Context(), kind, id, req.WorkerID, outcome); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.daemon.metrics.recordRelease(strings.ToLower(strings.TrimSpace(req.Outcome)))
	s.log().Info("lease released",
		logging.String("kind", string(kind)),
		logging.String("entity", id),
		logging.Bool("success", outcome.Succeeded()),
	)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "released"})
}

func (s *apiServer) handleWorkers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	workers, err := s.entitySvc.Workers(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.WorkersResponse{Workers: workers})
}

func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	defer r.Body.Close()
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := decoder.Decode(target); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// writeStoreError maps catalog sentinels onto HTTP statuses.
func (s *apiServer) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, catalog.ErrAlreadyClaimed), errors.Is(err, catalog.ErrNotOwner), errors.Is(err, catalog.ErrDuplicateName):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, catalog.ErrInvalidTransition):
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, catalog.ErrStoreUnavailable):
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
