// Package server provides the HTTP API for async album export operations.
//
// Endpoints:
//
//	POST /exports        enqueue a new export; returns the operation ID immediately
//	GET  /exports/{id}   poll operation progress and retrieve artefact URLs
//	GET  /objects        serve objects through signed URLs (local storage only)
//	GET  /metrics        Prometheus metrics
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Jeffail/tunny"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/tomasbasham/album-export/internal/export"
	"github.com/tomasbasham/album-export/internal/metrics"
	"github.com/tomasbasham/album-export/internal/operation"
	"github.com/tomasbasham/album-export/internal/storage"
)

// DefaultWorkers is the number of exports run concurrently.
const DefaultWorkers = 4

// Options holds the dependencies shared across HTTP handlers and workers.
type Options struct {
	Signer   storage.Signer
	Uploader storage.Uploader
	Fetcher  export.Fetcher

	// ExportOptions are used for every export run by the server.
	ExportOptions export.Options

	// Objects, when set, is mounted at /objects to serve locally signed URLs.
	Objects http.Handler

	// Workers bounds the number of exports running at once. Further
	// operations stay pending until a worker frees up.
	Workers int

	Logger logrus.FieldLogger
}

// Server holds the dependencies shared across HTTP handlers.
type Server struct {
	store operation.Store
	opts  Options
	mux   *http.ServeMux
	pool  *tunny.Pool

	// ctx outlives individual requests so exports keep running after the
	// POST returns; it is cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Server wired to the given store.
func New(store operation.Store, opts Options) *Server {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		store:  store,
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
	}

	s.pool = tunny.NewFunc(opts.Workers, func(payload interface{}) interface{} {
		wo := payload.(operation.WorkerOptions)

		metrics.OperationsInFlight.Inc()
		defer metrics.OperationsInFlight.Dec()

		operation.Run(s.ctx, wo)
		return nil
	})

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("POST /exports", s.handleCreateExport)
	s.mux.HandleFunc("GET /exports/{id}", s.handleGetExport)
	s.mux.Handle("GET /metrics", promhttp.Handler())
	if opts.Objects != nil {
		s.mux.Handle("/objects", opts.Objects)
	}

	return s
}

// Handler returns the server's HTTP handler with request logging applied.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

// ListenAndServe starts the HTTP server on the given address and shuts it
// down gracefully when ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close cancels running exports and stops the worker pool.
func (s *Server) Close() {
	s.cancel()
	s.pool.Close()
}

// createExportResponse is returned immediately from POST /exports.
type createExportResponse struct {
	OperationID string `json:"operation_id"`
	Status      string `json:"status"`
}

// handleCreateExport accepts a manifest as the JSON request body.
func (s *Server) handleCreateExport(w http.ResponseWriter, r *http.Request) {
	var m export.Manifest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := m.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	op, err := s.store.Create(m.Album, len(m.Photos))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create operation: "+err.Error())
		return
	}

	wo := operation.WorkerOptions{
		OperationID:   op.ID,
		Store:         s.store,
		Manifest:      &m,
		Signer:        s.opts.Signer,
		Uploader:      s.opts.Uploader,
		Fetcher:       s.opts.Fetcher,
		ExportOptions: s.opts.ExportOptions,
		Logger:        s.opts.Logger,
	}

	go s.dispatch(wo)

	writeJSON(w, http.StatusAccepted, createExportResponse{
		OperationID: op.ID,
		Status:      string(operation.StatusPending),
	})
}

// dispatch blocks until a worker is free to run the operation. Operations
// still queued when the server closes are marked failed.
func (s *Server) dispatch(wo operation.WorkerOptions) {
	_, err := s.pool.ProcessCtx(s.ctx, wo)
	if err == nil {
		return
	}
	op, getErr := s.store.Get(wo.OperationID)
	if getErr == nil && op.Status == operation.StatusPending {
		_ = s.store.MarkFailed(wo.OperationID, 0, fmt.Errorf("not started: %w", err))
	}
}

func (s *Server) handleGetExport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "operation id is required")
		return
	}

	op, err := s.store.Get(id)
	if err != nil {
		if errors.Is(err, operation.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("operation %q not found", id))
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, op)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.opts.Logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start),
		}).Debug("Handled request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
