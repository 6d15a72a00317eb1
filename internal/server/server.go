// Package server exposes the workflow engine over HTTP. It is deliberately
// thin: request validation and record plumbing live here, all semantics live
// in the workflow and retrieval packages.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flowstack-ai/flowstack/internal/retrieval"
	"github.com/flowstack-ai/flowstack/internal/store"
	"github.com/flowstack-ai/flowstack/internal/workflow"
)

type Server struct {
	router    *mux.Router
	store     store.Store
	chat      store.ChatStore
	retrieval *retrieval.Service
	executor  *workflow.Executor
	uploadDir string
}

func New(st store.Store, chat store.ChatStore, rs *retrieval.Service, ex *workflow.Executor, uploadDir string) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		store:     st,
		chat:      chat,
		retrieval: rs,
		executor:  ex,
		uploadDir: uploadDir,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/workflows", s.handleCreateWorkflow).Methods(http.MethodPost)
	api.HandleFunc("/workflows", s.handleListWorkflows).Methods(http.MethodGet)
	api.HandleFunc("/workflows/{id}", s.handleGetWorkflow).Methods(http.MethodGet)
	api.HandleFunc("/workflows/{id}", s.handleDeleteWorkflow).Methods(http.MethodDelete)
	api.HandleFunc("/workflows/{id}/execute", s.handleExecuteWorkflow).Methods(http.MethodPost)
	api.HandleFunc("/workflows/{id}/documents/{docID}", s.handleLinkDocument).Methods(http.MethodPost)
	api.HandleFunc("/workflows/{id}/documents/{docID}", s.handleUnlinkDocument).Methods(http.MethodDelete)

	api.HandleFunc("/documents", s.handleUploadDocument).Methods(http.MethodPost)
	api.HandleFunc("/documents", s.handleListDocuments).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id}", s.handleGetDocument).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id}/reprocess", s.handleReprocessDocument).Methods(http.MethodPost)

	api.HandleFunc("/chat/sessions", s.handleCreateSession).Methods(http.MethodPost)
	api.HandleFunc("/chat/sessions/{id}/messages", s.handlePostMessage).Methods(http.MethodPost)
	api.HandleFunc("/chat/sessions/{id}/messages", s.handleListMessages).Methods(http.MethodGet)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler())
}

// Handler exposes the router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe runs the server until SIGINT/SIGTERM, then shuts down
// gracefully within the given timeout.
func (s *Server) ListenAndServe(port int, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("server: listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Printf("server: received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("server: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
