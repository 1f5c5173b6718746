package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"youkb/internal/domain"
	"youkb/internal/ingest"
	"youkb/internal/kbstore"
)

// Chatter is the answer-synthesis collaborator the server depends on.
type Chatter interface {
	Ask(ctx context.Context, kbName, query string) (string, []domain.Citation, error)
}

// Digester is the ingestion collaborator the server depends on.
type Digester interface {
	Digest(ctx context.Context, kbName string, roots []string) (ingest.Report, error)
}

// Config holds the HTTP front end settings.
type Config struct {
	Addr           string
	AllowedOrigins []string
}

// Server exposes the knowledge base operations over HTTP.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	store      kbstore.Store
	chatter    Chatter
	digester   Digester
	log        *slog.Logger
}

func New(cfg Config, store kbstore.Store, chatter Chatter, digester Digester, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		router:   mux.NewRouter(),
		store:    store,
		chatter:  chatter,
		digester: digester,
		log:      log.With("component", "server"),
	}
	s.routes()

	handler := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // digest runs can be slow
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/kbs", s.handleListKBs).Methods(http.MethodGet)
	s.router.HandleFunc("/kbs", s.handleCreateKB).Methods(http.MethodPost)
	s.router.HandleFunc("/kbs/{name}", s.handleDropKB).Methods(http.MethodDelete)
	s.router.HandleFunc("/kbs/{name}/stats", s.handleStats).Methods(http.MethodGet)
	s.router.HandleFunc("/chat", s.handleChat).Methods(http.MethodPost)
	s.router.HandleFunc("/digest", s.handleDigest).Methods(http.MethodPost)
}

// Handler returns the configured root handler, exposed for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListKBs(w http.ResponseWriter, r *http.Request) {
	names, err := s.store.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	s.writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleCreateKB(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if err := s.store.Create(r.Context(), req.Name); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"name": req.Name})
}

func (s *Server) handleDropKB(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := s.store.Drop(r.Context(), name); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"dropped": name})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	stats, err := s.store.Stats(r.Context(), name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		KBName string `json:"kb_name"`
		Query  string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.KBName == "" || req.Query == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "kb_name and query are required"})
		return
	}
	answer, citations, err := s.chatter.Ask(r.Context(), req.KBName, req.Query)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if citations == nil {
		citations = []domain.Citation{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"response":  answer,
		"citations": citations,
	})
}

func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		KBName string   `json:"kb_name"`
		Roots  []string `json:"roots"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.KBName == "" || len(req.Roots) == 0 {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "kb_name and roots are required"})
		return
	}
	report, err := s.digester.Digest(r.Context(), req.KBName, req.Roots)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, kbstore.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, kbstore.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, kbstore.ErrSchemaMismatch):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
