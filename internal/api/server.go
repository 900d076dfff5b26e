// Package api assembles the HTTP surface: Connect services, REST read
// resources, health and metrics on one chi router.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/service"
	"github.com/mmynk/splitledger/internal/settlement"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/pkg/logging"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type mount struct {
	path    string
	handler http.Handler
}

// Server is the splitledger HTTP server.
type Server struct {
	settlements   *settlement.Service
	categories    storage.CategoryStore
	db            Pinger
	mounts        []mount
	metricsPath   string
	allowedOrigin string
	jwtManager    *auth.JWTManager
}

// NewServer creates a server serving the REST resources from the given stores.
func NewServer(settlements *settlement.Service, categories storage.CategoryStore, db Pinger) *Server {
	return &Server{settlements: settlements, categories: categories, db: db}
}

// Mount routes every request under path to h. Used for Connect services.
func (s *Server) Mount(path string, h http.Handler) {
	s.mounts = append(s.mounts, mount{path: path, handler: h})
}

// EnableMetrics serves Prometheus metrics on path.
func (s *Server) EnableMetrics(path string) { s.metricsPath = path }

// SetAllowedOrigin sets the CORS origin. Defaults to "*".
func (s *Server) SetAllowedOrigin(origin string) { s.allowedOrigin = origin }

// RequireAuth makes the REST resources reject requests without a valid bearer token.
func (s *Server) RequireAuth(jwtManager *auth.JWTManager) { s.jwtManager = jwtManager }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(s.allowedOrigin))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(chimw.Timeout(30 * time.Second))
		if s.jwtManager != nil {
			r.Use(s.requireAuth)
		}
		r.Get("/groups/{id}/settlements", s.handleGroupSettlements)
		r.Get("/groups/{id}/activities", s.handleGroupActivities)
		r.Get("/categories", s.handleListCategories)
		r.Get("/categories/{id}", s.handleGetCategory)
	})

	if s.metricsPath != "" {
		r.Handle(s.metricsPath, promhttp.Handler())
	}

	for _, m := range s.mounts {
		r.Mount(m.path, m.handler)
	}

	return r
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := middleware.Authenticate(s.jwtManager, r.Header.Get("Authorization"))
		if err != nil {
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(middleware.WithUser(r.Context(), claims.UserID, claims.Email)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, httpStatus := "ok", http.StatusOK
	if err := s.db.Ping(r.Context()); err != nil {
		logging.FromContext(r.Context()).Warn("health check failed: database unreachable", "error", err)
		status, httpStatus = "down", http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    map[string]string{"database": status},
	})
}

func (s *Server) handleGroupSettlements(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "id")

	result, err := s.settlements.GroupSettlement(r.Context(), groupID)
	if err != nil {
		respondDomainError(w, logging.FromContext(r.Context()), err)
		return
	}

	respondSuccess(w, service.SettlementResponse(result), "Group settlements calculated successfully")
}

func (s *Server) handleGroupActivities(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "id")

	activities, err := s.settlements.GroupActivities(r.Context(), groupID)
	if err != nil {
		respondDomainError(w, logging.FromContext(r.Context()), err)
		return
	}

	respondSuccess(w, service.ActivitiesResponse(activities), "Group activities fetched successfully")
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.categories.ListCategories(r.Context())
	if err != nil {
		respondDomainError(w, logging.FromContext(r.Context()), err)
		return
	}

	respondSuccess(w, categoriesDTO(categories), "Categories fetched successfully")
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	categories, err := s.categories.ListCategories(r.Context())
	if err != nil {
		respondDomainError(w, logging.FromContext(r.Context()), err)
		return
	}
	for _, c := range categories {
		if c.ID == id {
			respondSuccess(w, categoryDTO{ID: c.ID, Name: c.Name}, "Category fetched successfully")
			return
		}
	}

	respondError(w, http.StatusNotFound, "NOT_FOUND", "Category not found")
}

type categoryDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func categoriesDTO(categories []models.Category) []categoryDTO {
	out := make([]categoryDTO, 0, len(categories))
	for _, c := range categories {
		out = append(out, categoryDTO{ID: c.ID, Name: c.Name})
	}
	return out
}
