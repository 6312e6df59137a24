package internal

import (
	"context"
	"net/http"
	"time"

	"asset-custody-api/internal/auth"
	"asset-custody-api/internal/config"
	"asset-custody-api/internal/handlers"
	"asset-custody-api/internal/lifecycle"
	"asset-custody-api/internal/models"
	"asset-custody-api/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Server struct {
	Engine     *lifecycle.Engine
	Store      store.Store
	Router     *chi.Mux
	JWTManager *auth.JWTManager
	Metrics    *Metrics
	Logger     *zap.Logger
}

// NewServer wires the routes over an engine. metrics may be nil when
// cfg.EnableMetrics is off.
func NewServer(engine *lifecycle.Engine, st store.Store, cfg *config.Config, log *zap.Logger, metrics *Metrics) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTExpiry)

	// Validate JWT configuration
	if err := jwtManager.ValidateConfig(); err != nil {
		return nil, err
	}

	s := &Server{
		Engine:     engine,
		Store:      st,
		Router:     chi.NewRouter(),
		JWTManager: jwtManager,
		Metrics:    metrics,
		Logger:     log.Named("http"),
	}

	// Middleware has to be registered before any route
	s.Router.Use(middleware.RequestID)
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(requestLogger(s.Logger))
	if cfg.EnableMetrics && s.Metrics != nil {
		s.Router.Use(s.Metrics.Middleware())
		s.Router.Get("/metrics", s.Metrics.Handler().ServeHTTP)
	}

	// Mount public routes FIRST (no auth)
	s.Router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	s.Router.Get("/dbping", s.dbPing)

	// Create a protected route group with middleware
	s.Router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(s.JWTManager))
		s.mountProtectedRoutes(r, cfg)
	})

	return s, nil
}

// Close releases the underlying store
func (s *Server) Close(ctx context.Context) error {
	if s.Store != nil {
		return s.Store.Close()
	}
	return nil
}

func (s *Server) dbPing(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		s.Logger.Error("store ping failed", zap.Error(err))
		http.Error(w, "db: unavailable", http.StatusServiceUnavailable)
		return
	}
	if _, err := w.Write([]byte("db: ok")); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// mountProtectedRoutes mounts all protected routes that require authentication.
// Role checks beyond "authenticated" happen in the engine.
func (s *Server) mountProtectedRoutes(r chi.Router, cfg *config.Config) {
	// Asset registry
	r.Get("/assets", s.listAssets)
	r.Post("/assets", s.createAsset)
	r.Get("/assets/{id}", s.getAsset)
	r.Put("/assets/{id}", s.updateAsset)
	r.Delete("/assets/{id}", s.deleteAsset)

	// Lifecycle transitions
	r.Post("/assets/{id}/assign", s.assignAsset)
	r.Post("/assets/{id}/unassign", s.unassignAsset)
	r.Post("/assets/{id}/return", s.returnAsset)
	r.Post("/assets/{id}/maintenance", s.maintenanceAsset)
	r.Post("/assets/{id}/retire", s.retireAsset)
	r.Post("/assets/{id}/restore", s.restoreAsset)

	// Custody views
	r.Get("/holders/{id}/assets", s.holderAssets)
	r.Get("/holders/{id}/history", s.holderHistory)
	r.Get("/assignments", s.listAssignments)

	// Excel import - admin only
	importsHandler := handlers.NewImportsHandler(s.Engine, cfg.ImportMapping, s.Logger)
	r.Post("/imports/excel", auth.MustRole(string(models.RoleAdmin))(http.HandlerFunc(importsHandler.UploadExcel)).(http.HandlerFunc))
}
