package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lumierelabs/prewedding-api/internal/config"
	"github.com/lumierelabs/prewedding-api/internal/repository"
	"github.com/lumierelabs/prewedding-api/internal/service"
)

type Server struct {
	cfg         config.Config
	log         *slog.Logger
	authSvc     *service.AuthService
	templates   *repository.TemplateRepository
	entitlement *service.EntitlementService
	generation  *service.GenerationService
	payments    *service.PaymentService
	contacts    *service.ContactService
	router      *chi.Mux
}

func NewServer(
	cfg config.Config,
	log *slog.Logger,
	authSvc *service.AuthService,
	templates *repository.TemplateRepository,
	entitlement *service.EntitlementService,
	generation *service.GenerationService,
	payments *service.PaymentService,
	contacts *service.ContactService,
	guard *AbuseGuard,
) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders(cfg.IsProduction()))
	r.Use(newIPRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst).middleware)
	if guard != nil {
		r.Use(guard.Middleware)
	}

	s := &Server{
		cfg:         cfg,
		log:         log,
		authSvc:     authSvc,
		templates:   templates,
		entitlement: entitlement,
		generation:  generation,
		payments:    payments,
		contacts:    contacts,
		router:      r,
	}

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/register", s.handleRegister)
		api.Post("/auth/login", s.handleLogin)

		api.Get("/templates", s.handleListTemplates)
		api.Get("/templates/{id}", s.handleGetTemplate)

		api.Post("/payments/webhook", s.handlePaymentWebhook)

		api.Post("/contact", s.handleCreateContact)

		api.Group(func(authed chi.Router) {
			authed.Use(s.authMiddleware)
			authed.Get("/auth/me", s.handleMe)
			authed.Put("/auth/me", s.handleUpdateMe)
			authed.Post("/generate", s.handleGenerate)
			authed.Get("/generations", s.handleListGenerations)
			authed.Get("/tokens", s.handleListTokens)
			authed.Get("/tokens/usage", s.handleTokenUsage)
			authed.Post("/payments/checkout", s.handleCheckout)

			authed.Group(func(admin chi.Router) {
				admin.Use(s.adminMiddleware)
				admin.Post("/templates", s.handleCreateTemplate)
				admin.Put("/templates/{id}", s.handleUpdateTemplate)
				admin.Post("/payments/refund", s.handleRefund)
				admin.Get("/contact", s.handleListContacts)
				admin.Get("/contact/stats/summary", s.handleContactStats)
				admin.Get("/contact/{id}", s.handleGetContact)
				admin.Patch("/contact/{id}", s.handleUpdateContact)
				admin.Delete("/contact/{id}", s.handleDeleteContact)
			})
		})
	})

	return s
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.HTTPListenAddr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // generation requests are slow
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("http shutdown error", "err", err)
		}
	}()

	s.log.Info("api listening", "addr", s.cfg.HTTPListenAddr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api listen: %w", err)
	}
	return nil
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), http.StatusBadRequest)
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.Error("handler error", "err", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func parseID(value string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(value), 10, 64)
}
