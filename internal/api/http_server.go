package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/adiselav/CabanApp/internal/config"
	"github.com/adiselav/CabanApp/internal/domain"
	"github.com/adiselav/CabanApp/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// TokenVerifier turns a bearer token into the caller it identifies.
type TokenVerifier interface {
	Parse(raw string) (models.Identity, error)
}

// HealthChecker reports whether the backing store answers.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// Services groups the collaborators the HTTP API delegates to.
type Services struct {
	Booking domain.BookingService
	Catalog domain.CatalogService
	Reviews domain.ReviewService
	Health  HealthChecker
}

// HTTPServer exposes the JSON API under /api/v1.
type HTTPServer struct {
	cfg      config.APIConfig
	svc      Services
	verifier TokenVerifier
	limiter  *rateLimiter
	handler  http.Handler
	server   *http.Server
	log      zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, svc Services, verifier TokenVerifier, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:      cfg,
		svc:      svc,
		verifier: verifier,
		limiter:  newRateLimiter(cfg.RateLimit),
		log:      zerolog.Nop(),
	}
	if logger != nil {
		srv.log = logger.With().Str("component", "http").Logger()
	}

	srv.handler = srv.routes()
	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return srv
}

func (s *HTTPServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID, s.logRequests, middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authenticate, s.rateLimit)

		r.Route("/cabins", func(r chi.Router) {
			r.Get("/", s.listCabins)
			r.With(requireRole(models.RoleOwner, models.RoleAdmin)).Post("/", s.createCabin)
			r.Get("/availability", s.searchCabins)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getCabin)
				r.Put("/", s.updateCabin)
				r.Delete("/", s.deleteCabin)

				r.Get("/rooms", s.listRooms)
				r.Post("/rooms", s.createRoom)
				r.Get("/rooms/available", s.availableRooms)

				r.Get("/reviews", s.listCabinReviews)

				r.Get("/reservations", s.listCabinReservations)
				r.Get("/reservations/export", s.exportCabinReservations)
			})
		})

		r.Route("/rooms/{id}", func(r chi.Router) {
			r.Get("/", s.getRoom)
			r.Put("/", s.updateRoom)
			r.Delete("/", s.deleteRoom)
		})

		r.Route("/reservations", func(r chi.Router) {
			r.Post("/", s.createReservation)
			r.With(requireRole(models.RoleAdmin)).Get("/", s.listAllReservations)
			r.Get("/mine", s.listMyReservations)
			r.Get("/{id}", s.getReservation)
			r.Put("/{id}", s.updateReservation)
			r.Delete("/{id}", s.cancelReservation)
		})

		r.Route("/reviews", func(r chi.Router) {
			r.Post("/", s.createReview)
			r.Get("/{id}", s.getReview)
			r.Put("/{id}", s.updateReview)
			r.Delete("/{id}", s.deleteReview)
		})
	})

	return r
}

// Handler returns the fully wrapped router.
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.svc.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.svc.Health.PingContext(ctx); err != nil {
			s.log.Warn().Err(err).Msg("Readiness check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
