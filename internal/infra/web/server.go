// Package web hosts the HTTP surface: Robokassa payment callbacks, the admin
// API behind JWT auth, health and metrics endpoints.
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-classifieds-bot/internal/config"
	"telegram-classifieds-bot/internal/domain/ports/repository"
	"telegram-classifieds-bot/internal/infra/payment"
	"telegram-classifieds-bot/internal/usecase"
)

// SubmitGuard suppresses duplicate submissions of the same action by the
// same user within a short window.
type SubmitGuard interface {
	Allow(ctx context.Context, userID int64, action string) bool
}

type Server struct {
	ledger      usecase.LedgerUseCase
	promos      usecase.PromocodeUseCase
	rates       usecase.ExchangeRateUseCase
	limits      usecase.LimitsUseCase
	payments    repository.PaymentRepository
	gateway     *payment.Robokassa
	guard       SubmitGuard
	auth        *AuthManager
	adminUser   string
	adminPass   string
	botUsername string
	port        int
	log         *zerolog.Logger
}

func NewServer(
	ledger usecase.LedgerUseCase,
	promos usecase.PromocodeUseCase,
	rates usecase.ExchangeRateUseCase,
	limits usecase.LimitsUseCase,
	payments repository.PaymentRepository,
	gateway *payment.Robokassa,
	guard SubmitGuard,
	admin config.AdminConfig,
	botUsername string,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		ledger:      ledger,
		promos:      promos,
		rates:       rates,
		limits:      limits,
		payments:    payments,
		gateway:     gateway,
		guard:       guard,
		auth:        NewAuthManager(admin.JWTSecret, 30*time.Minute),
		adminUser:   admin.Username,
		adminPass:   admin.Password,
		botUsername: botUsername,
		port:        admin.Port,
		log:         &l,
	}
}

// Handler builds the full route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Robokassa calls Result server-to-server; Success and Fail are browser
	// redirects. All accept both GET and POST.
	r.HandleFunc("/payment/result", s.handleResult)
	r.HandleFunc("/payment/success", s.handleSuccess)
	r.HandleFunc("/payment/fail", s.handleFail)

	r.Post("/api/v1/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.auth.requireAdmin)
		r.Route("/api/v1/promocodes", func(r chi.Router) {
			r.Post("/", s.handlePromocodeCreate)
			r.Get("/", s.handlePromocodeList)
			r.Get("/{code}", s.handlePromocodeStats)
			r.Delete("/{code}", s.handlePromocodeDeactivate)
		})
		r.Post("/api/v1/payments", s.handlePaymentCreate)
		r.Get("/api/v1/rates/current", s.handleCurrentRate)
		r.Get("/api/v1/users/{id}/account", s.handleAccountInfo)
	})

	return r
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Int("port", s.port).Msg("Starting web server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
