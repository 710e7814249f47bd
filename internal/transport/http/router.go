package http

import (
	"net/http"

	"github.com/go-auth-api/internal/application/auth"
	"github.com/go-auth-api/internal/application/otp"
	"github.com/go-auth-api/internal/application/wallet"
	"github.com/go-auth-api/internal/config"
	"github.com/go-auth-api/internal/pkg/password"
	"github.com/go-auth-api/internal/transport/http/handler"
	appmiddleware "github.com/go-auth-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// 5 requests/second, burst of 10, applied to sensitive public endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	authSvc := auth.NewService(auth.ServiceDeps{
		IdentityRepo: deps.IdentityRepo,
		Tokens:       deps.JWTProvider,
		Hasher:       password.NewBcryptHasher(),
		Publisher:    deps.Publisher,
	})
	otpSvc := otp.NewService(otp.ServiceDeps{
		IdentityRepo: deps.IdentityRepo,
		OtpRepo:      deps.OtpRepo,
		Mailer:       deps.Mailer,
		SMSSender:    deps.SMSSender,
		OtpTTL:       cfg.OtpTTL,
	})
	walletSvc := wallet.NewService(wallet.ServiceDeps{
		IdentityRepo: deps.IdentityRepo,
		Recoverer:    deps.Recoverer,
		Publisher:    deps.Publisher,
	})

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(authSvc)
	otpH := handler.NewOtpHandler(otpSvc)
	walletH := handler.NewWalletHandler(walletSvc)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/auth/register", authH.Register)
		r.With(sensitiveRL.Limit).Post("/auth/login", authH.Login)
		r.With(sensitiveRL.Limit).Post("/auth/refresh", authH.Refresh)
		r.With(sensitiveRL.Limit).Post("/auth/otp/request", otpH.Request)
		// Verification is throttled so the 6-digit code space cannot be
		// walked within a code's lifetime.
		r.With(sensitiveRL.Limit).Post("/auth/otp/verify", otpH.Verify)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.Auth(deps.JWTProvider))

			r.Post("/auth/logout", authH.Logout)
			r.Post("/auth/wallet/link", walletH.Link)
			r.Post("/auth/password", authH.ChangePassword)
			r.Get("/me", authH.Me)
			r.Delete("/me", authH.Deactivate)
		})
	})

	return r
}
