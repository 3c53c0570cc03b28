package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-auth-api/internal/config"
	"go-auth-api/internal/handler"
	"go-auth-api/internal/metrics"
	"go-auth-api/internal/middleware"
	"go-auth-api/internal/model"
)

const (
	apiPrefix  = "/v1"
	authPrefix = apiPrefix + "/auth"
	docsPath   = apiPrefix + "/docs"
)

// DocsSpecURL is where the OpenAPI description is served.
const DocsSpecURL = docsPath + "/openapi.yaml"

type Handlers struct {
	Auth   *handler.AuthHandler
	User   *handler.UserHandler
	Audit  *handler.AuditHandler
	Docs   *handler.DocsHandler
	Health *handler.HealthHandler
}

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, h Handlers, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(authPrefix, cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery(cfg.IsDevelopment()))
	r.Use(middleware.Logging)
	r.Use(middleware.Metrics(m))
	r.Use(middleware.SecureHeaders)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", h.Health.Health)
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route(apiPrefix, func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Get("/docs", h.Docs.SwaggerUI)
		api.Get("/docs/openapi.yaml", h.Docs.OpenAPI)

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/register", h.Auth.Register)
			auth.Post("/login", h.Auth.Login)
			auth.Post("/logout", h.Auth.Logout)
			auth.Post("/refresh-tokens", h.Auth.RefreshTokens)
			auth.Post("/forgot-password", h.Auth.ForgotPassword)
			auth.Post("/reset-password", h.Auth.ResetPassword)
			auth.With(authMiddleware.Authorize()).Post("/send-verification-email", h.Auth.SendVerificationEmail)
			auth.Post("/verify-email", h.Auth.VerifyEmail)
			auth.With(authMiddleware.Authorize()).Get("/me", h.Auth.Me)
		})

		api.With(authMiddleware.Authorize(middleware.RequireRoles(model.RoleAdmin))).Get("/audit", h.Audit.List)

		api.Route("/users", func(users chi.Router) {
			users.With(authMiddleware.Authorize(middleware.RequireRoles(model.RoleAdmin))).Post("/", h.User.Create)
			users.With(authMiddleware.Authorize(middleware.RequireRoles(model.RoleAdmin))).Get("/", h.User.List)

			// Guards run after routing so the path parameter is resolved.
			selfOrAdmin := authMiddleware.Authorize(middleware.SelfOrAdmin(handler.UserIDParam))
			users.With(selfOrAdmin).Get("/{"+handler.UserIDParam+"}", h.User.Get)
			users.With(selfOrAdmin).Patch("/{"+handler.UserIDParam+"}", h.User.Update)
			users.With(selfOrAdmin).Delete("/{"+handler.UserIDParam+"}", h.User.Delete)
		})
	})

	return r
}
