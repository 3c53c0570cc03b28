package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-auth-api/internal/config"
	"go-auth-api/internal/database"
	"go-auth-api/internal/event"
	"go-auth-api/internal/handler"
	"go-auth-api/internal/mailer"
	"go-auth-api/internal/metrics"
	"go-auth-api/internal/middleware"
	"go-auth-api/internal/repository"
	"go-auth-api/internal/repository/memory"
	"go-auth-api/internal/router"
	"go-auth-api/internal/security"
	"go-auth-api/internal/service"
)

type App struct {
	server       *http.Server
	cleanupFuncs []func()
}

type stores struct {
	users   service.UserStore
	tokens  service.TokenStore
	audit   service.AuditStore
	health  func(ctx context.Context) error
	cleanup func()
}

func New(cfg *config.Config) (*App, error) {
	st, err := openStores(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	return build(cfg, st, newTransport(cfg))
}

func build(cfg *config.Config, st stores, transport mailer.Transport) (*App, error) {
	bus := event.NewBus()
	appMetrics := metrics.New()

	hasher := security.NewBcryptHasher(cfg.BcryptCost)
	codec, err := security.NewJWTCodec(cfg.JWTSecret, nil)
	if err != nil {
		st.cleanup()
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}

	mail := mailer.New(transport, cfg.MailFrom, cfg.AppBaseURL)

	tokenService := service.NewTokenService(codec, st.tokens, st.users, service.TokenTTLs{
		Access:        cfg.JWTAccessTTL,
		Refresh:       cfg.JWTRefreshTTL,
		ResetPassword: cfg.JWTResetPasswordTTL,
		VerifyEmail:   cfg.JWTVerifyEmailTTL,
	}, bus)
	userService := service.NewUserService(st.users, st.tokens, hasher, tokenService, mail, bus)
	authService := service.NewAuthService(st.users, st.tokens, hasher, tokenService, userService, mail, bus)
	auditService := service.NewAuditService(st.audit)

	opts := handler.Options{ExposeInternalErrors: cfg.IsDevelopment()}
	appRouter := router.New(cfg, middleware.NewAuthMiddleware(authService, bus, cfg.IsDevelopment()), router.Handlers{
		Auth:   handler.NewAuthHandler(authService, opts),
		User:   handler.NewUserHandler(userService, opts),
		Audit:  handler.NewAuditHandler(auditService, opts),
		Docs:   handler.NewDocsHandler(cfg.IsDevelopment(), router.DocsSpecURL),
		Health: handler.NewHealthHandler(st.health),
	}, appMetrics)

	backgroundCtx, backgroundCancel := context.WithCancel(context.Background())
	event.Listen(backgroundCtx, bus, appMetrics.Record)
	event.Listen(backgroundCtx, bus, auditService.Handle)
	go tokenService.StartCleanupTicker(backgroundCtx, cfg.TokenCleanupInterval)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server: server,
		cleanupFuncs: []func(){
			backgroundCancel,
			st.cleanup,
		},
	}, nil
}

func openStores(ctx context.Context, cfg *config.Config) (stores, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		slog.Warn("using in-memory store; data is lost on restart")
		tokens := memory.NewTokenStore(nil)
		return stores{
			users:   memory.NewUserStore(tokens),
			tokens:  tokens,
			audit:   memory.NewAuditStore(),
			cleanup: func() {},
		}, nil
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return stores{}, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return stores{}, fmt.Errorf("failed to migrate database: %w", err)
	}

	return stores{
		users:   repository.NewUserRepository(db.Pool),
		tokens:  repository.NewTokenRepository(db.Pool),
		audit:   repository.NewAuditRepository(db.Pool),
		health:  db.Health,
		cleanup: db.Close,
	}, nil
}

func newTransport(cfg *config.Config) mailer.Transport {
	if cfg.MailDriver == config.MailDriverSMTP {
		return mailer.NewSMTPTransport(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		})
	}
	return mailer.NewLogTransport(slog.Default())
}

// Handler exposes the fully wired router.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

func (a *App) Close() {
	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shutdownErr := a.server.Shutdown(ctx)
	a.Close()
	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}
