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

	"forest-auth/internal/config"
	"forest-auth/internal/database"
	"forest-auth/internal/handler"
	"forest-auth/internal/mailer"
	"forest-auth/internal/middleware"
	"forest-auth/internal/reaper"
	"forest-auth/internal/repository"
	"forest-auth/internal/router"
	"forest-auth/internal/service"
	"forest-auth/internal/signer"
)

type App struct {
	server       *http.Server
	db           *database.DB
	cleanupFuncs []func()
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	privateKey, publicKey, err := signer.LoadKeyPair(cfg.PrivateKeyFile, cfg.PublicKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing keys: %w", err)
	}
	credentialSigner := signer.NewRSASigner(privateKey, publicKey)

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	pool := db.Pool
	userRepo := repository.NewUserRepository(pool)
	refreshTokenRepo := repository.NewRefreshTokenRepository(pool)
	verificationTokenRepo := repository.NewVerificationTokenRepository(pool)
	slog.Info("database ready")

	var dispatcher mailer.Dispatcher
	if cfg.SMTPHost != "" {
		dispatcher = mailer.NewSMTPDispatcher(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.SMTPUsername, cfg.SMTPPassword)
	} else {
		slog.Warn("SMTP_HOST not set, mail goes to the log")
		dispatcher = mailer.LogDispatcher{}
	}

	refreshTokenService := service.NewRefreshTokenService(credentialSigner, refreshTokenRepo)
	authService := service.NewAuthService(
		userRepo,
		verificationTokenRepo,
		refreshTokenService,
		credentialSigner,
		service.NewBcryptHasher(cfg.BcryptCost),
		dispatcher,
		db,
		cfg.AccessTokenTTL,
		service.Links{
			AccountVerification: cfg.PublicBaseURL + "/api/v1/auth/verify/",
			PasswordReset:       cfg.FrontendBaseURL + "/reset-password/",
		},
	)

	authMiddleware := middleware.NewAuthMiddleware(credentialSigner)
	authHandler := handler.NewAuthHandler(authService, cfg.FrontendBaseURL+"/login")

	appRouter := router.New(cfg, authMiddleware, authHandler)

	reaperCtx, reaperCancel := context.WithCancel(context.Background())
	tokenReaper := reaper.New(refreshTokenRepo, reaper.DefaultPeriod)
	go tokenReaper.Run(reaperCtx)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      appRouter,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	return &App{
		server: server,
		db:     db,
		cleanupFuncs: []func(){
			reaperCancel,
			db.Close,
		},
	}, nil
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

	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	slog.Info("server stopped")
	return nil
}
