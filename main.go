package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/msomdec/realty/internal/config"
	"github.com/msomdec/realty/internal/handler"
	"github.com/msomdec/realty/internal/repository/sqlite"
	"github.com/msomdec/realty/internal/service"
)

func main() {
	logOpts := &slog.HandlerOptions{Level: slog.LevelInfo}
	logger := slog.New(slog.NewMultiHandler(
		slog.NewTextHandler(os.Stdout, logOpts),
		slog.NewJSONHandler(os.Stderr, logOpts),
	))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("database migrations applied")

	var mailer service.Mailer = service.LogMailer{}
	if cfg.SendGridAPIKey != "" {
		mailer = service.NewSendGridMailer(cfg.SendGridAPIKey, cfg.MailFromName, cfg.MailFromEmail)
	} else {
		slog.Warn("SENDGRID_API_KEY not set, emails will be logged instead of sent")
	}

	// Without a geocoder listings fall back to the default coordinates.
	var geocoder service.Geocoder
	if cfg.MapsAPIKey != "" {
		g, err := service.NewGoogleGeocoder(cfg.MapsAPIKey)
		if err != nil {
			slog.Error("failed to create geocoder", "error", err)
			os.Exit(1)
		}
		geocoder = g
	}

	var google *service.OAuthProvider
	if cfg.GoogleSignIn() {
		google = service.NewGoogleOAuth(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.BaseURL+"/auth/google/callback")
	}

	authService := service.NewAuthService(db.Users(), db.PasswordResets(), mailer, cfg.JWTSecret, cfg.BcryptCost, cfg.BaseURL)
	listingService := service.NewListingService(
		db.Listings(),
		db.Users(),
		service.NewUploadService(db.FileStore()),
		geocoder,
		mailer,
		service.NewBroker(),
	)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	limiter := service.NewRateLimiter(ctx, cfg.RateLimitPerMinute/60, cfg.RateLimitBurst)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, handler.Deps{
		Auth:           authService,
		Listings:       listingService,
		Files:          db.FileStore(),
		DB:             db,
		Google:         google,
		Limiter:        limiter,
		Cookies:        handler.Cookies{Secure: cfg.CookieSecure},
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.LogRequests(handler.SecurityHeaders(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "google", google != nil, "geocoder", geocoder != nil)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
