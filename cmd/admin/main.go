package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"finitefield.org/hanko-admin/internal/admin/authclient"
	"finitefield.org/hanko-admin/internal/admin/config"
	"finitefield.org/hanko-admin/internal/admin/httpserver"
	"finitefield.org/hanko-admin/internal/admin/httpserver/middleware"
	"finitefield.org/hanko-admin/internal/admin/metrics"
	"finitefield.org/hanko-admin/internal/admin/notice"
	"finitefield.org/hanko-admin/internal/admin/observability"
	"finitefield.org/hanko-admin/internal/admin/session"
)

func main() {
	ctx := context.Background()

	envValues, err := config.EnvironmentValues()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read environment values: %v\n", err)
		os.Exit(1)
	}

	baseLogger, err := observability.NewLogger(envValues["ADMIN_LOG_LEVEL"])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("admin")
	ctx = observability.WithLogger(ctx, logger)

	resolver := config.NewSecretManagerResolver(firstNonEmpty(envValues["ADMIN_SECRETS_PROJECT_ID"], envValues["FIREBASE_PROJECT_ID"]))
	defer func() {
		if err := resolver.Close(); err != nil {
			logger.Warn("secret resolver close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(resolver))
	if err != nil {
		var invalid *config.ValidationError
		if errors.As(err, &invalid) {
			logger.Fatal("invalid configuration", zap.Strings("fields", invalid.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	loginMetrics := metrics.NewLoginMetrics("", registry)

	provider, authenticator, providerName, err := buildAuth(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialise authentication", zap.Error(err))
	}
	provider = authclient.Instrumented(authclient.Traced(provider, providerName), providerName, loginMetrics)
	logger.Info("login provider configured", zap.String("provider", providerName))

	sessions, err := buildSessions(cfg)
	if err != nil {
		logger.Fatal("failed to initialise sessions", zap.Error(err))
	}

	noticeHTML, err := notice.NewRenderer().Render(cfg.LoginNotice)
	if err != nil {
		logger.Warn("login notice ignored", zap.Error(err))
		noticeHTML = ""
	}

	srv := httpserver.New(httpserver.Config{
		Address:          cfg.HTTP.Addr,
		BasePath:         cfg.HTTP.BasePath,
		HomePath:         cfg.HTTP.HomePath,
		UserLoginPath:    cfg.HTTP.UserLoginPath,
		Environment:      cfg.Environment,
		Provider:         provider,
		Authenticator:    authenticator,
		Sessions:         sessions,
		CSRFCookieSecure: cfg.HTTP.CSRFCookieSecure,
		Logger:           logger,
		Metrics:          registry,
		NoticeHTML:       noticeHTML,
	})

	signalCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	logger.Info("admin server listening",
		zap.String("addr", cfg.HTTP.Addr),
		zap.String("basePath", cfg.HTTP.BasePath),
		zap.String("environment", cfg.Environment),
	)

	<-signalCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		return
	}
	logger.Info("admin server stopped")
}

// buildAuth selects Firebase when an API key is configured and falls back to
// the static accounts otherwise.
func buildAuth(ctx context.Context, cfg config.Config) (authclient.Provider, middleware.Authenticator, string, error) {
	if cfg.Firebase.Enabled() {
		app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.Firebase.ProjectID})
		if err != nil {
			return nil, nil, "", fmt.Errorf("firebase app: %w", err)
		}
		client, err := app.Auth(ctx)
		if err != nil {
			return nil, nil, "", fmt.Errorf("firebase auth: %w", err)
		}
		provider, err := authclient.NewIdentityToolkitProvider(ctx, cfg.Firebase.APIKey)
		if err != nil {
			return nil, nil, "", err
		}
		return provider, middleware.NewFirebaseAuthenticator(client), "firebase", nil
	}

	accounts := make([]authclient.Account, 0, len(cfg.Static.Accounts))
	for _, acc := range cfg.Static.Accounts {
		accounts = append(accounts, authclient.Account{
			Email:    acc.Email,
			Password: acc.Password,
			Roles:    acc.Roles,
		})
	}
	static, err := authclient.NewStaticProvider(accounts, []byte(cfg.Static.TokenSecret), authclient.WithTokenTTL(cfg.Static.TokenTTL))
	if err != nil {
		return nil, nil, "", err
	}
	return static, static, "static", nil
}

// buildSessions returns nil without a hash key so the server falls back to
// a process-local key.
func buildSessions(cfg config.Config) (*session.Manager, error) {
	if cfg.Session.HashKey == "" {
		return nil, nil
	}
	return session.NewManager(session.Config{
		HashKey:      []byte(cfg.Session.HashKey),
		BlockKey:     []byte(cfg.Session.BlockKey),
		CookiePath:   cfg.HTTP.BasePath,
		CookieSecure: cfg.HTTP.CSRFCookieSecure,
		Lifetime:     cfg.Session.Lifetime,
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
