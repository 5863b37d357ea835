package httpserver

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"finitefield.org/hanko-admin/internal/admin/authclient"
	custommw "finitefield.org/hanko-admin/internal/admin/httpserver/middleware"
	"finitefield.org/hanko-admin/internal/admin/loginform"
	"finitefield.org/hanko-admin/internal/admin/metrics"
	"finitefield.org/hanko-admin/internal/admin/observability"
	"finitefield.org/hanko-admin/internal/admin/rbac"
	"finitefield.org/hanko-admin/internal/admin/session"
	"finitefield.org/hanko-admin/internal/admin/templates/helpers"
	"finitefield.org/hanko-admin/public"
)

// Config holds runtime options for the admin HTTP server.
type Config struct {
	Address       string
	BasePath      string
	HomePath      string
	UserLoginPath string
	Environment   string

	// Provider verifies credentials submitted to the login form.
	Provider authclient.Provider
	// Authenticator verifies the token stored after login.
	Authenticator custommw.Authenticator
	Sessions      *session.Manager
	Flights       *authclient.Flights

	CSRFCookieName   string
	CSRFCookieSecure bool
	CSRFHeaderName   string

	Logger     *zap.Logger
	Metrics    prometheus.Gatherer
	NoticeHTML string
	Now        func() time.Time
}

// New constructs the HTTP server with middleware stack and embedded assets.
func New(cfg Config) *http.Server {
	if cfg.Provider == nil {
		panic("httpserver: provider is required")
	}
	if cfg.Authenticator == nil {
		panic("httpserver: authenticator is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	basePath := normalizeBasePath(cfg.BasePath)
	loginPath := helpers.JoinPath(basePath, "/login")

	sessions := cfg.Sessions
	if sessions == nil {
		sessions = ephemeralSessions(basePath, cfg.CSRFCookieSecure)
		logger.Warn("session hash key not configured; sessions will not survive restarts")
	}
	flights := cfg.Flights
	if flights == nil {
		flights = authclient.NewFlights()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(observability.RequestLogger(logger))
	router.Use(chimw.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.Metrics != nil {
		router.Handle("/metrics", metrics.Handler(cfg.Metrics))
	}

	staticContent, err := public.StaticFS()
	if err != nil {
		panic(fmt.Sprintf("embed static: %v", err))
	}
	router.Handle("/public/static/*", http.StripPrefix("/public/static/", http.FileServer(http.FS(staticContent))))

	auth := newAuthHandlers(authOptions{
		Provider:      cfg.Provider,
		Authenticator: cfg.Authenticator,
		Sessions:      sessions,
		Flights:       flights,
		BasePath:      basePath,
		LoginPath:     loginPath,
		Routes: loginform.Routes{
			Dashboard: helpers.JoinPath(basePath, "/dashboard"),
			Home:      cfg.HomePath,
			UserLogin: cfg.UserLoginPath,
		},
		NoticeHTML: cfg.NoticeHTML,
	})
	dash := &dashboardHandlers{
		logoutPath:  helpers.JoinPath(basePath, "/logout"),
		metricsPath: metricsPath(cfg.Metrics),
		now:         now,
	}

	mountAdminRoutes(router, basePath, routeOptions{
		Auth:      auth,
		Dashboard: dash,
		LoginPath: loginPath,
		Sessions:  sessions,
		Env:       cfg.Environment,
		CSRF: custommw.CSRFConfig{
			CookieName: cfg.CSRFCookieName,
			CookiePath: basePath,
			HeaderName: cfg.CSRFHeaderName,
			Secure:     cfg.CSRFCookieSecure,
		},
	})

	return &http.Server{
		Addr:              cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

type routeOptions struct {
	Auth      *authHandlers
	Dashboard *dashboardHandlers
	LoginPath string
	Sessions  *session.Manager
	Env       string
	CSRF      custommw.CSRFConfig
}

func mountAdminRoutes(router chi.Router, base string, opts routeOptions) {
	router.Route(base, func(r chi.Router) {
		r.Use(custommw.HTMX())
		r.Use(custommw.NoStore())
		r.Use(custommw.Environment(opts.Env))
		r.Use(custommw.CSRF(opts.CSRF))
		r.Use(custommw.Session(opts.Sessions))

		r.Get("/login", opts.Auth.LoginForm)
		r.Post("/login", opts.Auth.LoginSubmit)
		RegisterFragment(r, "/login/form", opts.Auth.LoginFormFragment)
		r.Post("/logout", opts.Auth.Logout)

		r.Group(func(protected chi.Router) {
			protected.Use(custommw.Auth(opts.Auth.authenticator, opts.LoginPath))
			protected.Use(custommw.RequireCapability(rbac.CapDashboardView))
			protected.Get("/", opts.Dashboard.Dashboard)
			protected.Get("/dashboard", opts.Dashboard.Dashboard)
		})
	})
}

// RegisterFragment registers a GET handler intended for htmx fragment rendering.
func RegisterFragment(r chi.Router, pattern string, handler http.HandlerFunc) {
	r.With(custommw.RequireHTMX()).Get(pattern, handler)
}

func ephemeralSessions(basePath string, secure bool) *session.Manager {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic(fmt.Sprintf("session key: %v", err))
	}
	mgr, err := session.NewManager(session.Config{HashKey: key, CookiePath: basePath, CookieSecure: secure})
	if err != nil {
		panic(fmt.Sprintf("session manager: %v", err))
	}
	return mgr
}

func metricsPath(gatherer prometheus.Gatherer) string {
	if gatherer == nil {
		return ""
	}
	return "/metrics"
}

func normalizeBasePath(path string) string {
	p := strings.TrimSpace(path)
	if p == "" {
		return "/admin"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	if p == "" {
		return "/"
	}
	return p
}
