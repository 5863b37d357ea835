package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"path"
	"strings"

	"go.uber.org/zap"

	"finitefield.org/hanko-admin/internal/admin/authclient"
	custommw "finitefield.org/hanko-admin/internal/admin/httpserver/middleware"
	"finitefield.org/hanko-admin/internal/admin/loginform"
	"finitefield.org/hanko-admin/internal/admin/observability"
	"finitefield.org/hanko-admin/internal/admin/session"
	"finitefield.org/hanko-admin/internal/admin/templates/auth"
	"finitefield.org/hanko-admin/internal/admin/templates/helpers"
	"finitefield.org/hanko-admin/internal/admin/view"
)

const (
	messageLoggedOut = "You have been signed out."
	messageExpired   = "Your session has expired. Please sign in again."
	messageRequired  = "Please sign in to continue."
)

type authOptions struct {
	Provider      authclient.Provider
	Authenticator custommw.Authenticator
	Sessions      *session.Manager
	Flights       *authclient.Flights
	BasePath      string
	LoginPath     string
	Routes        loginform.Routes
	NoticeHTML    string
}

type authHandlers struct {
	provider      authclient.Provider
	authenticator custommw.Authenticator
	sessions      *session.Manager
	flights       *authclient.Flights
	routes        loginform.Routes
	basePath      string
	loginPath     string
	fragmentPath  string
	notice        string
}

func newAuthHandlers(opts authOptions) *authHandlers {
	if opts.Provider == nil || opts.Authenticator == nil || opts.Sessions == nil {
		panic("auth: provider, authenticator and sessions are required")
	}
	flights := opts.Flights
	if flights == nil {
		flights = authclient.NewFlights()
	}
	return &authHandlers{
		provider:      opts.Provider,
		authenticator: opts.Authenticator,
		sessions:      opts.Sessions,
		flights:       flights,
		routes:        opts.Routes,
		basePath:      opts.BasePath,
		loginPath:     opts.LoginPath,
		fragmentPath:  helpers.JoinPath(opts.LoginPath, "form"),
		notice:        opts.NoticeHTML,
	}
}

// newForm builds the per-request login form. Navigation is captured in
// target and applied once the form settles.
func (h *authHandlers) newForm(w http.ResponseWriter, r *http.Request, identifier string, target *string) *loginform.Form {
	client := authclient.NewClient(h.provider,
		authclient.WithFlights(h.flights, custommw.CSRFTokenFromContext(r.Context())),
		authclient.WithSessionHandler(func(_ context.Context, sess *authclient.Session) error {
			return h.persistSession(w, sess)
		}),
	)
	nav := loginform.NavigatorFunc(func(p string) { *target = p })
	return loginform.New(client, nav,
		loginform.WithRoutes(h.routes),
		loginform.WithIdentifier(identifier),
	)
}

func (h *authHandlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !forceLogin(r) && h.isAuthenticated(r) {
		http.Redirect(w, r, h.redirectTarget(q.Get("next"), h.routes.Dashboard), http.StatusFound)
		return
	}

	var target string
	form := h.newForm(w, r, strings.TrimSpace(q.Get("email")), &target)
	defer form.Close()

	data := h.buildLoginPageData(r, form.View(), h.normalizeNext(q.Get("next")))
	data.Message = messageForQuery(q)
	view.Render(w, r, auth.LoginPage(data), http.StatusOK)
}

// LoginFormFragment re-renders the form container; the loading state polls it
// until the pending login for this browser settles.
func (h *authHandlers) LoginFormFragment(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if h.isAuthenticated(r) {
		h.navigate(w, r, h.redirectTarget(q.Get("next"), h.routes.Dashboard))
		return
	}

	var target string
	form := h.newForm(w, r, strings.TrimSpace(q.Get("email")), &target)
	defer form.Close()

	data := h.buildLoginPageData(r, form.View(), h.normalizeNext(q.Get("next")))
	view.Render(w, r, auth.LoginFormFragment(data), http.StatusOK)
}

func (h *authHandlers) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	logger := observability.FromContext(ctx)

	identifier := r.PostFormValue("email")
	next := h.normalizeNext(r.PostFormValue("next"))

	var target string
	form := h.newForm(w, r, identifier, &target)
	defer form.Close()

	switch r.PostFormValue(auth.ActionField) {
	case auth.ActionHome:
		form.NavigateHome()
		h.navigate(w, r, target)
		return
	case auth.ActionUserLogin:
		form.NavigateToUserLogin()
		h.navigate(w, r, target)
		return
	}

	form.SetSecret(r.PostFormValue("password"))
	err := form.Submit(ctx)

	status := http.StatusOK
	switch {
	case err == nil:
		logger.Info("admin login succeeded", zap.String("identifier", observability.RedactIdentifier(identifier)))
		h.navigate(w, r, h.redirectTarget(next, target))
		return
	case errors.Is(err, loginform.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, loginform.ErrSubmitInFlight):
		logger.Info("admin login already in flight")
		status = http.StatusConflict
	default:
		logger.Warn("admin login failed",
			zap.String("identifier", observability.RedactIdentifier(identifier)),
			zap.String("outcome", authclient.Outcome(err)),
			zap.Error(err),
		)
		status = http.StatusUnauthorized
	}

	data := h.buildLoginPageData(r, form.View(), next)
	if custommw.IsHTMXRequest(ctx) {
		view.Render(w, r, auth.LoginFormFragment(data), http.StatusOK)
		return
	}
	view.Render(w, r, auth.LoginPage(data), status)
}

func (h *authHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Destroy(w)
	h.navigate(w, r, h.loginURLWithParams(map[string]string{
		"status": "logged_out",
	}))
}

func (h *authHandlers) persistSession(w http.ResponseWriter, sess *authclient.Session) error {
	_, err := h.sessions.Issue(w, session.Data{
		UID:       sess.UID,
		Email:     sess.Email,
		Roles:     sess.Roles,
		IDToken:   sess.IDToken,
		ExpiresAt: sess.ExpiresAt,
	})
	return err
}

// navigate redirects a full page load, or asks htmx to do so.
func (h *authHandlers) navigate(w http.ResponseWriter, r *http.Request, target string) {
	if custommw.IsHTMXRequest(r.Context()) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *authHandlers) buildLoginPageData(r *http.Request, v loginform.View, next string) auth.LoginPageData {
	return auth.LoginPageData{
		Form:         v,
		NoticeHTML:   h.notice,
		Next:         next,
		LoginPath:    h.loginPath,
		FragmentPath: h.fragmentURL(v.Identifier, next),
		CSRFToken:    custommw.CSRFTokenFromContext(r.Context()),
		Environment:  custommw.EnvironmentFromContext(r.Context()),
	}
}

func (h *authHandlers) fragmentURL(identifier, next string) string {
	q := url.Values{}
	if identifier != "" {
		q.Set("email", identifier)
	}
	if next != "" {
		q.Set("next", next)
	}
	if len(q) == 0 {
		return h.fragmentPath
	}
	return h.fragmentPath + "?" + q.Encode()
}

func (h *authHandlers) isAuthenticated(r *http.Request) bool {
	token := custommw.TokenFromRequest(r)
	if token == "" {
		return false
	}
	user, err := h.authenticator.Authenticate(r, token)
	return err == nil && user != nil
}

func messageForQuery(q url.Values) string {
	if q.Get("status") == "logged_out" {
		return messageLoggedOut
	}
	switch q.Get("reason") {
	case custommw.ReasonTokenExpired, "expired":
		return messageExpired
	case custommw.ReasonMissingToken:
		return messageRequired
	default:
		return ""
	}
}

// redirectTarget prefers a sanitised next over fallback.
func (h *authHandlers) redirectTarget(raw, fallback string) string {
	if next := h.normalizeNext(raw); next != "" {
		return next
	}
	if fallback != "" {
		return fallback
	}
	return h.basePath
}

func (h *authHandlers) loginURLWithParams(params map[string]string) string {
	parsed, err := url.Parse(h.loginPath)
	if err != nil {
		return h.loginPath
	}
	q := parsed.Query()
	for key, val := range params {
		if strings.TrimSpace(val) == "" {
			continue
		}
		q.Set(key, val)
	}
	parsed.RawQuery = q.Encode()
	return parsed.String()
}

func forceLogin(r *http.Request) bool {
	if r == nil || r.URL == nil {
		return false
	}
	flag := strings.TrimSpace(r.URL.Query().Get("force"))
	if flag == "" {
		return false
	}
	switch strings.ToLower(flag) {
	case "1", "true", "yes", "force":
		return true
	default:
		return false
	}
}

func samePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	trim := func(p string) string {
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		for len(p) > 1 && strings.HasSuffix(p, "/") {
			p = strings.TrimSuffix(p, "/")
		}
		return p
	}
	return trim(a) == trim(b)
}

func (h *authHandlers) normalizeNext(raw string) string {
	sanitized := sanitizeNextTarget(h.basePath, raw)
	if sanitized == "" {
		return ""
	}

	if h.loginPath != "" {
		if samePath(pathOnly(sanitized), h.loginPath) {
			return ""
		}
	}
	return sanitized
}

func sanitizeNextTarget(basePath, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if parsed.Scheme != "" || parsed.Host != "" {
		return ""
	}

	pathValue := parsed.Path
	if pathValue == "" {
		pathValue = "/"
	}

	unescaped, err := url.PathUnescape(pathValue)
	if err != nil {
		return ""
	}
	if strings.Contains(unescaped, "\\") {
		return ""
	}

	cleaned := path.Clean(unescaped)
	if !strings.HasPrefix(cleaned, "/") {
		cleaned = "/" + cleaned
	}
	if strings.HasPrefix(cleaned, "//") {
		return ""
	}

	normalisedBase := normalizeBase(basePath)
	if normalisedBase != "/" && !hasSafePrefix(cleaned, normalisedBase) {
		return ""
	}

	target := cleaned
	if parsed.RawQuery != "" {
		target += "?" + parsed.RawQuery
	}
	if parsed.Fragment != "" {
		target += "#" + parsed.Fragment
	}
	return target
}

func normalizeBase(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return "/"
	}
	if !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	if len(base) > 1 && strings.HasSuffix(base, "/") {
		base = strings.TrimRight(base, "/")
	}
	return base
}

func hasSafePrefix(pathValue, base string) bool {
	if base == "/" {
		return strings.HasPrefix(pathValue, "/")
	}
	if !strings.HasPrefix(pathValue, base) {
		return false
	}
	if len(pathValue) == len(base) {
		return true
	}
	return pathValue[len(base)] == '/'
}

func pathOnly(raw string) string {
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return parsed.Path
}
