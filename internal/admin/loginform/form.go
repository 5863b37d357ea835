// Package loginform models the admin login screen: credential entry, the
// presence check, delegated authentication and navigation on the outcome.
package loginform

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

const (
	// MessageMissingFields is shown when either credential field is empty.
	MessageMissingFields = "Please fill in all fields"
	// MessageLoginFailed is shown for every authentication failure, whatever the cause.
	MessageLoginFailed = "Login failed. Please check your credentials."

	// LabelSubmit is the idle submit control label.
	LabelSubmit = "Sign In"
	// LabelSubmitting is shown on the submit control while a login is in flight.
	LabelSubmitting = "Signing in..."
)

var (
	// ErrValidation reports that the presence check failed and no login was attempted.
	ErrValidation = errors.New("loginform: missing credentials")
	// ErrAuthentication reports that the AuthClient rejected or failed the login.
	ErrAuthentication = errors.New("loginform: authentication failed")
	// ErrSubmitInFlight is returned when a submission is attempted while another is pending.
	ErrSubmitInFlight = errors.New("loginform: submission already in flight")
	// ErrClosed is returned once the form has been torn down.
	ErrClosed = errors.New("loginform: form closed")
)

// AuthClient performs the actual credential verification. Session and token
// handling stay inside the implementation. Login returns an error wrapping
// ErrSubmitInFlight when another login already owns the loading state.
type AuthClient interface {
	Login(ctx context.Context, identifier, secret string) error
	Loading() bool
}

// Navigator moves the user to another route.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a plain function to Navigator.
type NavigatorFunc func(path string)

// Navigate calls f(path).
func (f NavigatorFunc) Navigate(path string) {
	f(path)
}

// Routes lists the navigation targets used by the form.
type Routes struct {
	Dashboard string
	Home      string
	UserLogin string
}

// DefaultRoutes returns the standard admin routes.
func DefaultRoutes() Routes {
	return Routes{
		Dashboard: "/admin/dashboard",
		Home:      "/",
		UserLogin: "/login",
	}
}

func (r Routes) withDefaults() Routes {
	def := DefaultRoutes()
	if r.Dashboard == "" {
		r.Dashboard = def.Dashboard
	}
	if r.Home == "" {
		r.Home = def.Home
	}
	if r.UserLogin == "" {
		r.UserLogin = def.UserLogin
	}
	return r
}

// Option customises a Form.
type Option func(*Form)

// WithRoutes overrides the navigation targets. Empty fields keep their defaults.
func WithRoutes(routes Routes) Option {
	return func(f *Form) {
		f.routes = routes.withDefaults()
	}
}

// WithIdentifier pre-fills the identifier field.
func WithIdentifier(identifier string) Option {
	return func(f *Form) {
		f.identifier = identifier
	}
}

// View is the render-ready snapshot of the form.
type View struct {
	Identifier     string
	ErrorMessage   string
	Loading        bool
	InputsDisabled bool
	SubmitDisabled bool
	SubmitLabel    string
}

type credentials struct {
	Identifier string `validate:"required"`
	Secret     string `validate:"required"`
}

var validate = validator.New()

// Form holds the per-instance state of one login screen. All state is
// discarded when the form is closed.
type Form struct {
	client AuthClient
	nav    Navigator
	routes Routes

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	identifier   string
	secret       string
	errorMessage string
	submitting   bool
	closed       bool
}

// New constructs a Form bound to the provided AuthClient and Navigator.
func New(client AuthClient, nav Navigator, opts ...Option) *Form {
	if client == nil {
		panic("loginform: auth client is required")
	}
	if nav == nil {
		panic("loginform: navigator is required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	f := &Form{
		client: client,
		nav:    nav,
		routes: DefaultRoutes(),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SetIdentifier replaces the identifier field value.
func (f *Form) SetIdentifier(value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.identifier = value
}

// SetSecret replaces the secret field value.
func (f *Form) SetSecret(value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.secret = value
}

// Identifier returns the current identifier field value.
func (f *Form) Identifier() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.identifier
}

// ErrorMessage returns the message currently displayed, or "".
func (f *Form) ErrorMessage() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errorMessage
}

// Routes returns the navigation targets in use.
func (f *Form) Routes() Routes {
	return f.routes
}

// Submit validates the fields and, when both are present, delegates to the
// AuthClient. It blocks until the login settles, the caller's context is
// cancelled or the form is closed.
func (f *Form) Submit(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	if f.submitting || f.client.Loading() {
		f.mu.Unlock()
		return ErrSubmitInFlight
	}
	creds := credentials{Identifier: f.identifier, Secret: f.secret}
	if err := validate.Struct(creds); err != nil {
		f.errorMessage = MessageMissingFields
		f.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	f.errorMessage = ""
	f.submitting = true
	f.mu.Unlock()

	callCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(f.ctx, cancel)
	err := f.client.Login(callCtx, creds.Identifier, creds.Secret)
	stop()
	cancel()

	f.mu.Lock()
	f.submitting = false
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	if errors.Is(err, ErrSubmitInFlight) {
		f.mu.Unlock()
		return ErrSubmitInFlight
	}
	if err != nil {
		f.errorMessage = MessageLoginFailed
		f.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	target := f.routes.Dashboard
	f.mu.Unlock()

	f.nav.Navigate(target)
	return nil
}

// NavigateHome leaves the admin login for the main site.
func (f *Form) NavigateHome() {
	f.nav.Navigate(f.routes.Home)
}

// NavigateToUserLogin switches to the regular user login.
func (f *Form) NavigateToUserLogin() {
	f.nav.Navigate(f.routes.UserLogin)
}

// View returns the rendering state. Inputs and the submit control are
// disabled whenever the AuthClient reports a login in flight.
func (f *Form) View() View {
	loading := f.client.Loading()

	f.mu.Lock()
	defer f.mu.Unlock()

	label := LabelSubmit
	if loading {
		label = LabelSubmitting
	}
	return View{
		Identifier:     f.identifier,
		ErrorMessage:   f.errorMessage,
		Loading:        loading,
		InputsDisabled: loading,
		SubmitDisabled: loading,
		SubmitLabel:    label,
	}
}

// Close tears the form down. A pending login is cancelled and its outcome
// is ignored.
func (f *Form) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.secret = ""
	f.mu.Unlock()
	f.cancel()
}

// Closed reports whether Close has been called.
func (f *Form) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
