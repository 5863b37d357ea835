// Package config loads admin server settings from defaults, an optional YAML
// file, a .env file and the process environment, resolving sm:// secret
// references on the way.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultEnvFile       = ".env"
	defaultAddr          = ":3051"
	defaultBasePath      = "/admin"
	defaultHomePath      = "/"
	defaultUserLoginPath = "/login"
	defaultLogLevel      = "info"
	defaultEnvironment   = "Development"
	defaultTokenTTL      = time.Hour
	defaultSessionTTL    = 12 * time.Hour
	minSecretLength      = 32

	// ConfigFileEnv names the variable pointing at an optional YAML file.
	ConfigFileEnv = "ADMIN_CONFIG_FILE"
)

// Config captures runtime configuration organised by concern.
type Config struct {
	HTTP        HTTPConfig
	Log         LogConfig
	Environment string
	Firebase    FirebaseConfig
	Static      StaticConfig
	Session     SessionConfig
	LoginNotice string
}

// HTTPConfig configures the listener and route layout.
type HTTPConfig struct {
	Addr             string
	BasePath         string
	HomePath         string
	UserLoginPath    string
	CSRFCookieSecure bool
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level string
}

// FirebaseConfig enables Identity Toolkit sign-in when both fields are set.
type FirebaseConfig struct {
	ProjectID string
	APIKey    string
}

// Enabled reports whether Firebase sign-in is configured.
func (f FirebaseConfig) Enabled() bool {
	return f.APIKey != ""
}

// StaticConfig lists locally configured accounts for environments without Firebase.
type StaticConfig struct {
	TokenSecret string
	TokenTTL    time.Duration
	Accounts    []StaticAccount
}

// StaticAccount is one entry of ADMIN_STATIC_ACCOUNTS.
type StaticAccount struct {
	Email    string
	Password string
	Roles    []string
}

// SessionConfig controls the signed session cookie.
type SessionConfig struct {
	HashKey  string
	BlockKey string
	Lifetime time.Duration
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	configFile   *string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the .env file path. An empty path disables it.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithConfigFile overrides the YAML file path otherwise taken from ADMIN_CONFIG_FILE.
func WithConfigFile(path string) Option {
	return func(o *loaderOptions) {
		o.configFile = &path
	}
}

// WithEnvMap injects explicit values that take precedence over every other source.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets the resolver used for sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

func newLoaderOptions(opts []Option) loaderOptions {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// EnvironmentValues returns the merged key/value map Load reads from
// (YAML < .env < process environment < explicit map). Callers use it to
// build dependencies, such as the secret resolver, before calling Load.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	return collect(newLoaderOptions(opts))
}

func collect(options loaderOptions) (map[string]string, error) {
	values := make(map[string]string)
	merge := func(source map[string]string) {
		for key, value := range source {
			values[key] = value
		}
	}

	system := map[string]string{}
	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			key, value, ok := strings.Cut(entry, "=")
			if ok && strings.TrimSpace(key) != "" {
				system[key] = value
			}
		}
	}

	dotEnv, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}

	var configPath string
	switch {
	case options.configFile != nil:
		configPath = *options.configFile
	case options.envMap[ConfigFileEnv] != "":
		configPath = options.envMap[ConfigFileEnv]
	case system[ConfigFileEnv] != "":
		configPath = system[ConfigFileEnv]
	default:
		configPath = dotEnv[ConfigFileEnv]
	}
	fileValues, err := loadYAML(configPath)
	if err != nil {
		return nil, err
	}

	merge(fileValues)
	merge(dotEnv)
	merge(system)
	merge(options.envMap)
	return values, nil
}

// Load assembles the configuration and validates it.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := newLoaderOptions(opts)
	if options.secret == nil {
		options.secret = SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
			return "", errSecretResolverNotConfigured
		})
	}

	values, err := collect(options)
	if err != nil {
		return Config{}, err
	}
	lookup := func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}

	cfg := Config{
		HTTP: HTTPConfig{
			Addr:             stringWithDefault(lookup, "ADMIN_HTTP_ADDR", defaultAddr),
			BasePath:         normalizePath(stringWithDefault(lookup, "ADMIN_BASE_PATH", defaultBasePath)),
			HomePath:         stringWithDefault(lookup, "ADMIN_HOME_PATH", defaultHomePath),
			UserLoginPath:    stringWithDefault(lookup, "ADMIN_USER_LOGIN_PATH", defaultUserLoginPath),
			CSRFCookieSecure: boolWithDefault(lookup, "ADMIN_CSRF_COOKIE_SECURE", false),
		},
		Log: LogConfig{
			Level: strings.ToLower(stringWithDefault(lookup, "ADMIN_LOG_LEVEL", defaultLogLevel)),
		},
		Environment: stringWithDefault(lookup, "ADMIN_ENVIRONMENT", defaultEnvironment),
		Firebase: FirebaseConfig{
			ProjectID: stringWithDefault(lookup, "FIREBASE_PROJECT_ID", ""),
			APIKey:    stringWithDefault(lookup, "FIREBASE_API_KEY", ""),
		},
		Static: StaticConfig{
			TokenSecret: stringWithDefault(lookup, "ADMIN_TOKEN_SECRET", ""),
			TokenTTL:    durationWithDefault(lookup, "ADMIN_TOKEN_TTL", defaultTokenTTL),
		},
		Session: SessionConfig{
			HashKey:  stringWithDefault(lookup, "ADMIN_SESSION_HASH_KEY", ""),
			BlockKey: stringWithDefault(lookup, "ADMIN_SESSION_BLOCK_KEY", ""),
			Lifetime: durationWithDefault(lookup, "ADMIN_SESSION_LIFETIME", defaultSessionTTL),
		},
		LoginNotice: stringWithDefault(lookup, "ADMIN_LOGIN_NOTICE", ""),
	}

	rawAccounts := stringWithDefault(lookup, "ADMIN_STATIC_ACCOUNTS", "")

	secretFields := []*string{
		&cfg.Firebase.APIKey,
		&cfg.Static.TokenSecret,
		&cfg.Session.HashKey,
		&cfg.Session.BlockKey,
		&rawAccounts,
	}
	for _, field := range secretFields {
		resolved, err := resolveSecret(ctx, *field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*field = resolved
	}

	var invalid []string
	accounts, err := ParseStaticAccounts(rawAccounts)
	if err != nil {
		invalid = append(invalid, "Static.Accounts")
	}
	cfg.Static.Accounts = accounts

	if err := validateConfig(cfg, invalid); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config, invalid []string) error {
	if strings.TrimSpace(cfg.HTTP.Addr) == "" {
		invalid = append(invalid, "HTTP.Addr")
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		invalid = append(invalid, "Log.Level")
	}
	if cfg.Firebase.Enabled() && cfg.Firebase.ProjectID == "" {
		invalid = append(invalid, "Firebase.ProjectID")
	}
	if !cfg.Firebase.Enabled() && len(cfg.Static.Accounts) == 0 && !contains(invalid, "Static.Accounts") {
		invalid = append(invalid, "Auth.Provider")
	}
	if len(cfg.Static.Accounts) > 0 && len(cfg.Static.TokenSecret) < minSecretLength {
		invalid = append(invalid, "Static.TokenSecret")
	}
	if cfg.Static.TokenTTL <= 0 {
		invalid = append(invalid, "Static.TokenTTL")
	}
	if cfg.Session.HashKey != "" && len(cfg.Session.HashKey) < minSecretLength {
		invalid = append(invalid, "Session.HashKey")
	}
	switch len(cfg.Session.BlockKey) {
	case 0, 16, 24, 32:
	default:
		invalid = append(invalid, "Session.BlockKey")
	}
	if cfg.Session.Lifetime <= 0 {
		invalid = append(invalid, "Session.Lifetime")
	}

	if len(invalid) > 0 {
		sort.Strings(invalid)
		return &ValidationError{fields: invalid}
	}
	return nil
}

// ParseStaticAccounts parses "email:password:role|role" entries separated by
// commas. The role segment is optional and defaults to admin; a password that
// contains ':' therefore needs an explicit role segment.
func ParseStaticAccounts(raw string) ([]StaticAccount, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var accounts []StaticAccount
	for i, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		email, rest, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("config: static account %d: expected email:password[:roles]", i+1)
		}
		password, rolesRaw := rest, ""
		if idx := strings.LastIndex(rest, ":"); idx >= 0 {
			password, rolesRaw = rest[:idx], rest[idx+1:]
		}
		email = strings.TrimSpace(email)
		if email == "" || password == "" {
			return nil, fmt.Errorf("config: static account %d: email and password are required", i+1)
		}
		var roles []string
		for _, role := range strings.Split(rolesRaw, "|") {
			if role = strings.TrimSpace(role); role != "" {
				roles = append(roles, role)
			}
		}
		if len(roles) == 0 {
			roles = []string{"admin"}
		}
		accounts = append(accounts, StaticAccount{Email: email, Password: password, Roles: roles})
	}
	return accounts, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if !IsSecretReference(value) {
		return value, nil
	}
	ref := strings.TrimSpace(value)
	secret, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return "", &SecretError{Ref: ref, Err: err}
	}
	return strings.TrimSpace(secret), nil
}

// IsSecretReference reports whether value points at Secret Manager.
func IsSecretReference(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), secretScheme)
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	return values, nil
}

func loadYAML(path string) (map[string]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", path, err)
	}
	values := make(map[string]string, len(doc))
	for key, node := range doc {
		value, err := yamlScalar(node)
		if err != nil {
			return nil, fmt.Errorf("config: %s: key %s: %w", path, key, err)
		}
		values[key] = value
	}
	return values, nil
}

// yamlScalar flattens a YAML value into the string form the env parsers
// expect. Sequences are joined with commas.
func yamlScalar(node yaml.Node) (string, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Value, nil
	case yaml.SequenceNode:
		parts := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return "", errors.New("only scalar list items are supported")
			}
			parts = append(parts, item.Value)
		}
		return strings.Join(parts, ","), nil
	default:
		return "", errors.New("expected a scalar or a list")
	}
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			return "/"
		}
	}
	return p
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return parsed
		}
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "yes", "on":
			return true
		case "no", "off":
			return false
		}
	}
	return fallback
}
