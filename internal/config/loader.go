package config

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is the diagnostic error returned by LoadConfig.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ssmParamSuffix marks an environment variable whose value is an SSM path.
// DATABASE_URL_SSM_PARAM=/prod/notifications/database-url resolves into
// DATABASE_URL.
const ssmParamSuffix = "_SSM_PARAM"

// localEnv is the APP_ENV value that resolves secrets from the environment.
const localEnv = "local"

// ssmResolveTimeout bounds the whole secret resolution step at startup.
const ssmResolveTimeout = 30 * time.Second

// loaderDeps holds the environment accessors so tests can run without
// mutating process state.
type loaderDeps struct {
	lookupEnv func(key string) (string, bool)
	setEnv    func(key, value string) error
	environ   func() []string
}

func defaultDeps() loaderDeps {
	return loaderDeps{
		lookupEnv: os.LookupEnv,
		setEnv:    os.Setenv,
		environ:   os.Environ,
	}
}

// LoadConfig loads and validates the process configuration.
//
//  1. Pins time.Local to UTC.
//  2. Loads .env if present (never overrides the real environment).
//  3. Resolves every *_SSM_PARAM variable through provider and exports the
//     result under the stripped name. With APP_ENV=local the pointers name
//     other environment variables instead of SSM paths.
//  4. Populates Config from envconfig tags and attaches BuildInfo.
//  5. Validates struct tags and cross-field constraints.
//
// provider may be nil when no *_SSM_PARAM variables are present.
func LoadConfig(provider SecretProvider) (*Config, error) {
	return loadConfigWithDeps(provider, defaultDeps())
}

func loadConfigWithDeps(provider SecretProvider, deps loaderDeps) (*Config, error) {
	time.Local = time.UTC

	_ = godotenv.Load()

	if appEnv, _ := deps.lookupEnv("APP_ENV"); appEnv == localEnv {
		provider = &EnvVarProvider{lookup: deps.lookupEnv}
	}
	if err := resolveSSMParams(provider, deps); err != nil {
		return nil, err
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}
	cfg.Build = NewBuildInfo()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}
	if err := validateWorker(cfg.Worker); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validateWorker enforces constraints between worker durations that struct
// tags cannot express.
func validateWorker(w WorkerConfig) error {
	if w.ClaimLease <= w.DispatchTimeout {
		return &ConfigError{
			Type: ErrValidation,
			Message: fmt.Sprintf("WORKER_CLAIM_LEASE (%s) must exceed WORKER_DISPATCH_TIMEOUT (%s)",
				w.ClaimLease, w.DispatchTimeout),
		}
	}
	if w.MaxReceiveBackoff < w.ReceiveBackoff {
		return &ConfigError{
			Type:    ErrValidation,
			Message: "WORKER_MAX_RECEIVE_BACKOFF must not be below WORKER_RECEIVE_BACKOFF",
		}
	}
	return nil
}

// resolveSSMParams fetches every *_SSM_PARAM pointer whose target variable is
// not already set and exports the plaintext under the target name.
func resolveSSMParams(provider SecretProvider, deps loaderDeps) error {
	targets := make(map[string]string) // ssm path -> target env var

	for _, entry := range deps.environ() {
		key, path, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasSuffix(key, ssmParamSuffix) || path == "" {
			continue
		}
		target := strings.TrimSuffix(key, ssmParamSuffix)
		if _, exists := deps.lookupEnv(target); exists {
			continue
		}
		targets[path] = target
	}

	if len(targets) == 0 {
		return nil
	}

	paths := make([]string, 0, len(targets))
	for path := range targets {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	if provider == nil {
		names := make([]string, 0, len(paths))
		for _, p := range paths {
			names = append(names, targets[p])
		}
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("a SecretProvider is required to resolve: %s", strings.Join(names, ", ")),
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), ssmResolveTimeout)
	defer cancel()

	resolved, err := provider.GetParametersBatch(ctx, paths)
	if err != nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("failed to resolve %d SSM parameters", len(paths)),
			Err:     err,
		}
	}

	var missing []string
	for _, path := range paths {
		value, ok := resolved[path]
		if !ok {
			missing = append(missing, targets[path])
			continue
		}
		if err := deps.setEnv(targets[path], value); err != nil {
			return &ConfigError{
				Type:    ErrSSMResolution,
				Message: fmt.Sprintf("failed to export resolved value for %s", targets[path]),
				Err:     err,
			}
		}
	}
	if len(missing) > 0 {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("SSM parameters not found for: %s", strings.Join(missing, ", ")),
		}
	}
	return nil
}
