// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone to prevent drift bugs.
//  2. Load .env file via godotenv (non-fatal if absent).
//  3. Resolve *_FILE secret pointers via the SecretProvider and inject the
//     values back into the environment.
//  4. Use envconfig to process struct tags and populate the Config struct.
//  5. Populate BuildInfo from linker-injected variables.
//  6. Validate the struct using go-playground/validator, then check the
//     cross-section requirements validator tags cannot express.
package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is a diagnostic error type returned by LoadConfig to aid debugging.
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

// secretFileSuffix marks pointer variables: DATABASE_URL_FILE=/run/secrets/db
// resolves DATABASE_URL from the contents of that file.
const secretFileSuffix = "_FILE"

// secretTimeout bounds the secret resolution step.
const secretTimeout = 10 * time.Second

type envLookup func(key string) (string, bool)

type envSet func(key, value string) error

type environ func() []string

// loaderDeps holds the injectable dependencies for the loader, enabling
// testing without mutating global state.
type loaderDeps struct {
	lookupEnv  envLookup
	setEnv     envSet
	environ    environ
	loadDotenv func() error
}

func defaultDeps() loaderDeps {
	return loaderDeps{
		lookupEnv:  os.LookupEnv,
		setEnv:     os.Setenv,
		environ:    os.Environ,
		loadDotenv: func() error { return godotenv.Load() },
	}
}

// LoadConfig loads and validates the service configuration.
//
// The provider resolves *_FILE secret pointers. It may be nil when no pointer
// variables are set; LoadConfig reports an error if pointers exist but no
// provider was supplied.
func LoadConfig(provider SecretProvider) (*Config, error) {
	return loadConfigWithDeps(provider, defaultDeps())
}

func loadConfigWithDeps(provider SecretProvider, deps loaderDeps) (*Config, error) {
	time.Local = time.UTC

	// godotenv does NOT override variables already present in the environment.
	_ = deps.loadDotenv()

	if err := resolveSecretFiles(provider, deps); err != nil {
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

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	if err := checkDependencies(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// checkDependencies enforces requirements that span config sections.
func checkDependencies(cfg *Config) error {
	var missing []string
	if cfg.AWS.EventsQueueURL == "" {
		if cfg.Consumer.Enabled {
			missing = append(missing, "SQS_EVENTS_QUEUE_URL (CONSUMER_ENABLED=true)")
		}
		if cfg.Feature.SimulationEnabled {
			missing = append(missing, "SQS_EVENTS_QUEUE_URL (SIMULATION_ENABLED=true)")
		}
	}
	if len(missing) > 0 {
		return &ConfigError{
			Type:    ErrMissingEnv,
			Message: fmt.Sprintf("required configuration not set: %s", strings.Join(missing, ", ")),
		}
	}
	return nil
}

// resolveSecretFiles scans the environment for variables ending in _FILE,
// reads the referenced files via the SecretProvider and injects the contents
// under the target variable name so that envconfig can process them.
//
// A target that is already set in the environment wins over its pointer
// (priority: Env > Dotenv > File).
func resolveSecretFiles(provider SecretProvider, deps loaderDeps) error {
	type binding struct {
		target string
		ref    string
	}

	var bindings []binding
	refToTarget := make(map[string]string)

	for _, entry := range deps.environ() {
		key, ref, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasSuffix(key, secretFileSuffix) || ref == "" {
			continue
		}
		target := strings.TrimSuffix(key, secretFileSuffix)
		if target == "" {
			continue
		}
		if _, exists := deps.lookupEnv(target); exists {
			continue
		}
		bindings = append(bindings, binding{target: target, ref: ref})
		refToTarget[ref] = target
	}

	if len(bindings) == 0 {
		return nil
	}

	if provider == nil {
		targets := make([]string, 0, len(bindings))
		for _, b := range bindings {
			targets = append(targets, b.target)
		}
		return &ConfigError{
			Type:    ErrSecretResolution,
			Message: fmt.Sprintf("SecretProvider is required to resolve: %s", strings.Join(targets, ", ")),
		}
	}

	refs := make([]string, 0, len(bindings))
	for _, b := range bindings {
		refs = append(refs, b.ref)
	}

	ctx, cancel := context.WithTimeout(context.Background(), secretTimeout)
	defer cancel()

	resolved, err := provider.ResolveBatch(ctx, refs)
	if err != nil {
		return &ConfigError{
			Type:    ErrSecretResolution,
			Message: fmt.Sprintf("failed to resolve %d secret files", len(refs)),
			Err:     err,
		}
	}

	for ref, value := range resolved {
		target, ok := refToTarget[ref]
		if !ok {
			continue
		}
		if err := deps.setEnv(target, value); err != nil {
			return &ConfigError{
				Type:    ErrSecretResolution,
				Message: fmt.Sprintf("failed to set resolved value for %s", target),
				Err:     err,
			}
		}
	}

	var missing []string
	for _, b := range bindings {
		if _, ok := resolved[b.ref]; !ok {
			missing = append(missing, b.target)
		}
	}
	if len(missing) > 0 {
		return &ConfigError{
			Type:    ErrSecretResolution,
			Message: fmt.Sprintf("secret files not found for: %s", strings.Join(missing, ", ")),
		}
	}

	return nil
}
