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

// ConfigError wraps a loading failure with its category.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// A variable named FOO_SSM_PARAM holds the SSM path whose value becomes FOO.
const ssmParamSuffix = "_SSM_PARAM"

const (
	localEnv       = "local"
	resolveTimeout = 15 * time.Second
)

// env abstracts process environment access so tests never touch os state.
type env struct {
	lookup func(key string) (string, bool)
	set    func(key, value string) error
	list   func() []string
	dotenv func() error
}

func osEnv() env {
	return env{
		lookup: os.LookupEnv,
		set:    os.Setenv,
		list:   os.Environ,
		dotenv: func() error { return godotenv.Load() },
	}
}

// Load builds the Config from the environment.
//
// Order of operations:
//  1. Pin the process timezone to UTC.
//  2. Load .env if present. Existing variables win.
//  3. Outside APP_ENV=local, resolve *_SSM_PARAM pointers through provider.
//  4. Populate the struct from envconfig tags.
//  5. Attach build metadata and validate.
//
// provider may be nil for local runs or when no pointer variables are set.
func Load(provider SecretProvider) (*Config, error) {
	return load(provider, osEnv())
}

func load(provider SecretProvider, e env) (*Config, error) {
	time.Local = time.UTC

	_ = e.dotenv()

	if appEnv, _ := e.lookup("APP_ENV"); appEnv != localEnv {
		if err := resolveSecrets(provider, e); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{Type: ErrParsing, Message: "failed to process environment configuration", Err: err}
	}
	cfg.Build = NewBuildInfo()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, &ConfigError{Type: ErrValidation, Message: "configuration validation failed", Err: err}
	}
	return &cfg, nil
}

// ssmPointers returns target variable -> SSM path for every pointer whose
// target is not already set.
func ssmPointers(e env) map[string]string {
	pointers := make(map[string]string)
	for _, kv := range e.list() {
		key, path, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasSuffix(key, ssmParamSuffix) || path == "" {
			continue
		}
		target := strings.TrimSuffix(key, ssmParamSuffix)
		if _, set := e.lookup(target); set {
			continue
		}
		pointers[target] = path
	}
	return pointers
}

func resolveSecrets(provider SecretProvider, e env) error {
	pointers := ssmPointers(e)
	if len(pointers) == 0 {
		return nil
	}

	targets := make([]string, 0, len(pointers))
	for target := range pointers {
		targets = append(targets, target)
	}
	sort.Strings(targets)

	if provider == nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: "no secret provider configured to resolve " + strings.Join(targets, ", "),
		}
	}

	paths := make([]string, 0, len(targets))
	for _, target := range targets {
		paths = append(paths, pointers[target])
	}

	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	values, err := provider.GetParametersBatch(ctx, paths)
	if err != nil {
		return &ConfigError{Type: ErrSSMResolution, Message: fmt.Sprintf("failed to resolve %d parameters", len(paths)), Err: err}
	}

	var missing []string
	for _, target := range targets {
		value, ok := values[pointers[target]]
		if !ok {
			missing = append(missing, target)
			continue
		}
		if err := e.set(target, value); err != nil {
			return &ConfigError{Type: ErrSSMResolution, Message: "failed to export " + target, Err: err}
		}
	}
	if len(missing) > 0 {
		return &ConfigError{Type: ErrSSMResolution, Message: "parameters not found for " + strings.Join(missing, ", ")}
	}
	return nil
}
