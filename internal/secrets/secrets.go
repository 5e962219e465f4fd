// Package secrets resolves the named credentials a job declares.
//
// Resolution is just in time: the job runner asks only for the names the
// current job lists under `secrets`, so other jobs never hold the values.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

var (
	// ErrNotFound is returned when a provider does not know a secret.
	ErrNotFound = errors.New("secret not found")
	// ErrEmpty is returned when a secret exists but has no value.
	ErrEmpty = errors.New("secret is empty")
)

// EnvPrefix is checked before the bare name by EnvProvider.
const EnvPrefix = "RELEASEGRID_SECRET_"

// Provider looks secrets up by name.
type Provider interface {
	Resolve(ctx context.Context, name string) (string, error)
	Name() string
}

// ResolveAll resolves every name, failing on the first missing secret.
func ResolveAll(ctx context.Context, p Provider, names []string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	for _, name := range names {
		v, err := p.Resolve(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("resolving secret %s from %s: %w", name, p.Name(), err)
		}
		out[name] = v
	}
	return out, nil
}

// EnvProvider reads secrets from the process environment, preferring
// RELEASEGRID_SECRET_<NAME> over <NAME>.
type EnvProvider struct {
	lookup func(string) (string, bool)
}

// NewEnvProvider returns a provider backed by os.LookupEnv.
func NewEnvProvider() *EnvProvider {
	return &EnvProvider{lookup: os.LookupEnv}
}

func (p *EnvProvider) Name() string { return "env" }

func (p *EnvProvider) Resolve(_ context.Context, name string) (string, error) {
	for _, key := range []string{EnvPrefix + name, name} {
		if v, ok := p.lookup(key); ok {
			if v == "" {
				return "", fmt.Errorf("%w: %s", ErrEmpty, key)
			}
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}

// MapProvider serves secrets from memory. It is safe for concurrent use.
type MapProvider struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMapProvider copies values into a new provider.
func NewMapProvider(values map[string]string) *MapProvider {
	m := make(map[string]string, len(values))
	for k, v := range values {
		m[k] = v
	}
	return &MapProvider{values: m}
}

func (p *MapProvider) Name() string { return "memory" }

func (p *MapProvider) Resolve(_ context.Context, name string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return v, nil
}

// IsSecretEnv reports whether an environment entry must be withheld from
// job processes: any RELEASEGRID_SECRET_* variable, and any variable whose
// name is one of the pipeline's declared secrets.
func IsSecretEnv(key string, declared []string) bool {
	if strings.HasPrefix(key, EnvPrefix) {
		return true
	}
	for _, d := range declared {
		if key == d {
			return true
		}
	}
	return false
}

// Open builds a provider from a --secrets value: "env", "aws" or
// "aws:<name-prefix>".
func Open(ctx context.Context, spec string) (Provider, error) {
	kind, arg, _ := strings.Cut(spec, ":")
	switch kind {
	case "", "env":
		return NewEnvProvider(), nil
	case "aws":
		return NewAWSProviderFromConfig(ctx, arg)
	default:
		return nil, fmt.Errorf("unknown secrets provider %q", spec)
	}
}
