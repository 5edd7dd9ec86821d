package config

import (
	"context"
	"os"
)

// EnvVarProvider resolves secret keys as environment variable names. It
// backs local runs where secrets come straight from the shell or .env.
type EnvVarProvider struct {
	lookup func(string) (string, bool)
}

// NewEnvVarProvider creates an EnvVarProvider over the process environment.
func NewEnvVarProvider() *EnvVarProvider {
	return &EnvVarProvider{lookup: os.LookupEnv}
}

// GetParametersBatch returns the value of each key that is set.
func (p *EnvVarProvider) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	result := make(map[string]string, len(keys))
	for _, key := range keys {
		if val, ok := p.lookup(key); ok {
			result[key] = val
		}
	}
	return result, nil
}
