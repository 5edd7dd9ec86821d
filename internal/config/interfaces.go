package config

import "context"

// SecretProvider resolves secret references to plaintext. SSMProvider serves
// deployed environments and EnvVarProvider serves local runs.
type SecretProvider interface {
	// GetParametersBatch resolves keys and returns key -> plaintext for every
	// key found. Keys that do not exist are omitted, not errors.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
