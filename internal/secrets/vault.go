// Package secrets holds rotatable credentials (the JWT signing secret, the
// analysis API key) with hot reload support.
package secrets

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Well-known secret keys.
const (
	KeyJWTSecret       = "GOVFORGE_JWT_SECRET"
	KeyCognitiveAPIKey = "GOVFORGE_COGNITIVE_API_KEY"
)

// Loader retrieves secrets from a source (env vars, a mounted file, etc.).
type Loader func() (map[string]string, error)

// Vault holds secret values in memory and supports atomic reloading.
type Vault struct {
	mu     sync.RWMutex
	values map[string]string
	loader Loader
}

// NewVault creates a Vault, calling the loader once to populate initial values.
func NewVault(loader Loader) (*Vault, error) {
	vals, err := loader()
	if err != nil {
		return nil, fmt.Errorf("initial secret load: %w", err)
	}
	return &Vault{
		values: vals,
		loader: loader,
	}, nil
}

// Get returns the secret for key, or an empty string if not found.
func (v *Vault) Get(key string) string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.values[key]
}

// Source returns a function reading key on every call, falling back to
// fallback when the vault has no value.
func (v *Vault) Source(key, fallback string) func() string {
	return func() string {
		if s := v.Get(key); s != "" {
			return s
		}
		return fallback
	}
}

// Keys returns the loaded secret names in sorted order.
func (v *Vault) Keys() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return slices.Sorted(maps.Keys(v.values))
}

// Reload calls the loader and swaps in the new values atomically.
// If the loader returns an error, existing values are preserved.
func (v *Vault) Reload() error {
	newVals, err := v.loader()
	if err != nil {
		return fmt.Errorf("reload secrets: %w", err)
	}
	v.mu.Lock()
	v.values = newVals
	v.mu.Unlock()
	return nil
}
