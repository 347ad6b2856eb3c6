// Package config holds the store's external configuration: where the data
// file lives, how many entries it may hold, and how purging behaves. See
// spec.md §6.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/tailscale/hujson"
	"go.uber.org/zap"
)

// DefaultLocationName is used when Location is left empty, matching
// FileCacheStore's "Infinispan-SingleFileCacheStore" fallback directory.
const DefaultLocationName = "filecachestore-data"

// Config is the store's external configuration (spec.md §6).
type Config struct {
	// Location is the directory the data file lives in. Defaults to
	// DefaultLocationName when empty.
	Location string `json:"location"`

	// CacheName names the data file: "<Location>/<CacheName>.dat". A
	// random name is generated if left empty.
	CacheName string `json:"cacheName"`

	// MaxEntries activates bounded mode with LRU eviction when positive.
	// Zero or negative means unbounded.
	MaxEntries int `json:"maxEntries"`

	// PurgeSynchronously is passed through to the purge scheduler; the
	// store itself only exposes Purge() for the scheduler to call.
	PurgeSynchronously bool `json:"purgeSynchronously"`

	// Logger overrides the package-level telemetry logger for this store
	// instance. Defaults to the shared development logger when nil.
	Logger *zap.Logger `json:"-"`
}

// Default returns a Config with spec.md's defaults applied.
func Default() *Config {
	return &Config{
		Location:   DefaultLocationName,
		CacheName:  uuid.NewString(),
		MaxEntries: 0,
	}
}

// Load reads a HuJSON (JSON-with-comments) configuration file at path,
// standardizes it to plain JSON, and unmarshals it onto a Default() config.
// Grounded on calvinalkan-agent-task's use of tailscale/hujson for
// comment-tolerant tooling config.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	std, err := hujson.Standardize(raw)
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg := Default()
	if err := json.Unmarshal(std, cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	return cfg, nil
}
