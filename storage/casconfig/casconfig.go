// Package casconfig selects and opens blob store backends from a JSON file.
//
//	{
//	  "write_policy": "all",
//	  "cache_bytes": 67108864,
//	  "backends": [
//	    {"name": "localfs", "config": {"localfs-dir": "/var/lib/suiml/blobs"}},
//	    {"name": "grpc", "id": "blobd", "config": {"grpc-target": "blobd:7070"}}
//	  ]
//	}
//
// With write_policy "first" (the default) writes go to the first backend and
// reads fall back in order; with "all" every backend receives every write.
// Backends must be linked into the binary with a blank import.
package casconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"suiml.io/suiml/storage"
	"suiml.io/suiml/storage/casregistry"
)

const (
	WriteFirst = "first"
	WriteAll   = "all"
)

type Config struct {
	WritePolicy string          `json:"write_policy,omitempty"`
	CacheBytes  int64           `json:"cache_bytes,omitempty"`
	Backends    []BackendConfig `json:"backends"`
}

type BackendConfig struct {
	// Name is the registered backend name.
	Name string `json:"name"`
	// ID distinguishes two instances of the same backend. Defaults to Name.
	ID     string            `json:"id,omitempty"`
	Config map[string]string `json:"config,omitempty"`
}

func (b BackendConfig) id() string {
	if b.ID != "" {
		return b.ID
	}
	return b.Name
}

func LoadFile(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, errors.New("casconfig: empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("casconfig: %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if len(c.Backends) == 0 {
		return errors.New("casconfig: at least one backend is required")
	}
	if c.CacheBytes < 0 {
		return errors.New("casconfig: cache_bytes must not be negative")
	}
	seen := make(map[string]bool, len(c.Backends))
	for _, b := range c.Backends {
		if b.Name == "" {
			return errors.New("casconfig: backend name is required")
		}
		if seen[b.id()] {
			return fmt.Errorf("casconfig: duplicate backend id %q", b.id())
		}
		seen[b.id()] = true
	}
	switch c.WritePolicy {
	case "", WriteFirst, WriteAll:
		return nil
	default:
		return fmt.Errorf("casconfig: invalid write_policy %q", c.WritePolicy)
	}
}

// Open opens every configured backend and combines them per WritePolicy.
// If preferred names a backend (by name or id) it is moved to the front and
// so receives writes under the "first" policy.
func (c Config) Open(usage casregistry.Usage, preferred string) (storage.BlobStore, storage.Closer, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	ordered, err := reorder(c.Backends, preferred)
	if err != nil {
		return nil, nil, err
	}

	var (
		named   []storage.Named
		closers []storage.Closer
	)
	closeAll := func() error {
		var firstErr error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	for _, b := range ordered {
		s, closeFn, err := casregistry.OpenWithConfig(b.Name, usage, b.Config)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("casconfig: backend %q: %w", b.id(), err)
		}
		named = append(named, storage.Named{Name: b.id(), Store: s})
		if closeFn != nil {
			closers = append(closers, closeFn)
		}
	}

	var out storage.BlobStore
	switch {
	case len(named) == 1:
		out = named[0].Store
	case c.WritePolicy == WriteAll:
		out = storage.Mirror{Backends: named}
	default:
		stores := make([]storage.BlobStore, 0, len(named))
		for _, n := range named {
			stores = append(stores, n.Store)
		}
		out = storage.Fallback{Stores: stores}
	}

	if c.CacheBytes > 0 {
		cached, err := storage.NewCached(out, c.CacheBytes)
		if err != nil {
			_ = closeAll()
			return nil, nil, err
		}
		closers = append([]storage.Closer{cached.Close}, closers...)
		out = cached
	}
	return out, closeAll, nil
}

func reorder(in []BackendConfig, preferred string) ([]BackendConfig, error) {
	out := append([]BackendConfig(nil), in...)
	if preferred == "" {
		return out, nil
	}
	for i := range out {
		if out[i].Name == preferred || out[i].ID == preferred {
			b := out[i]
			copy(out[1:i+1], out[:i])
			out[0] = b
			return out, nil
		}
	}
	return nil, fmt.Errorf("casconfig: preferred backend %q not in config", preferred)
}
