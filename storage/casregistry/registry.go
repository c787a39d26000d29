// Package casregistry is the build-time plugin registry for blob store backends.
package casregistry

import (
	"flag"
	"fmt"
	"sort"
	"sync"

	"suiml.io/suiml/storage"
)

// Backend opens one kind of storage.BlobStore.
//
//	casregistry.MustRegister(casregistry.Backend{ ... })
type Backend struct {
	Name        string
	Description string
	Usage       Usage

	// RegisterFlags adds backend-specific flags to fs. Called at most once per process.
	RegisterFlags func(fs *flag.FlagSet)

	// Open builds the store from the values parsed into the registered flags.
	Open func() (storage.BlobStore, storage.Closer, error)

	// OpenWithConfig builds the store from key/value settings whose keys
	// mirror the flag names. Used by casconfig.
	OpenWithConfig func(cfg map[string]string) (storage.BlobStore, storage.Closer, error)
}

var (
	mu       sync.RWMutex
	backends = map[string]Backend{}
)

// Register adds a backend. Names must be unique.
func Register(b Backend) error {
	switch {
	case b.Name == "":
		return fmt.Errorf("casregistry: backend name is required")
	case b.RegisterFlags == nil:
		return fmt.Errorf("casregistry: backend %q missing RegisterFlags", b.Name)
	case b.Open == nil:
		return fmt.Errorf("casregistry: backend %q missing Open", b.Name)
	case b.OpenWithConfig == nil:
		return fmt.Errorf("casregistry: backend %q missing OpenWithConfig", b.Name)
	case b.Usage == 0:
		return fmt.Errorf("casregistry: backend %q missing Usage", b.Name)
	}

	mu.Lock()
	defer mu.Unlock()
	if _, exists := backends[b.Name]; exists {
		return fmt.Errorf("casregistry: backend %q already registered", b.Name)
	}
	backends[b.Name] = b
	return nil
}

// MustRegister is Register that panics on error.
func MustRegister(b Backend) {
	if err := Register(b); err != nil {
		panic(err)
	}
}

// List returns the backends allowed for usage, sorted by name.
func List(usage Usage) []Backend {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Backend, 0, len(backends))
	for _, b := range backends {
		if b.Usage.allows(usage) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the sorted names of the backends allowed for usage.
func Names(usage Usage) []string {
	var out []string
	for _, b := range List(usage) {
		out = append(out, b.Name)
	}
	return out
}

// RegisterFlags registers the flags of every backend allowed for usage, so a
// single flag.Parse pass accepts all of them.
func RegisterFlags(fs *flag.FlagSet, usage Usage) {
	for _, b := range List(usage) {
		b.RegisterFlags(fs)
	}
}

func lookup(name string, usage Usage) (Backend, error) {
	mu.RLock()
	b, ok := backends[name]
	mu.RUnlock()
	if !ok {
		return Backend{}, fmt.Errorf("casregistry: unknown backend %q", name)
	}
	if !b.Usage.allows(usage) {
		return Backend{}, fmt.Errorf("casregistry: backend %q not available here", name)
	}
	return b, nil
}

// Open opens the named backend from its parsed flags.
func Open(name string, usage Usage) (storage.BlobStore, storage.Closer, error) {
	b, err := lookup(name, usage)
	if err != nil {
		return nil, nil, err
	}
	return b.Open()
}

// OpenWithConfig opens the named backend from key/value settings.
func OpenWithConfig(name string, usage Usage, cfg map[string]string) (storage.BlobStore, storage.Closer, error) {
	b, err := lookup(name, usage)
	if err != nil {
		return nil, nil, err
	}
	return b.OpenWithConfig(cfg)
}
