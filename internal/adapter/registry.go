package adapter

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
)

// Constructor builds an adapter. It must not touch the network.
type Constructor func(creds Credentials, cfg Config) (Adapter, error)

// Metadata describes one registered platform.
type Metadata struct {
	Platform         string
	DisplayName      string
	Description      string
	AuthTypes        []AuthType
	SupportsWebhooks bool
	New              Constructor
}

func (m Metadata) clone() Metadata {
	m.AuthTypes = slices.Clone(m.AuthTypes)
	return m
}

var (
	ErrAlreadyRegistered = errors.New("platform already registered")
	ErrInvalidMetadata   = errors.New("invalid adapter metadata")
)

// Registry maps platform identifiers to adapter constructors and capability
// metadata. It is populated at startup and read afterwards.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Metadata
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Metadata)}
}

// Register adds a platform. Registering an existing key fails and leaves the
// original entry in place.
func (r *Registry) Register(platform string, meta Metadata) error {
	platform = strings.TrimSpace(platform)
	if platform == "" {
		return fmt.Errorf("register: platform is required: %w", ErrInvalidMetadata)
	}
	if meta.Platform == "" {
		meta.Platform = platform
	}
	if meta.Platform != platform {
		return fmt.Errorf("register %s: metadata names %q: %w", platform, meta.Platform, ErrInvalidMetadata)
	}
	if meta.New == nil {
		return fmt.Errorf("register %s: constructor is required: %w", platform, ErrInvalidMetadata)
	}
	if len(meta.AuthTypes) == 0 {
		return fmt.Errorf("register %s: at least one auth type is required: %w", platform, ErrInvalidMetadata)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[platform]; ok {
		return fmt.Errorf("register %s: %w", platform, ErrAlreadyRegistered)
	}
	r.entries[platform] = meta.clone()
	return nil
}

// Unregister removes a platform. It reports whether an entry existed.
func (r *Registry) Unregister(platform string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[platform]
	delete(r.entries, platform)
	return ok
}

// Create is the only way callers obtain an adapter. Unknown platforms fail
// with CodeAdapterNotFound; any constructor failure, including a panic, is
// wrapped in CodeAdapterCreationFailed.
func (r *Registry) Create(platform string, creds Credentials, cfg Config) (a Adapter, err error) {
	r.mu.RLock()
	meta, ok := r.entries[platform]
	r.mu.RUnlock()
	if !ok {
		return nil, newError(CodeAdapterNotFound, platform, "no adapter registered", nil)
	}

	defer func() {
		if rec := recover(); rec != nil {
			a = nil
			err = newError(CodeAdapterCreationFailed, platform, "create adapter", fmt.Errorf("panic: %v", rec))
		}
	}()

	a, err = meta.New(creds.Clone(), cfg)
	if err != nil {
		return nil, newError(CodeAdapterCreationFailed, platform, "create adapter", err)
	}
	if a == nil {
		return nil, newError(CodeAdapterCreationFailed, platform, "constructor returned no adapter", nil)
	}
	if a.Platform() != platform {
		return nil, newError(CodeAdapterCreationFailed, platform,
			fmt.Sprintf("constructor built a %q adapter", a.Platform()), nil)
	}
	return a, nil
}

func (r *Registry) Has(platform string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[platform]
	return ok
}

// Platforms returns the registered identifiers in sorted order.
func (r *Registry) Platforms() []string {
	return r.filter(func(Metadata) bool { return true })
}

func (r *Registry) Metadata(platform string) (Metadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	meta, ok := r.entries[platform]
	if !ok {
		return Metadata{}, false
	}
	return meta.clone(), true
}

// AllMetadata returns every entry sorted by platform.
func (r *Registry) AllMetadata() []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Metadata, 0, len(r.entries))
	for _, meta := range r.entries {
		out = append(out, meta.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Platform < out[j].Platform })
	return out
}

func (r *Registry) PlatformsByAuthType(t AuthType) []string {
	return r.filter(func(m Metadata) bool { return slices.Contains(m.AuthTypes, t) })
}

func (r *Registry) PlatformsWithWebhooks() []string {
	return r.filter(func(m Metadata) bool { return m.SupportsWebhooks })
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) filter(keep func(Metadata) bool) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []string{}
	for name, meta := range r.entries {
		if keep(meta) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
