// Package platforms holds the process-wide adapter registry.
package platforms

import (
	"fmt"
	"sync"

	"github.com/ppiankov/savedsync/internal/adapter"
	"github.com/ppiankov/savedsync/internal/adapter/pinboard"
	"github.com/ppiankov/savedsync/internal/adapter/reddit"
	"github.com/ppiankov/savedsync/internal/adapter/twitter"
)

var builtin = []adapter.Metadata{
	reddit.Metadata,
	twitter.Metadata,
	pinboard.Metadata,
}

var (
	once     sync.Once
	registry *adapter.Registry
)

// Registry returns the shared registry, populated with every built-in
// platform on first use.
func Registry() *adapter.Registry {
	once.Do(func() {
		registry = New()
	})
	return registry
}

// New builds a fresh registry with the built-in platforms. Tests use it to
// get an instance they can mutate.
func New() *adapter.Registry {
	r := adapter.NewRegistry()
	for _, m := range builtin {
		if err := r.Register(m.Platform, m); err != nil {
			panic(fmt.Sprintf("platforms: %v", err))
		}
	}
	return r
}
