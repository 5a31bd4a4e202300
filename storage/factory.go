package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/kbukum/imgprep/logger"
)

// Factory creates a Storage implementation from config.
type Factory func(ctx context.Context, cfg Config, log *logger.Logger) (Storage, error)

var factories = make(map[string]Factory)

// RegisterFactory registers a storage backend factory for the given provider name.
// Implementation packages call this in an init function to make themselves
// available to New.
func RegisterFactory(name string, f Factory) {
	factories[name] = f
}

// Providers returns the registered provider names, sorted.
func Providers() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates a Storage implementation based on the given Config.
// Ensure the desired provider package has been imported (e.g.
// _ "github.com/kbukum/imgprep/storage/local") so its factory is registered.
func New(ctx context.Context, cfg Config, log *logger.Logger) (Storage, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	l := log.WithComponent("storage")

	f, ok := factories[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("storage: unsupported provider %q (not registered)", cfg.Provider)
	}

	l.Debug("initializing storage", logger.Fields("provider", cfg.Provider))
	return f(ctx, cfg, l)
}
