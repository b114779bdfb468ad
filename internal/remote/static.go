package remote

import (
	"context"
	"sort"
)

// StaticLoader is an in-memory plugin table satisfying both the loader
// and lister contracts. Embedding hosts register in-process plugins
// directly; tests use it as a trivial double.
type StaticLoader map[string]Plugin

// Load returns the named plugin, or nil when not present.
func (l StaticLoader) Load(ctx context.Context, name string) (Plugin, error) {
	return l[name], nil
}

// List returns the registered plugin names in sorted order.
func (l StaticLoader) List(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(l))
	for name := range l {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// PluginFunc adapts a function to the Plugin capability contract.
type PluginFunc func(ctx context.Context) (map[string]*MethodDescriptor, error)

func (f PluginFunc) Methods(ctx context.Context) (map[string]*MethodDescriptor, error) {
	return f(ctx)
}
