package lambdaplugin

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/inkwell-cms/remote-gateway/internal/remote"
	"github.com/inkwell-cms/remote-gateway/internal/store"
)

// PluginStore defines the registration reads the loader needs.
type PluginStore interface {
	ListPlugins(ctx context.Context) ([]store.PluginRecord, error)
	ListCustomCalls(ctx context.Context) ([]store.CustomCallRecord, error)
}

// Loader resolves registered plugins from the store, loading the
// registration table at most once per process. It satisfies both the
// loader and lister contracts of the dispatcher.
type Loader struct {
	store  PluginStore
	client LambdaClient

	once    sync.Once
	loadErr error
	plugins map[string]*Plugin
}

// NewLoader creates a loader over the given store and Lambda client.
func NewLoader(pluginStore PluginStore, client LambdaClient) *Loader {
	return &Loader{store: pluginStore, client: client}
}

func (l *Loader) load(ctx context.Context) error {
	l.once.Do(func() {
		records, err := l.store.ListPlugins(ctx)
		if err != nil {
			l.loadErr = fmt.Errorf("failed to load plugin registrations: %w", err)
			return
		}
		plugins := make(map[string]*Plugin, len(records))
		for _, record := range records {
			plugins[record.PluginName] = NewPlugin(record, l.client)
		}
		l.plugins = plugins
	})
	return l.loadErr
}

// Load returns the named plugin, or nil when it is not registered.
func (l *Loader) Load(ctx context.Context, name string) (remote.Plugin, error) {
	if err := l.load(ctx); err != nil {
		return nil, err
	}
	plugin, ok := l.plugins[name]
	if !ok {
		return nil, nil
	}
	return plugin, nil
}

// List returns the registered plugin names in sorted order.
func (l *Loader) List(ctx context.Context) ([]string, error) {
	if err := l.load(ctx); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(l.plugins))
	for name := range l.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// CustomCalls returns the registration hook that populates the alias
// table from stored custom-call records.
func (l *Loader) CustomCalls() remote.CustomCallHook {
	return func(ctx context.Context, reg remote.CustomCallRegistry) error {
		records, err := l.store.ListCustomCalls(ctx)
		if err != nil {
			return fmt.Errorf("failed to load custom call registrations: %w", err)
		}
		for _, record := range records {
			reg.Register(record.CallName, record.PluginName, record.MethodName)
		}
		return nil
	}
}
