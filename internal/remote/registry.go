package remote

import (
	"context"
	"fmt"
	"maps"
	"sort"
)

// pluginPrefix is the leading namespace segment that marks a
// plugin-qualified method name.
const pluginPrefix = "plugin"

// Registry aggregates three method sources into one logical namespace:
// core methods, plugin methods and custom call aliases. Each tier is
// computed at most once per Registry instance and cached for its
// lifetime; callers needing fresh discovery create a new instance.
type Registry struct {
	core   func() CoreProvider
	loader PluginLoader
	lister PluginLister
	hook   CustomCallHook

	coreMethods   map[string]*MethodDescriptor
	pluginMethods map[string]*MethodDescriptor
	customCalls   map[string]CustomCall
	allMethods    map[string]*MethodDescriptor
}

// NewRegistry creates a registry. The core provider is constructed
// lazily via the given factory on first access, so a test double can be
// substituted with SetCoreFactory before first use. Any of the
// collaborators may be nil, in which case the corresponding tier is
// empty.
func NewRegistry(core func() CoreProvider, loader PluginLoader, lister PluginLister, hook CustomCallHook) *Registry {
	return &Registry{core: core, loader: loader, lister: lister, hook: hook}
}

// SetCoreFactory replaces the deferred core-method provider. It has no
// effect once the core tier has been populated.
func (r *Registry) SetCoreFactory(core func() CoreProvider) {
	if r.coreMethods == nil {
		r.core = core
	}
}

// CoreMethods returns the fixed set of built-in methods. Computed once;
// subsequent calls return the cached mapping.
func (r *Registry) CoreMethods() map[string]*MethodDescriptor {
	if r.coreMethods != nil {
		return r.coreMethods
	}
	methods := map[string]*MethodDescriptor{}
	if r.core != nil {
		if provider := r.core(); provider != nil {
			for name, d := range provider.Methods() {
				d.normalize(name)
				methods[name] = d
			}
		}
	}
	r.coreMethods = methods
	return r.coreMethods
}

// PluginMethods enumerates all installed extensions advertising remote
// support and merges their methods under the plugin.<name>.<method> key
// scheme. Computed once and cached; discovery failures are not cached.
func (r *Registry) PluginMethods(ctx context.Context) (map[string]*MethodDescriptor, error) {
	if r.pluginMethods != nil {
		return r.pluginMethods, nil
	}
	methods := map[string]*MethodDescriptor{}
	if r.lister != nil {
		names, err := r.lister.List(ctx)
		if err != nil {
			return nil, WrapRemoteError(CodeInternalError, "failed to enumerate remote plugins", err)
		}
		for _, pluginName := range names {
			plugin, err := r.LoadPlugin(ctx, pluginName)
			if err != nil {
				return nil, err
			}
			if plugin == nil {
				return nil, NewRemoteError(CodeInternalError,
					fmt.Sprintf("plugin %s does not satisfy the remote plugin contract", pluginName))
			}
			exposed, err := plugin.Methods(ctx)
			if err != nil {
				return nil, WrapRemoteError(CodeInternalError,
					fmt.Sprintf("method discovery for plugin %s failed", pluginName), err)
			}
			for methodName, d := range exposed {
				qualified := pluginPrefix + "." + pluginName + "." + methodName
				d.normalize(qualified)
				methods[qualified] = d
			}
		}
	}
	r.pluginMethods = methods
	return r.pluginMethods, nil
}

// CustomCalls triggers the one-shot registration hook and returns the
// alias table. Computed once and cached.
func (r *Registry) CustomCalls(ctx context.Context) (map[string]CustomCall, error) {
	if r.customCalls != nil {
		return r.customCalls, nil
	}
	calls := customCallMap{}
	if r.hook != nil {
		if err := r.hook(ctx, calls); err != nil {
			return nil, WrapRemoteError(CodeInternalError, "custom call registration failed", err)
		}
	}
	r.customCalls = calls
	return r.customCalls, nil
}

// LoadPlugin loads a single extension through the configured loader. A
// nil plugin with nil error means the extension is not installed.
func (r *Registry) LoadPlugin(ctx context.Context, name string) (Plugin, error) {
	if r.loader == nil {
		return nil, nil
	}
	plugin, err := r.loader.Load(ctx, name)
	if err != nil {
		return nil, WrapRemoteError(CodeInternalError,
			fmt.Sprintf("failed to load plugin %s", name), err)
	}
	return plugin, nil
}

// Methods returns the union of core and plugin methods. Custom calls are
// resolved separately at dispatch time and are not part of the listing.
// The union is cached alongside the tier caches.
func (r *Registry) Methods(ctx context.Context) (map[string]*MethodDescriptor, error) {
	if r.allMethods != nil {
		return r.allMethods, nil
	}
	pluginMethods, err := r.PluginMethods(ctx)
	if err != nil {
		return nil, err
	}
	all := map[string]*MethodDescriptor{}
	maps.Copy(all, r.CoreMethods())
	maps.Copy(all, pluginMethods)
	r.allMethods = all
	return r.allMethods, nil
}

// MethodNames returns the sorted qualified names of all listed methods.
func (r *Registry) MethodNames(ctx context.Context) ([]string, error) {
	all, err := r.Methods(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// customCallMap is the mutable registration target handed to the hook.
type customCallMap map[string]CustomCall

func (m customCallMap) Register(call, plugin, method string) {
	m[call] = CustomCall{Plugin: plugin, Method: method}
}
