package remote

import (
	"context"
	"fmt"
	"strings"
)

// HandlerFunc is the concrete callable bound to a method descriptor.
// Handlers receive the caller-supplied positional arguments; a shortfall
// discovered while running is reported by returning an error that wraps
// ErrMissingArgument.
type HandlerFunc func(ctx context.Context, args Args) (any, error)

// MethodDescriptor is the metadata for one callable method in the
// unified namespace.
type MethodDescriptor struct {
	// Name is the qualified name in the unified namespace. Filled in by
	// the registry when the descriptor is registered.
	Name string
	// ImplName is the name of the underlying callable on the target.
	// Defaults to the last dot-segment of Name.
	ImplName string
	// Args holds the declared parameter type tags. Only the length is
	// enforced, as an upper bound on the caller-supplied argument count.
	Args []string
	// Return is the declared semantic return type tag. Documentation only.
	Return string
	// Public methods skip the access check entirely.
	Public bool
	// Handler is the callable itself. A descriptor without a handler is
	// listed but not invokable.
	Handler HandlerFunc
}

// normalize fills in the qualified name and the implementation-name
// default for a descriptor registered under qualifiedName.
func (d *MethodDescriptor) normalize(qualifiedName string) {
	d.Name = qualifiedName
	if d.ImplName == "" {
		if idx := strings.LastIndex(qualifiedName, "."); idx >= 0 {
			d.ImplName = qualifiedName[idx+1:]
		} else {
			d.ImplName = qualifiedName
		}
	}
}

// CustomCall maps an external call alias to a plugin method.
type CustomCall struct {
	Plugin string
	Method string
}

// Plugin is the capability contract extension objects must satisfy to
// expose remote methods. Method discovery may perform I/O and may fail.
type Plugin interface {
	Methods(ctx context.Context) (map[string]*MethodDescriptor, error)
}

// PluginLoader loads a single installed extension by name. A nil Plugin
// with nil error means the extension is not installed.
type PluginLoader interface {
	Load(ctx context.Context, name string) (Plugin, error)
}

// PluginLister enumerates installed extensions advertising remote support.
type PluginLister interface {
	List(ctx context.Context) ([]string, error)
}

// CoreProvider supplies the fixed set of built-in methods, keyed by
// qualified name.
type CoreProvider interface {
	Methods() map[string]*MethodDescriptor
}

// CustomCallRegistry is the mutable registration target handed to the
// custom-call hook.
type CustomCallRegistry interface {
	Register(call, plugin, method string)
}

// CustomCallHook is the one-shot extension point through which external
// code registers additional call aliases.
type CustomCallHook func(ctx context.Context, reg CustomCallRegistry) error

// Args wraps the positional arguments handed to a handler. The typed
// accessors report an out-of-range index as ErrMissingArgument so the
// invoker can translate it into the wrong-parameter-count fault.
type Args []any

// At returns the argument at index i.
func (a Args) At(i int) (any, error) {
	if i < 0 || i >= len(a) {
		return nil, fmt.Errorf("argument %d: %w", i, ErrMissingArgument)
	}
	return a[i], nil
}

// String returns the argument at index i as a string.
func (a Args) String(i int) (string, error) {
	v, err := a.At(i)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %d: expected string, got %T", i, v)
	}
	return s, nil
}

// Int returns the argument at index i as an int. JSON decoding produces
// float64 for numbers, so both forms are accepted.
func (a Args) Int(i int) (int, error) {
	v, err := a.At(i)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("argument %d: expected number, got %T", i, v)
	}
}

// Bool returns the argument at index i as a bool.
func (a Args) Bool(i int) (bool, error) {
	v, err := a.At(i)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("argument %d: expected bool, got %T", i, v)
	}
	return b, nil
}
