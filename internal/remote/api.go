// Package remote implements the method resolution and dispatch engine of
// the remote API gateway. It aggregates core, plugin and custom-call
// methods into one namespace, gates invocation behind access control,
// validates argument arity and translates collaborator faults into a
// stable error taxonomy. The wire protocol, the plugin loading mechanism
// and the authentication system are external collaborators.
package remote

import (
	"context"
	"errors"
	"runtime"
	"strings"
)

// Api is the dispatch facade. One instance serves a single request
// context; its registry caches are populated at most once per instance.
type Api struct {
	registry *Registry
	access   *AccessChecker
	scope    invocationScope

	dateTransform TransformFunc
	fileTransform TransformFunc
}

// New creates a dispatch facade over the given registry and access
// checker. Both transformers default to identity.
func New(registry *Registry, access *AccessChecker) *Api {
	return &Api{registry: registry, access: access}
}

// Registry exposes the method registry, primarily for listings.
func (a *Api) Registry() *Registry { return a.registry }

// Methods returns the union of core and plugin methods.
func (a *Api) Methods(ctx context.Context) (map[string]*MethodDescriptor, error) {
	return a.registry.Methods(ctx)
}

// Call dispatches one incoming request. The method name is classified by
// its leading segment: plugin-qualified names go to the plugin invoker,
// names present in the core registry go to the core invoker, and
// everything else falls through to custom-call resolution. This ordering
// is load-bearing: a plugin-qualified name never resolves via the
// custom-call alias table, and core names take precedence over
// same-named custom calls.
func (a *Api) Call(ctx context.Context, method string, args []any) (any, error) {
	if args == nil {
		args = []any{}
	}
	parts := strings.SplitN(method, ".", 3)
	if parts[0] == pluginPrefix {
		pluginName := ""
		if len(parts) > 1 {
			pluginName = parts[1]
		}
		return a.invokePlugin(ctx, pluginName, method, args)
	}
	if _, ok := a.registry.CoreMethods()[method]; ok {
		return a.invokeCore(ctx, method, args)
	}
	return a.invokeCustomCall(ctx, method, args)
}

// invokeCore resolves and invokes a built-in method.
func (a *Api) invokeCore(ctx context.Context, method string, args []any) (any, error) {
	d, ok := a.registry.CoreMethods()[method]
	if !ok {
		return nil, methodNotFound()
	}
	return a.invoke(ctx, d, args)
}

// invokePlugin loads the named extension, resolves the descriptor from
// the plugin-methods mapping and invokes it.
func (a *Api) invokePlugin(ctx context.Context, pluginName, method string, args []any) (any, error) {
	if pluginName == "" {
		return nil, methodNotFound()
	}
	plugin, err := a.registry.LoadPlugin(ctx, pluginName)
	if err != nil {
		return nil, err
	}
	if plugin == nil {
		return nil, methodNotFound()
	}
	methods, err := a.registry.PluginMethods(ctx)
	if err != nil {
		return nil, err
	}
	d, ok := methods[method]
	if !ok {
		return nil, methodNotFound()
	}
	return a.invoke(ctx, d, args)
}

// invokeCustomCall resolves an alias registered outside the regular
// namespace convention and delegates to the plugin invoker.
func (a *Api) invokeCustomCall(ctx context.Context, call string, args []any) (any, error) {
	calls, err := a.registry.CustomCalls(ctx)
	if err != nil {
		return nil, err
	}
	cc, ok := calls[call]
	if !ok {
		return nil, methodNotFound()
	}
	qualified := pluginPrefix + "." + cc.Plugin + "." + cc.Method
	return a.invokePlugin(ctx, cc.Plugin, qualified, args)
}

// invoke runs the access check, bounds the caller-supplied argument
// count by the declared arity, and executes the handler inside the
// invocation-scoped fault interceptor. Argument shortfalls surfacing
// during execution are re-signaled uniformly as the
// wrong-parameter-count fault.
func (a *Api) invoke(ctx context.Context, d *MethodDescriptor, args []any) (result any, err error) {
	if err := a.access.CheckAccess(d); err != nil {
		return nil, err
	}
	if len(args) > len(d.Args) {
		return nil, wrongParameterCount()
	}
	if d.Handler == nil {
		return nil, methodNotFound()
	}

	release, err := a.scope.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	defer func() {
		if r := recover(); r != nil {
			if isArgumentFault(r) {
				result, err = nil, wrongParameterCount()
				return
			}
			panic(r)
		}
	}()

	res, err := d.Handler(ctx, Args(args))
	if err != nil {
		return nil, translateHandlerError(err)
	}
	return res, nil
}

// translateHandlerError maps handler failures into the dispatcher's
// taxonomy. Typed faults pass through; argument shortfalls become the
// wrong-parameter-count fault; anything else is wrapped so no raw
// collaborator fault escapes.
func translateHandlerError(err error) error {
	if errors.Is(err, ErrMissingArgument) {
		return wrongParameterCount()
	}
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		return remoteErr
	}
	var accessErr *AccessDeniedError
	if errors.As(err, &accessErr) {
		return accessErr
	}
	return WrapRemoteError(CodeInternalError, err.Error(), err)
}

// isArgumentFault reports whether a recovered panic is a positional
// argument shortfall: a handler indexing its args slice past the
// supplied count.
func isArgumentFault(r any) bool {
	runtimeErr, ok := r.(runtime.Error)
	return ok && strings.Contains(runtimeErr.Error(), "index out of range")
}

// invocationScope guards the per-invocation fault interception. The
// scope must be released on every exit path and never acquired twice on
// the same instance.
type invocationScope struct {
	active bool
}

func (s *invocationScope) acquire() (func(), error) {
	if s.active {
		return nil, NewRemoteError(CodeInternalError, "invocation fault scope already held")
	}
	s.active = true
	return func() { s.active = false }, nil
}
