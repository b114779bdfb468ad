package remote

import (
	"context"
	"errors"
	"testing"
	"time"
)

// openSettings grants access to any caller.
var openSettings = Settings{RemoteEnabled: true, RemoteUser: "", UseACL: true}

// gatedSettings requires membership in @editors.
var gatedSettings = Settings{RemoteEnabled: true, RemoteUser: "@editors", UseACL: true}

func newTestAPI(t *testing.T, settings Settings, identity Identity, loader StaticLoader, hook CustomCallHook) *Api {
	t.Helper()
	core := func() CoreProvider {
		return mapProvider{
			"inkwell.getVersion": {Return: "string", Handler: okHandler("inkwell 1.4.2")},
			"inkwell.whoAmI":     {Return: "string", Public: true, Handler: okHandler("anonymous")},
			"inkwell.echo": {Args: []string{"string"}, Return: "string",
				Handler: func(ctx context.Context, args Args) (any, error) {
					s, err := args.String(0)
					if err != nil {
						return nil, err
					}
					return s, nil
				}},
			"status": {Return: "string", Handler: okHandler("core status")},
		}
	}
	registry := NewRegistry(core, loader, loader, hook)
	return New(registry, NewAccessChecker(settings, identity, nil))
}

func TestApi_Call_UnknownMethodFails(t *testing.T) {
	api := newTestAPI(t, openSettings, Identity{}, StaticLoader{}, nil)

	_, err := api.Call(context.Background(), "no.such.method", nil)
	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("Expected RemoteError, got %v", err)
	}
	if remoteErr.Code != CodeInternalError {
		t.Errorf("Expected code %d, got %d", CodeInternalError, remoteErr.Code)
	}
	if remoteErr.Message != "Method does not exist" {
		t.Errorf("Expected method-not-found message, got %q", remoteErr.Message)
	}
}

func TestApi_Call_CoreMethod(t *testing.T) {
	api := newTestAPI(t, openSettings, Identity{}, StaticLoader{}, nil)

	result, err := api.Call(context.Background(), "inkwell.getVersion", nil)
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if result != "inkwell 1.4.2" {
		t.Errorf("Expected version string, got %v", result)
	}
}

func TestApi_Call_NilArgsNormalized(t *testing.T) {
	api := newTestAPI(t, openSettings, Identity{}, StaticLoader{}, nil)

	if _, err := api.Call(context.Background(), "inkwell.whoAmI", nil); err != nil {
		t.Errorf("Expected nil args to be treated as empty, got %v", err)
	}
}

func TestApi_Call_NonPublicRequiresAccess(t *testing.T) {
	api := newTestAPI(t, gatedSettings, Identity{User: "eve", Groups: []string{"guests"}}, StaticLoader{}, nil)

	_, err := api.Call(context.Background(), "inkwell.getVersion", nil)
	var accessErr *AccessDeniedError
	if !errors.As(err, &accessErr) {
		t.Fatalf("Expected AccessDeniedError, got %v", err)
	}
	if accessErr.Code != CodeAccessDenied {
		t.Errorf("Expected code %d, got %d", CodeAccessDenied, accessErr.Code)
	}
}

func TestApi_Call_PublicMethodSkipsAccessCheck(t *testing.T) {
	// Policy sentinel denies every non-public call, but whoAmI is public.
	settings := Settings{RemoteEnabled: true, RemoteUser: RemoteUserNotSet, UseACL: true}
	api := newTestAPI(t, settings, Identity{}, StaticLoader{}, nil)

	result, err := api.Call(context.Background(), "inkwell.whoAmI", nil)
	if err != nil {
		t.Fatalf("Expected public method to be callable, got %v", err)
	}
	if result != "anonymous" {
		t.Errorf("Expected whoAmI result, got %v", result)
	}
}

func TestApi_Call_TooManyArgsFailsBeforeInvocation(t *testing.T) {
	invoked := false
	loader := StaticLoader{"clock": PluginFunc(func(ctx context.Context) (map[string]*MethodDescriptor, error) {
		return map[string]*MethodDescriptor{
			"getTime": {Args: []string{"string"}, Handler: func(ctx context.Context, args Args) (any, error) {
				invoked = true
				return "12:00", nil
			}},
		}, nil
	})}
	api := newTestAPI(t, openSettings, Identity{}, loader, nil)

	_, err := api.Call(context.Background(), "plugin.clock.getTime", []any{"UTC", "extra"})
	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("Expected RemoteError, got %v", err)
	}
	if remoteErr.Message != "Method does not exist - wrong parameter count." {
		t.Errorf("Expected wrong-parameter-count message, got %q", remoteErr.Message)
	}
	if invoked {
		t.Error("Expected handler not to run when the arity bound is exceeded")
	}
}

func TestApi_Call_MissingArgumentDuringExecutionTranslated(t *testing.T) {
	api := newTestAPI(t, openSettings, Identity{}, StaticLoader{}, nil)

	// inkwell.echo declares one parameter; calling with none passes the
	// upfront bound but the handler's accessor reports the shortfall.
	_, err := api.Call(context.Background(), "inkwell.echo", []any{})
	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("Expected RemoteError, got %v", err)
	}
	if remoteErr.Code != CodeInternalError {
		t.Errorf("Expected code %d, got %d", CodeInternalError, remoteErr.Code)
	}
	if remoteErr.Message != "Method does not exist - wrong parameter count." {
		t.Errorf("Expected wrong-parameter-count message, got %q", remoteErr.Message)
	}
}

func TestApi_Call_ArgumentIndexPanicTranslated(t *testing.T) {
	loader := StaticLoader{"greet": PluginFunc(func(ctx context.Context) (map[string]*MethodDescriptor, error) {
		return map[string]*MethodDescriptor{
			"hello": {Args: []string{"string", "string"}, Handler: func(ctx context.Context, args Args) (any, error) {
				// Indexes past the supplied count without the accessors.
				return args[0].(string) + " " + args[1].(string), nil
			}},
		}, nil
	})}
	api := newTestAPI(t, openSettings, Identity{}, loader, nil)

	_, err := api.Call(context.Background(), "plugin.greet.hello", []any{"hi"})
	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("Expected RemoteError, got %v", err)
	}
	if remoteErr.Message != "Method does not exist - wrong parameter count." {
		t.Errorf("Expected wrong-parameter-count message, got %q", remoteErr.Message)
	}

	// The fault scope must be released on the panic path: the same
	// instance dispatches again.
	if _, err := api.Call(context.Background(), "plugin.greet.hello", []any{"hi", "there"}); err != nil {
		t.Errorf("Expected scope released after fault, got %v", err)
	}
}

func TestApi_Call_PluginNotInstalledFails(t *testing.T) {
	api := newTestAPI(t, openSettings, Identity{}, StaticLoader{}, nil)

	_, err := api.Call(context.Background(), "plugin.clock.getTime", nil)
	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("Expected RemoteError, got %v", err)
	}
	if remoteErr.Code != CodeInternalError {
		t.Errorf("Expected code %d, got %d", CodeInternalError, remoteErr.Code)
	}
}

func TestApi_Call_PluginPrefixNeverResolvesCustomCall(t *testing.T) {
	aliasTargetInvoked := false
	loader := StaticLoader{"real": PluginFunc(func(ctx context.Context) (map[string]*MethodDescriptor, error) {
		return map[string]*MethodDescriptor{
			"ok": {Handler: func(ctx context.Context, args Args) (any, error) {
				aliasTargetInvoked = true
				return "ok", nil
			}},
		}, nil
	})}
	hook := func(ctx context.Context, reg CustomCallRegistry) error {
		// Alias literally named like a plugin-qualified method.
		reg.Register("plugin.ghost.m", "real", "ok")
		return nil
	}
	api := newTestAPI(t, openSettings, Identity{}, loader, hook)

	_, err := api.Call(context.Background(), "plugin.ghost.m", nil)
	if err == nil {
		t.Fatal("Expected plugin-qualified name to miss, not resolve via alias")
	}
	if aliasTargetInvoked {
		t.Error("Expected alias target to stay uninvoked for plugin-qualified names")
	}
}

func TestApi_Call_CoreTakesPrecedenceOverCustomCall(t *testing.T) {
	loader := StaticLoader{"shadow": PluginFunc(func(ctx context.Context) (map[string]*MethodDescriptor, error) {
		return map[string]*MethodDescriptor{
			"status": {Handler: okHandler("plugin status")},
		}, nil
	})}
	hook := func(ctx context.Context, reg CustomCallRegistry) error {
		reg.Register("status", "shadow", "status")
		return nil
	}
	api := newTestAPI(t, openSettings, Identity{}, loader, hook)

	result, err := api.Call(context.Background(), "status", nil)
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if result != "core status" {
		t.Errorf("Expected the core method to win, got %v", result)
	}
}

func TestApi_Call_CustomCallBehavesLikeDirectPluginCall(t *testing.T) {
	loader := StaticLoader{"clock": clockPlugin()}
	hook := func(ctx context.Context, reg CustomCallRegistry) error {
		reg.Register("shortcut", "clock", "getTime")
		return nil
	}
	api := newTestAPI(t, openSettings, Identity{}, loader, hook)

	direct, err := api.Call(context.Background(), "plugin.clock.getTime", nil)
	if err != nil {
		t.Fatalf("Direct call returned error: %v", err)
	}
	aliased, err := api.Call(context.Background(), "shortcut", nil)
	if err != nil {
		t.Fatalf("Aliased call returned error: %v", err)
	}
	if direct != aliased {
		t.Errorf("Expected identical behavior, got %v vs %v", direct, aliased)
	}
}

func TestApi_Call_UnknownCustomCallFails(t *testing.T) {
	hook := func(ctx context.Context, reg CustomCallRegistry) error { return nil }
	api := newTestAPI(t, openSettings, Identity{}, StaticLoader{}, hook)

	_, err := api.Call(context.Background(), "shortcut", nil)
	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("Expected RemoteError, got %v", err)
	}
}

func TestApi_Call_TypedHandlerFaultsPassThrough(t *testing.T) {
	loader := StaticLoader{"vault": PluginFunc(func(ctx context.Context) (map[string]*MethodDescriptor, error) {
		return map[string]*MethodDescriptor{
			"open": {Handler: func(ctx context.Context, args Args) (any, error) {
				return nil, NewRemoteError(CodeInternalError, "vault is sealed")
			}},
			"peek": {Public: true, Handler: func(ctx context.Context, args Args) (any, error) {
				return nil, NewAccessDeniedError("vault contents restricted")
			}},
		}, nil
	})}
	api := newTestAPI(t, openSettings, Identity{}, loader, nil)

	_, err := api.Call(context.Background(), "plugin.vault.open", nil)
	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) || remoteErr.Message != "vault is sealed" {
		t.Errorf("Expected handler RemoteError to pass through, got %v", err)
	}

	_, err = api.Call(context.Background(), "plugin.vault.peek", nil)
	var accessErr *AccessDeniedError
	if !errors.As(err, &accessErr) {
		t.Errorf("Expected handler AccessDeniedError to pass through, got %v", err)
	}
}

func TestApi_Call_UntypedHandlerFaultWrapped(t *testing.T) {
	cause := errors.New("backend unreachable")
	loader := StaticLoader{"flaky": PluginFunc(func(ctx context.Context) (map[string]*MethodDescriptor, error) {
		return map[string]*MethodDescriptor{
			"do": {Handler: func(ctx context.Context, args Args) (any, error) {
				return nil, cause
			}},
		}, nil
	})}
	api := newTestAPI(t, openSettings, Identity{}, loader, nil)

	_, err := api.Call(context.Background(), "plugin.flaky.do", nil)
	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("Expected RemoteError, got %T", err)
	}
	if remoteErr.Code != CodeInternalError {
		t.Errorf("Expected code %d, got %d", CodeInternalError, remoteErr.Code)
	}
	if !errors.Is(err, cause) {
		t.Error("Expected the collaborator fault to be preserved as cause")
	}
}

func TestApi_Transformations_DefaultIdentity(t *testing.T) {
	api := newTestAPI(t, openSettings, Identity{}, StaticLoader{}, nil)

	when := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	if got := api.ToDate(when); got != when {
		t.Errorf("Expected identity date transformation, got %v", got)
	}
	if got := api.ToFile("blob-key"); got != "blob-key" {
		t.Errorf("Expected identity file transformation, got %v", got)
	}
}

func TestApi_Transformations_Settable(t *testing.T) {
	api := newTestAPI(t, openSettings, Identity{}, StaticLoader{}, nil)

	api.SetDateTransformation(func(v any) any {
		if ts, ok := v.(time.Time); ok {
			return ts.UTC().Format(time.RFC3339)
		}
		return v
	})
	api.SetFileTransformation(func(v any) any { return "https://files.example.test/" + v.(string) })

	when := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	if got := api.ToDate(when); got != "2026-08-28T10:00:00Z" {
		t.Errorf("Expected formatted date, got %v", got)
	}
	if got := api.ToFile("blob-key"); got != "https://files.example.test/blob-key" {
		t.Errorf("Expected signed file URL, got %v", got)
	}

	// A nil transform restores identity.
	api.SetDateTransformation(nil)
	if got := api.ToDate(when); got != when {
		t.Errorf("Expected identity restored, got %v", got)
	}
}
