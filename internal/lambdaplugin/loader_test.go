package lambdaplugin

import (
	"context"
	"errors"
	"testing"

	"github.com/inkwell-cms/remote-gateway/internal/remote"
	"github.com/inkwell-cms/remote-gateway/internal/store"
)

// mockStore implements PluginStore for testing
type mockStore struct {
	plugins       []store.PluginRecord
	customCalls   []store.CustomCallRecord
	pluginsErr    error
	customErr     error
	pluginQueries int
}

func (m *mockStore) ListPlugins(ctx context.Context) ([]store.PluginRecord, error) {
	m.pluginQueries++
	if m.pluginsErr != nil {
		return nil, m.pluginsErr
	}
	return m.plugins, nil
}

func (m *mockStore) ListCustomCalls(ctx context.Context) ([]store.CustomCallRecord, error) {
	if m.customErr != nil {
		return nil, m.customErr
	}
	return m.customCalls, nil
}

func TestLoader_Load_ReturnsRegisteredPlugin(t *testing.T) {
	loader := NewLoader(&mockStore{plugins: []store.PluginRecord{clockRecord()}}, &mockLambdaClient{})

	plugin, err := loader.Load(context.Background(), "clock")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if plugin == nil {
		t.Fatal("Expected registered plugin to load")
	}
}

func TestLoader_Load_NilForUnregistered(t *testing.T) {
	loader := NewLoader(&mockStore{}, &mockLambdaClient{})

	plugin, err := loader.Load(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if plugin != nil {
		t.Error("Expected nil plugin for unregistered name")
	}
}

func TestLoader_LoadsRegistrationsOnce(t *testing.T) {
	mock := &mockStore{plugins: []store.PluginRecord{clockRecord()}}
	loader := NewLoader(mock, &mockLambdaClient{})

	if _, err := loader.Load(context.Background(), "clock"); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if _, err := loader.List(context.Background()); err != nil {
		t.Fatalf("List returned error: %v", err)
	}

	if mock.pluginQueries != 1 {
		t.Errorf("Expected registrations loaded once, got %d queries", mock.pluginQueries)
	}
}

func TestLoader_List_SortedNames(t *testing.T) {
	mock := &mockStore{plugins: []store.PluginRecord{
		{PluginName: "zebra"},
		{PluginName: "clock"},
	}}
	loader := NewLoader(mock, &mockLambdaClient{})

	names, err := loader.List(context.Background())
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(names) != 2 || names[0] != "clock" || names[1] != "zebra" {
		t.Errorf("Expected sorted names, got %v", names)
	}
}

func TestLoader_Load_StoreFailurePropagates(t *testing.T) {
	loader := NewLoader(&mockStore{pluginsErr: errors.New("throttled")}, &mockLambdaClient{})

	if _, err := loader.Load(context.Background(), "clock"); err == nil {
		t.Error("Expected error when the store is unavailable")
	}
}

func TestLoader_CustomCalls_PopulatesRegistry(t *testing.T) {
	mock := &mockStore{customCalls: []store.CustomCallRecord{
		{CallName: "shortcut", PluginName: "clock", MethodName: "getTime"},
	}}
	loader := NewLoader(mock, &mockLambdaClient{})

	registry := remote.NewRegistry(nil, nil, nil, loader.CustomCalls())
	calls, err := registry.CustomCalls(context.Background())
	if err != nil {
		t.Fatalf("CustomCalls returned error: %v", err)
	}
	if cc, ok := calls["shortcut"]; !ok || cc.Plugin != "clock" || cc.Method != "getTime" {
		t.Errorf("Expected shortcut -> (clock, getTime), got %+v", calls["shortcut"])
	}
}

func TestLoader_CustomCalls_StoreFailurePropagates(t *testing.T) {
	loader := NewLoader(&mockStore{customErr: errors.New("throttled")}, &mockLambdaClient{})

	registry := remote.NewRegistry(nil, nil, nil, loader.CustomCalls())
	if _, err := registry.CustomCalls(context.Background()); err == nil {
		t.Error("Expected error when custom call records cannot be read")
	}
}
