// Command remote-api-local runs the dispatch core behind a plain HTTP
// endpoint for local development. Plugins are in-process and the caller
// identity comes from request headers instead of an authorizer.
package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/inkwell-cms/remote-gateway/internal/config"
	"github.com/inkwell-cms/remote-gateway/internal/corehandlers"
	"github.com/inkwell-cms/remote-gateway/internal/jsonrpc"
	"github.com/inkwell-cms/remote-gateway/internal/logging"
	"github.com/inkwell-cms/remote-gateway/internal/remote"
)

var logger = logging.New()

type localConfig struct {
	ListenAddr string `envconfig:"LISTEN_ADDR" default:"127.0.0.1:8090"`
}

type server struct {
	cfg     *config.Config
	plugins remote.StaticLoader
	hook    remote.CustomCallHook
}

func (s *server) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "JSON-RPC requires POST", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	caller := remote.Identity{User: r.Header.Get("X-Remote-User")}
	if groups := r.Header.Get("X-Remote-Groups"); groups != "" {
		for group := range strings.SplitSeq(groups, ",") {
			if group = strings.TrimSpace(group); group != "" {
				caller.Groups = append(caller.Groups, group)
			}
		}
	}

	api := s.newDispatcher(caller)
	response := jsonrpc.Process(r.Context(), body, api)
	if response == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(response); err != nil {
		logger.Warn("Failed to write response", slog.String("error", err.Error()))
	}
}

func (s *server) newDispatcher(caller remote.Identity) *remote.Api {
	var registry *remote.Registry
	registry = remote.NewRegistry(func() remote.CoreProvider {
		return corehandlers.NewProvider(s.cfg.Version, registry, caller)
	}, s.plugins, s.plugins, s.hook)

	access := remote.NewAccessChecker(s.cfg.Settings(), caller, nil)
	return remote.New(registry, access)
}

// demoPlugin is the in-process example plugin served locally.
func demoPlugin() remote.Plugin {
	return remote.PluginFunc(func(ctx context.Context) (map[string]*remote.MethodDescriptor, error) {
		return map[string]*remote.MethodDescriptor{
			"getTime": {
				Return: "string",
				Handler: func(ctx context.Context, args remote.Args) (any, error) {
					return time.Now().UTC().Format(time.RFC3339), nil
				},
			},
			"echo": {
				Args:   []string{"string"},
				Return: "string",
				Handler: func(ctx context.Context, args remote.Args) (any, error) {
					message, err := args.String(0)
					if err != nil {
						return nil, err
					}
					return message, nil
				},
			},
		}, nil
	})
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("Failed to load .env file", slog.String("error", err.Error()))
	}

	var local localConfig
	if err := envconfig.Process("", &local); err != nil {
		logger.Error("FATAL: Failed to load local configuration",
			slog.String("error", err.Error()),
		)
		panic(err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("FATAL: Failed to load configuration",
			slog.String("error", err.Error()),
		)
		panic(err)
	}

	srv := &server{
		cfg:     cfg,
		plugins: remote.StaticLoader{"clock": demoPlugin()},
		hook: func(ctx context.Context, reg remote.CustomCallRegistry) error {
			reg.Register("time", "clock", "getTime")
			return nil
		},
	}

	http.HandleFunc("/jsonrpc", srv.handle)

	logger.Info("Remote gateway listening",
		slog.String("addr", local.ListenAddr),
	)
	if err := http.ListenAndServe(local.ListenAddr, nil); err != nil {
		logger.Error("FATAL: Server stopped",
			slog.String("error", err.Error()),
		)
		panic(err)
	}
}
