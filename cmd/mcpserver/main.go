// Command mcpserver is the composition root: it loads configuration, wires
// a transport, a plugin host loaded with the sample plugins, a middleware
// pipeline, and an optional session orchestrator into a kernel.Server, then
// runs until SIGINT or SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/rueidis"

	"github.com/guahanweb/mcp-server-platform/config"
	"github.com/guahanweb/mcp-server-platform/examples/plugins/filesystem"
	"github.com/guahanweb/mcp-server-platform/examples/plugins/greeting"
	"github.com/guahanweb/mcp-server-platform/examples/plugins/weather"
	"github.com/guahanweb/mcp-server-platform/kernel"
	"github.com/guahanweb/mcp-server-platform/middleware"
	"github.com/guahanweb/mcp-server-platform/orchestrator"
	"github.com/guahanweb/mcp-server-platform/plugin"
	"github.com/guahanweb/mcp-server-platform/transport"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (default: search mcpserver.{yaml,json,toml})")
	fsRoot := flag.String("fs-root", ".", "root directory for the sample filesystem plugin")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mcpserver: load config:", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	tr, err := buildTransport(cfg, logger)
	if err != nil {
		logger.Error("failed to build transport", slog.String("err", err.Error()))
		os.Exit(1)
	}

	host := plugin.NewHost(plugin.WithHostLogger(logger))
	if err := registerSamplePlugins(host, *fsRoot); err != nil {
		logger.Error("failed to register sample plugins", slog.String("err", err.Error()))
		os.Exit(1)
	}

	opts := []kernel.Option{
		kernel.WithLogger(logger),
		kernel.WithMiddleware(buildMiddleware(cfg, logger)...),
	}

	if cfg.Orchestrator.Enabled {
		orch, err := buildOrchestrator(cfg, logger)
		if err != nil {
			logger.Error("failed to build orchestrator", slog.String("err", err.Error()))
			os.Exit(1)
		}
		opts = append(opts, kernel.WithOrchestrator(orch))
	}

	server := kernel.New(kernel.Config{
		Name:     cfg.Name,
		Version:  cfg.Version,
		LogLevel: cfg.LogLevel,
	}, host, tr, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", slog.String("signal", sig.String()))
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.Error("failed to start kernel", slog.String("err", err.Error()))
		os.Exit(1)
	}

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop kernel cleanly", slog.String("err", err.Error()))
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildTransport(cfg *config.Config, logger *slog.Logger) (transport.Transport, error) {
	switch cfg.Transport.Type {
	case "", "stdio":
		return transport.NewStdIO(os.Stdin, os.Stdout, transport.WithStdIOLogger(logger)), nil
	case "http":
		var cors *transport.HTTPCORSOptions
		if len(cfg.CORS.AllowedOrigins) > 0 {
			cors = &transport.HTTPCORSOptions{
				AllowedOrigins:   cfg.CORS.AllowedOrigins,
				AllowedMethods:   cfg.CORS.AllowedMethods,
				AllowedHeaders:   cfg.CORS.AllowedHeaders,
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           cfg.CORS.MaxAge,
			}
		}
		return transport.NewHTTP(transport.HTTPOptions{
			Port:        cfg.Transport.Port,
			Host:        cfg.Transport.Host,
			CORS:        cors,
			MaxBodySize: cfg.Transport.MaxBodySize,
			TrustProxy:  cfg.Transport.TrustProxy,
		}, transport.WithHTTPLogger(logger)), nil
	case "websocket":
		return transport.NewWebSocket(transport.WebSocketOptions{
			Port:              cfg.Transport.Port,
			Host:              cfg.Transport.Host,
			Path:              cfg.Transport.Path,
			HeartbeatInterval: cfg.Transport.HeartbeatInterval,
			MaxConnections:    cfg.Transport.MaxConnections,
		}, transport.WithWebSocketLogger(logger)), nil
	case "sse":
		return transport.NewSSE(transport.SSEOptions{
			Port: cfg.Transport.Port,
			Host: cfg.Transport.Host,
		}, transport.WithSSELogger(logger)), nil
	default:
		return nil, fmt.Errorf("unknown transport type %q", cfg.Transport.Type)
	}
}

func registerSamplePlugins(host *plugin.Host, fsRoot string) error {
	ctx := context.Background()
	if err := host.Register(ctx, greeting.New(), nil); err != nil {
		return fmt.Errorf("register greeting: %w", err)
	}
	if err := host.Register(ctx, weather.New(), nil); err != nil {
		return fmt.Errorf("register weather: %w", err)
	}
	if err := host.Register(ctx, filesystem.New(fsRoot), nil); err != nil {
		return fmt.Errorf("register filesystem: %w", err)
	}
	return nil
}

func buildMiddleware(cfg *config.Config, logger *slog.Logger) []middleware.Middleware {
	var mws []middleware.Middleware
	if cfg.Middleware.Logging {
		mws = append(mws, middleware.NewLogging(logger))
	}
	if cfg.Middleware.Validation {
		mws = append(mws, middleware.NewValidation())
	}
	if cfg.Middleware.RateLimit.Enabled {
		mws = append(mws, middleware.NewRateLimit(cfg.Middleware.RateLimit.MaxCalls, cfg.Middleware.RateLimit.Window, nil))
	}
	return mws
}

func buildOrchestrator(cfg *config.Config, logger *slog.Logger) (*orchestrator.Orchestrator, error) {
	store, err := buildSessionStore(cfg.Orchestrator.Store)
	if err != nil {
		return nil, err
	}
	registry := orchestrator.NewWorkflowRegistry()
	return orchestrator.New(store, registry, orchestrator.WithLogger(logger)), nil
}

func buildSessionStore(cfg config.SessionStoreConfig) (orchestrator.SessionStore, error) {
	switch cfg.Type {
	case "", "memory":
		return orchestrator.NewInMemoryStore(), nil
	case "redis":
		client, err := rueidis.NewClient(rueidis.ClientOption{InitAddress: []string{cfg.RedisAddress}})
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		backend := orchestrator.NewRedisKVBackend(client)
		return orchestrator.NewRemoteStore(backend,
			orchestrator.WithRemoteStorePrefix(cfg.KeyPrefix),
			orchestrator.WithRemoteStoreTTL(cfg.TTL),
		), nil
	default:
		return nil, fmt.Errorf("unknown session store type %q", cfg.Type)
	}
}
