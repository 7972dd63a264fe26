package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/video-streaming/internal/logging"
	"github.com/tendant/video-streaming/pkg/videostream"
	"github.com/tendant/video-streaming/pkg/videostream/api"
	"github.com/tendant/video-streaming/pkg/videostream/config"
	"github.com/tendant/video-streaming/pkg/videostream/metrics"
)

const shutdownTimeout = 10 * time.Second

func main() {
	flag.Usage = config.Usage(flag.CommandLine.Output())
	flag.Parse()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}

	if _, err := logging.Setup(os.Stderr, cfg.LogFormat, cfg.LogLevel); err != nil {
		slog.Error("Failed to configure logging", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Server exited with error", "err", err)
		os.Exit(1)
	}
}

// gateway holds everything that has to be released on shutdown
type gateway struct {
	handler    http.Handler
	dispatcher *videostream.AsyncDispatcher
	notifier   videostream.Notifier
	closeDB    func(context.Context) error
}

func newGateway(ctx context.Context, cfg *config.ServerConfig) (*gateway, error) {
	resolver, closeDB, err := cfg.BuildResolver(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to metadata store: %w", err)
	}

	relay, store, err := cfg.BuildRelay(ctx)
	if err != nil {
		closeDB(ctx)
		return nil, fmt.Errorf("failed to initialize relay: %w", err)
	}

	notifier, err := cfg.BuildNotifier(ctx)
	if err != nil {
		closeDB(ctx)
		return nil, fmt.Errorf("failed to connect to message broker: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	dispatcher := videostream.NewAsyncDispatcher(notifier,
		videostream.WithPublishTimeout(cfg.Messaging.PublishTimeout),
		videostream.WithPublishObserver(m.ObservePublish),
	)

	video := api.NewVideoHandler(cfg.BuildValidator(), resolver, relay, dispatcher,
		api.WithLookupTimeout(cfg.Metadata.LookupTimeout),
		api.WithMetrics(m),
	)

	var deps []api.Dependency
	if hc, ok := resolver.(videostream.HealthChecker); ok {
		deps = append(deps, api.Dependency{Name: "metadata", Checker: hc, Critical: true})
	}
	if hc, ok := store.(videostream.HealthChecker); ok {
		deps = append(deps, api.Dependency{Name: "storage", Checker: hc, Critical: true})
	}
	if hc, ok := notifier.(videostream.HealthChecker); ok {
		deps = append(deps, api.Dependency{Name: "messaging", Checker: hc})
	}

	requestLogger := httplog.NewLogger("video-streaming", httplog.Options{
		JSON:     cfg.LogFormat == "json",
		LogLevel: slog.LevelInfo,
		Concise:  true,
	})

	handler := api.NewRouter(video, api.NewHealthHandler(deps...),
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		httplog.RequestLogger(requestLogger, []string{"/healthz", "/readyz", "/metrics"}),
	)

	return &gateway{
		handler:    handler,
		dispatcher: dispatcher,
		notifier:   notifier,
		closeDB:    closeDB,
	}, nil
}

// shutdown waits for in-flight events before closing connections
func (g *gateway) shutdown(ctx context.Context) error {
	var errs []error
	if err := g.dispatcher.Wait(ctx); err != nil {
		errs = append(errs, fmt.Errorf("pending events: %w", err))
	}
	if err := g.notifier.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close notifier: %w", err))
	}
	if err := g.closeDB(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close metadata store: %w", err))
	}
	return errors.Join(errs...)
}

func run(ctx context.Context, cfg *config.ServerConfig) error {
	gw, err := newGateway(ctx, cfg)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           gw.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Video streaming gateway starting",
			"port", cfg.Port,
			"env", cfg.Environment,
			"mode", cfg.StreamMode,
			"metadata", cfg.Metadata.Driver,
			"messaging", cfg.Messaging.Driver,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(err, gw.shutdown(shutdownCtx))
	case <-ctx.Done():
	}

	slog.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server forced to shutdown: %w", err))
	}
	if err := gw.shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}

	slog.Info("Server exiting")
	return errors.Join(errs...)
}
