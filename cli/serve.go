package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/marquee-labs/marquee/bus"
	"github.com/marquee-labs/marquee/catalog"
	"github.com/marquee-labs/marquee/config"
	"github.com/marquee-labs/marquee/identity"
	"github.com/marquee-labs/marquee/kvstore"
	marqueeotel "github.com/marquee-labs/marquee/otel"
	"github.com/marquee-labs/marquee/server"
	"github.com/marquee-labs/marquee/sse"
	"github.com/marquee-labs/marquee/ui"
)

// NewServeCmd creates the "serve" subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Marquee HTTP server",
		RunE:  runServe,
	}

	cmd.Flags().IntP("port", "p", 8560, "Listen port")
	cmd.Flags().String("host", "127.0.0.1", "Listen host")
	cmd.Flags().String("cors-origin", "*", "Allowed CORS origin")
	cmd.Flags().String("sqlite-path", "", "Path to SQLite database (empty: in-memory storage)")
	cmd.Flags().String("config", "", "Path to marquee.yaml config")
	cmd.Flags().String("api-key", "", "Catalog provider API key (or MARQUEE_API_KEY)")
	cmd.Flags().String("catalog-url", "", "Catalog provider base URL")
	cmd.Flags().String("refresh-cron", "", "Home cache refresh schedule (five-field cron, UTC)")
	cmd.Flags().String("otlp-endpoint", "", "OTLP HTTP trace endpoint (empty: export disabled)")
	cmd.Flags().Duration("read-timeout", 15*time.Second, "HTTP read timeout")
	cmd.Flags().Duration("write-timeout", 0, "HTTP write timeout (0: unbounded, required for event streams)")
	cmd.Flags().Int64("max-body", 1<<20, "Max request body size in bytes")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveServeConfig(cmd)
	if err != nil {
		return exitError(exitValidation, "%v", err)
	}
	if cfg.Catalog.APIKey == "" {
		return exitError(exitValidation, "catalog api key is required (--api-key, MARQUEE_API_KEY, or config file)")
	}

	logger := slog.Default()

	// --- Tracing ---
	if cfg.Tracing.OTLPEndpoint != "" {
		exporter, err := otlptracehttp.New(cmd.Context(),
			otlptracehttp.WithEndpoint(cfg.Tracing.OTLPEndpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return exitError(exitRuntime, "creating OTLP trace exporter: %v", err)
		}
		tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
		otelapi.SetTracerProvider(tracerProvider)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tracerProvider.Shutdown(shutdownCtx)
		}()
	}

	// --- Storage ---
	var kv kvstore.Store
	var eventStore bus.EventStore
	if cfg.Storage.SQLitePath != "" {
		sqliteKV, err := kvstore.NewSQLiteStore(kvstore.SQLiteStoreConfig{DSN: cfg.Storage.SQLitePath})
		if err != nil {
			return fmt.Errorf("opening sqlite kv store: %w", err)
		}
		defer func() { _ = sqliteKV.Close() }()
		kv = sqliteKV

		sqliteEvents, err := bus.NewSQLiteEventStore(bus.SQLiteStoreConfig{DSN: cfg.Storage.SQLitePath})
		if err != nil {
			return fmt.Errorf("opening sqlite event store: %w", err)
		}
		defer func() { _ = sqliteEvents.Close() }()
		eventStore = sqliteEvents
	} else {
		kv = kvstore.NewMemoryStore()
		eventStore = bus.NewMemStore(bus.MemStoreConfig{})
	}

	// --- Identity ---
	eventBus := bus.NewMemBus(bus.MemBusConfig{})
	defer func() { _ = eventBus.Close() }()
	recorder := bus.NewRecorder(eventStore, eventBus, logger)

	accountStore, err := identity.NewStore(identity.StoreConfig{KV: kv, Logger: logger})
	if err != nil {
		return fmt.Errorf("creating account store: %w", err)
	}
	session, err := identity.NewSession(identity.SessionConfig{
		Store:    accountStore,
		KV:       kv,
		Recorder: recorder,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	// --- Observability ---
	meter := otelapi.GetMeterProvider().Meter("marquee")
	tracer := otelapi.GetTracerProvider().Tracer("marquee")

	metricsHandler, err := marqueeotel.NewMetricsHandler(meter)
	if err != nil {
		return fmt.Errorf("initializing activity metrics: %w", err)
	}
	metricsPump, err := marqueeotel.NewMetricsPump(eventBus, metricsHandler, logger)
	if err != nil {
		return fmt.Errorf("creating metrics pump: %w", err)
	}
	if err := metricsPump.Start(cmd.Context()); err != nil {
		return fmt.Errorf("starting metrics pump: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsPump.Stop(stopCtx)
	}()

	catalogObserver, err := marqueeotel.NewCatalogObserver(meter, tracer)
	if err != nil {
		return fmt.Errorf("initializing catalog observability: %w", err)
	}

	// --- Catalog ---
	catalogClient, err := catalog.NewClient(catalog.Config{
		BaseURL:    cfg.Catalog.BaseURL,
		APIKey:     cfg.Catalog.APIKey,
		HTTPClient: &http.Client{Timeout: cfg.Catalog.Timeout},
		Observer:   catalogObserver,
		Logger:     logger,
	})
	if err != nil {
		return exitError(exitProvider, "creating catalog client: %v", err)
	}
	homeCache := catalog.NewHomeCache(catalogClient, logger)

	refresher, err := catalog.NewRefresher(catalog.RefresherConfig{
		Cache:    homeCache,
		CronExpr: cfg.Catalog.RefreshCron,
		Logger:   logger,
	})
	if err != nil {
		return exitError(exitValidation, "invalid refresh schedule: %v", err)
	}
	if err := refresher.Start(cmd.Context()); err != nil {
		return fmt.Errorf("starting home cache refresher: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = refresher.Stop(stopCtx)
	}()

	// --- HTTP server ---
	eventsHandler := sse.NewSSEHandler(eventStore, eventBus, func(*http.Request) (string, bool) {
		user, ok := session.Current()
		if !ok {
			return "", false
		}
		return user.ID, true
	})

	distFS, err := ui.DistFS()
	if err != nil {
		return fmt.Errorf("loading embedded ui: %w", err)
	}

	apiServer := server.NewServer(server.ServerConfig{
		Session:    session,
		Catalog:    catalogClient,
		HomeCache:  homeCache,
		EventStore: eventStore,
		Events:     eventsHandler,
		UI:         distFS,
		CORSOrigin: cfg.Server.CORSOrigin,
		MaxBody:    cfg.Server.MaxBodyBytes,
		Logger:     logger,
	})

	addr := cfg.Server.ListenAddr()
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      apiServer.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Signal handling
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(cmd.OutOrStdout(), "Marquee listening on %s\n", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(cmd.OutOrStdout(), "Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return exitError(exitRuntime, "shutdown error: %v", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return exitError(exitRuntime, "server error: %v", err)
		}
		return nil
	}
}

// resolveServeConfig loads the config file and applies flag overrides.
// Changed flags win over the file; the file wins over defaults.
func resolveServeConfig(cmd *cobra.Command) (config.Config, error) {
	explicitPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(explicitPath)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("cors-origin") {
		cfg.Server.CORSOrigin, _ = flags.GetString("cors-origin")
	}
	if flags.Changed("max-body") {
		cfg.Server.MaxBodyBytes, _ = flags.GetInt64("max-body")
	}
	if flags.Changed("read-timeout") {
		cfg.Server.ReadTimeout, _ = flags.GetDuration("read-timeout")
	}
	if flags.Changed("write-timeout") {
		cfg.Server.WriteTimeout, _ = flags.GetDuration("write-timeout")
	}
	if flags.Changed("sqlite-path") {
		cfg.Storage.SQLitePath, _ = flags.GetString("sqlite-path")
	}
	if flags.Changed("catalog-url") {
		cfg.Catalog.BaseURL, _ = flags.GetString("catalog-url")
	}
	if flags.Changed("api-key") {
		cfg.Catalog.APIKey, _ = flags.GetString("api-key")
	}
	if flags.Changed("refresh-cron") {
		cfg.Catalog.RefreshCron, _ = flags.GetString("refresh-cron")
	}
	if flags.Changed("otlp-endpoint") {
		cfg.Tracing.OTLPEndpoint, _ = flags.GetString("otlp-endpoint")
	}

	if cfg.Catalog.APIKey == "" {
		cfg.Catalog.APIKey = os.Getenv("MARQUEE_API_KEY")
	}
	return cfg, nil
}
