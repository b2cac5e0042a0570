// Package bootstrap wires all dependencies and starts the application.
// Configuration comes from a YAML file when one is given, otherwise from
// RECORDGATE_* environment variables.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	apihttp "github.com/artpar/recordgate/adapters/http"
	"github.com/artpar/recordgate/adapters/metrics"
	"github.com/artpar/recordgate/adapters/sqlite"
	"github.com/artpar/recordgate/config"
	"github.com/artpar/recordgate/core/events"
	"github.com/artpar/recordgate/core/registry"
	"github.com/artpar/recordgate/core/resolver"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Holder
	Events     *events.Bus
	Metrics    *metrics.Collector
	Prometheus *prometheus.Registry
	DB         *sqlite.DB
	Documents  *sqlite.DocumentStore
	Instances  *sqlite.InstanceStore
	Resolver   *resolver.Resolver
	Handler    *apihttp.Handler
	HTTPServer *http.Server
}

// Options controls how New builds the application.
type Options struct {
	// ConfigPath names a YAML config file. When empty, Config is used, and
	// when that is nil too the configuration comes from the environment.
	ConfigPath string
	Config     *config.Config

	// Registry caches materialized modules. Defaults to registry.Global().
	Registry *registry.Registry

	// LogOutput receives log lines. Defaults to os.Stdout.
	LogOutput io.Writer
}

// New loads configuration and wires every component. Nothing listens
// until Run is called.
func New(opts Options) (*App, error) {
	out := opts.LogOutput
	if out == nil {
		out = os.Stdout
	}

	holder, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	cfg := holder.Get()

	logger := setupLogger(cfg.Logging, out)
	a := &App{
		Logger: logger,
		Config: holder,
		Events: events.NewBus(logger),
	}
	holder.SetLogger(a.Logger)

	if cfg.Metrics.Enabled {
		a.Prometheus = prometheus.NewRegistry()
		a.Prometheus.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.Metrics = metrics.NewWithRegistry(a.Prometheus)
		a.Metrics.Subscribe(a.Events)
	}

	if cfg.Database.Enabled {
		if err := a.initDatabase(cfg.Database.DSN); err != nil {
			return nil, err
		}
	}

	reg := opts.Registry
	if reg == nil {
		reg = registry.Global()
	}
	resolverOpts := []resolver.Option{
		resolver.WithRegistry(reg),
		resolver.WithEvents(a.Events),
		resolver.WithLogger(a.Logger),
		resolver.WithDirs(cfg.Schema.Paths...),
	}
	if a.Documents != nil {
		resolverOpts = append(resolverOpts, resolver.WithLocators(a.Documents))
	}
	a.Resolver = resolver.New(resolverOpts...)

	a.initHTTPServer(cfg)

	holder.OnChange(a.onConfigChange)
	holder.OnError(func(error) {
		if a.Metrics != nil {
			a.Metrics.ConfigReloadErrors.Inc()
		}
	})

	a.Logger.Info().
		Strs("schema_paths", cfg.Schema.Paths).
		Bool("database", cfg.Database.Enabled).
		Bool("metrics", cfg.Metrics.Enabled).
		Msg("recordgate initialized")

	return a, nil
}

func loadConfig(opts Options) (*config.Holder, error) {
	// The holder logs through a placeholder until the real logger exists.
	nop := zerolog.Nop()
	if opts.ConfigPath != "" {
		return config.NewHolder(opts.ConfigPath, nop)
	}
	if opts.Config != nil {
		return config.NewStaticHolder(opts.Config, nop), nil
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}
	return config.NewStaticHolder(cfg, nop), nil
}

func (a *App) initDatabase(dsn string) error {
	db, err := sqlite.Open(dsn)
	if err != nil {
		return err
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return fmt.Errorf("migrate: %w", err)
	}

	versions, err := db.Applied()
	if err != nil {
		db.Close()
		return err
	}

	a.DB = db
	a.Documents = sqlite.NewDocumentStore(db)
	a.Instances = sqlite.NewInstanceStore(db)
	a.Logger.Info().Str("dsn", dsn).Strs("migrations", versions).Msg("database initialized")
	return nil
}

func (a *App) initHTTPServer(cfg *config.Config) {
	rc := apihttp.RouterConfig{
		Resolver:    a.Resolver,
		Documents:   a.Documents,
		Instances:   a.Instances,
		Metrics:     a.Metrics,
		MetricsPath: cfg.Metrics.Path,
		Logger:      a.Logger,
		LogAccess:   cfg.Instrument.LogAccess,
		Timeout:     cfg.Server.WriteTimeout,
	}
	if a.Prometheus != nil {
		rc.Gatherer = a.Prometheus
	}

	a.Handler = apihttp.NewHandler(rc)
	a.HTTPServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      apihttp.NewRouter(a.Handler, rc),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

// onConfigChange applies the reloadable part of a new configuration.
func (a *App) onConfigChange(cfg *config.Config) {
	a.Resolver.SetDirs(cfg.Schema.Paths...)
	a.Handler.SetLogAccess(cfg.Instrument.LogAccess)
	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	if a.Metrics != nil {
		a.Metrics.ConfigReloads.Inc()
		a.Metrics.ConfigLastReload.SetToCurrentTime()
	}
	a.Events.Publish(context.Background(), events.Event{Name: events.ConfigReloaded})
}

// Run starts the HTTP server and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	if a.Config.Path() != "" {
		if err := a.Config.WatchFile(); err != nil {
			a.Logger.Warn().Err(err).Msg("config file watch disabled")
		}
		a.Config.WatchSignals()
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt or error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		a.Shutdown()
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown stops the server, the config watchers and the database.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.Config != nil {
		a.Config.Stop()
	}

	// Shutdown HTTP server
	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	// Close database
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

// Reload re-reads the config file and applies it.
func (a *App) Reload() error {
	return a.Config.Reload()
}

func setupLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(out).With().Timestamp().Logger()
}
