package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/getmockd/mockresolver/pkg/config"
	"github.com/getmockd/mockresolver/pkg/engine"
	"github.com/getmockd/mockresolver/pkg/extract"
	"github.com/getmockd/mockresolver/pkg/metrics"
	"github.com/getmockd/mockresolver/pkg/pushback"
	"github.com/getmockd/mockresolver/pkg/template"
	"github.com/getmockd/mockresolver/pkg/template/builtin"
)

// serveFlags holds the serve command's flag values.
type serveFlags struct {
	configFile  string
	mocks       string
	host        string
	port        int
	watch       bool
	logFile     string
	maxBodySize int64
	maxIter     int
}

// serveFlagVals is the package-level instance bound to cobra flags.
var serveFlagVals serveFlags

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve mock endpoints over HTTP (foreground)",
	Long: `Load a mock collection and serve it until interrupted.

Requests are routed to the endpoint whose method and path match best, then
resolved: variables are extracted, the highest priority matching candidate
is rendered and its pushback, if any, is queued for background delivery.

The server also answers:
  /__mockresolver/health    liveness and endpoint count
  /__mockresolver/ready     readiness
  /__mockresolver/metrics   Prometheus text metrics`,
	Example: `  # Serve a single collection file
  mockresolver serve --mocks orders.yaml

  # Serve every collection under a directory and reload on change
  mockresolver serve --mocks ./mocks --watch

  # Use a server config file, overriding its port
  mockresolver serve --config mockresolver.yaml --port 9000`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := serveConfig(cmd, &serveFlagVals)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cfg, cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addServeFlags(serveCmd, &serveFlagVals)
}

func addServeFlags(cmd *cobra.Command, f *serveFlags) {
	cmd.Flags().StringVarP(&f.configFile, "config", "c", "", "Path to server configuration file")
	cmd.Flags().StringVarP(&f.mocks, "mocks", "m", "", "Mock collection file or directory")
	cmd.Flags().StringVar(&f.host, "host", "", "Interface to bind")
	cmd.Flags().IntVarP(&f.port, "port", "p", config.DefaultPort, "HTTP server port (env "+config.EnvPort+")")
	cmd.Flags().BoolVarP(&f.watch, "watch", "w", false, "Reload mocks when files change")
	cmd.Flags().StringVar(&f.logFile, "log-file", "", "Also write JSON logs to this file")
	cmd.Flags().Int64Var(&f.maxBodySize, "max-body-size", config.DefaultMaxBodySize, "Maximum request body size in bytes")
	cmd.Flags().IntVar(&f.maxIter, "max-iterations", template.DefaultMaxIterations, "Largest repeat.count or batch render allowed")
}

// serveConfig merges the config file, environment and explicitly set flags.
func serveConfig(cmd *cobra.Command, f *serveFlags) (*config.ServerConfig, error) {
	cfg := config.DefaultServerConfig()
	if f.configFile != "" {
		loaded, err := config.LoadServerConfig(f.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(nil); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("mocks") {
		cfg.Mocks = f.mocks
	}
	if flags.Changed("host") {
		cfg.Host = f.host
	}
	if flags.Changed("port") {
		cfg.Port = f.port
	}
	if flags.Changed("watch") {
		cfg.Watch = f.watch
	}
	if flags.Changed("log-file") {
		cfg.Log.File = f.logFile
	}
	if flags.Changed("max-body-size") {
		cfg.MaxBodySize = f.maxBodySize
	}
	if flags.Changed("max-iterations") {
		cfg.MaxIterations = f.maxIter
	}
	if cfg.Mocks == "" {
		return nil, errors.New("no mocks to serve: set --mocks or mocks in the config file")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runServe starts the server and blocks until ctx is done.
func runServe(ctx context.Context, cfg *config.ServerConfig, stderr io.Writer) error {
	var tee io.Writer
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer func() { _ = f.Close() }()
		tee = f
	}
	log, err := newLogger(cfg.Log, stderr, tee)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	if err := a.start(); err != nil {
		return err
	}

	<-ctx.Done()
	log.Info("shutting down")

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()
	return a.stop(sctx)
}

// app holds the running pieces of the serve command.
type app struct {
	cfg        *config.ServerConfig
	log        *slog.Logger
	registry   *template.Registry
	collector  *metrics.Collector
	dispatcher *pushback.Dispatcher
	handler    *engine.Handler
	server     *engine.Server

	mu      sync.Mutex
	watcher io.Closer
}

// newApp loads and validates the collection and wires the resolver,
// pushback dispatcher, metrics and HTTP server together.
func newApp(cfg *config.ServerConfig, log *slog.Logger) (*app, error) {
	reg, err := builtin.NewRegistry(builtin.Options{})
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, registry: reg}

	collection, err := a.loadCollection()
	if err != nil {
		return nil, err
	}

	baseDir := cfg.Mocks
	if info, err := os.Stat(cfg.Mocks); err == nil && !info.IsDir() {
		baseDir = filepath.Dir(cfg.Mocks)
	}

	a.collector = metrics.NewCollector()
	renderer := engine.NewRenderer(template.NewEvaluator(reg, template.WithMaxIterations(cfg.MaxIterations)),
		engine.WithBaseDir(baseDir),
		engine.WithRendererLogger(log),
	)
	a.dispatcher = pushback.New(renderer, cfg.Pushback, pushback.WithLogger(log))
	resolver := engine.NewResolver(renderer,
		engine.WithExtractor(extract.New(extract.WithLogger(log))),
		engine.WithDispatcher(a.dispatcher),
		engine.WithHooks(a.collector),
		engine.WithLogger(log),
	)
	a.handler = engine.NewHandler(resolver, collection.Endpoints,
		engine.WithMetricsHandler(a.collector.Handler()),
		engine.WithHandlerLogger(log),
		engine.WithMaxBodySize(cfg.MaxBodySize),
	)
	a.collector.SetEndpoints(len(collection.Endpoints))

	a.server = engine.NewServer(cfg.Addr(),
		engine.Instrument(a.handler, a.collector, log),
		engine.WithServerLogger(log),
		engine.WithDrainer(a.dispatcher),
		engine.WithTimeouts(cfg.ReadTimeout, cfg.WriteTimeout),
	)
	return a, nil
}

// loadCollection loads cfg.Mocks and rejects it unless every template
// parses and every function it calls is registered.
func (a *app) loadCollection() (*config.Collection, error) {
	collection, err := config.Load(a.cfg.Mocks)
	if err != nil {
		return nil, err
	}
	if result := config.Validate(collection, a.registry, config.WithMaxIterations(a.cfg.MaxIterations)); !result.IsValid() {
		return nil, fmt.Errorf("invalid mocks in %s:\n%s", a.cfg.Mocks, result.Error())
	}
	return collection, nil
}

// reload swaps in a freshly loaded collection. On failure the current
// generation keeps serving.
func (a *app) reload() {
	collection, err := a.loadCollection()
	if err != nil {
		a.log.Error("reload failed, keeping current mocks", "error", err)
		return
	}
	a.handler.Load(collection.Endpoints)
	a.collector.SetEndpoints(len(collection.Endpoints))
}

func (a *app) start() error {
	if err := a.server.Start(); err != nil {
		_ = a.dispatcher.Shutdown(context.Background())
		return err
	}
	if a.cfg.Watch {
		w, err := config.Watch(a.cfg.Mocks, a.cfg.WatchDebounce, a.log, a.reload)
		if err != nil {
			_ = a.server.Stop(context.Background())
			return fmt.Errorf("watch %s: %w", a.cfg.Mocks, err)
		}
		a.mu.Lock()
		a.watcher = w
		a.mu.Unlock()
	}
	a.log.Info("serving mocks",
		"addr", a.server.Addr(),
		"mocks", a.cfg.Mocks,
		"endpoints", len(a.handler.Endpoints()),
		"watch", a.cfg.Watch,
	)
	return nil
}

func (a *app) stop(ctx context.Context) error {
	a.mu.Lock()
	w := a.watcher
	a.watcher = nil
	a.mu.Unlock()

	var errs []error
	if w != nil {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.server.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
