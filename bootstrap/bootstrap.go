// Package bootstrap wires configuration into a ready client and mock server.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/artpar/restschema/adapters/metrics"
	"github.com/artpar/restschema/adapters/mockplatform"
	"github.com/artpar/restschema/adapters/remote"
	"github.com/artpar/restschema/adapters/retry"
	"github.com/artpar/restschema/config"
	"github.com/artpar/restschema/core/binding"
	"github.com/artpar/restschema/core/dispatch"
	"github.com/artpar/restschema/core/exchange"
	"github.com/artpar/restschema/core/registry"
	"github.com/artpar/restschema/core/request"
	"github.com/artpar/restschema/core/schema"
	"github.com/artpar/restschema/ports"
	"github.com/artpar/restschema/schemas"
)

// App is a configured client.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Config
	Schemas    *registry.Registry
	Metrics    *metrics.Collector
	Remote     *remote.Client
	Exchange   *exchange.Client
	Dispatcher *dispatch.Dispatcher
}

// Options overrides pieces of the wiring, mostly for tests.
type Options struct {
	// HTTPClient replaces the default HTTP client of the remote adapter.
	HTTPClient *http.Client
	// Registerer receives the metrics. Nil uses a private registry.
	Registerer prometheus.Registerer
	// Clock replaces the exchange time source and backoff sleep.
	Clock ports.Clock
}

// New builds an App from cfg.
func New(cfg *config.Config, logger zerolog.Logger, opts Options) (*App, error) {
	reg, err := LoadSchemas(cfg.Schemas.Dir, logger)
	if err != nil {
		return nil, fmt.Errorf("load schemas: %w", err)
	}

	a := &App{
		Logger:  logger,
		Config:  cfg,
		Schemas: reg,
		Metrics: newCollector(opts.Registerer),
	}

	a.Remote, err = remote.NewClient(remote.ClientConfig{
		BaseURL:     cfg.Platform.BaseURL,
		AccessToken: cfg.Platform.AccessToken,
		Timeout:     cfg.Platform.Timeout,
		Headers:     cfg.Platform.Headers,
		HTTPClient:  opts.HTTPClient,
	})
	if err != nil {
		return nil, fmt.Errorf("init remote client: %w", err)
	}

	exOpts := []exchange.Option{
		exchange.WithObserver(a.Metrics),
		exchange.WithLogger(logger),
	}
	if cfg.Retry.Enabled {
		exOpts = append(exOpts, exchange.WithRetryPolicy(RetryPolicy(cfg.Retry)))
	}
	if opts.Clock != nil {
		exOpts = append(exOpts, exchange.WithClock(opts.Clock))
	}
	a.Exchange = exchange.New(a.Remote, exOpts...)

	a.Dispatcher = dispatch.New(reg, a.Exchange, DispatchOptions(cfg, a.Metrics, logger))

	logger.Debug().
		Str("base_url", cfg.Platform.BaseURL).
		Int("schemas", reg.Len()).
		Bool("retry", cfg.Retry.Enabled).
		Msg("client initialized")

	return a, nil
}

// RetryPolicy converts the retry settings into a policy.
func RetryPolicy(cfg config.RetryConfig) *retry.Policy {
	rc := retry.DefaultConfig()
	rc.MaxAttempts = cfg.MaxAttempts
	rc.InitialInterval = cfg.InitialInterval
	rc.MaxInterval = cfg.MaxInterval
	return retry.New(rc)
}

// DispatchOptions converts the binding and pagination settings.
func DispatchOptions(cfg *config.Config, observer ports.Observer, logger zerolog.Logger) dispatch.Options {
	opts := dispatch.DefaultOptions()
	opts.Request = request.Options{
		Body:     binding.Options{Strict: cfg.Binding.StrictBody},
		Query:    binding.Options{Strict: cfg.Binding.StrictQuery},
		PageSize: cfg.Pagination.PageSize,
	}
	opts.ItemsKey = cfg.Pagination.ItemsKey
	opts.Observer = observer
	opts.Logger = logger
	return opts
}

// LoadSchemas registers the built-in schemas and then every definition
// found under dir. A definition named like a built-in replaces it.
func LoadSchemas(dir string, logger zerolog.Logger) (*registry.Registry, error) {
	builtin, err := schemas.Builtin()
	if err != nil {
		return nil, err
	}
	reg, err := registry.NewWith(builtin...)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return reg, nil
	}

	extra, err := schema.ParseDir(dir)
	if err != nil {
		return nil, err
	}
	for _, obj := range extra {
		if _, exists := reg.Get(obj.Name); exists {
			logger.Info().Str("schema", obj.Name).Str("dir", dir).Msg("overriding built-in schema")
			if err := reg.Unregister(obj.Name); err != nil {
				return nil, err
			}
		}
		if err := reg.Register(obj); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// SetupLogger creates the logger described by cfg and sets the global level.
func SetupLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}
	SetLogLevel(cfg.Level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

// SetLogLevel sets the global level, falling back to info.
func SetLogLevel(levelStr string) {
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil || levelStr == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func newCollector(reg prometheus.Registerer) *metrics.Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return metrics.NewWithRegistry(reg)
}

// Mock is a configured mock platform server.
type Mock struct {
	Logger     zerolog.Logger
	Schemas    *registry.Registry
	Store      mockplatform.Store
	Metrics    *metrics.Collector
	Platform   *mockplatform.Server
	HTTPServer *http.Server
}

// NewMock builds the mock platform described by cfg. Records live in SQLite
// when mock.dsn is set and in memory otherwise.
func NewMock(cfg *config.Config, logger zerolog.Logger, reg prometheus.Registerer) (*Mock, error) {
	schemaReg, err := LoadSchemas(cfg.Schemas.Dir, logger)
	if err != nil {
		return nil, fmt.Errorf("load schemas: %w", err)
	}

	m := &Mock{Logger: logger, Schemas: schemaReg}

	if cfg.Mock.DSN != "" {
		store, err := mockplatform.NewSQLiteStore(cfg.Mock.DSN)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		m.Store = store
		logger.Info().Str("dsn", cfg.Mock.DSN).Msg("mock records stored in sqlite")
	} else {
		m.Store = mockplatform.NewMemoryStore()
	}

	pcfg := mockplatform.Config{
		Store:  m.Store,
		Logger: logger,
	}
	if cfg.Metrics.Enabled {
		m.Metrics = newCollector(reg)
		pcfg.Metrics = m.Metrics
		pcfg.MetricsPath = cfg.Metrics.Path
	}
	m.Platform = mockplatform.New(schemaReg, pcfg)

	m.HTTPServer = &http.Server{
		Addr:              cfg.Mock.Listen,
		Handler:           m.Platform,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return m, nil
}

// Serve accepts connections on l until ctx is done, then shuts down.
func (m *Mock) Serve(ctx context.Context, l net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		m.Logger.Info().Str("addr", l.Addr().String()).Msg("starting mock platform")
		if err := m.HTTPServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		m.Logger.Info().Msg("shutting down mock platform")
	}
	return m.Shutdown()
}

// Run listens on the configured address and serves until ctx is done.
func (m *Mock) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", m.HTTPServer.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return m.Serve(ctx, l)
}

// Shutdown gracefully stops the server and closes the store.
func (m *Mock) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var result *multierror.Error
	if err := m.HTTPServer.Shutdown(ctx); err != nil {
		m.Logger.Error().Err(err).Msg("http server shutdown error")
		result = multierror.Append(result, err)
	}
	if err := m.Store.Close(); err != nil {
		m.Logger.Error().Err(err).Msg("store close error")
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
