package providers

import (
	"github.com/km-arc/go-modular/framework/config"
	"github.com/km-arc/go-modular/framework/container"
	"github.com/km-arc/go-modular/framework/logging"
	"github.com/km-arc/go-modular/framework/metadata"
	"github.com/km-arc/go-modular/framework/metrics"
	"github.com/km-arc/go-modular/framework/routing"
)

// Core tokens installed into every root container.
const (
	ConfigToken   metadata.Token = "IAppConfig"
	LoggerToken   metadata.Token = "IAppLogger"
	MetricsToken  metadata.Token = "IAppMetrics"
	RouterToken   metadata.Token = "IAppRouter"
	RegistryToken metadata.Token = "IMetadataRegistry"
)

// ── ConfigServiceProvider ─────────────────────────────────────────────────────

// ConfigServiceProvider binds the already loaded configuration.
//
// Bound abstracts:
//   - IAppConfig  → *config.Config
//   - "config"    → alias of IAppConfig
type ConfigServiceProvider struct {
	container.BaseProvider
	Config *config.Config
}

func (p *ConfigServiceProvider) Register(app *container.Container) error {
	app.Instance(ConfigToken, p.Config)
	app.Alias(ConfigToken, "config")
	app.Instance(RegistryToken, app.Defs())
	return nil
}

// ── LoggingServiceProvider ────────────────────────────────────────────────────

// LoggingServiceProvider binds the root application logger. When Logger is
// nil it is built from IAppConfig on first resolution.
//
// Bound abstracts:
//   - IAppLogger  → *logging.Logger
type LoggingServiceProvider struct {
	container.BaseProvider
	Logger *logging.Logger
}

func (p *LoggingServiceProvider) Register(app *container.Container) error {
	if p.Logger != nil {
		app.Instance(LoggerToken, p.Logger)
		return nil
	}
	app.Singleton(LoggerToken, func(r metadata.Resolver) (any, error) {
		cfg, err := container.Resolve[*config.Config](r, ConfigToken)
		if err != nil {
			return nil, err
		}
		root, err := logging.New(logging.Options{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			Dir:    cfg.Directory.Logs,
		})
		if err != nil {
			return nil, err
		}
		return root.CreateLogger("App"), nil
	})
	return nil
}

// Boot builds the logger eagerly so a bad logs directory fails start-up.
func (p *LoggingServiceProvider) Boot(app *container.Container) error {
	_, err := container.Resolve[*logging.Logger](app, LoggerToken)
	return err
}

// ── MetricsServiceProvider ────────────────────────────────────────────────────

// MetricsServiceProvider registers the per-application Prometheus collectors.
//
// Bound abstracts:
//   - IAppMetrics → *metrics.Metrics
type MetricsServiceProvider struct {
	container.BaseProvider
}

func (p *MetricsServiceProvider) Register(app *container.Container) error {
	app.Singleton(MetricsToken, func(metadata.Resolver) (any, error) {
		return metrics.New(), nil
	})
	return nil
}

// ── RoutingServiceProvider ────────────────────────────────────────────────────

// RoutingServiceProvider registers the HTTP transport.
//
// Bound abstracts:
//   - IAppRouter  → *routing.Router
//   - "router"    → alias of IAppRouter
type RoutingServiceProvider struct {
	container.BaseProvider
}

func (p *RoutingServiceProvider) Register(app *container.Container) error {
	app.Singleton(RouterToken, func(r metadata.Resolver) (any, error) {
		cfg, err := container.Resolve[*config.Config](r, ConfigToken)
		if err != nil {
			return nil, err
		}
		log, err := container.Resolve[*logging.Logger](r, LoggerToken)
		if err != nil {
			return nil, err
		}
		return routing.New(
			routing.WithLogger(log.CreateLogger("Router")),
			routing.WithProduction(cfg.IsProduction),
		), nil
	})
	app.Alias(RouterToken, "router")
	return nil
}

// Defaults returns the framework providers in registration order.
func Defaults(cfg *config.Config, log *logging.Logger) []container.ServiceProvider {
	return []container.ServiceProvider{
		&ConfigServiceProvider{Config: cfg},
		&LoggingServiceProvider{Logger: log},
		&MetricsServiceProvider{},
		&RoutingServiceProvider{},
	}
}
