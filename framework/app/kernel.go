package app

import (
	"context"
	"net"
	"net/http"
	"sync"

	"github.com/km-arc/go-modular/framework/config"
	"github.com/km-arc/go-modular/framework/container"
	"github.com/km-arc/go-modular/framework/errs"
	gohttp "github.com/km-arc/go-modular/framework/http"
	"github.com/km-arc/go-modular/framework/logging"
	"github.com/km-arc/go-modular/framework/metadata"
	"github.com/km-arc/go-modular/framework/metrics"
	"github.com/km-arc/go-modular/framework/module"
	"github.com/km-arc/go-modular/framework/providers"
	"github.com/km-arc/go-modular/framework/routing"
)

// Application is a composed, routable application.
// It embeds the root Container and the ProviderRegistry so callers can
// resolve core services directly.
type Application struct {
	*container.Container
	Providers *container.ProviderRegistry

	cfg     *config.Config
	log     *logging.Logger
	router  *routing.Router
	metrics *metrics.Metrics
	binder  *routing.Binder

	mu      sync.Mutex
	started bool
}

// Option configures Create.
type Option func(*options)

type options struct {
	logger     *logging.Logger
	providers  []container.ServiceProvider
	middleware []func(http.Handler) http.Handler
}

// WithLogger uses log as the root application logger instead of building
// one from the configuration.
func WithLogger(log *logging.Logger) Option {
	return func(o *options) { o.logger = log }
}

// WithProviders registers extra service providers after the framework ones.
func WithProviders(p ...container.ServiceProvider) Option {
	return func(o *options) { o.providers = append(o.providers, p...) }
}

// WithMiddleware installs router middleware ahead of every bound route.
func WithMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(o *options) { o.middleware = append(o.middleware, mw...) }
}

// Create composes the application rooted at root.
//
// The framework providers are registered and booted into a fresh root
// container, then the module tree is walked and every controller action is
// bound on the router. Any composition error is returned before a socket is
// opened.
func Create(ctx context.Context, cfg *config.Config, defs *metadata.Registry, root metadata.ModuleRef, opts ...Option) (*Application, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	c := container.New(defs)
	registry := container.NewProviderRegistry(c)
	for _, p := range append(providers.Defaults(cfg, o.logger), o.providers...) {
		if err := registry.Register(p); err != nil {
			return nil, err
		}
	}
	if err := registry.Boot(); err != nil {
		return nil, err
	}

	a := &Application{Container: c, Providers: registry, cfg: cfg}
	var err error
	if a.log, err = container.Resolve[*logging.Logger](c, providers.LoggerToken); err != nil {
		return nil, err
	}
	if a.router, err = container.Resolve[*routing.Router](c, providers.RouterToken); err != nil {
		return nil, err
	}
	if a.metrics, err = container.Resolve[*metrics.Metrics](c, providers.MetricsToken); err != nil {
		return nil, err
	}

	// chi accepts middleware only before the first route
	var observer gohttp.Observer
	if cfg.Metrics.Enabled {
		a.router.Use(a.metrics.Instrument)
		observer = a.metrics
	}
	if len(o.middleware) > 0 {
		a.router.Use(o.middleware...)
	}
	if cfg.Metrics.Enabled {
		a.router.Mount(cfg.Metrics.Path, a.metrics.Handler())
	}

	dispatcher := gohttp.NewDispatcher(cfg.IsProduction, a.log.CreateLogger("Dispatcher"), observer)
	a.binder = routing.NewBinder(defs, a.router, dispatcher, a.log.CreateLogger("Binder"), cfg.Server.BaseURL())

	builder := module.NewBuilder(defs, a.binder, a.log.CreateLogger("ModuleBuilder"))
	if err := builder.Build(ctx, c, root); err != nil {
		return nil, err
	}

	a.metrics.SetRoutes(len(a.binder.Routes()))
	a.log.Infof("application composed: %d modules, %d routes", len(c.Modules().Tokens()), len(a.binder.Routes()))
	return a, nil
}

// Start binds the configured address and serves in the background.
// onStarted receives the bound address; onError receives serve failures.
func (a *Application) Start(onStarted func(net.Addr), onError func(error)) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return errs.Server("server already started")
	}

	err := a.router.Listen(a.cfg.Server.Addr(), func(addr net.Addr) {
		a.log.Infof("Server running on http://%s", addr)
		if onStarted != nil {
			onStarted(addr)
		}
	}, func(err error) {
		a.log.WithError(err).Error("server failed")
		if onError != nil {
			onError(err)
		}
	})
	if err != nil {
		return err
	}
	a.started = true
	return nil
}

// Stop shuts the server down gracefully. Stopping an application that was
// never started is a server error.
func (a *Application) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		return errs.Server("server not initialized")
	}
	if err := a.router.Close(ctx); err != nil {
		return err
	}
	a.started = false
	a.log.Info("Server stopped.")
	return nil
}

// Routes returns the bound route table in binding order.
func (a *Application) Routes() []routing.Route { return a.binder.Routes() }

// Handler returns the root HTTP handler (for testing etc.).
func (a *Application) Handler() http.Handler { return a.router }

func (a *Application) Config() *config.Config    { return a.cfg }
func (a *Application) Logger() *logging.Logger   { return a.log }
func (a *Application) Metrics() *metrics.Metrics { return a.metrics }

// Environment returns NODE_ENV / APP_ENV.
func (a *Application) Environment() string { return a.cfg.Env }
func (a *Application) IsProduction() bool  { return a.cfg.IsProduction }

// Controller is an embeddable base for controllers that write responses
// themselves.
type Controller struct{}

func (c *Controller) Request(r *http.Request) *gohttp.Request {
	return gohttp.NewRequest(r)
}
func (c *Controller) Response(w http.ResponseWriter) *gohttp.Response {
	return gohttp.NewResponse(w)
}
