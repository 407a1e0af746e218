package routing

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/km-arc/go-modular/framework/errs"
	gohttp "github.com/km-arc/go-modular/framework/http"
	"github.com/km-arc/go-modular/framework/logging"
	"github.com/km-arc/go-modular/framework/urlpath"
)

// Transport is what the binder and the application need from the HTTP layer.
type Transport interface {
	Use(mw ...func(http.Handler) http.Handler)
	Route(method, path string, h gohttp.HandlerFunc)
	Listen(addr string, onListening func(net.Addr), onError func(error)) error
	Close(ctx context.Context) error
}

// Router is the chi-backed Transport.
//
// Every routed handler receives a continuation. next(nil) after nothing was
// written answers 404; next(err) renders err with gohttp.RenderError. Only the
// first call of a continuation has an effect.
type Router struct {
	mux        chi.Router
	log        *logging.Logger
	production bool

	// method + " " + pattern of every routed handler
	routed map[string]bool

	mu     sync.Mutex
	server *http.Server
}

// Option configures a Router.
type Option func(*Router)

// WithLogger routes request logs and server errors through log.
func WithLogger(log *logging.Logger) Option {
	return func(r *Router) { r.log = log }
}

// WithProduction hides error detail in rendered responses.
func WithProduction(production bool) Option {
	return func(r *Router) { r.production = production }
}

// New creates a Router with request ids, request logging, panic recovery and
// real-IP detection installed.
func New(opts ...Option) *Router {
	r := &Router{mux: chi.NewRouter(), routed: make(map[string]bool)}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logging.NewDefault("Router")
	}

	r.mux.Use(middleware.RequestID)
	r.mux.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: r.log.Entry(), NoColor: true}))
	r.mux.Use(middleware.Recoverer)
	r.mux.Use(middleware.RealIP)

	r.mux.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		gohttp.NewResponse(w).NotFound()
	})
	r.mux.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		gohttp.NewResponse(w).Error(http.StatusMethodNotAllowed, "Method not allowed.")
	})
	return r
}

// ── Routes ───────────────────────────────────────────────────────────────────

// Use adds middleware. chi requires all middleware before the first route.
func (r *Router) Use(mw ...func(http.Handler) http.Handler) {
	r.mux.Use(mw...)
}

// Route registers h for method and path. ":name" segments become chi
// parameters. The first handler registered for a method and path wins; later
// ones are dropped with a warning.
func (r *Router) Route(method, path string, h gohttp.HandlerFunc) {
	pattern := urlpath.ToPattern(path)
	key := method + " " + pattern
	if r.routed[key] {
		r.log.Warnf("duplicate route %s %s ignored", method, path)
		return
	}
	r.routed[key] = true

	r.mux.Method(method, pattern, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		var once sync.Once
		h(ww, req, func(err error) {
			once.Do(func() { r.proceed(ww, req, err) })
		})
	}))
}

// Mount attaches a plain handler under pattern (for example /metrics).
func (r *Router) Mount(pattern string, h http.Handler) {
	r.mux.Mount(pattern, h)
}

// proceed is the continuation behind every routed handler.
func (r *Router) proceed(w middleware.WrapResponseWriter, req *http.Request, err error) {
	written := w.Status() != 0
	if err == nil {
		if !written {
			gohttp.NewResponse(w).NotFound()
		}
		return
	}
	if written {
		r.log.WithError(err).WithField("path", req.URL.Path).Error("error after response was written")
		return
	}
	gohttp.RenderError(w, req, err, r.production)
}

// ── Serve ────────────────────────────────────────────────────────────────────

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Handler returns the underlying http.Handler (for testing etc.).
func (r *Router) Handler() http.Handler {
	return r.mux
}

// Listen binds addr and serves in the background. onListening runs once the
// socket is bound; onError receives bind and serve failures. Bind failures
// are also returned.
func (r *Router) Listen(addr string, onListening func(net.Addr), onError func(error)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		if onError != nil {
			onError(err)
		}
		return err
	}

	srv := &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}
	r.mu.Lock()
	r.server = srv
	r.mu.Unlock()

	if onListening != nil {
		onListening(ln.Addr())
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.log.WithError(err).Error("server error")
			if onError != nil {
				onError(err)
			}
		}
	}()
	return nil
}

// Close shuts the server down gracefully. Closing a router that never
// listened is a server error.
func (r *Router) Close(ctx context.Context) error {
	r.mu.Lock()
	srv := r.server
	r.server = nil
	r.mu.Unlock()

	if srv == nil {
		return errs.Server("server not initialized")
	}
	return srv.Shutdown(ctx)
}
