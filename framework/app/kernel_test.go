package app_test

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-modular/framework/app"
	"github.com/km-arc/go-modular/framework/config"
	"github.com/km-arc/go-modular/framework/container"
	"github.com/km-arc/go-modular/framework/errs"
	gohttp "github.com/km-arc/go-modular/framework/http"
	"github.com/km-arc/go-modular/framework/logging"
	"github.com/km-arc/go-modular/framework/metadata"
)

// ── fixtures ─────────────────────────────────────────────────────────────────

type rootModule struct{}
type itemModule struct{}

type itemStore struct{ names map[string]string }

type itemController struct {
	app.Controller
	store *itemStore
}

func (c *itemController) Show(id string) (*gohttp.ActionResult, error) {
	name, ok := c.store.names[id]
	if !ok {
		return nil, nil
	}
	return gohttp.OK(map[string]string{"id": id, "name": name}), nil
}

func (c *itemController) Broken() error { return errors.New("disk on fire") }

func (c *itemController) Raw(w http.ResponseWriter) {
	c.Response(w).Success("raw")
}

func declare() *metadata.Registry {
	defs := metadata.New()
	metadata.DefineModule[*rootModule](defs, metadata.ModuleFacts{
		Modules: []metadata.ModuleRef{metadata.Ref[*itemModule]()},
	})
	metadata.DefineModule[*itemModule](defs, metadata.ModuleFacts{
		BasePath:    "/api",
		Providers:   []reflect.Type{metadata.TypeOf[*itemStore]()},
		Controllers: []reflect.Type{metadata.TypeOf[*itemController]()},
	})
	metadata.DefineProvider[*itemStore](defs, metadata.ProviderFacts{
		New: func(metadata.Resolver) (any, error) {
			return &itemStore{names: map[string]string{"7": "lamp"}}, nil
		},
	})
	metadata.DefineController[*itemController](defs, metadata.ControllerOptions{
		Path: "items",
		New: func(r metadata.Resolver) (any, error) {
			store, err := container.ResolveType[*itemStore](r)
			if err != nil {
				return nil, err
			}
			return &itemController{store: store}, nil
		},
	})
	metadata.DefineAction[*itemController](defs, "Raw", metadata.ActionFacts{Path: "raw", Params: metadata.Plan(metadata.Res(0))})
	metadata.DefineAction[*itemController](defs, "Broken", metadata.ActionFacts{Path: "broken"})
	metadata.DefineAction[*itemController](defs, "Show", metadata.ActionFacts{Path: ":id", Params: metadata.Plan(metadata.Param("id", 0))})
	return defs
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Env:       "development",
		Server:    config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Directory: config.DirectoryConfig{Logs: filepath.Join(t.TempDir(), "logs")},
		Log:       config.LogConfig{Level: "error", Format: "text"},
		Metrics:   config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func create(t *testing.T, cfg *config.Config) *app.Application {
	t.Helper()
	a, err := app.Create(context.Background(), cfg, declare(), metadata.Ref[*rootModule](),
		app.WithLogger(logging.NewDefault("Test")))
	require.NoError(t, err)
	return a
}

func do(a *app.Application, method, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

// ── Create ───────────────────────────────────────────────────────────────────

func TestCreate_BindsRoutesInDeclarationOrder(t *testing.T) {
	a := create(t, testConfig(t))

	var got []string
	for _, r := range a.Routes() {
		got = append(got, r.Method+" "+r.Path)
	}
	assert.Equal(t, []string{"GET /api/items/raw", "GET /api/items/broken", "GET /api/items/:id"}, got)
}

func TestCreate_DispatchesThroughTheTree(t *testing.T) {
	a := create(t, testConfig(t))

	rr := do(a, http.MethodGet, "/api/items/7")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"id":"7","name":"lamp"}`, rr.Body.String())

	rr = do(a, http.MethodGet, "/api/items/raw")
	assert.JSONEq(t, `{"data":"raw"}`, rr.Body.String())
}

func TestCreate_DelegationFallsThroughTo404(t *testing.T) {
	a := create(t, testConfig(t))

	rr := do(a, http.MethodGet, "/api/items/8")

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreate_ErrorRenderingFollowsMode(t *testing.T) {
	rr := do(create(t, testConfig(t)), http.MethodGet, "/api/items/broken")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "disk on fire")

	cfg := testConfig(t)
	cfg.IsProduction = true
	rr = do(create(t, cfg), http.MethodGet, "/api/items/broken")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Empty(t, rr.Body.String())
}

func TestCreate_ExposesMetrics(t *testing.T) {
	a := create(t, testConfig(t))
	do(a, http.MethodGet, "/api/items/7")

	rr := do(a, http.MethodGet, "/metrics")

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `modular_dispatch_outcomes_total{action="itemController.Show",outcome="result"} 1`)
	assert.Contains(t, body, "modular_routing_bound_routes 3")
	assert.Contains(t, body, `route="/api/items/{id}"`)
}

func TestCreate_MetricsDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = false

	rr := do(create(t, cfg), http.MethodGet, "/metrics")

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreate_CompositionErrors(t *testing.T) {
	type undeclared struct{}

	_, err := app.Create(context.Background(), testConfig(t), declare(), metadata.Ref[*undeclared](),
		app.WithLogger(logging.NewDefault("Test")))

	assert.ErrorIs(t, err, errs.ErrDefinition)
}

func TestCreate_CoreTokensResolvable(t *testing.T) {
	a := create(t, testConfig(t))

	cfg, err := container.Resolve[*config.Config](a, "IAppConfig")
	require.NoError(t, err)
	assert.Same(t, a.Config(), cfg)
	assert.Equal(t, "development", a.Environment())
	assert.False(t, a.IsProduction())
	assert.True(t, a.Providers.Booted())
}

type clockProvider struct{ container.BaseProvider }

func (p *clockProvider) Register(c *container.Container) error {
	c.Instance("IClock", "fixed")
	return nil
}

func TestCreate_WithProviders(t *testing.T) {
	a, err := app.Create(context.Background(), testConfig(t), declare(), metadata.Ref[*rootModule](),
		app.WithLogger(logging.NewDefault("Test")), app.WithProviders(&clockProvider{}))
	require.NoError(t, err)

	clock, err := container.Resolve[string](a, "IClock")
	require.NoError(t, err)
	assert.Equal(t, "fixed", clock)
	assert.Contains(t, a.Bindings(), metadata.Token("IClock"))
	assert.NotNil(t, a.Metrics())
}

// ── Start / Stop ─────────────────────────────────────────────────────────────

func TestStopBeforeStartIsServerError(t *testing.T) {
	a := create(t, testConfig(t))

	assert.ErrorIs(t, a.Stop(context.Background()), errs.ErrServer)
}

func TestStartServesAndStops(t *testing.T) {
	a := create(t, testConfig(t))

	var addr net.Addr
	require.NoError(t, a.Start(func(bound net.Addr) { addr = bound }, nil))
	require.NotNil(t, addr)
	assert.ErrorIs(t, a.Start(nil, nil), errs.ErrServer)

	resp, err := http.Get("http://" + addr.String() + "/api/items/7")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.True(t, strings.Contains(string(body), "lamp"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Stop(ctx))
	assert.ErrorIs(t, a.Stop(ctx), errs.ErrServer)
}

func TestCreate_InstallsMiddlewareBeforeRoutes(t *testing.T) {
	stamp := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Stamp", "1")
			next.ServeHTTP(w, r)
		})
	}
	a, err := app.Create(context.Background(), testConfig(t), declare(), metadata.Ref[*rootModule](),
		app.WithLogger(logging.NewDefault("Test")), app.WithMiddleware(stamp))
	require.NoError(t, err)

	assert.Equal(t, "1", do(a, http.MethodGet, "/api/items/7").Header().Get("X-Stamp"))
	assert.Equal(t, "1", do(a, http.MethodGet, "/metrics").Header().Get("X-Stamp"))
}
