package mcpgateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/cors"

	"github.com/vikashloomba/mcp-gateway-go/pkg/balancer"
	"github.com/vikashloomba/mcp-gateway-go/pkg/invocationlog"
	"github.com/vikashloomba/mcp-gateway-go/pkg/mcpmgr"
	"github.com/vikashloomba/mcp-gateway-go/pkg/metrics"
	"github.com/vikashloomba/mcp-gateway-go/pkg/registry"
	"github.com/vikashloomba/mcp-gateway-go/pkg/router"
)

// Gateway wires the registry, connection manager, balancer, metrics and
// invocation log behind one HTTP surface, and mirrors every registered
// service on a Streamable MCP endpoint.
type Gateway struct {
	opts Options
	now  func() time.Time

	registry  registry.Registry
	manager   *mcpmgr.Manager
	metrics   *metrics.Aggregator
	history   *invocationlog.Store
	router    *router.Router
	inspector *router.Inspector
	limiter   *clientLimiter
	prom      *prometheus.Registry

	features      *featureIndex
	server        *mcp.Server
	streamHandler *mcp.StreamableHTTPHandler
	mux           *http.ServeMux
	httpHandler   http.Handler

	facadeMu     sync.Mutex
	httpServerMu sync.Mutex
	httpServer   *http.Server
}

// RegisterRequest is the body of POST /servers.
type RegisterRequest struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	TransportType string `json:"transportType"`
	Endpoint      string `json:"endpoint"`
	Version       string `json:"version"`
}

// NewGateway builds every component from opts. No backend is contacted until
// RegisterServer is called.
func NewGateway(opts *Options) (*Gateway, error) {
	options := opts.withDefaults()
	reg, err := registry.New(options.RegistryBackend)
	if err != nil {
		return nil, fmt.Errorf("mcpgateway: %w", err)
	}
	strategy, err := balancer.New(options.Strategy)
	if err != nil {
		return nil, fmt.Errorf("mcpgateway: %w", err)
	}

	g := &Gateway{
		opts:     options,
		now:      time.Now,
		registry: reg,
		manager:  mcpmgr.NewManager(options.Manager),
		metrics:  metrics.NewAggregator(),
		history:  invocationlog.NewStore(options.HistoryCapacity),
		features: newFeatureIndex(options.Namespace),
	}

	routerOpts := &router.Options{
		Registry:              g.registry,
		Connections:           g.manager,
		Strategy:              strategy,
		Metrics:               g.metrics,
		History:               g.history,
		Publisher:             options.Publisher,
		BalanceListOperations: options.BalanceListOperations,
		Logger:                options.Logger,
	}
	if g.router, err = router.NewRouter(routerOpts); err != nil {
		return nil, err
	}
	if g.inspector, err = router.NewInspector(routerOpts); err != nil {
		return nil, err
	}

	g.prom = prometheus.NewRegistry()
	g.prom.MustRegister(
		metrics.NewCollector(g.metrics),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if options.RouterRPS > 0 {
		g.limiter = newClientLimiter(options.RouterRPS, options.RouterBurst, g.now)
	}

	g.server = mcp.NewServer(options.Implementation, &mcp.ServerOptions{
		HasTools:   true,
		HasPrompts: true,
	})
	g.streamHandler = mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return g.server
	}, &options.Streamable)

	g.mux = g.routes()
	g.httpHandler = g.recoverer(g.mux)
	if len(options.CORSOrigins) > 0 {
		g.httpHandler = cors.New(cors.Options{
			AllowedOrigins: options.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", ClientIDHeader, "Mcp-Session-Id", "Mcp-Protocol-Version"},
			ExposedHeaders: []string{"Mcp-Session-Id"},
		}).Handler(g.httpHandler)
	}

	return g, nil
}

// Handler exposes the HTTP handler serving the REST API and the MCP façade.
func (g *Gateway) Handler() http.Handler {
	return g.httpHandler
}

// Options returns the effective options after defaults were applied.
func (g *Gateway) Options() Options {
	return g.opts
}

// ServeMux returns the underlying mux so callers can mount extra routes.
func (g *Gateway) ServeMux() *http.ServeMux {
	return g.mux
}

// Router returns the name-addressed, balanced call path.
func (g *Gateway) Router() *router.Router { return g.router }

// Inspector returns the id-addressed debug call path.
func (g *Gateway) Inspector() *router.Inspector { return g.inspector }

// Metrics returns the shared per-instance aggregator.
func (g *Gateway) Metrics() *metrics.Aggregator { return g.metrics }

// RegisterServer connects to the backend, records it in the registry and
// initializes its metrics, in that order. A duplicate registration leaves the
// existing connection untouched; any other registry failure drops the
// connection that was just opened.
func (g *Gateway) RegisterServer(ctx context.Context, req RegisterRequest) (registry.ServerRecord, error) {
	kind := registry.TransportStreamableHTTP
	if strings.TrimSpace(req.TransportType) != "" {
		parsed, err := registry.ParseTransportKind(req.TransportType)
		if err != nil {
			return registry.ServerRecord{}, err
		}
		kind = parsed
	}
	rec := registry.NewServerRecord(strings.TrimSpace(req.Name), req.Description, req.Version, kind, strings.TrimSpace(req.Endpoint))
	if err := rec.Validate(); err != nil {
		return registry.ServerRecord{}, err
	}
	if !g.opts.DisableMCP {
		if err := g.opts.Namespace.ValidService(rec.Name); err != nil {
			return registry.ServerRecord{}, err
		}
	}

	if _, err := g.manager.Connect(ctx, rec); err != nil {
		return registry.ServerRecord{}, err
	}
	if err := g.commit(rec); err != nil {
		return registry.ServerRecord{}, err
	}
	g.opts.Logger.Info("registered server", "server", rec.Name, "id", rec.ID, "endpoint", rec.Endpoint)

	g.refreshService(ctx, rec.Name)
	return rec, nil
}

// commit records a connected instance. If the connection was dropped between
// Connect and Register the record is rolled back so the registry never lists
// an instance without a slot.
func (g *Gateway) commit(rec registry.ServerRecord) error {
	if err := g.registry.Register(rec); err != nil {
		if !errors.Is(err, registry.ErrDuplicateInstance) {
			g.manager.Disconnect(rec.ID)
		}
		return err
	}
	if g.manager.Status(rec.ID) == mcpmgr.StatusDisconnected {
		_, _ = g.registry.Unregister(rec.Name, rec.ID)
		return fmt.Errorf("%w: %s dropped during registration", mcpmgr.ErrNotConnected, rec.ID)
	}
	g.metrics.InitMetrics(rec.Name, rec.ID)
	return nil
}

// UnregisterServer removes the instance, closes its connection and drops its
// metrics.
func (g *Gateway) UnregisterServer(ctx context.Context, name, id string) (registry.ServerRecord, error) {
	rec, err := g.registry.Unregister(name, id)
	if err != nil {
		return registry.ServerRecord{}, err
	}
	g.manager.Disconnect(rec.ID)
	g.metrics.RemoveMetrics(rec.ID)
	g.opts.Logger.Info("unregistered server", "server", rec.Name, "id", rec.ID)

	g.refreshService(ctx, rec.Name)
	return rec, nil
}

// Server looks an instance up by id, scoped to name when name is set.
func (g *Gateway) Server(name, id string) (registry.ServerRecord, error) {
	if name != "" {
		return g.registry.Get(name, id)
	}
	return g.registry.GetByID(id)
}

// Servers lists every registered instance.
func (g *Gateway) Servers() []registry.ServerRecord {
	return g.registry.ListAll()
}

// ListenAndServe runs an HTTP server until the provided context is cancelled or
// the server stops.
func (g *Gateway) ListenAndServe(ctx context.Context) error {
	g.httpServerMu.Lock()
	if g.httpServer != nil {
		serv := g.httpServer
		g.httpServerMu.Unlock()
		return fmt.Errorf("mcpgateway: server already running on %s", serv.Addr)
	}
	srv := &http.Server{Addr: g.opts.Addr, Handler: g.Handler(), ReadHeaderTimeout: 10 * time.Second}
	g.httpServer = srv
	g.httpServerMu.Unlock()
	defer func() {
		g.httpServerMu.Lock()
		if g.httpServer == srv {
			g.httpServer = nil
		}
		g.httpServerMu.Unlock()
	}()

	errCh := make(chan error, 1)
	go func() {
		g.opts.Logger.Info("gateway listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), g.opts.SyncTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown stops the embedded HTTP server if it is running and closes every
// backend connection. Connection teardown errors are only logged.
func (g *Gateway) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	g.httpServerMu.Lock()
	srv := g.httpServer
	g.httpServer = nil
	g.httpServerMu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	g.manager.Shutdown(ctx)
	return err
}

func (g *Gateway) syncContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	// Refreshes run after the caller has its answer; don't inherit its cancel.
	return context.WithTimeout(context.WithoutCancel(parent), g.opts.SyncTimeout)
}

func (g *Gateway) logError(msg string, err error, args ...any) {
	if err == nil {
		return
	}
	attrs := append([]any{"error", err}, args...)
	g.opts.Logger.Error(msg, attrs...)
}
