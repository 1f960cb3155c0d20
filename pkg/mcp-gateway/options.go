package mcpgateway

import (
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vikashloomba/mcp-gateway-go/pkg/mcpmgr"
	"github.com/vikashloomba/mcp-gateway-go/pkg/registry"
	"github.com/vikashloomba/mcp-gateway-go/pkg/router"
)

// Options configure a Gateway instance.
type Options struct {
	// Implementation identifies the gateway's MCP server implementation metadata.
	Implementation *mcp.Implementation
	// Addr controls the listen address used by ListenAndServe. Defaults to ":8700".
	Addr string
	// Path mounts the Streamable MCP façade. Defaults to "/mcp".
	Path string
	// DisableMCP skips mounting the façade entirely.
	DisableMCP bool
	// Namespace customizes how service tools and prompts are exposed on the
	// façade. Defaults to ServiceNamespace.
	Namespace NamespaceStrategy
	// Streamable tweaks the Streamable HTTP handler behavior passed to
	// mcp.NewStreamableHTTPHandler.
	Streamable mcp.StreamableHTTPOptions

	// RegistryBackend selects the registry implementation, see registry.New.
	RegistryBackend string
	// Strategy names the balancing strategy, see balancer.New.
	Strategy string
	// BalanceListOperations applies Strategy to list calls on /router.
	BalanceListOperations bool
	// HistoryCapacity bounds the invocation log. Defaults to 100.
	HistoryCapacity int
	// Manager configures backend connections. Logger is inherited when unset.
	Manager *mcpmgr.Options
	// Publisher optionally receives every invocation entry.
	Publisher router.Publisher

	// CORSOrigins enables CORS for the listed origins ("*" allows all).
	CORSOrigins []string
	// RouterRPS limits /router requests per client; zero disables limiting.
	RouterRPS   float64
	RouterBurst int

	// Logger receives structured diagnostics.
	Logger *slog.Logger
	// SyncTimeout bounds façade refreshes and graceful shutdown.
	SyncTimeout time.Duration
}

func (o *Options) withDefaults() Options {
	if o == nil {
		o = &Options{}
	}
	opts := *o
	if opts.Implementation == nil {
		opts.Implementation = &mcp.Implementation{
			Name:    "mcpgateway",
			Title:   "MCP Gateway",
			Version: "1.0.0",
		}
	} else {
		impl := *opts.Implementation
		opts.Implementation = &impl
	}
	if opts.Addr == "" {
		opts.Addr = ":8700"
	}
	if opts.Path == "" {
		opts.Path = "/mcp"
	}
	if opts.Namespace == nil {
		opts.Namespace = ServiceNamespace{}
	}
	if opts.RegistryBackend == "" {
		opts.RegistryBackend = registry.BackendMemory
	}
	if opts.HistoryCapacity <= 0 {
		opts.HistoryCapacity = 100
	}
	if opts.RouterBurst <= 0 {
		opts.RouterBurst = 20
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.SyncTimeout <= 0 {
		opts.SyncTimeout = 30 * time.Second
	}
	var mgr mcpmgr.Options
	if opts.Manager != nil {
		mgr = *opts.Manager
	}
	if mgr.Logger == nil {
		mgr.Logger = opts.Logger
	}
	opts.Manager = &mgr
	return opts
}
