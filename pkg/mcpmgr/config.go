package mcpmgr

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vikashloomba/mcp-gateway-go/pkg/registry"
)

// RPCDirection represents the direction of an observed JSON-RPC message.
type RPCDirection string

const (
	RPCDirectionSend    RPCDirection = "send"
	RPCDirectionReceive RPCDirection = "receive"
)

// RPCLogEvent encapsulates JSON-RPC traffic for custom logging.
type RPCLogEvent struct {
	Direction RPCDirection
	Message   []byte
	ServerID  string
}

// RPCLogger is invoked for each JSON-RPC message when logging is enabled.
type RPCLogger func(RPCLogEvent)

// TransportFactory builds the client transport used to reach rec. It is only
// consulted for transports the manager supports.
type TransportFactory func(rec registry.ServerRecord) (mcp.Transport, error)

// Options configures a Manager.
type Options struct {
	// ClientName and ClientVersion are advertised during the handshake.
	ClientName    string
	ClientVersion string
	// ConnectTimeout bounds a single handshake. Defaults to 30s.
	ConnectTimeout time.Duration
	// CallTimeout bounds every list or call issued through a Session.
	// Defaults to 30s.
	CallTimeout time.Duration
	// HTTPClient is cloned for every Streamable HTTP backend.
	HTTPClient *http.Client
	// Headers are added to every outbound HTTP request.
	Headers    http.Header
	MaxRetries int
	// LogJSONRPC routes wire traffic to Logger at debug level unless
	// RPCLogger is set.
	LogJSONRPC bool
	RPCLogger  RPCLogger
	Logger     *slog.Logger
	// TransportFactory overrides how transports are built. Tests use it to
	// plug in in-memory transports.
	TransportFactory TransportFactory
	// CloseConcurrency bounds parallel closes during Shutdown. Defaults to 8.
	CloseConcurrency int
}

func (o *Options) withDefaults() Options {
	if o == nil {
		o = &Options{}
	}
	opts := *o
	if opts.ClientName == "" {
		opts.ClientName = "mcp-gateway"
	}
	if opts.ClientVersion == "" {
		opts.ClientVersion = "1.0.0"
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 30 * time.Second
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.CloseConcurrency <= 0 {
		opts.CloseConcurrency = 8
	}
	return opts
}
