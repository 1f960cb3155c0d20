// Package mcpmgr centralizes the backend connections of the gateway. It layers
// per-instance connection caching, handshake deduplication, and JSON-RPC wire
// logging on top of the modelcontextprotocol/go-sdk client.
//
// # Core entry points
//
//   - Manager is the long-lived cache. Construct it with NewManager, dial an
//     instance once with Connect, then borrow the cached Session with
//     GetClient for every later call.
//   - Session wraps a go-sdk ClientSession with per-call timeouts and
//     cursor-following list helpers.
//   - Options toggle client identity, timeouts, outbound HTTP headers,
//     JSON-RPC logging, and the TransportFactory used to reach backends.
//
// Only Streamable HTTP backends are dialed. Records declaring stdio or SSE
// fail with ErrUnsupportedTransport before any I/O happens. Disconnect and
// Shutdown never return errors; close failures are logged at debug level.
package mcpmgr
