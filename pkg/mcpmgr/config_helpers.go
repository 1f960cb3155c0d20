package mcpmgr

import "github.com/vikashloomba/mcp-gateway-go/pkg/registry"

// Supported reports whether the manager can dial kind. Only Streamable HTTP
// is implemented; stdio and SSE records fail fast.
func Supported(kind registry.TransportKind) bool {
	return kind == registry.TransportStreamableHTTP
}

// SupportedTransports lists the transports Connect accepts.
func SupportedTransports() []registry.TransportKind {
	var out []registry.TransportKind
	for _, kind := range registry.TransportKinds() {
		if Supported(kind) {
			out = append(out, kind)
		}
	}
	return out
}
