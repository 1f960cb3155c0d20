package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// TransportKind identifies how the gateway reaches a backend instance.
type TransportKind string

const (
	TransportStdio          TransportKind = "STDIO"
	TransportSSE            TransportKind = "SSE"
	TransportStreamableHTTP TransportKind = "STREAMABLE_HTTP"
)

// TransportKinds returns every transport a record may declare, including the
// ones the connection manager refuses to dial.
func TransportKinds() []TransportKind {
	return []TransportKind{TransportStdio, TransportSSE, TransportStreamableHTTP}
}

// ParseTransportKind accepts the canonical names case-insensitively, with
// "-" allowed in place of "_" (so "streamable-http" works).
func ParseTransportKind(raw string) (TransportKind, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), "-", "_"))
	for _, kind := range TransportKinds() {
		if string(kind) == normalized {
			return kind, nil
		}
	}
	return "", fmt.Errorf("%w: unknown transport %q", ErrInvalidRecord, raw)
}

// Status is the administrative state of an instance. It is set by operators,
// never derived from request metrics.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusInactive  Status = "INACTIVE"
	StatusUnhealthy Status = "UNHEALTHY"
)

// ServerRecord describes one backend instance registered under a logical
// service name. Records sharing a Name are replicas of the same service.
type ServerRecord struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Version     string        `json:"version,omitempty"`
	Transport   TransportKind `json:"transportType"`
	Endpoint    string        `json:"endpoint"`
	Status      Status        `json:"status"`
}

// NewServerRecord builds an ACTIVE record whose ID is derived from name and
// endpoint.
func NewServerRecord(name, description, version string, transport TransportKind, endpoint string) ServerRecord {
	return ServerRecord{
		ID:          GenerateServerID(name, endpoint),
		Name:        name,
		Description: description,
		Version:     version,
		Transport:   transport,
		Endpoint:    endpoint,
		Status:      StatusActive,
	}
}

// GenerateServerID hashes name and endpoint and hex-encodes the first eight
// bytes of the digest. Identical inputs always yield the same id.
func GenerateServerID(name, endpoint string) string {
	sum := sha256.Sum256([]byte(name + ":" + endpoint))
	return hex.EncodeToString(sum[:8])
}

// Validate reports whether the record carries the fields the registry keys on.
func (r ServerRecord) Validate() error {
	switch {
	case strings.TrimSpace(r.ID) == "":
		return fmt.Errorf("%w: id is required", ErrInvalidRecord)
	case strings.TrimSpace(r.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidRecord)
	case strings.TrimSpace(r.Endpoint) == "":
		return fmt.Errorf("%w: endpoint is required", ErrInvalidRecord)
	case r.Transport == "":
		return fmt.Errorf("%w: transport type is required", ErrInvalidRecord)
	}
	return nil
}
