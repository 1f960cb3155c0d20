// Package registry tracks which backend instances exist under each logical
// service name.
package registry

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateInstance is returned when an id is already registered under
	// the same name.
	ErrDuplicateInstance = errors.New("registry: duplicate instance")
	// ErrNotFound is returned when a name or instance id is unknown.
	ErrNotFound = errors.New("registry: not found")
	// ErrInvalidRecord is returned for records missing required fields.
	ErrInvalidRecord = errors.New("registry: invalid record")
)

// Registry is the contract every registry backend implements. Lists for an
// unknown name are empty, never an error.
type Registry interface {
	Register(record ServerRecord) error
	Unregister(name, id string) (ServerRecord, error)
	Get(name, id string) (ServerRecord, error)
	GetByID(id string) (ServerRecord, error)
	ListAll() []ServerRecord
	ListInstanceIDs(name string) []string
	ListInstances(name string) []ServerRecord
}

// Backend names accepted by New.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// New returns the registry implementation selected by kind. Only the
// in-process backend is implemented.
func New(kind string) (Registry, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendRedis:
		return nil, fmt.Errorf("registry: backend %q is not implemented", kind)
	default:
		return nil, fmt.Errorf("registry: unknown backend %q", kind)
	}
}
