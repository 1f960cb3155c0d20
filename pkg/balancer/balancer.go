// Package balancer picks one backend instance per request.
package balancer

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync/atomic"

	"github.com/vikashloomba/mcp-gateway-go/pkg/registry"
)

// Strategy selects an instance from a caller-ordered list. Implementations
// must not reorder the list or perform I/O. Select reports false only for an
// empty list.
type Strategy interface {
	Select(instances []registry.ServerRecord) (registry.ServerRecord, bool)
	Name() string
}

// Strategy names accepted by New.
const (
	NameRoundRobin = "round_robin"
	NameRandom     = "random"
)

// New returns the strategy registered under name.
func New(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameRoundRobin, "roundrobin":
		return NewRoundRobin(), nil
	case NameRandom:
		return Random{}, nil
	default:
		return nil, fmt.Errorf("balancer: unknown strategy %q", name)
	}
}

// RoundRobin cycles through instances using one shared counter.
type RoundRobin struct {
	next atomic.Uint64
}

func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

// Select returns a single instance directly and leaves the counter alone.
// The counter is unsigned so wraparound never produces a negative index.
func (r *RoundRobin) Select(instances []registry.ServerRecord) (registry.ServerRecord, bool) {
	switch len(instances) {
	case 0:
		return registry.ServerRecord{}, false
	case 1:
		return instances[0], true
	}
	n := r.next.Add(1) - 1
	return instances[n%uint64(len(instances))], true
}

func (r *RoundRobin) Name() string { return NameRoundRobin }

// Random picks uniformly.
type Random struct{}

func (Random) Select(instances []registry.ServerRecord) (registry.ServerRecord, bool) {
	switch len(instances) {
	case 0:
		return registry.ServerRecord{}, false
	case 1:
		return instances[0], true
	}
	return instances[rand.IntN(len(instances))], true
}

func (Random) Name() string { return NameRandom }
