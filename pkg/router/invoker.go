// Package router issues protocol operations against backend instances and
// reports every outcome to the metrics aggregator and the invocation log.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vikashloomba/mcp-gateway-go/pkg/balancer"
	"github.com/vikashloomba/mcp-gateway-go/pkg/invocationlog"
	"github.com/vikashloomba/mcp-gateway-go/pkg/mcpmgr"
	"github.com/vikashloomba/mcp-gateway-go/pkg/metrics"
	"github.com/vikashloomba/mcp-gateway-go/pkg/registry"
)

// ErrServiceNotFound is returned when a logical name has no instances.
var ErrServiceNotFound = errors.New("router: service not found")

// Connections hands out borrowed backend sessions. *mcpmgr.Manager
// satisfies it.
type Connections interface {
	GetClient(ctx context.Context, id string) (*mcpmgr.Session, error)
}

// Publisher receives a copy of every invocation entry. Failures are logged
// and never fail the call.
type Publisher interface {
	PublishInvocation(entry invocationlog.Entry) error
}

// Options wires a Router or Inspector. Registry and Connections are required;
// the rest default to fresh in-memory components. Share one Metrics and
// History between a Router and an Inspector to get a single view.
type Options struct {
	Registry    registry.Registry
	Connections Connections
	Strategy    balancer.Strategy
	Metrics     *metrics.Aggregator
	History     *invocationlog.Store
	Publisher   Publisher
	// BalanceListOperations applies Strategy to list operations too. By
	// default lists go to the first registered instance.
	BalanceListOperations bool
	Logger                *slog.Logger
}

func (o *Options) withDefaults() (Options, error) {
	if o == nil {
		o = &Options{}
	}
	opts := *o
	if opts.Registry == nil {
		return Options{}, fmt.Errorf("router: registry is required")
	}
	if opts.Connections == nil {
		return Options{}, fmt.Errorf("router: connections are required")
	}
	if opts.Strategy == nil {
		opts.Strategy = balancer.NewRoundRobin()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewAggregator()
	}
	if opts.History == nil {
		opts.History = invocationlog.NewStore(invocationlog.DefaultCapacity)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return opts, nil
}

type invoker struct {
	conns     Connections
	metrics   *metrics.Aggregator
	history   *invocationlog.Store
	publisher Publisher
	logger    *slog.Logger
}

func newInvoker(opts Options) *invoker {
	return &invoker{
		conns:     opts.Connections,
		metrics:   opts.Metrics,
		history:   opts.History,
		publisher: opts.Publisher,
		logger:    opts.Logger,
	}
}

// call describes one attempt. start is taken before instance selection.
type call struct {
	source   invocationlog.Source
	op       invocationlog.OperationType
	serverID string
	target   string
	clientID string
	args     any
	start    time.Time
}

// run borrows the session for c.serverID, issues fn, and records the outcome
// before returning it. Lookup failures are recorded too.
func run[T any](ctx context.Context, inv *invoker, c call, fn func(context.Context, *mcpmgr.Session) (T, error)) (T, error) {
	var res T
	session, err := inv.conns.GetClient(ctx, c.serverID)
	if err == nil {
		res, err = fn(ctx, session)
	}
	inv.record(c, res, err)
	return res, err
}

func (inv *invoker) record(c call, result any, err error) {
	elapsed := time.Since(c.start)
	failure := err
	if failure == nil {
		if tr, ok := result.(*mcp.CallToolResult); ok && tr != nil && tr.IsError {
			failure = errors.New(toolErrorText(tr))
		}
	}

	entry := invocationlog.Entry{
		CallID:        invocationlog.NewCallID(),
		Source:        c.source,
		ServerID:      c.serverID,
		OperationType: c.op,
		TargetName:    c.target,
		Arguments:     c.args,
		Status:        invocationlog.StatusSuccess,
		DurationMs:    elapsed.Milliseconds(),
		Timestamp:     c.start,
		ClientID:      c.clientID,
	}
	if err == nil {
		if payload, mErr := json.Marshal(result); mErr == nil {
			entry.Response = payload
		}
	}
	if failure != nil {
		entry.Status = invocationlog.StatusFailure
		entry.ErrorMessage = failure.Error()
	}

	inv.metrics.RecordRequest(c.serverID, elapsed, failure == nil)
	inv.history.Add(entry)
	if inv.publisher != nil {
		if perr := inv.publisher.PublishInvocation(entry); perr != nil {
			inv.logger.Warn("publish invocation", "call", entry.CallID, "error", perr)
		}
	}
	if failure != nil {
		inv.logger.Warn("invocation failed", "source", c.source, "server", c.serverID, "op", c.op, "target", c.target, "error", failure)
	}
}

func toolErrorText(res *mcp.CallToolResult) string {
	var parts []string
	for _, content := range res.Content {
		if text, ok := content.(*mcp.TextContent); ok && text.Text != "" {
			parts = append(parts, text.Text)
		}
	}
	if len(parts) == 0 {
		return "tool reported an error"
	}
	return strings.Join(parts, "; ")
}

func isListOperation(op invocationlog.OperationType) bool {
	switch op {
	case invocationlog.OpToolList, invocationlog.OpResourceList, invocationlog.OpPromptList:
		return true
	}
	return false
}
