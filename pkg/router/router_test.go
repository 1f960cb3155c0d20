package router

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vikashloomba/mcp-gateway-go/pkg/invocationlog"
	"github.com/vikashloomba/mcp-gateway-go/pkg/mcpmgr"
	"github.com/vikashloomba/mcp-gateway-go/pkg/metrics"
	"github.com/vikashloomba/mcp-gateway-go/pkg/registry"
)

type whoArgs struct {
	Text string `json:"text"`
}

// newBackend answers every call with its own label so tests can see which
// replica served a request.
func newBackend(label string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: label, Version: "v0.0.1"}, nil)
	mcp.AddTool(server, &mcp.Tool{Name: "who"}, func(ctx context.Context, req *mcp.CallToolRequest, in whoArgs) (*mcp.CallToolResult, any, error) {
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: label}}}, nil, nil
	})
	mcp.AddTool(server, &mcp.Tool{Name: "broken"}, func(ctx context.Context, req *mcp.CallToolRequest, in whoArgs) (*mcp.CallToolResult, any, error) {
		return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{&mcp.TextContent{Text: "disk full"}}}, nil, nil
	})
	server.AddPrompt(&mcp.Prompt{Name: "greet"}, func(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return &mcp.GetPromptResult{Messages: []*mcp.PromptMessage{{Role: "user", Content: &mcp.TextContent{Text: label + " greets " + req.Params.Arguments["who"]}}}}, nil
	})
	server.AddResource(&mcp.Resource{URI: "file:///label", Name: "label"}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{{URI: req.Params.URI, Text: label}}}, nil
	})
	return server
}

type fixture struct {
	registry *registry.Memory
	manager  *mcpmgr.Manager
	metrics  *metrics.Aggregator
	history  *invocationlog.Store
	records  []registry.ServerRecord
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFixture registers and connects one instance per label under name.
func newFixture(t *testing.T, name string, labels ...string) *fixture {
	t.Helper()

	backends := map[string]*mcp.Server{}
	f := &fixture{
		registry: registry.NewMemory(),
		metrics:  metrics.NewAggregator(),
		history:  invocationlog.NewStore(100),
	}
	f.manager = mcpmgr.NewManager(&mcpmgr.Options{
		Logger: quietLogger(),
		TransportFactory: func(rec registry.ServerRecord) (mcp.Transport, error) {
			serverT, clientT := mcp.NewInMemoryTransports()
			if _, err := backends[rec.Endpoint].Connect(context.Background(), serverT, nil); err != nil {
				return nil, err
			}
			return clientT, nil
		},
	})
	t.Cleanup(func() { f.manager.Shutdown(context.Background()) })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, label := range labels {
		endpoint := "inmemory://" + label
		backends[endpoint] = newBackend(label)
		rec := registry.NewServerRecord(name, "", "1.0.0", registry.TransportStreamableHTTP, endpoint)
		if _, err := f.manager.Connect(ctx, rec); err != nil {
			t.Fatalf("Connect(%s): %v", label, err)
		}
		if err := f.registry.Register(rec); err != nil {
			t.Fatalf("Register(%s): %v", label, err)
		}
		f.metrics.InitMetrics(name, rec.ID)
		f.records = append(f.records, rec)
	}
	return f
}

func (f *fixture) options() *Options {
	return &Options{
		Registry:    f.registry,
		Connections: f.manager,
		Metrics:     f.metrics,
		History:     f.history,
		Logger:      quietLogger(),
	}
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatalf("empty tool result")
	}
	text, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content %T", res.Content[0])
	}
	return text.Text
}

func TestRouterBalancesCallsRoundRobin(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "weather", "a", "b", "c")
	r, err := NewRouter(f.options())
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	if r.StrategyName() != "round_robin" {
		t.Fatalf("default strategy = %s", r.StrategyName())
	}

	ctx := context.Background()
	var got []string
	for i := 0; i < 4; i++ {
		res, err := r.CallTool(ctx, "weather", "client-1", "who", map[string]any{"text": "x"})
		if err != nil {
			t.Fatalf("CallTool #%d: %v", i, err)
		}
		got = append(got, textOf(t, res))
	}
	if want := []string{"a", "b", "c", "a"}; !equal(got, want) {
		t.Fatalf("served by %v, want %v", got, want)
	}

	entries := f.history.GetAll()
	if len(entries) != 4 {
		t.Fatalf("history has %d entries", len(entries))
	}
	newest := entries[0]
	if newest.Source != invocationlog.SourceRouter || newest.OperationType != invocationlog.OpToolCall ||
		newest.TargetName != "who" || newest.ClientID != "client-1" || newest.ServerID != f.records[0].ID ||
		newest.Status != invocationlog.StatusSuccess || len(newest.Response) == 0 {
		t.Fatalf("unexpected newest entry: %+v", newest)
	}
	for _, rec := range f.records {
		m, _ := f.metrics.GetServerMetrics(rec.ID)
		if m.SuccessRequests == 0 {
			t.Fatalf("instance %s recorded no successes", rec.Endpoint)
		}
	}
}

func TestRouterListsUseFirstInstanceByDefault(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "weather", "a", "b")
	r, _ := NewRouter(f.options())
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		tools, err := r.ListTools(ctx, "weather", "")
		if err != nil || len(tools) != 2 {
			t.Fatalf("ListTools = %v, %v", tools, err)
		}
	}
	if _, err := r.ListPrompts(ctx, "weather", ""); err != nil {
		t.Fatalf("ListPrompts: %v", err)
	}
	if _, err := r.ListResources(ctx, "weather", ""); err != nil {
		t.Fatalf("ListResources: %v", err)
	}
	for _, e := range f.history.GetAll() {
		if e.ServerID != f.records[0].ID {
			t.Fatalf("list went to %s, want first instance", e.ServerID)
		}
	}
}

func TestRouterBalanceListOperations(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "weather", "a", "b")
	opts := f.options()
	opts.BalanceListOperations = true
	r, _ := NewRouter(opts)
	for i := 0; i < 2; i++ {
		if _, err := r.ListTools(context.Background(), "weather", ""); err != nil {
			t.Fatalf("ListTools: %v", err)
		}
	}
	entries := f.history.GetAll()
	if entries[0].ServerID == entries[1].ServerID {
		t.Fatalf("balanced lists hit the same instance twice")
	}
}

func TestRouterServiceNotFoundIsNotRecorded(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "weather", "a")
	r, _ := NewRouter(f.options())
	_, err := r.CallTool(context.Background(), "missing", "", "who", nil)
	if !errors.Is(err, ErrServiceNotFound) {
		t.Fatalf("error = %v, want ErrServiceNotFound", err)
	}
	if f.history.Size() != 0 {
		t.Fatalf("ServiceNotFound produced %d log entries", f.history.Size())
	}
}

func TestRouterNotConnectedIsRecordedAsFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "weather")
	orphan := registry.NewServerRecord("weather", "", "", registry.TransportStreamableHTTP, "inmemory://orphan")
	if err := f.registry.Register(orphan); err != nil {
		t.Fatalf("Register: %v", err)
	}
	f.metrics.InitMetrics("weather", orphan.ID)

	r, _ := NewRouter(f.options())
	_, err := r.CallTool(context.Background(), "weather", "", "who", nil)
	if !errors.Is(err, mcpmgr.ErrNotConnected) {
		t.Fatalf("error = %v, want ErrNotConnected", err)
	}
	m, _ := f.metrics.GetServerMetrics(orphan.ID)
	if m.FailedRequests != 1 {
		t.Fatalf("failed requests = %d", m.FailedRequests)
	}
	if e := f.history.GetAll(); len(e) != 1 || e[0].Status != invocationlog.StatusFailure || e[0].ErrorMessage == "" {
		t.Fatalf("history = %+v", e)
	}
}

func TestRouterBackendErrorsAreRecordedThenReturned(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "weather", "a")
	r, _ := NewRouter(f.options())
	ctx := context.Background()

	if _, err := r.CallTool(ctx, "weather", "", "no-such-tool", nil); err == nil {
		t.Fatalf("unknown tool should fail")
	}
	res, err := r.CallTool(ctx, "weather", "", "broken", map[string]any{"text": "x"})
	if err != nil {
		t.Fatalf("tool error result should not be a call error: %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected IsError result")
	}

	m, _ := f.metrics.GetServerMetrics(f.records[0].ID)
	if m.TotalRequests != 2 || m.FailedRequests != 2 {
		t.Fatalf("metrics = %+v", m)
	}
	entries := f.history.GetAll()
	if entries[0].ErrorMessage != "disk full" || entries[0].Status != invocationlog.StatusFailure {
		t.Fatalf("tool error entry = %+v", entries[0])
	}
	if entries[1].Status != invocationlog.StatusFailure || len(entries[1].Response) != 0 {
		t.Fatalf("protocol error entry = %+v", entries[1])
	}
}

func TestRouterPromptAndResource(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "weather", "a")
	r, _ := NewRouter(f.options())
	ctx := context.Background()

	prompt, err := r.GetPrompt(ctx, "weather", "", "greet", map[string]string{"who": "ann"})
	if err != nil {
		t.Fatalf("GetPrompt: %v", err)
	}
	if text := prompt.Messages[0].Content.(*mcp.TextContent).Text; text != "a greets ann" {
		t.Fatalf("prompt text = %q", text)
	}
	read, err := r.ReadResource(ctx, "weather", "", "file:///label")
	if err != nil || read.Contents[0].Text != "a" {
		t.Fatalf("ReadResource = %+v, %v", read, err)
	}
	entries := f.history.GetAll()
	if entries[0].OperationType != invocationlog.OpResourceRead || entries[0].TargetName != "file:///label" {
		t.Fatalf("resource entry = %+v", entries[0])
	}
	if entries[1].OperationType != invocationlog.OpPromptGet || entries[1].TargetName != "greet" {
		t.Fatalf("prompt entry = %+v", entries[1])
	}
}

type recordingPublisher struct {
	mu      sync.Mutex
	entries []invocationlog.Entry
	err     error
}

func (p *recordingPublisher) PublishInvocation(e invocationlog.Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, e)
	return p.err
}

func TestRouterPublishesEntries(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "weather", "a")
	pub := &recordingPublisher{err: errors.New("nats: connection closed")}
	opts := f.options()
	opts.Publisher = pub
	r, _ := NewRouter(opts)

	if _, err := r.CallTool(context.Background(), "weather", "c-9", "who", map[string]any{"text": "x"}); err != nil {
		t.Fatalf("publisher failure leaked into the call: %v", err)
	}
	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.entries) != 1 || pub.entries[0].ClientID != "c-9" {
		t.Fatalf("published = %+v", pub.entries)
	}
	if pub.entries[0].CallID != f.history.GetAll()[0].CallID {
		t.Fatalf("published entry differs from logged entry")
	}
}

func TestNewRouterRequiresCollaborators(t *testing.T) {
	t.Parallel()

	if _, err := NewRouter(nil); err == nil {
		t.Fatalf("NewRouter(nil) should fail")
	}
	if _, err := NewRouter(&Options{Registry: registry.NewMemory()}); err == nil {
		t.Fatalf("NewRouter without connections should fail")
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
