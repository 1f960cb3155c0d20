package mcpmgr

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/vikashloomba/mcp-gateway-go/pkg/registry"
)

var (
	// ErrConnection wraps transport and handshake failures.
	ErrConnection = errors.New("mcpmgr: connection failed")
	// ErrUnsupportedTransport is returned for records the manager cannot dial.
	ErrUnsupportedTransport = errors.New("mcpmgr: unsupported transport")
	// ErrNotConnected is returned by GetClient when no session is cached.
	ErrNotConnected = errors.New("mcpmgr: not connected")
)

// ConnectionStatus represents the lifecycle of a managed connection.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
)

// Manager caches one Session per instance id.
type Manager struct {
	opts Options

	slots sync.Map // id -> *connSlot
}

// connSlot is the pending-or-ready handle for one id. done is closed once
// session or err is set; neither changes afterwards.
type connSlot struct {
	done    chan struct{}
	session *Session
	err     error
}

func (s *connSlot) wait(ctx context.Context) (*Session, error) {
	select {
	case <-s.done:
		return s.session, s.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *connSlot) ready() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func NewManager(opts *Options) *Manager {
	return &Manager{opts: opts.withDefaults()}
}

// Connect returns the cached session for rec.ID, dialing it first when no
// attempt exists. Concurrent callers for the same id share one handshake and
// observe the same session or the same error. A failed attempt is not cached.
func (m *Manager) Connect(ctx context.Context, rec registry.ServerRecord) (*Session, error) {
	if rec.ID == "" {
		return nil, fmt.Errorf("%w: server id is required", ErrConnection)
	}
	if !Supported(rec.Transport) {
		return nil, fmt.Errorf("%w: %s (supported: %v)", ErrUnsupportedTransport, rec.Transport, SupportedTransports())
	}
	slot := &connSlot{done: make(chan struct{})}
	actual, loaded := m.slots.LoadOrStore(rec.ID, slot)
	if !loaded {
		// The handshake outlives the first caller's cancellation because
		// other callers may be waiting on it.
		go m.establish(context.WithoutCancel(ctx), rec, slot)
	}
	return actual.(*connSlot).wait(ctx)
}

func (m *Manager) establish(ctx context.Context, rec registry.ServerRecord, slot *connSlot) {
	defer close(slot.done)
	session, err := m.open(ctx, rec)
	if err != nil {
		slot.err = err
		m.slots.CompareAndDelete(rec.ID, slot)
		m.opts.Logger.Warn("backend connect failed", "server", rec.ID, "name", rec.Name, "endpoint", rec.Endpoint, "error", err)
		return
	}
	slot.session = session
	m.opts.Logger.Info("backend connected", "server", rec.ID, "name", rec.Name, "endpoint", rec.Endpoint)
	go m.monitorSession(rec, slot)
}

func (m *Manager) open(ctx context.Context, rec registry.ServerRecord) (*Session, error) {
	factory := m.opts.TransportFactory
	if factory == nil {
		factory = m.streamableTransport
	}
	base, err := factory(rec)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnection, rec.Endpoint, err)
	}
	guard := &guardTransport{delegate: base}
	var transport mcp.Transport = guard
	if logger := m.rpcLogger(); logger != nil {
		transport = &loggingTransport{serverID: rec.ID, delegate: guard, logger: logger}
	}

	client := mcp.NewClient(&mcp.Implementation{
		Name:    m.opts.ClientName,
		Version: m.opts.ClientVersion,
	}, nil)
	connectCtx, cancel := context.WithTimeout(ctx, m.opts.ConnectTimeout)
	defer cancel()
	cs, err := client.Connect(connectCtx, transport, nil)
	if err != nil {
		guard.release()
		return nil, fmt.Errorf("%w: %s: %w", ErrConnection, rec.Endpoint, err)
	}
	return &Session{serverID: rec.ID, cs: cs, timeout: m.opts.CallTimeout}, nil
}

// monitorSession logs when a backend session ends on its own. The slot stays
// cached; recovery is an explicit unregister and register.
func (m *Manager) monitorSession(rec registry.ServerRecord, slot *connSlot) {
	err := slot.session.cs.Wait()
	if cur, ok := m.slots.Load(rec.ID); !ok || cur != slot {
		return
	}
	m.opts.Logger.Warn("backend session ended", "server", rec.ID, "name", rec.Name, "error", err)
}

// GetClient returns the cached session for id without dialing. A pending
// attempt is awaited.
func (m *Manager) GetClient(ctx context.Context, id string) (*Session, error) {
	v, ok := m.slots.Load(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotConnected, id)
	}
	session, err := v.(*connSlot).wait(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrNotConnected, id, err)
	}
	return session, nil
}

// Status reports whether id is connected, still connecting, or unknown.
func (m *Manager) Status(id string) ConnectionStatus {
	v, ok := m.slots.Load(id)
	if !ok {
		return StatusDisconnected
	}
	slot := v.(*connSlot)
	if !slot.ready() {
		return StatusConnecting
	}
	if slot.session == nil {
		return StatusDisconnected
	}
	return StatusConnected
}

// Disconnect drops the cached handle for id and closes it in the background.
// Close errors are logged and otherwise ignored.
func (m *Manager) Disconnect(id string) {
	v, ok := m.slots.LoadAndDelete(id)
	if !ok {
		return
	}
	go m.closeSlot(context.Background(), id, v.(*connSlot))
}

// Shutdown closes every cached handle and clears the cache. It returns once
// all closes finished or ctx is done.
func (m *Manager) Shutdown(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.CloseConcurrency)
	m.slots.Range(func(key, value any) bool {
		if !m.slots.CompareAndDelete(key, value) {
			return true
		}
		id, slot := key.(string), value.(*connSlot)
		g.Go(func() error {
			m.closeSlot(gctx, id, slot)
			return nil
		})
		return true
	})
	_ = g.Wait()
}

func (m *Manager) closeSlot(ctx context.Context, id string, slot *connSlot) {
	session, err := slot.wait(ctx)
	if err != nil || session == nil {
		return
	}
	if err := session.close(); err != nil {
		m.opts.Logger.Debug("backend close failed", "server", id, "error", err)
	}
}
