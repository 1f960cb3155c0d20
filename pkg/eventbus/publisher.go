// Package eventbus mirrors invocation log entries onto NATS so external
// auditors can follow gateway traffic.
package eventbus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/vikashloomba/mcp-gateway-go/pkg/invocationlog"
)

// DefaultSubject is the subject prefix used when none is configured.
const DefaultSubject = "mcpgateway.invocations"

// drainTimeout bounds how long Close waits for pending messages to flush.
const drainTimeout = 5 * time.Second

type Publisher struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
	closed  chan struct{}
}

// NewPublisher connects to natsURL. The connection retries in the background
// so the gateway can start before the broker is reachable.
func NewPublisher(natsURL, subject string, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if subject == "" {
		subject = DefaultSubject
	}
	closed := make(chan struct{})
	conn, err := nats.Connect(natsURL,
		nats.Name("mcp-gateway"),
		nats.DrainTimeout(drainTimeout),
		nats.ClosedHandler(func(*nats.Conn) { close(closed) }),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("eventbus: connect %s: %w", natsURL, err)
	}
	logger.Info("event bus connected", "url", natsURL, "subject", subject)
	return &Publisher{conn: conn, subject: subject, logger: logger, closed: closed}, nil
}

// PublishInvocation sends entry as JSON to "<subject>.<source>".
func (p *Publisher) PublishInvocation(entry invocationlog.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("eventbus: encode %s: %w", entry.CallID, err)
	}
	if err := p.conn.Publish(Subject(p.subject, entry.Source), data); err != nil {
		return fmt.Errorf("eventbus: publish %s: %w", entry.CallID, err)
	}
	return nil
}

// Close flushes pending messages and blocks until the connection is closed.
func (p *Publisher) Close() {
	if p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
	select {
	case <-p.closed:
	case <-time.After(2 * drainTimeout):
		p.conn.Close()
	}
	p.logger.Info("event bus disconnected")
}

func (p *Publisher) IsConnected() bool {
	return p.conn != nil && p.conn.IsConnected()
}

// Subject builds the per-source subject, e.g. "mcpgateway.invocations.router".
func Subject(prefix string, source invocationlog.Source) string {
	prefix = strings.TrimSuffix(prefix, ".")
	if source == "" {
		return prefix
	}
	return prefix + "." + strings.ToLower(string(source))
}
