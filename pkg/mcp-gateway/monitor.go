package mcpgateway

import (
	"time"

	"github.com/vikashloomba/mcp-gateway-go/pkg/mcpmgr"
	"github.com/vikashloomba/mcp-gateway-go/pkg/metrics"
	"github.com/vikashloomba/mcp-gateway-go/pkg/registry"
)

const registerTimeLayout = "2006-01-02 15:04:05"

// MonitorSummary is one row of GET /monitors/summary.
type MonitorSummary struct {
	ServerID      string                  `json:"serverId"`
	ServerName    string                  `json:"serverName"`
	Description   string                  `json:"description"`
	Status        registry.Status         `json:"status"`
	Health        metrics.HealthStatus    `json:"healthStatus"`
	TransportType registry.TransportKind  `json:"transportType"`
	Endpoint      string                  `json:"endpoint"`
	Connection    mcpmgr.ConnectionStatus `json:"connectionStatus"`
	TotalRequests int64                   `json:"totalRequests"`
	AvgLatency    float64                 `json:"avgLatency"`
	UptimeSeconds int64                   `json:"uptime"`
	SuccessRate   float64                 `json:"successRate"`
}

// MonitorDetail is the body of GET /monitors/{id}/detail.
type MonitorDetail struct {
	ServerID        string                  `json:"serverId"`
	ServerName      string                  `json:"serverName"`
	Description     string                  `json:"description"`
	Version         string                  `json:"version"`
	Status          registry.Status         `json:"status"`
	Health          metrics.HealthStatus    `json:"healthStatus"`
	TransportType   registry.TransportKind  `json:"transportType"`
	Endpoint        string                  `json:"endpoint"`
	Connection      mcpmgr.ConnectionStatus `json:"connectionStatus"`
	TotalRequests   int64                   `json:"totalRequests"`
	SuccessRequests int64                   `json:"successRequests"`
	FailedRequests  int64                   `json:"failedRequests"`
	SuccessRate     float64                 `json:"successRate"`
	FailureRate     float64                 `json:"failureRate"`
	AvgLatency      float64                 `json:"avgLatency"`
	MinLatency      float64                 `json:"minLatency"`
	MaxLatency      float64                 `json:"maxLatency"`
	RegisterTime    string                  `json:"registerTime"`
	Uptime          string                  `json:"uptime"`
	LastHeartbeat   time.Time               `json:"lastHeartbeat"`
}

// MonitorSummaries merges every registry record with its metrics. Instances
// whose metrics are not yet initialized report zero counters.
func (g *Gateway) MonitorSummaries() []MonitorSummary {
	now := g.now()
	records := g.registry.ListAll()
	out := make([]MonitorSummary, 0, len(records))
	for _, rec := range records {
		m, _ := g.metrics.GetServerMetrics(rec.ID)
		out = append(out, MonitorSummary{
			ServerID:      rec.ID,
			ServerName:    rec.Name,
			Description:   rec.Description,
			Status:        rec.Status,
			Health:        m.Health(),
			TransportType: rec.Transport,
			Endpoint:      rec.Endpoint,
			Connection:    g.manager.Status(rec.ID),
			TotalRequests: m.TotalRequests,
			AvgLatency:    m.AvgLatency,
			UptimeSeconds: int64(m.Uptime(now) / time.Second),
			SuccessRate:   m.SuccessRate(),
		})
	}
	return out
}

func (g *Gateway) MonitorDetail(id string) (MonitorDetail, error) {
	rec, err := g.registry.GetByID(id)
	if err != nil {
		return MonitorDetail{}, err
	}
	m, ok := g.metrics.GetServerMetrics(id)
	if !ok {
		return MonitorDetail{}, metrics.ErrNotFound
	}
	return MonitorDetail{
		ServerID:        rec.ID,
		ServerName:      rec.Name,
		Description:     rec.Description,
		Version:         rec.Version,
		Status:          rec.Status,
		Health:          m.Health(),
		TransportType:   rec.Transport,
		Endpoint:        rec.Endpoint,
		Connection:      g.manager.Status(rec.ID),
		TotalRequests:   m.TotalRequests,
		SuccessRequests: m.SuccessRequests,
		FailedRequests:  m.FailedRequests,
		SuccessRate:     m.SuccessRate(),
		FailureRate:     m.FailureRate(),
		AvgLatency:      m.AvgLatency,
		MinLatency:      m.MinLatency,
		MaxLatency:      m.MaxLatency,
		RegisterTime:    m.RegisterTime.Format(registerTimeLayout),
		Uptime:          metrics.FormatUptime(m.Uptime(g.now())),
		LastHeartbeat:   m.LastHeartbeat,
	}, nil
}
