// Package metrics keeps per-instance request counters and derives a health
// classification from them.
package metrics

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned by lookups for instances without a metrics record.
var ErrNotFound = errors.New("metrics: not found")

// HealthStatus is derived from request outcomes on every read.
type HealthStatus string

const (
	HealthUnknown   HealthStatus = "UNKNOWN"
	HealthHealthy   HealthStatus = "HEALTHY"
	HealthDegraded  HealthStatus = "DEGRADED"
	HealthUnhealthy HealthStatus = "UNHEALTHY"
)

const ewmaAlpha = 0.2

// Latency values are milliseconds.
type ServerMetrics struct {
	ServerID        string    `json:"serverId"`
	ServerName      string    `json:"serverName"`
	TotalRequests   int64     `json:"totalRequests"`
	SuccessRequests int64     `json:"successRequests"`
	FailedRequests  int64     `json:"failedRequests"`
	AvgLatency      float64   `json:"avgLatency"`
	MinLatency      float64   `json:"minLatency"`
	MaxLatency      float64   `json:"maxLatency"`
	RegisterTime    time.Time `json:"registerTime"`
	LastHeartbeat   time.Time `json:"lastHeartbeat"`
}

// SuccessRate is a percentage in [0, 100]; zero before the first request.
func (m ServerMetrics) SuccessRate() float64 {
	if m.TotalRequests == 0 {
		return 0
	}
	return float64(m.SuccessRequests) * 100 / float64(m.TotalRequests)
}

func (m ServerMetrics) FailureRate() float64 {
	if m.TotalRequests == 0 {
		return 0
	}
	return float64(m.FailedRequests) * 100 / float64(m.TotalRequests)
}

// Health classifies the snapshot. Thresholds are strict, so exactly 80% or
// 500ms still falls in the better band.
func (m ServerMetrics) Health() HealthStatus {
	if m.TotalRequests == 0 {
		return HealthUnknown
	}
	rate := m.SuccessRate()
	switch {
	case rate < 80 || m.AvgLatency > 500:
		return HealthUnhealthy
	case rate < 95 || m.AvgLatency > 200:
		return HealthDegraded
	default:
		return HealthHealthy
	}
}

// Uptime is the time elapsed since registration.
func (m ServerMetrics) Uptime(now time.Time) time.Duration {
	if m.RegisterTime.IsZero() || now.Before(m.RegisterTime) {
		return 0
	}
	return now.Sub(m.RegisterTime)
}

// FormatUptime renders d as "Xd Yh Zm", dropping leading zero units. A zero
// duration is "0s".
func FormatUptime(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs <= 0 {
		return "0s"
	}
	days := secs / 86400
	hours := (secs % 86400) / 3600
	minutes := (secs % 3600) / 60
	var b strings.Builder
	if days > 0 {
		fmt.Fprintf(&b, "%dd ", days)
	}
	if hours > 0 || days > 0 {
		fmt.Fprintf(&b, "%dh ", hours)
	}
	fmt.Fprintf(&b, "%dm", minutes)
	return b.String()
}

func (m ServerMetrics) observe(latencyMs float64, success bool, now time.Time) ServerMetrics {
	if m.TotalRequests == 0 {
		m.MinLatency, m.MaxLatency = latencyMs, latencyMs
		m.AvgLatency = latencyMs
	} else {
		m.MinLatency = min(m.MinLatency, latencyMs)
		m.MaxLatency = max(m.MaxLatency, latencyMs)
		m.AvgLatency = ewma(m.AvgLatency, latencyMs)
	}
	m.TotalRequests++
	if success {
		m.SuccessRequests++
	} else {
		m.FailedRequests++
	}
	m.LastHeartbeat = now
	return m
}

func ewma(prev, sample float64) float64 {
	return ewmaAlpha*sample + (1-ewmaAlpha)*prev
}

// Aggregator stores one immutable snapshot per instance id and replaces it
// with compare-and-swap, so updates for different instances never contend.
type Aggregator struct {
	records sync.Map // id -> *ServerMetrics
	now     func() time.Time
}

func NewAggregator() *Aggregator {
	return &Aggregator{now: time.Now}
}

// InitMetrics creates a zeroed record for id. An existing record is kept as is.
func (a *Aggregator) InitMetrics(name, id string) {
	now := a.now()
	a.records.LoadOrStore(id, &ServerMetrics{
		ServerID:      id,
		ServerName:    name,
		RegisterTime:  now,
		LastHeartbeat: now,
	})
}

// RecordRequest folds one completed call into id's record. It is a no-op
// when id has no record, which happens when an instance is unregistered
// while a call is in flight.
func (a *Aggregator) RecordRequest(id string, latency time.Duration, success bool) {
	latencyMs := float64(latency) / float64(time.Millisecond)
	for {
		cur, ok := a.records.Load(id)
		if !ok {
			return
		}
		prev := cur.(*ServerMetrics)
		next := prev.observe(latencyMs, success, a.now())
		if a.records.CompareAndSwap(id, prev, &next) {
			return
		}
	}
}

func (a *Aggregator) RemoveMetrics(id string) {
	a.records.Delete(id)
}

func (a *Aggregator) GetServerMetrics(id string) (ServerMetrics, bool) {
	cur, ok := a.records.Load(id)
	if !ok {
		return ServerMetrics{}, false
	}
	return *cur.(*ServerMetrics), true
}

// GetAllServerMetrics returns snapshots ordered by server name, then id.
func (a *Aggregator) GetAllServerMetrics() []ServerMetrics {
	all := []ServerMetrics{}
	a.records.Range(func(_, v any) bool {
		all = append(all, *v.(*ServerMetrics))
		return true
	})
	slices.SortFunc(all, func(x, y ServerMetrics) int {
		return cmp.Or(cmp.Compare(x.ServerName, y.ServerName), cmp.Compare(x.ServerID, y.ServerID))
	})
	return all
}
