package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mcpgateway"

var healthLevels = []HealthStatus{HealthUnknown, HealthHealthy, HealthDegraded, HealthUnhealthy}

// Collector exposes an Aggregator to Prometheus. Values are read at scrape
// time, so health is always computed from the current snapshot.
type Collector struct {
	agg *Aggregator

	requests *prometheus.Desc
	avg      *prometheus.Desc
	min      *prometheus.Desc
	max      *prometheus.Desc
	health   *prometheus.Desc
	uptime   *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector(agg *Aggregator) *Collector {
	labels := []string{"server_id", "server_name"}
	return &Collector{
		agg: agg,
		requests: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "requests_total"),
			"Completed backend requests by outcome.",
			append(labels, "outcome"), nil,
		),
		avg: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "latency", "avg_milliseconds"),
			"Exponentially weighted average request latency.",
			labels, nil,
		),
		min: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "latency", "min_milliseconds"),
			"Fastest observed request latency.",
			labels, nil,
		),
		max: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "latency", "max_milliseconds"),
			"Slowest observed request latency.",
			labels, nil,
		),
		health: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "server_health"),
			"1 for the instance's current health status, 0 otherwise.",
			append(labels, "status"), nil,
		),
		uptime: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "server_uptime_seconds"),
			"Seconds since the instance was registered.",
			labels, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.requests
	ch <- c.avg
	ch <- c.min
	ch <- c.max
	ch <- c.health
	ch <- c.uptime
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	now := c.agg.now()
	for _, m := range c.agg.GetAllServerMetrics() {
		id, name := m.ServerID, m.ServerName
		ch <- prometheus.MustNewConstMetric(c.requests, prometheus.CounterValue, float64(m.SuccessRequests), id, name, "success")
		ch <- prometheus.MustNewConstMetric(c.requests, prometheus.CounterValue, float64(m.FailedRequests), id, name, "failure")
		ch <- prometheus.MustNewConstMetric(c.avg, prometheus.GaugeValue, m.AvgLatency, id, name)
		ch <- prometheus.MustNewConstMetric(c.min, prometheus.GaugeValue, m.MinLatency, id, name)
		ch <- prometheus.MustNewConstMetric(c.max, prometheus.GaugeValue, m.MaxLatency, id, name)
		ch <- prometheus.MustNewConstMetric(c.uptime, prometheus.GaugeValue, m.Uptime(now).Seconds(), id, name)
		current := m.Health()
		for _, level := range healthLevels {
			v := 0.0
			if level == current {
				v = 1
			}
			ch <- prometheus.MustNewConstMetric(c.health, prometheus.GaugeValue, v, id, name, string(level))
		}
	}
}
