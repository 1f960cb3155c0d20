// Package mcpgateway is the composition root of the gateway. It registers
// backend MCP servers, exposes them over a JSON REST API (registry, inspector,
// router and monitors), exports Prometheus metrics, and mirrors every logical
// service's tools and prompts on a single Streamable MCP endpoint whose calls
// are balanced across the service's instances.
package mcpgateway
