// Package config loads gateway settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// HTTP surface
	Addr        string
	MCPEnabled  bool
	MCPPath     string
	CORSOrigins []string
	RouterRPS   float64
	RouterBurst int

	// Core components
	Registry        string
	Strategy        string
	BalanceLists    bool
	HistoryCapacity int

	// Backend connections
	ClientName     string
	ConnectTimeout time.Duration
	CallTimeout    time.Duration
	LogJSONRPC     bool

	// Logging
	LogLevel  string
	LogFormat string

	// Event bus, disabled when NATSURL is empty
	NATSURL     string
	NATSSubject string
}

// envPaths are tried in order; the first readable file wins.
var envPaths = []string{".env", "../.env", "/app/.env"}

// Load reads a .env file if one exists, then the environment.
func Load() (*Config, error) {
	loaded := ""
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			loaded = path
			break
		}
	}
	if loaded != "" {
		slog.Debug("loaded config file", "path", loaded)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv without touching .env files.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		Addr:        get("GATEWAY_ADDR", ":8700"),
		MCPPath:     get("GATEWAY_MCP_PATH", "/mcp"),
		CORSOrigins: splitList(get("GATEWAY_CORS_ORIGINS", "")),
		Registry:    strings.ToLower(get("GATEWAY_REGISTRY", "memory")),
		Strategy:    strings.ToLower(get("GATEWAY_STRATEGY", "round_robin")),
		ClientName:  get("GATEWAY_CLIENT_NAME", "mcp-gateway"),
		LogLevel:    strings.ToLower(get("GATEWAY_LOG_LEVEL", "info")),
		LogFormat:   strings.ToLower(get("GATEWAY_LOG_FORMAT", "text")),
		NATSURL:     get("GATEWAY_NATS_URL", ""),
		NATSSubject: get("GATEWAY_NATS_SUBJECT", "mcpgateway.invocations"),
	}

	var err error
	if cfg.MCPEnabled, err = parseBool("GATEWAY_MCP_ENABLED", get("GATEWAY_MCP_ENABLED", "true")); err != nil {
		return nil, err
	}
	if cfg.BalanceLists, err = parseBool("GATEWAY_BALANCE_LISTS", get("GATEWAY_BALANCE_LISTS", "false")); err != nil {
		return nil, err
	}
	if cfg.LogJSONRPC, err = parseBool("GATEWAY_LOG_JSONRPC", get("GATEWAY_LOG_JSONRPC", "false")); err != nil {
		return nil, err
	}
	if cfg.ConnectTimeout, err = parseDuration("GATEWAY_CONNECT_TIMEOUT", get("GATEWAY_CONNECT_TIMEOUT", "30s")); err != nil {
		return nil, err
	}
	if cfg.CallTimeout, err = parseDuration("GATEWAY_CALL_TIMEOUT", get("GATEWAY_CALL_TIMEOUT", "30s")); err != nil {
		return nil, err
	}
	if cfg.HistoryCapacity, err = strconv.Atoi(get("GATEWAY_HISTORY_CAPACITY", "100")); err != nil {
		return nil, fmt.Errorf("invalid GATEWAY_HISTORY_CAPACITY: %w", err)
	}
	if cfg.RouterRPS, err = strconv.ParseFloat(get("GATEWAY_ROUTER_RPS", "0"), 64); err != nil {
		return nil, fmt.Errorf("invalid GATEWAY_ROUTER_RPS: %w", err)
	}
	if cfg.RouterBurst, err = strconv.Atoi(get("GATEWAY_ROUTER_BURST", "20")); err != nil {
		return nil, fmt.Errorf("invalid GATEWAY_ROUTER_BURST: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	required := map[string]string{
		"GATEWAY_ADDR":        c.Addr,
		"GATEWAY_REGISTRY":    c.Registry,
		"GATEWAY_STRATEGY":    c.Strategy,
		"GATEWAY_CLIENT_NAME": c.ClientName,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}
	if c.Registry != "memory" {
		return fmt.Errorf("GATEWAY_REGISTRY %q is not supported; only memory is implemented", c.Registry)
	}
	if c.ConnectTimeout < 100*time.Millisecond || c.CallTimeout < 100*time.Millisecond {
		return fmt.Errorf("GATEWAY_CONNECT_TIMEOUT and GATEWAY_CALL_TIMEOUT must be at least 100ms")
	}
	if c.HistoryCapacity <= 0 {
		return fmt.Errorf("GATEWAY_HISTORY_CAPACITY must be positive")
	}
	if c.RouterRPS < 0 || c.RouterBurst <= 0 {
		return fmt.Errorf("GATEWAY_ROUTER_RPS must be >= 0 and GATEWAY_ROUTER_BURST > 0")
	}
	if c.MCPEnabled && !strings.HasPrefix(c.MCPPath, "/") {
		return fmt.Errorf("GATEWAY_MCP_PATH must start with /")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("GATEWAY_LOG_FORMAT must be text or json")
	}
	return nil
}

// Level maps LogLevel onto slog levels, defaulting to info.
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseBool(key, raw string) (bool, error) {
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
