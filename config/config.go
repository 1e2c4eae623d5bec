// Package config carries the runtime's static configuration: server
// identity and transport settings. Values load from a YAML file, with
// environment overrides applied through MCP_-prefixed variables.
package config

import (
	"fmt"
	"os"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// Server identifies the server implementation and the discovery prefix.
type Server struct {
	Name         string `yaml:"name" env:"MCP_SERVER_NAME"`
	Version      string `yaml:"version" env:"MCP_SERVER_VERSION"`
	ModulePrefix string `yaml:"module_prefix" env:"MCP_MODULE_PREFIX"`
}

// HTTP configures the HTTP-based transports.
type HTTP struct {
	Addr        string `yaml:"addr" env:"MCP_HTTP_ADDR"`
	Path        string `yaml:"path" env:"MCP_HTTP_PATH"`
	StreamPath  string `yaml:"stream_path" env:"MCP_HTTP_STREAM_PATH"`
	SSEPath     string `yaml:"sse_path" env:"MCP_SSE_PATH"`
	MessagePath string `yaml:"message_path" env:"MCP_SSE_MESSAGE_PATH"`
}

// Stdio configures the stdio transport's optional command mode.
type Stdio struct {
	Command string   `yaml:"command" env:"MCP_STDIO_COMMAND"`
	Args    []string `yaml:"args"`
}

// Config is the root configuration document.
type Config struct {
	Server Server `yaml:"server"`
	HTTP   HTTP   `yaml:"http"`
	Stdio  Stdio  `yaml:"stdio"`
}

// Default returns the documented defaults.
func Default() Config {
	return Config{
		Server: Server{Name: "mcprelay", Version: "0.1.0"},
		HTTP: HTTP{
			Addr:        ":8080",
			Path:        "/mcp",
			StreamPath:  "/mcp/stream",
			SSEPath:     "/sse",
			MessagePath: "/sse/message",
		},
	}
}

// Load reads a YAML configuration file over the defaults and then applies
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnv()
	return cfg, nil
}

// FromEnv returns the defaults with environment overrides applied.
func FromEnv() Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyEnv() {
	// Unset variables leave the current values alone; a struct with no set
	// variables is not an error worth surfacing.
	_ = envdecode.Decode(c)
}
