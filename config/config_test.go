package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.HTTP.Path != "/mcp" || cfg.HTTP.StreamPath != "/mcp/stream" {
		t.Fatalf("http defaults: %+v", cfg.HTTP)
	}
	if cfg.HTTP.SSEPath != "/sse" || cfg.HTTP.MessagePath != "/sse/message" {
		t.Fatalf("sse defaults: %+v", cfg.HTTP)
	}
	if cfg.Server.Name == "" || cfg.Server.Version == "" {
		t.Fatalf("server identity defaults: %+v", cfg.Server)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcp.yaml")
	doc := `server:
  name: docs-server
  version: 2.1.0
  module_prefix: app.
http:
  addr: ":9090"
  path: /rpc
stdio:
  command: cat
  args: ["-u"]
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Name != "docs-server" || cfg.Server.ModulePrefix != "app." {
		t.Fatalf("server: %+v", cfg.Server)
	}
	if cfg.HTTP.Addr != ":9090" || cfg.HTTP.Path != "/rpc" {
		t.Fatalf("http: %+v", cfg.HTTP)
	}
	// Unset keys keep their defaults.
	if cfg.HTTP.StreamPath != "/mcp/stream" {
		t.Fatalf("stream path default lost: %+v", cfg.HTTP)
	}
	if cfg.Stdio.Command != "cat" || len(cfg.Stdio.Args) != 1 {
		t.Fatalf("stdio: %+v", cfg.Stdio)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcp.yaml")
	if err := os.WriteFile(path, []byte("server:\n  name: from-file\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("MCP_SERVER_NAME", "from-env")
	t.Setenv("MCP_HTTP_ADDR", ":7070")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Name != "from-env" {
		t.Fatalf("env must override file: %+v", cfg.Server)
	}
	if cfg.HTTP.Addr != ":7070" {
		t.Fatalf("env addr: %+v", cfg.HTTP)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/mcp.yaml"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("MCP_MODULE_PREFIX", "tools.")
	cfg := FromEnv()
	if cfg.Server.ModulePrefix != "tools." {
		t.Fatalf("prefix: %+v", cfg.Server)
	}
}
