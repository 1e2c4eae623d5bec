package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/mcprelay/mcprelay/capability"
	"github.com/mcprelay/mcprelay/engine"
	"github.com/mcprelay/mcprelay/internal/jsonrpc"
	"github.com/mcprelay/mcprelay/mcp"
	"github.com/mcprelay/mcprelay/registry"
	"github.com/mcprelay/mcprelay/request"
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	reg := registry.New()
	echo := capability.ToolFunc(mcp.Tool{Name: "echo"}, func(ctx context.Context, rc *request.Context, params map[string]any) (any, error) {
		return params["message"], nil
	})
	if err := reg.RegisterTool(echo); err != nil {
		t.Fatalf("register: %v", err)
	}
	tick := capability.StreamingToolFunc(mcp.Tool{Name: "tick"},
		func(ctx context.Context, rc *request.Context, params map[string]any) (any, error) {
			return "done", nil
		},
		func(ctx context.Context, rc *request.Context, params map[string]any, emit capability.EmitFunc) (any, error) {
			for i := 1; i <= 2; i++ {
				if err := emit(map[string]any{"tick": i}); err != nil {
					return nil, err
				}
			}
			return "done", nil
		})
	if err := reg.RegisterTool(tick); err != nil {
		t.Fatalf("register: %v", err)
	}
	return engine.New(reg, engine.WithServerInfo("stdio-test", "0.0.1"))
}

// run serves the given input lines and returns the decoded output lines once
// the transport sees EOF and finishes.
func run(t *testing.T, input string) []map[string]any {
	t.Helper()

	outR, outW := io.Pipe()
	tr := New(newTestEngine(t), WithStreams(strings.NewReader(input), outW))

	served := make(chan error, 1)
	go func() {
		err := tr.Serve(context.Background())
		outW.Close()
		served <- err
	}()

	var lines []map[string]any
	scanner := bufio.NewScanner(outR)
	for scanner.Scan() {
		var m map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			t.Fatalf("non-JSON output line %q: %v", scanner.Text(), err)
		}
		lines = append(lines, m)
	}

	select {
	case err := <-served:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("serve did not finish")
	}
	return lines
}

func TestParseErrorRecovery(t *testing.T) {
	input := `{invalid json
{"jsonrpc":"2.0","id":"1","method":"initialize","params":{}}
`
	lines := run(t, input)
	if len(lines) != 2 {
		t.Fatalf("want 2 output lines, got %d: %+v", len(lines), lines)
	}

	errObj := lines[0]["error"].(map[string]any)
	if code := errObj["code"].(float64); code != float64(jsonrpc.ErrorCodeParseError) {
		t.Fatalf("first line must be -32700: %+v", lines[0])
	}
	if id, present := lines[0]["id"]; !present || id != nil {
		t.Fatalf("parse error id must be null: %+v", lines[0])
	}

	if lines[1]["id"] != "1" {
		t.Fatalf("initialize response id: %+v", lines[1])
	}
	result := lines[1]["result"].(map[string]any)
	if result["protocolVersion"] != "2025-03-26" {
		t.Fatalf("initialize result: %+v", result)
	}
}

func TestRequestResponseFlow(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":"1","method":"initialize","params":{}}
{"jsonrpc":"2.0","id":"2","method":"tools/execute","params":{"id":"echo","params":{"message":"hi"}}}
`
	lines := run(t, input)
	if len(lines) != 2 {
		t.Fatalf("want 2 lines, got %+v", lines)
	}
	if lines[1]["result"] != "hi" {
		t.Fatalf("echo result: %+v", lines[1])
	}
}

func TestUninitializedGuardOverStdio(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":"1","method":"tools/list"}
`
	lines := run(t, input)
	if len(lines) != 1 {
		t.Fatalf("want 1 line, got %+v", lines)
	}
	errObj := lines[0]["error"].(map[string]any)
	if errObj["code"].(float64) != -32002 {
		t.Fatalf("want -32002: %+v", lines[0])
	}
}

func TestNotificationProducesNoOutput(t *testing.T) {
	input := `{"jsonrpc":"2.0","method":"progress","params":{"p":1}}
{"jsonrpc":"2.0","id":"1","method":"initialize","params":{}}
`
	lines := run(t, input)
	if len(lines) != 1 {
		t.Fatalf("notification must be silent: %+v", lines)
	}
	if lines[0]["id"] != "1" {
		t.Fatalf("unexpected line: %+v", lines[0])
	}
}

func TestStreamingOverStdio(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":"1","method":"initialize","params":{}}
{"jsonrpc":"2.0","id":"2","method":"tools/execute","params":{"id":"tick"}}
`
	lines := run(t, input)
	// initialize, ack, two progress notifications, terminal.
	if len(lines) != 5 {
		t.Fatalf("want 5 lines, got %d: %+v", len(lines), lines)
	}
	ack := lines[1]["result"].(map[string]any)
	if ack["status"] != "streaming_started" {
		t.Fatalf("ack: %+v", lines[1])
	}
	for i, line := range lines[2:4] {
		if line["method"] != "progress" {
			t.Fatalf("progress frame %d: %+v", i, line)
		}
	}
	terminal := lines[4]["result"].(map[string]any)
	if terminal["status"] != "complete" || terminal["data"] != "done" {
		t.Fatalf("terminal: %+v", lines[4])
	}
}

func TestCommandModeSpawnsProcess(t *testing.T) {
	// The child plays the MCP client: it emits one initialize request on its
	// stdout and exits. The transport's answer may hit a closed pipe, which
	// is logged, not fatal.
	tr := New(newTestEngine(t), WithCommand("sh", "-c",
		`printf '{"jsonrpc":"2.0","id":"1","method":"initialize","params":{}}\n'; exit 0`))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tr.Serve(ctx); err != nil {
		t.Fatalf("serve: %v", err)
	}
}

func TestCommandSpawnFailure(t *testing.T) {
	tr := New(newTestEngine(t), WithCommand("/nonexistent/binary"))
	if err := tr.Serve(context.Background()); err == nil {
		t.Fatalf("expected spawn failure")
	}
}
