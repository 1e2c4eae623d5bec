package streaminghttp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mcprelay/mcprelay/capability"
	"github.com/mcprelay/mcprelay/engine"
	"github.com/mcprelay/mcprelay/mcp"
	"github.com/mcprelay/mcprelay/registry"
	"github.com/mcprelay/mcprelay/request"
)

type calcArgs struct {
	Operation string  `json:"operation"`
	X         float64 `json:"x"`
	Y         float64 `json:"y,omitempty"`
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	reg := registry.New()

	calculate := capability.NewTool[calcArgs]("calculate", func(ctx context.Context, rc *request.Context, args calcArgs) (any, error) {
		switch args.Operation {
		case "add":
			return args.X + args.Y, nil
		case "divide":
			if args.Y == 0 {
				return nil, capability.Message("Cannot divide by zero")
			}
			return args.X / args.Y, nil
		}
		return nil, capability.InvalidParams("unknown operation")
	}, capability.WithDescription("Basic arithmetic"))
	if err := reg.RegisterTool(calculate); err != nil {
		t.Fatalf("register: %v", err)
	}

	counter := capability.StreamingToolFunc(mcp.Tool{Name: "counter"},
		func(ctx context.Context, rc *request.Context, params map[string]any) (any, error) {
			return map[string]any{"numbers": []int{1, 2, 3}}, nil
		},
		func(ctx context.Context, rc *request.Context, params map[string]any, emit capability.EmitFunc) (any, error) {
			count := 3
			if v, ok := params["count"].(float64); ok {
				count = int(v)
			}
			var numbers []int
			for i := 1; i <= count; i++ {
				numbers = append(numbers, i)
				progress := float64(int(float64(i)/float64(count)*10000)) / 100
				if err := emit(map[string]any{"status": "in_progress", "progress": progress, "numbers": numbers}); err != nil {
					return nil, err
				}
			}
			return map[string]any{"numbers": numbers}, nil
		})
	if err := reg.RegisterTool(counter); err != nil {
		t.Fatalf("register: %v", err)
	}

	eng := engine.New(reg, engine.WithServerInfo("http-test", "0.0.1"))
	return New(eng)
}

func postJSON(t *testing.T, srv *httptest.Server, clientID, accept, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/mcp", strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if clientID != "" {
		req.Header.Set("X-Client-Id", clientID)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	return res
}

func decodeBody(t *testing.T, res *http.Response) map[string]any {
	t.Helper()
	defer res.Body.Close()
	var m map[string]any
	if err := json.NewDecoder(res.Body).Decode(&m); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return m
}

func initializeClient(t *testing.T, srv *httptest.Server, clientID string) {
	t.Helper()
	res := postJSON(t, srv, clientID, "", `{"jsonrpc":"2.0","id":"init","method":"initialize","params":{}}`)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("initialize status: %d", res.StatusCode)
	}
	body := decodeBody(t, res)
	if body["error"] != nil {
		t.Fatalf("initialize error: %+v", body)
	}
}

func TestUnsupportedMediaType(t *testing.T) {
	srv := httptest.NewServer(newTestHandler(t))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/mcp", strings.NewReader("x=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if res.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("status: %d", res.StatusCode)
	}
	body := decodeBody(t, res)
	if code := body["error"].(map[string]any)["code"].(float64); code != -32001 {
		t.Fatalf("boundary code: %v", code)
	}
}

func TestParseErrorReturns400(t *testing.T) {
	srv := httptest.NewServer(newTestHandler(t))
	defer srv.Close()

	res := postJSON(t, srv, "c1", "", `{invalid json`)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status: %d", res.StatusCode)
	}
	body := decodeBody(t, res)
	if code := body["error"].(map[string]any)["code"].(float64); code != -32700 {
		t.Fatalf("code: %v", code)
	}
}

func TestEngineErrorTravelsAsHTTP200(t *testing.T) {
	srv := httptest.NewServer(newTestHandler(t))
	defer srv.Close()

	// Uninitialized guard: transport success, logical error.
	res := postJSON(t, srv, "c1", "", `{"jsonrpc":"2.0","id":"1","method":"tools/list"}`)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", res.StatusCode)
	}
	body := decodeBody(t, res)
	if code := body["error"].(map[string]any)["code"].(float64); code != -32002 {
		t.Fatalf("code: %v", code)
	}
}

func TestCalculatorRoundTrip(t *testing.T) {
	srv := httptest.NewServer(newTestHandler(t))
	defer srv.Close()
	initializeClient(t, srv, "c1")

	res := postJSON(t, srv, "c1", "",
		`{"jsonrpc":"2.0","id":"1","method":"tools/execute","params":{"id":"calculate","params":{"operation":"add","x":2,"y":3}}}`)
	body := decodeBody(t, res)
	if body["result"] != 5.0 {
		t.Fatalf("result: %+v", body)
	}

	res = postJSON(t, srv, "c1", "",
		`{"jsonrpc":"2.0","id":"2","method":"tools/execute","params":{"id":"calculate","params":{"operation":"divide","x":6,"y":0}}}`)
	body = decodeBody(t, res)
	errObj := body["error"].(map[string]any)
	if errObj["code"].(float64) != -32603 || errObj["message"] != "Cannot divide by zero" {
		t.Fatalf("divide error: %+v", body)
	}
}

func TestClientIDGeneratedAndEchoed(t *testing.T) {
	srv := httptest.NewServer(newTestHandler(t))
	defer srv.Close()

	res := postJSON(t, srv, "", "", `{"jsonrpc":"2.0","id":"1","method":"initialize","params":{}}`)
	defer res.Body.Close()
	if res.Header.Get("X-Client-Id") == "" {
		t.Fatalf("generated client id must be echoed")
	}
}

func TestNotificationAccepted(t *testing.T) {
	srv := httptest.NewServer(newTestHandler(t))
	defer srv.Close()

	res := postJSON(t, srv, "c1", "", `{"jsonrpc":"2.0","method":"progress","params":{"p":1}}`)
	defer res.Body.Close()
	if res.StatusCode != http.StatusAccepted {
		t.Fatalf("status: %d", res.StatusCode)
	}
}

func TestNDJSONStreamingSequence(t *testing.T) {
	srv := httptest.NewServer(newTestHandler(t))
	defer srv.Close()
	initializeClient(t, srv, "c1")

	res := postJSON(t, srv, "c1", "application/x-ndjson",
		`{"jsonrpc":"2.0","id":"1","method":"tools/execute","params":{"id":"counter","params":{"count":3,"delay_ms":0}}}`)
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("content type: %q", ct)
	}

	var lines []map[string]any
	scanner := bufio.NewScanner(res.Body)
	for scanner.Scan() {
		if len(bytes.TrimSpace(scanner.Bytes())) == 0 {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			t.Fatalf("bad line %q: %v", scanner.Text(), err)
		}
		lines = append(lines, m)
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		t.Fatalf("scan: %v", err)
	}

	if len(lines) != 5 {
		t.Fatalf("line count: %d (%+v)", len(lines), lines)
	}

	if lines[0]["id"] != "1" || lines[0]["result"].(map[string]any)["status"] != "streaming_started" {
		t.Fatalf("first line: %+v", lines[0])
	}

	wantProgress := []float64{33.33, 66.66, 100}
	for i, line := range lines[1:4] {
		if line["method"] != "progress" {
			t.Fatalf("line %d: %+v", i+1, line)
		}
		params := line["params"].(map[string]any)
		if params["status"] != "in_progress" || params["progress"].(float64) != wantProgress[i] {
			t.Fatalf("progress %d: %+v", i, params)
		}
		if n := len(params["numbers"].([]any)); n != i+1 {
			t.Fatalf("numbers at %d: %d", i, n)
		}
	}

	terminal := lines[4]
	if terminal["id"] != "1" {
		t.Fatalf("terminal id: %+v", terminal)
	}
	result := terminal["result"].(map[string]any)
	if result["status"] != "complete" {
		t.Fatalf("terminal: %+v", terminal)
	}
	if n := len(result["data"].(map[string]any)["numbers"].([]any)); n != 3 {
		t.Fatalf("terminal data: %+v", result)
	}
}

func TestNDJSONFallsThroughWithoutAccept(t *testing.T) {
	srv := httptest.NewServer(newTestHandler(t))
	defer srv.Close()
	initializeClient(t, srv, "c1")

	res := postJSON(t, srv, "c1", "",
		`{"jsonrpc":"2.0","id":"1","method":"tools/execute","params":{"id":"counter"}}`)
	if ct := res.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("content type: %q", ct)
	}
	body := decodeBody(t, res)
	result := body["result"].(map[string]any)
	if n := len(result["numbers"].([]any)); n != 3 {
		t.Fatalf("plain result: %+v", body)
	}
}

func TestNDJSONNonStreamingMethodFallsBack(t *testing.T) {
	srv := httptest.NewServer(newTestHandler(t))
	defer srv.Close()
	initializeClient(t, srv, "c1")

	// tools/list with an NDJSON Accept header stays single-response.
	res := postJSON(t, srv, "c1", "application/x-ndjson", `{"jsonrpc":"2.0","id":"1","method":"tools/list"}`)
	if ct := res.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("content type: %q", ct)
	}
	body := decodeBody(t, res)
	if body["error"] != nil {
		t.Fatalf("tools/list error: %+v", body)
	}
}

func TestBroadcastUnsupported(t *testing.T) {
	h := newTestHandler(t)
	if err := h.Broadcast([]byte("{}")); err == nil {
		t.Fatalf("broadcast must be unsupported")
	}
}
