package jsonrpc

import (
	"encoding/json"
	"testing"
)

func TestDecodeDiscriminatesMessageTypes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"request", `{"jsonrpc":"2.0","id":"1","method":"tools/list"}`, "request"},
		{"numeric id request", `{"jsonrpc":"2.0","id":7,"method":"tools/list"}`, "request"},
		{"notification", `{"jsonrpc":"2.0","method":"progress","params":{"p":1}}`, "notification"},
		{"response", `{"jsonrpc":"2.0","id":"1","result":{"ok":true}}`, "response"},
		{"error response", `{"jsonrpc":"2.0","id":"1","error":{"code":-32601,"message":"nope"}}`, "response"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := Decode([]byte(tc.raw))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got := msg.Type(); got != tc.want {
				t.Fatalf("type: want %q got %q", tc.want, got)
			}
		})
	}
}

func TestDecodeRejectsInvalidShapes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"wrong version", `{"jsonrpc":"1.0","id":"1","method":"x"}`},
		{"missing version", `{"id":"1","method":"x"}`},
		{"method with result", `{"jsonrpc":"2.0","id":"1","method":"x","result":{}}`},
		{"response with both", `{"jsonrpc":"2.0","id":"1","result":{},"error":{"code":1,"message":"m"}}`},
		{"neither method nor result", `{"jsonrpc":"2.0","id":"1"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode([]byte(tc.raw)); err == nil {
				t.Fatalf("expected decode error for %s", tc.raw)
			}
		})
	}
}

func TestParseDistinguishesParseAndInvalidRequest(t *testing.T) {
	msg, errRes := Parse([]byte(`{invalid json`))
	if msg != nil || errRes == nil {
		t.Fatalf("expected error response for invalid JSON")
	}
	if errRes.Error.Code != ErrorCodeParseError {
		t.Fatalf("want -32700, got %d", errRes.Error.Code)
	}
	if !errRes.ID.IsNil() {
		t.Fatalf("parse error must carry null id")
	}

	msg, errRes = Parse([]byte(`{"jsonrpc":"2.0","id":"1"}`))
	if msg != nil || errRes == nil {
		t.Fatalf("expected error response for invalid message")
	}
	if errRes.Error.Code != ErrorCodeInvalidRequest {
		t.Fatalf("want -32600, got %d", errRes.Error.Code)
	}

	msg, errRes = Parse([]byte(`{"jsonrpc":"2.0","id":"1","method":"initialize"}`))
	if msg == nil || errRes != nil {
		t.Fatalf("expected valid message, got error %+v", errRes)
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"string", `"abc"`},
		{"integer", `42`},
		{"float", `1.5`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var id RequestID
			if err := json.Unmarshal([]byte(tc.raw), &id); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			out, err := json.Marshal(&id)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(out) != tc.raw {
				t.Fatalf("round trip: want %s got %s", tc.raw, out)
			}
		})
	}

	var id RequestID
	if err := json.Unmarshal([]byte(`{"x":1}`), &id); err == nil {
		t.Fatalf("expected error for object id")
	}
}

func TestNilRequestID(t *testing.T) {
	var id *RequestID
	if !id.IsNil() {
		t.Fatalf("nil pointer must report nil")
	}
	if id.String() != "" {
		t.Fatalf("nil id renders empty")
	}
	if NewRequestID(struct{}{}).IsNil() != true {
		t.Fatalf("unsupported type must yield nil id")
	}
}

func TestNewResponses(t *testing.T) {
	res, err := NewResultResponse(NewRequestID("9"), map[string]int{"n": 3})
	if err != nil {
		t.Fatalf("result response: %v", err)
	}
	b, _ := json.Marshal(res)
	want := `{"jsonrpc":"2.0","result":{"n":3},"id":"9"}`
	if string(b) != want {
		t.Fatalf("want %s got %s", want, b)
	}

	errRes := NewErrorResponse(nil, ErrorCodeMethodNotFound, "Method not found: x", nil)
	b, _ = json.Marshal(errRes)
	want = `{"jsonrpc":"2.0","error":{"code":-32601,"message":"Method not found: x"},"id":null}`
	if string(b) != want {
		t.Fatalf("want %s got %s", want, b)
	}
}
