package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mcprelay/mcprelay/capability"
	"github.com/mcprelay/mcprelay/internal/jsonrpc"
	"github.com/mcprelay/mcprelay/internal/logctx"
	"github.com/mcprelay/mcprelay/mcp"
	"github.com/mcprelay/mcprelay/request"
)

// lookupParams is the shared parameter envelope of the get/execute methods:
// an identifier plus the payload forwarded to the handler.
type lookupParams struct {
	ID     string         `json:"id"`
	Params map[string]any `json:"params"`
}

func decodeLookup(raw json.RawMessage) (*lookupParams, error) {
	var p lookupParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
	}
	if p.ID == "" {
		return nil, fmt.Errorf("missing id")
	}
	return &p, nil
}

func (e *Engine) handleToolsList(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	records := make([]mcp.ToolRecord, 0, len(e.toolOrder))
	for _, name := range e.toolOrder {
		d := e.tools[name].Descriptor
		records = append(records, mcp.ToolRecord{ID: d.Name, Name: d.Name, Description: d.Description, Parameters: d.Parameters})
	}
	return mustResult(req.ID, map[string]any{"tools": records})
}

func (e *Engine) handleResourcesList(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	records := make([]mcp.ResourceRecord, 0, len(e.resOrder))
	for _, uri := range e.resOrder {
		d := e.resources[uri].Descriptor
		records = append(records, mcp.ResourceRecord{ID: d.URI, Name: d.Name, Description: d.Description, MimeType: d.MimeType})
	}
	return mustResult(req.ID, map[string]any{"resources": records})
}

func (e *Engine) handlePromptsList(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	records := make([]mcp.PromptRecord, 0, len(e.prmOrder))
	for _, name := range e.prmOrder {
		d := e.prompts[name].Descriptor
		records = append(records, mcp.PromptRecord{ID: d.Name, Name: d.Name, Description: d.Description, Arguments: d.Arguments})
	}
	return mustResult(req.ID, map[string]any{"prompts": records})
}

func (e *Engine) handleResourcesGet(ctx context.Context, req *jsonrpc.Request, rc *request.Context) *jsonrpc.Response {
	p, err := decodeLookup(req.Params)
	if err != nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params: "+err.Error(), nil)
	}
	entry, ok := e.resources[p.ID]
	if !ok {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "Resource not found: "+p.ID, nil)
	}
	ctx = logctx.WithCapabilityData(ctx, &logctx.CapabilityData{Kind: "resource", ID: p.ID})

	content, err := e.safeRead(ctx, entry.Handler, rc, p.Params)
	if err != nil {
		return handlerError(req.ID, err)
	}

	d := entry.Descriptor
	record := mcp.ResourceRecord{ID: d.URI, Name: d.Name, Description: d.Description, MimeType: d.MimeType, Content: contentString(content)}
	return mustResult(req.ID, record)
}

func (e *Engine) handlePromptsGet(ctx context.Context, req *jsonrpc.Request, rc *request.Context) *jsonrpc.Response {
	p, err := decodeLookup(req.Params)
	if err != nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params: "+err.Error(), nil)
	}
	entry, ok := e.prompts[p.ID]
	if !ok {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "Prompt not found: "+p.ID, nil)
	}
	ctx = logctx.WithCapabilityData(ctx, &logctx.CapabilityData{Kind: "prompt", ID: p.ID})

	result, err := e.safeGetPrompt(ctx, entry.Handler, rc, p.Params)
	if err != nil {
		return handlerError(req.ID, err)
	}
	return mustResult(req.ID, result)
}

func (e *Engine) handleToolsExecute(ctx context.Context, req *jsonrpc.Request, rc *request.Context) *jsonrpc.Response {
	p, err := decodeLookup(req.Params)
	if err != nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params: "+err.Error(), nil)
	}
	entry, ok := e.tools[p.ID]
	if !ok {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "Tool not found: "+p.ID, nil)
	}
	ctx = logctx.WithCapabilityData(ctx, &logctx.CapabilityData{Kind: "tool", ID: p.ID})

	if rc.Streaming() && rc.Conn() != nil {
		if st, streams := entry.Handler.(capability.StreamingTool); streams {
			return e.startStream(ctx, st.HandleStream, rc, p.Params, req.ID)
		}
	}

	result, err := e.safeHandle(ctx, entry.Handler, rc, p.Params)
	if err != nil {
		return handlerError(req.ID, err)
	}
	return mustResult(req.ID, result)
}

// safeHandle invokes a tool handler behind a panic boundary. A crashing
// handler yields an internal error, never a crashed engine.
func (e *Engine) safeHandle(ctx context.Context, h capability.Tool, rc *request.Context, params map[string]any) (result any, err error) {
	defer e.trapPanic(ctx, &err)
	return h.Handle(ctx, rc, params)
}

func (e *Engine) safeRead(ctx context.Context, h capability.Resource, rc *request.Context, params map[string]any) (result any, err error) {
	defer e.trapPanic(ctx, &err)
	return h.Read(ctx, rc, params)
}

func (e *Engine) safeGetPrompt(ctx context.Context, h capability.Prompt, rc *request.Context, args map[string]any) (result *mcp.PromptResult, err error) {
	defer e.trapPanic(ctx, &err)
	return h.GetPrompt(ctx, rc, args)
}

func (e *Engine) trapPanic(ctx context.Context, err *error) {
	if r := recover(); r != nil {
		e.log.ErrorContext(ctx, "engine.handler.panic", slog.Any("panic", r))
		*err = capability.Internalf("handler crashed")
	}
}

// handlerError maps a handler failure onto the wire error object.
func handlerError(id *jsonrpc.RequestID, err error) *jsonrpc.Response {
	ce := capability.AsError(err)
	switch ce.Kind {
	case capability.KindNotFound, capability.KindInvalidParams:
		return jsonrpc.NewErrorResponse(id, jsonrpc.ErrorCodeInvalidParams, ce.Error(), nil)
	default:
		return jsonrpc.NewErrorResponse(id, jsonrpc.ErrorCodeInternalError, ce.Error(), nil)
	}
}

func contentString(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case []byte:
		return string(c)
	default:
		b, err := json.Marshal(c)
		if err != nil {
			return fmt.Sprintf("%v", c)
		}
		return string(b)
	}
}

// mustResult wraps a value that is known to marshal; a failure still
// degrades to an internal error rather than a panic.
func mustResult(id *jsonrpc.RequestID, v any) *jsonrpc.Response {
	res, err := jsonrpc.NewResultResponse(id, v)
	if err != nil {
		return jsonrpc.NewErrorResponse(id, jsonrpc.ErrorCodeInternalError, "internal error", nil)
	}
	return res
}
