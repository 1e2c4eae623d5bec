package capability

import (
	"context"

	"github.com/mcprelay/mcprelay/mcp"
	"github.com/mcprelay/mcprelay/request"
)

// HandleFunc is the function form of Tool.Handle.
type HandleFunc func(ctx context.Context, rc *request.Context, params map[string]any) (any, error)

// StreamFunc is the function form of StreamingTool.HandleStream.
type StreamFunc func(ctx context.Context, rc *request.Context, params map[string]any, emit EmitFunc) (any, error)

// ReadFunc is the function form of Resource.Read.
type ReadFunc func(ctx context.Context, rc *request.Context, params map[string]any) (any, error)

// PromptFunc is the function form of Prompt.GetPrompt.
type PromptFunc func(ctx context.Context, rc *request.Context, args map[string]any) (*mcp.PromptResult, error)

type funcTool struct {
	desc   mcp.Tool
	handle HandleFunc
	stream StreamFunc
}

func (t *funcTool) Name() string                    { return t.desc.Name }
func (t *funcTool) Description() string             { return t.desc.Description }
func (t *funcTool) Parameters() []mcp.ToolParameter { return t.desc.Parameters }
func (t *funcTool) Handle(ctx context.Context, rc *request.Context, params map[string]any) (any, error) {
	return t.handle(ctx, rc, params)
}

type funcStreamingTool struct{ funcTool }

func (t *funcStreamingTool) HandleStream(ctx context.Context, rc *request.Context, params map[string]any, emit EmitFunc) (any, error) {
	return t.stream(ctx, rc, params, emit)
}

// ToolFunc builds a Tool from a descriptor and a handle function.
func ToolFunc(desc mcp.Tool, handle HandleFunc) Tool {
	return &funcTool{desc: desc, handle: handle}
}

// StreamingToolFunc builds a StreamingTool from a descriptor, a handle
// function for non-streaming dispatch, and a stream function.
func StreamingToolFunc(desc mcp.Tool, handle HandleFunc, stream StreamFunc) StreamingTool {
	return &funcStreamingTool{funcTool{desc: desc, handle: handle, stream: stream}}
}

type funcResource struct {
	desc mcp.Resource
	read ReadFunc
}

func (r *funcResource) URI() string         { return r.desc.URI }
func (r *funcResource) Name() string        { return r.desc.Name }
func (r *funcResource) Description() string { return r.desc.Description }
func (r *funcResource) MimeType() string    { return r.desc.MimeType }
func (r *funcResource) Read(ctx context.Context, rc *request.Context, params map[string]any) (any, error) {
	return r.read(ctx, rc, params)
}

// ResourceFunc builds a Resource from a descriptor and a read function.
func ResourceFunc(desc mcp.Resource, read ReadFunc) Resource {
	return &funcResource{desc: desc, read: read}
}

type funcPrompt struct {
	desc mcp.Prompt
	get  PromptFunc
}

func (p *funcPrompt) Name() string                    { return p.desc.Name }
func (p *funcPrompt) Description() string             { return p.desc.Description }
func (p *funcPrompt) Arguments() []mcp.PromptArgument { return p.desc.Arguments }
func (p *funcPrompt) GetPrompt(ctx context.Context, rc *request.Context, args map[string]any) (*mcp.PromptResult, error) {
	return p.get(ctx, rc, args)
}

// PromptFn builds a Prompt from a descriptor and a get function.
func PromptFn(desc mcp.Prompt, get PromptFunc) Prompt {
	return &funcPrompt{desc: desc, get: get}
}
