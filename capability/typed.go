package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/mcprelay/mcprelay/mcp"
	"github.com/mcprelay/mcprelay/request"
)

// TypedOption configures NewTool behavior.
type TypedOption func(*typedConfig)

type typedConfig struct {
	description  string
	allowUnknown bool
}

// WithDescription sets the tool description used in listings.
func WithDescription(desc string) TypedOption {
	return func(c *typedConfig) { c.description = desc }
}

// WithAllowUnknownFields permits params not declared on the argument struct.
// The default is strict decoding.
func WithAllowUnknownFields(allow bool) TypedOption {
	return func(c *typedConfig) { c.allowUnknown = allow }
}

// NewTool builds a Tool whose parameter schema is reflected from the typed
// argument struct A (json tags, jsonschema description/enum/default tags) and
// whose handler receives decoded arguments instead of a raw map. Unknown
// fields are rejected unless WithAllowUnknownFields is set.
func NewTool[A any](name string, fn func(ctx context.Context, rc *request.Context, args A) (any, error), opts ...TypedOption) Tool {
	cfg := typedConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	desc := mcp.Tool{
		Name:        name,
		Description: cfg.description,
		Parameters:  reflectParameters[A](),
	}
	return ToolFunc(desc, func(ctx context.Context, rc *request.Context, params map[string]any) (any, error) {
		args, err := decodeArgs[A](params, cfg.allowUnknown)
		if err != nil {
			return nil, InvalidParams(err.Error())
		}
		return fn(ctx, rc, args)
	})
}

// NewStreamingTool is NewTool for tools that also stream. The stream function
// is used when the transport flags the request as streaming; fn otherwise.
func NewStreamingTool[A any](
	name string,
	fn func(ctx context.Context, rc *request.Context, args A) (any, error),
	stream func(ctx context.Context, rc *request.Context, args A, emit EmitFunc) (any, error),
	opts ...TypedOption,
) StreamingTool {
	cfg := typedConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	desc := mcp.Tool{
		Name:        name,
		Description: cfg.description,
		Parameters:  reflectParameters[A](),
	}
	return StreamingToolFunc(desc,
		func(ctx context.Context, rc *request.Context, params map[string]any) (any, error) {
			args, err := decodeArgs[A](params, cfg.allowUnknown)
			if err != nil {
				return nil, InvalidParams(err.Error())
			}
			return fn(ctx, rc, args)
		},
		func(ctx context.Context, rc *request.Context, params map[string]any, emit EmitFunc) (any, error) {
			args, err := decodeArgs[A](params, cfg.allowUnknown)
			if err != nil {
				return nil, InvalidParams(err.Error())
			}
			return stream(ctx, rc, args, emit)
		})
}

func decodeArgs[A any](params map[string]any, allowUnknown bool) (A, error) {
	var args A
	if len(params) == 0 {
		return args, nil
	}
	b, err := json.Marshal(params)
	if err != nil {
		return args, fmt.Errorf("encode params: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	if !allowUnknown {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(&args); err != nil {
		return args, fmt.Errorf("invalid arguments: %w", err)
	}
	return args, nil
}

// reflectParameters reflects struct A into an ordered parameter list. Only
// object-shaped argument structs produce parameters; any other shape yields
// an empty list.
func reflectParameters[A any]() []mcp.ToolParameter {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	s := r.Reflect(new(A))
	if s == nil || s.Type != "object" || s.Properties == nil {
		return nil
	}

	required := make(map[string]bool, len(s.Required))
	for _, name := range s.Required {
		required[name] = true
	}

	params := make([]mcp.ToolParameter, 0, s.Properties.Len())
	for el := s.Properties.Oldest(); el != nil; el = el.Next() {
		prop := el.Value
		p := mcp.ToolParameter{
			Name:        el.Key,
			Type:        schemaType(prop),
			Description: prop.Description,
			Required:    required[el.Key],
		}
		if len(prop.Enum) > 0 {
			p.Enum = prop.Enum
		}
		if prop.Default != nil {
			p.Default = prop.Default
		}
		params = append(params, p)
	}
	return params
}

func schemaType(s *jsonschema.Schema) string {
	if s == nil || s.Type == "" {
		return "string"
	}
	// JSON-schema "integer" stays distinct from "number" in listings.
	return s.Type
}
