package capability

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/mcprelay/mcprelay/mcp"
	"github.com/mcprelay/mcprelay/request"
)

// EmitFunc delivers one progress payload from a streaming tool to the client.
// It returns an error once the connection is gone; the handler is expected to
// stop at that point.
type EmitFunc func(progress any) error

// Tool is the contract of an executable tool handler.
type Tool interface {
	Handle(ctx context.Context, rc *request.Context, params map[string]any) (any, error)
}

// StreamingTool is a Tool that can additionally stream progress. The engine
// prefers HandleStream when the transport flags the request as streaming.
type StreamingTool interface {
	Tool
	HandleStream(ctx context.Context, rc *request.Context, params map[string]any, emit EmitFunc) (any, error)
}

// Resource is the contract of a readable resource handler. Read returns a
// string or []byte.
type Resource interface {
	Read(ctx context.Context, rc *request.Context, params map[string]any) (any, error)
}

// Prompt is the contract of a prompt template handler.
type Prompt interface {
	GetPrompt(ctx context.Context, rc *request.Context, args map[string]any) (*mcp.PromptResult, error)
}

// Optional identity interfaces. A handler that omits one gets the derived
// default documented on each Describe function.
type (
	// Named supplies an explicit identifier.
	Named interface{ Name() string }
	// Described supplies an explicit description.
	Described interface{ Description() string }
	// Parameterized supplies an ordered tool parameter schema.
	Parameterized interface{ Parameters() []mcp.ToolParameter }
	// Addressable supplies a resource URI.
	Addressable interface{ URI() string }
	// MimeTyped supplies a resource MIME type.
	MimeTyped interface{ MimeType() string }
	// Argumented supplies an ordered prompt argument schema.
	Argumented interface{ Arguments() []mcp.PromptArgument }
)

// DescribeTool builds the registry descriptor for a tool handler. The name
// defaults to the kebab-cased type name, the description to "Tool implemented
// by <T>", and the parameter list to empty.
func DescribeTool(unit Tool) (mcp.Tool, error) {
	name := identifier(unit)
	if name == "" {
		return mcp.Tool{}, fmt.Errorf("tool has no derivable name: %T", unit)
	}
	desc := description(unit, "Tool")
	var params []mcp.ToolParameter
	if p, ok := unit.(Parameterized); ok {
		params = p.Parameters()
	}
	return mcp.Tool{Name: name, Description: desc, Parameters: params}, nil
}

// DescribeResource builds the registry descriptor for a resource handler.
// The URI must come from Addressable; name falls back to the kebab-cased type
// name and the MIME type to text/plain.
func DescribeResource(unit Resource) (mcp.Resource, error) {
	var uri string
	if a, ok := unit.(Addressable); ok {
		uri = a.URI()
	}
	if uri == "" {
		return mcp.Resource{}, fmt.Errorf("resource has no URI: %T", unit)
	}
	name := identifier(unit)
	mimeType := "text/plain"
	if m, ok := unit.(MimeTyped); ok && m.MimeType() != "" {
		mimeType = m.MimeType()
	}
	return mcp.Resource{URI: uri, Name: name, Description: description(unit, "Resource"), MimeType: mimeType}, nil
}

// DescribePrompt builds the registry descriptor for a prompt handler.
func DescribePrompt(unit Prompt) (mcp.Prompt, error) {
	name := identifier(unit)
	if name == "" {
		return mcp.Prompt{}, fmt.Errorf("prompt has no derivable name: %T", unit)
	}
	var args []mcp.PromptArgument
	if a, ok := unit.(Argumented); ok {
		args = a.Arguments()
	}
	return mcp.Prompt{Name: name, Description: description(unit, "Prompt"), Arguments: args}, nil
}

// identifier and description treat an implemented identity interface as
// authoritative, even when it answers empty; derivation from the Go type is
// only for units that omit the member entirely.
func identifier(unit any) string {
	if n, ok := unit.(Named); ok {
		return n.Name()
	}
	return KebabCase(typeName(unit))
}

func description(unit any, kind string) string {
	if d, ok := unit.(Described); ok {
		return d.Description()
	}
	if tn := typeName(unit); tn != "" {
		return fmt.Sprintf("%s implemented by %s", kind, tn)
	}
	return ""
}

func typeName(unit any) string {
	t := reflect.TypeOf(unit)
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

// KebabCase converts a Go identifier to kebab-case. Acronym runs stay
// together: "HTTPTool" becomes "http-tool".
func KebabCase(name string) string {
	if name == "" {
		return ""
	}
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if i > 0 && (prevLower || nextLower) {
				b.WriteRune('-')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
