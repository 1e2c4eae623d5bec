// Package annotation extracts MCP metadata from structured documentation
// blocks attached to handler units. The grammar is line-based: annotation
// lines begin with an @mcp_ keyword, everything before the first blank line
// (annotation lines aside) is the description.
//
// This is the legacy discovery path. Units opt in by implementing Documented
// and exporting their doc block; the registry parses it during discovery.
package annotation

import (
	"fmt"
	"strings"

	"github.com/mcprelay/mcprelay/mcp"
)

// Documented is the opt-in marker for annotation-based discovery.
type Documented interface {
	MCPDoc() string
}

// Param is a declared tool parameter. Extra preserves option keys the
// grammar does not recognize.
type Param struct {
	Name        string
	Type        string
	Description string
	Required    bool
	Enum        []any
	Default     any
	Extra       map[string]any
}

// ToolParameter converts the declaration to its wire shape.
func (p Param) ToolParameter() mcp.ToolParameter {
	return mcp.ToolParameter{
		Name:        p.Name,
		Type:        p.Type,
		Description: p.Description,
		Required:    p.Required,
		Enum:        p.Enum,
		Default:     p.Default,
	}
}

// Arg is a declared prompt argument.
type Arg struct {
	Name        string
	Description string
	Required    bool
	Extra       map[string]any
}

// PromptArgument converts the declaration to its wire shape.
func (a Arg) PromptArgument() mcp.PromptArgument {
	return mcp.PromptArgument{Name: a.Name, Description: a.Description, Required: a.Required}
}

// ComponentMeta is the metadata record produced for one documented unit.
type ComponentMeta struct {
	Name        string // tool or prompt name
	URI         string // resource uri
	Description string
	MimeType    string
	Parameters  []Param
	Arguments   []Arg

	IsTool     bool
	IsResource bool
	IsPrompt   bool
}

// ToolDescriptor builds the tool wire descriptor from the metadata.
func (m *ComponentMeta) ToolDescriptor() mcp.Tool {
	params := make([]mcp.ToolParameter, 0, len(m.Parameters))
	for _, p := range m.Parameters {
		params = append(params, p.ToolParameter())
	}
	return mcp.Tool{Name: m.Name, Description: m.Description, Parameters: params}
}

// ResourceDescriptor builds the resource wire descriptor from the metadata.
func (m *ComponentMeta) ResourceDescriptor() mcp.Resource {
	name := m.Name
	if name == "" {
		// Derive a display name from the URI tail.
		if i := strings.LastIndexAny(m.URI, "/:"); i >= 0 && i+1 < len(m.URI) {
			name = m.URI[i+1:]
		} else {
			name = m.URI
		}
	}
	return mcp.Resource{URI: m.URI, Name: name, Description: m.Description, MimeType: m.MimeType}
}

// PromptDescriptor builds the prompt wire descriptor from the metadata.
func (m *ComponentMeta) PromptDescriptor() mcp.Prompt {
	args := make([]mcp.PromptArgument, 0, len(m.Arguments))
	for _, a := range m.Arguments {
		args = append(args, a.PromptArgument())
	}
	return mcp.Prompt{Name: m.Name, Description: m.Description, Arguments: args}
}

// Parse extracts the metadata record from a documentation block. An empty or
// annotation-free block yields (nil, nil): the unit is simply not discovered.
// Malformed annotation lines yield an error; callers log and skip the unit.
func Parse(doc string) (*ComponentMeta, error) {
	if strings.TrimSpace(doc) == "" {
		return nil, nil
	}

	meta := &ComponentMeta{}
	var descLines []string
	descDone := false

	for lineNo, line := range strings.Split(doc, "\n") {
		trimmed := strings.TrimSpace(line)

		if !strings.HasPrefix(trimmed, "@mcp_") {
			if trimmed == "" {
				if len(descLines) > 0 {
					descDone = true
				}
				continue
			}
			if !descDone {
				descLines = append(descLines, trimmed)
			}
			continue
		}

		keyword, rest, _ := strings.Cut(trimmed, " ")
		rest = strings.TrimSpace(rest)

		var err error
		switch keyword {
		case "@mcp_tool":
			meta.IsTool = true
			if rest == "" {
				err = fmt.Errorf("missing tool name")
			} else {
				meta.Name = firstField(rest)
			}
		case "@mcp_resource":
			meta.IsResource = true
			if rest == "" {
				err = fmt.Errorf("missing resource uri")
			} else {
				meta.URI = firstField(rest)
			}
		case "@mcp_prompt":
			meta.IsPrompt = true
			if rest == "" {
				err = fmt.Errorf("missing prompt name")
			} else {
				meta.Name = firstField(rest)
			}
		case "@mcp_mime_type":
			if rest == "" {
				err = fmt.Errorf("missing mime type")
			} else {
				meta.MimeType = firstField(rest)
			}
		case "@mcp_param":
			var p Param
			p, err = parseParam(rest)
			if err == nil {
				meta.Parameters = append(meta.Parameters, p)
			}
		case "@mcp_arg":
			var a Arg
			a, err = parseArg(rest)
			if err == nil {
				meta.Arguments = append(meta.Arguments, a)
			}
		default:
			// Unknown @mcp_ keywords are tolerated so newer annotations do
			// not break older runtimes.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("line %d (%s): %w", lineNo+1, keyword, err)
		}
	}

	if !meta.IsTool && !meta.IsResource && !meta.IsPrompt {
		return nil, nil
	}
	meta.Description = strings.Join(descLines, " ")
	return meta, nil
}

func firstField(s string) string {
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i]
	}
	return s
}

// parseParam parses "<name> <Type> [k: v, ...]".
func parseParam(rest string) (Param, error) {
	name, rest, ok := cutField(rest)
	if !ok {
		return Param{}, fmt.Errorf("missing parameter name")
	}
	typ, rest, ok := cutField(rest)
	if !ok {
		return Param{}, fmt.Errorf("parameter %q: missing type", name)
	}

	p := Param{Name: name, Type: strings.ToLower(typ)}
	opts, err := parseOptions(rest)
	if err != nil {
		return Param{}, fmt.Errorf("parameter %q: %w", name, err)
	}
	for key, val := range opts {
		switch key {
		case "description":
			p.Description, _ = val.(string)
		case "required":
			p.Required, _ = val.(bool)
		case "enum":
			p.Enum, _ = val.([]any)
		case "default":
			p.Default = val
		default:
			if p.Extra == nil {
				p.Extra = make(map[string]any)
			}
			p.Extra[key] = val
		}
	}
	return p, nil
}

// parseArg parses "<name> [k: v, ...]".
func parseArg(rest string) (Arg, error) {
	name, rest, ok := cutField(rest)
	if !ok {
		return Arg{}, fmt.Errorf("missing argument name")
	}
	a := Arg{Name: name}
	opts, err := parseOptions(rest)
	if err != nil {
		return Arg{}, fmt.Errorf("argument %q: %w", name, err)
	}
	for key, val := range opts {
		switch key {
		case "description":
			a.Description, _ = val.(string)
		case "required":
			a.Required, _ = val.(bool)
		default:
			if a.Extra == nil {
				a.Extra = make(map[string]any)
			}
			a.Extra[key] = val
		}
	}
	return a, nil
}

func cutField(s string) (field, rest string, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", "", false
	}
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i], strings.TrimSpace(s[i:]), true
	}
	return s, "", true
}
