package registry

import (
	"log/slog"
	"strings"

	"github.com/mcprelay/mcprelay/annotation"
	"github.com/mcprelay/mcprelay/capability"
	"github.com/mcprelay/mcprelay/mcp"
)

// Candidate is one unit offered to Discover. Name is the unit's qualified
// identifier (typically its package-qualified type name) and is what the
// prefix filter applies to.
type Candidate struct {
	Name string
	Unit any
}

// DiscoveryResult lists the descriptors newly registered by one Discover
// call.
type DiscoveryResult struct {
	Tools     []mcp.Tool
	Resources []mcp.Resource
	Prompts   []mcp.Prompt
}

// Discover walks the candidate units, keeps those whose Name starts with
// prefix (all when prefix is empty), and registers every unit that either
// documents itself via annotations or satisfies a capability contract
// directly. Parse failures and contract mismatches are logged and skipped;
// they never abort the sweep.
func (r *Registry) Discover(prefix string, candidates []Candidate) DiscoveryResult {
	var result DiscoveryResult

	for _, c := range candidates {
		if prefix != "" && !strings.HasPrefix(c.Name, prefix) {
			continue
		}

		if doc, ok := c.Unit.(annotation.Documented); ok {
			meta, err := annotation.Parse(doc.MCPDoc())
			if err != nil {
				r.log.Warn("registry.discover.parse_fail",
					slog.String("unit", c.Name), slog.String("err", err.Error()))
				continue
			}
			if meta != nil {
				if err := r.RegisterAnnotated(c.Unit, meta); err != nil {
					r.log.Warn("registry.discover.register_fail",
						slog.String("unit", c.Name), slog.String("err", err.Error()))
					continue
				}
				if meta.IsTool {
					result.Tools = append(result.Tools, meta.ToolDescriptor())
				}
				if meta.IsResource {
					result.Resources = append(result.Resources, meta.ResourceDescriptor())
				}
				if meta.IsPrompt {
					result.Prompts = append(result.Prompts, meta.PromptDescriptor())
				}
				continue
			}
			// Annotation-free doc block: fall through to the contract path.
		}

		registered := false
		if tool, ok := c.Unit.(capability.Tool); ok {
			if desc, err := capability.DescribeTool(tool); err == nil {
				if r.RegisterTool(tool) == nil {
					result.Tools = append(result.Tools, desc)
					registered = true
				}
			}
		}
		if res, ok := c.Unit.(capability.Resource); ok {
			if desc, err := capability.DescribeResource(res); err == nil {
				if r.RegisterResource(res) == nil {
					result.Resources = append(result.Resources, desc)
					registered = true
				}
			}
		}
		if prompt, ok := c.Unit.(capability.Prompt); ok {
			if desc, err := capability.DescribePrompt(prompt); err == nil {
				if r.RegisterPrompt(prompt) == nil {
					result.Prompts = append(result.Prompts, desc)
					registered = true
				}
			}
		}
		if !registered {
			r.log.Debug("registry.discover.skip", slog.String("unit", c.Name))
		}
	}

	return result
}
