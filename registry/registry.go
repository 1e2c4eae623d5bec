// Package registry maintains the process-wide catalog of tool, resource and
// prompt handlers. Registration validates the capability contract, preserves
// insertion order for listings, and lets the last registration of an
// identifier win. Discovery walks caller-supplied candidate units and admits
// both contract-satisfying and annotation-documented ones.
package registry

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/mcprelay/mcprelay/annotation"
	"github.com/mcprelay/mcprelay/capability"
	"github.com/mcprelay/mcprelay/mcp"
)

var (
	// ErrInvalidTool is returned when a unit does not satisfy the Tool
	// contract or yields an empty identifier.
	ErrInvalidTool = errors.New("invalid_tool")
	// ErrInvalidResource is the resource equivalent of ErrInvalidTool.
	ErrInvalidResource = errors.New("invalid_resource")
	// ErrInvalidPrompt is the prompt equivalent of ErrInvalidTool.
	ErrInvalidPrompt = errors.New("invalid_prompt")
)

// ToolEntry pairs a tool descriptor with its handler.
type ToolEntry struct {
	Descriptor mcp.Tool
	Handler    capability.Tool
}

// ResourceEntry pairs a resource descriptor with its handler.
type ResourceEntry struct {
	Descriptor mcp.Resource
	Handler    capability.Resource
}

// PromptEntry pairs a prompt descriptor with its handler.
type PromptEntry struct {
	Descriptor mcp.Prompt
	Handler    capability.Prompt
}

// Registry is the in-process catalog. All mutation serializes through one
// lock; reads return copied snapshots and never block writers for long.
type Registry struct {
	log *slog.Logger

	mu        sync.RWMutex
	tools     *orderedSet[ToolEntry]
	resources *orderedSet[ResourceEntry]
	prompts   *orderedSet[PromptEntry]
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for discovery warnings.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// New constructs an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		log:       slog.Default(),
		tools:     newOrderedSet[ToolEntry](),
		resources: newOrderedSet[ResourceEntry](),
		prompts:   newOrderedSet[PromptEntry](),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterTool validates and registers a tool handler. A duplicate name
// replaces the previous handler while keeping its position in listings.
func (r *Registry) RegisterTool(unit any) error {
	tool, ok := unit.(capability.Tool)
	if !ok {
		return ErrInvalidTool
	}
	desc, err := capability.DescribeTool(tool)
	if err != nil {
		return ErrInvalidTool
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools.put(desc.Name, ToolEntry{Descriptor: desc, Handler: tool})
	return nil
}

// RegisterResource validates and registers a resource handler, keyed by URI.
func (r *Registry) RegisterResource(unit any) error {
	res, ok := unit.(capability.Resource)
	if !ok {
		return ErrInvalidResource
	}
	desc, err := capability.DescribeResource(res)
	if err != nil {
		return ErrInvalidResource
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resources.put(desc.URI, ResourceEntry{Descriptor: desc, Handler: res})
	return nil
}

// RegisterPrompt validates and registers a prompt handler.
func (r *Registry) RegisterPrompt(unit any) error {
	prompt, ok := unit.(capability.Prompt)
	if !ok {
		return ErrInvalidPrompt
	}
	desc, err := capability.DescribePrompt(prompt)
	if err != nil {
		return ErrInvalidPrompt
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts.put(desc.Name, PromptEntry{Descriptor: desc, Handler: prompt})
	return nil
}

// RegisterAnnotated registers a unit under the identities declared by its
// parsed metadata. The unit must still provide the operation method of each
// declared kind; the metadata supplies names, descriptions and schemas.
func (r *Registry) RegisterAnnotated(unit any, meta *annotation.ComponentMeta) error {
	if meta == nil {
		return errors.New("nil metadata")
	}
	if meta.IsTool {
		tool, ok := unit.(capability.Tool)
		if !ok || meta.Name == "" {
			return ErrInvalidTool
		}
		desc := meta.ToolDescriptor()
		var handler capability.Tool
		if st, streams := unit.(capability.StreamingTool); streams {
			handler = capability.StreamingToolFunc(desc, st.Handle, st.HandleStream)
		} else {
			handler = capability.ToolFunc(desc, tool.Handle)
		}
		r.mu.Lock()
		r.tools.put(desc.Name, ToolEntry{Descriptor: desc, Handler: handler})
		r.mu.Unlock()
	}
	if meta.IsResource {
		res, ok := unit.(capability.Resource)
		if !ok || meta.URI == "" {
			return ErrInvalidResource
		}
		desc := meta.ResourceDescriptor()
		r.mu.Lock()
		r.resources.put(desc.URI, ResourceEntry{Descriptor: desc, Handler: capability.ResourceFunc(desc, res.Read)})
		r.mu.Unlock()
	}
	if meta.IsPrompt {
		prompt, ok := unit.(capability.Prompt)
		if !ok || meta.Name == "" {
			return ErrInvalidPrompt
		}
		desc := meta.PromptDescriptor()
		r.mu.Lock()
		r.prompts.put(desc.Name, PromptEntry{Descriptor: desc, Handler: capability.PromptFn(desc, prompt.GetPrompt)})
		r.mu.Unlock()
	}
	return nil
}

// Tools returns an insertion-ordered snapshot of registered tools.
func (r *Registry) Tools() []ToolEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools.values()
}

// Resources returns an insertion-ordered snapshot of registered resources.
func (r *Registry) Resources() []ResourceEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resources.values()
}

// Prompts returns an insertion-ordered snapshot of registered prompts.
func (r *Registry) Prompts() []PromptEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.prompts.values()
}

// orderedSet keeps insertion order under last-write-wins semantics: a
// replaced key keeps its original position.
type orderedSet[V any] struct {
	keys    []string
	entries map[string]V
}

func newOrderedSet[V any]() *orderedSet[V] {
	return &orderedSet[V]{entries: make(map[string]V)}
}

func (s *orderedSet[V]) put(key string, val V) {
	if _, exists := s.entries[key]; !exists {
		s.keys = append(s.keys, key)
	}
	s.entries[key] = val
}

func (s *orderedSet[V]) values() []V {
	out := make([]V, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, s.entries[k])
	}
	return out
}
