package mcp

// ProtocolVersion is the protocol revision advertised by the initialize
// response.
const ProtocolVersion = "2025-03-26"

// Role indicates the author of a prompt message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ToolParameter describes one parameter of a tool. Order is significant and
// preserved from registration through listing.
type ToolParameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Enum        []any  `json:"enum,omitempty"`
	Default     any    `json:"default,omitempty"`
}

// Tool describes a callable tool.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  []ToolParameter `json:"parameters,omitempty"`
}

// Resource describes an addressable readable datum.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// PromptArgument describes one argument of a prompt template.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// Prompt describes a named message template.
type Prompt struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

// PromptMessage is one materialized message of a prompt.
type PromptMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// PromptResult is the body returned by prompts/get.
type PromptResult struct {
	Title    string          `json:"title,omitempty"`
	Messages []PromptMessage `json:"messages"`
}

// ClientCapabilities is the capability payload a client presents during
// initialize. The runtime stores it verbatim and exposes it to handlers via
// the request context; it does not interpret individual entries.
type ClientCapabilities map[string]any

// DynamicCapability marks a capability operation as served dynamically from
// the registry catalog.
type DynamicCapability struct {
	Dynamic bool `json:"dynamic"`
}

// ServerCapabilities is the capability payload advertised by initialize.
type ServerCapabilities struct {
	Resources map[string]DynamicCapability `json:"resources,omitempty"`
	Prompts   map[string]DynamicCapability `json:"prompts,omitempty"`
	Tools     map[string]DynamicCapability `json:"tools,omitempty"`
}

// DefaultServerCapabilities is the payload advertised when no handler module
// overrides initialize.
func DefaultServerCapabilities() ServerCapabilities {
	dyn := DynamicCapability{Dynamic: true}
	return ServerCapabilities{
		Resources: map[string]DynamicCapability{"listResources": dyn, "getResource": dyn},
		Prompts:   map[string]DynamicCapability{"listPrompts": dyn, "getPrompt": dyn},
		Tools:     map[string]DynamicCapability{"listTools": dyn, "executeTool": dyn},
	}
}

// ServerInfo identifies the server implementation in the initialize response.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult is the result payload of a successful initialize.
type InitializeResult struct {
	ServerInfo      ServerInfo         `json:"serverInfo"`
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
}

// ToolRecord is the list/lookup shape of a tool. The ID is the tool name.
type ToolRecord struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  []ToolParameter `json:"parameters,omitempty"`
}

// ResourceRecord is the list/lookup shape of a resource. The ID is the
// resource URI. Content is populated by resources/get only.
type ResourceRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
	Content     string `json:"content,omitempty"`
}

// PromptRecord is the list shape of a prompt. The ID is the prompt name.
type PromptRecord struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}
