package mcp

import "strings"

// Method names accepted by the request engine. Every method is also accepted
// with the "mcp/" prefix; CanonicalMethod strips it.
const (
	InitializeMethod    = "initialize"
	ResourcesListMethod = "resources/list"
	ResourcesGetMethod  = "resources/get"
	PromptsListMethod   = "prompts/list"
	PromptsGetMethod    = "prompts/get"
	ToolsListMethod     = "tools/list"
	ToolsExecuteMethod  = "tools/execute"

	// ProgressMethod is the notification method used for streaming progress
	// frames sent from the server to the client.
	ProgressMethod = "progress"
)

// MethodPrefix is the optional namespace prefix accepted on every method.
const MethodPrefix = "mcp/"

// CanonicalMethod returns the bare form of a method name, stripping the
// optional "mcp/" prefix.
func CanonicalMethod(method string) string {
	return strings.TrimPrefix(method, MethodPrefix)
}
