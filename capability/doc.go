// Package capability defines the behavioral contracts satisfied by
// user-supplied tool, resource and prompt handlers, plus helpers for building
// them: function adapters, typed argument binding via JSON-schema reflection,
// and the failure kinds the engine translates into JSON-RPC errors.
//
// A handler implements the operation method of its kind (a streaming tool
// adds HandleStream to Handle); identity members (name,
// description, schema) are optional and derived from the Go type when absent.
// Handlers receive everything they need through their arguments and must not
// hold engine state.
package capability
