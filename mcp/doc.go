// Package mcp contains the protocol data types shared across the registry,
// the request engine and the transports. It mirrors the wire representation
// of the Model Context Protocol while keeping the surface Go-friendly
// (exported structs with json tags, string constants for method names).
//
// The package is deliberately free of behavior; handlers, the registry and
// the engine all speak in these types but none of them owns them.
package mcp
