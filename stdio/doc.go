// Package stdio implements the line-framed stdio transport: one JSON-RPC
// message per line on the inbound reader, responses newline-terminated on
// the outbound writer. By default it binds to the process's own stdin and
// stdout; WithCommand instead spawns an external command and binds to its
// standard streams, stopping the transport when the command exits.
//
// A stdio transport serves exactly one client. Parse failures produce a
// -32700 error with a null id and never tear down the connection; the next
// line is processed normally. End of input terminates the transport cleanly.
package stdio
