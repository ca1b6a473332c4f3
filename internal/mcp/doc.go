// Package mcp exposes the engine's document operations as MCP tools.
//
// The server registers nine qdrant_* tools over the official MCP Go SDK and
// runs on stdio or as a streamable HTTP handler. Engine errors surface as
// IsError tool results carrying a stable error code, so MCP clients can
// branch on failures without parsing messages.
package mcp
