// Package engine implements the document operations exposed over MCP and
// HTTP: store, bulk store, semantic find, point retrieval, payload merge,
// deletion, and collection introspection.
//
// The engine validates and sanitizes inputs, routes each collection to its
// embedding model through the collection manager, and maps subsystem
// failures into a stable error taxonomy that transports translate into wire
// codes.
package engine
