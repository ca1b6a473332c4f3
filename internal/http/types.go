// Package http provides the HTTP API for vectord.
package http

import "github.com/fyrsmithlabs/vectord/internal/engine"

// HealthResponse is the response body for GET /healthz and GET /readyz.
type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// CollectionsResponse is the response body for GET /api/v1/collections.
type CollectionsResponse struct {
	Collections []engine.CollectionSummary `json:"collections"`
	Count       int                        `json:"count"`
}

// ErrorResponse is the JSON error body, carrying the engine's stable error
// code alongside the message.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
