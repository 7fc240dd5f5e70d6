package http

import "github.com/fyrsmithlabs/llmsearch/internal/vectorstore"

// EmbeddingRequest is the body of POST /test/embed and the search
// endpoints.
type EmbeddingRequest struct {
	Texts []string `json:"texts"`
}

// EmbeddingResponse is the response body for POST /test/embed.
type EmbeddingResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// SearchResponse is the response body for the search endpoints.
type SearchResponse struct {
	Results []vectorstore.Record `json:"results"`
}

// HealthResponse is the response body for GET /test/health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
