// Package provider models the remote chat-completion and embedding endpoints
// and provides an OpenAI-backed implementation of both.
package provider

import "context"

// Message is a single chat message.
type Message struct {
	Role    string
	Content string
}

// ChatRequest is a chat-completion request.
type ChatRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Usage is the token accounting reported for one completion.
type Usage struct {
	PromptTokens       int
	CompletionTokens   int
	CachedPromptTokens int
}

// ChatResponse is the extracted text completion and its usage breakdown.
type ChatResponse struct {
	Text  string
	Usage Usage
}

// EmbeddingRequest is an embedding request for an ordered list of inputs.
type EmbeddingRequest struct {
	Model  string
	Inputs []string
}

// ChatCompleter issues chat-completion requests.
type ChatCompleter interface {
	Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// EmbeddingCreator issues embedding requests. The returned vectors are
// order-aligned with req.Inputs.
type EmbeddingCreator interface {
	CreateEmbeddings(ctx context.Context, req EmbeddingRequest) ([][]float32, error)
}
