// Package contextual generates the short situating context that is embedded
// alongside each chunk.
package contextual

import (
	"context"
	"fmt"
	"strings"

	"github.com/bull/contextual-rag/internal/provider"
	"github.com/bull/contextual-rag/internal/usage"
)

// Default generation settings.
const (
	DefaultModel       = "gpt-4o"
	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.0
)

const systemPrompt = "You will be given a document and a chunk from that document. " +
	"Your task is to provide a short succinct context to situate this chunk within the overall document " +
	"for the purposes of improving search retrieval of the chunk. " +
	"Answer only with the succinct context and nothing else."

const userPromptTemplate = `Document:
%s

Chunk to situate:
%s
`

// Config holds the completion parameters.
type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Generator produces situating context using a chat model.
type Generator struct {
	client   provider.ChatCompleter
	counters *usage.Counters
	config   Config
}

// NewGenerator creates a generator. Empty fields of cfg fall back to the
// defaults; counters may be nil when usage is not tracked.
func NewGenerator(client provider.ChatCompleter, counters *usage.Counters, cfg Config) *Generator {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	return &Generator{
		client:   client,
		counters: counters,
		config:   cfg,
	}
}

// Counters returns the usage accumulator updated by Generate.
func (g *Generator) Counters() *usage.Counters {
	return g.counters
}

// Generate situates chunk within document. Both texts are embedded in the
// user message verbatim. The call is not retried and identical pairs are not cached.
func (g *Generator) Generate(ctx context.Context, document, chunk string) (string, provider.Usage, error) {
	resp, err := g.client.Complete(ctx, provider.ChatRequest{
		Model: g.config.Model,
		Messages: []provider.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(document, chunk)},
		},
		MaxTokens:   g.config.MaxTokens,
		Temperature: g.config.Temperature,
	})
	if err != nil {
		return "", provider.Usage{}, fmt.Errorf("situate context: %w", err)
	}
	if resp == nil {
		return "", provider.Usage{}, provider.Errorf("situate context", "empty response")
	}

	// Tokens are billed even when the completion is unusable.
	if g.counters != nil {
		g.counters.Record(resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.CachedPromptTokens)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", resp.Usage, provider.Errorf("situate context", "empty completion")
	}

	return text, resp.Usage, nil
}

func buildUserPrompt(document, chunk string) string {
	return fmt.Sprintf(userPromptTemplate, document, chunk)
}
