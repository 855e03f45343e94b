package provider

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Client wraps the OpenAI client for chat completions and embeddings.
// Calls rely on the SDK's own timeout and retry defaults.
type Client struct {
	client *openai.Client
}

// NewClient creates a new OpenAI client. If apiKey is empty the OPENAI_API_KEY
// environment variable is used, and an error is returned when neither is set.
func NewClient(apiKey string, opts ...option.RequestOption) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	client := openai.NewClient(opts...)

	return &Client{client: &client}, nil
}

// Complete sends a chat-completion request and extracts the first choice's text
// together with the prompt, completion and cached-prompt token counts.
func (c *Client) Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(m.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    messages,
		MaxTokens:   openai.Int(int64(req.MaxTokens)),
		Temperature: openai.Float(req.Temperature),
	})
	if err != nil {
		return nil, &Error{Op: "chat completion", Err: err}
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, Errorf("chat completion", "response has no choices")
	}

	return &ChatResponse{
		Text: resp.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:       int(resp.Usage.PromptTokens),
			CompletionTokens:   int(resp.Usage.CompletionTokens),
			CachedPromptTokens: int(resp.Usage.PromptTokensDetails.CachedTokens),
		},
	}, nil
}

// CreateEmbeddings sends one embedding request for all inputs.
// Vectors are placed by the response's index field so the result is
// order-aligned with the inputs.
func (c *Client) CreateEmbeddings(ctx context.Context, req EmbeddingRequest) ([][]float32, error) {
	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: req.Inputs,
		},
		Model: openai.EmbeddingModel(req.Model),
	})
	if err != nil {
		return nil, &Error{Op: "create embeddings", Err: err}
	}
	if resp == nil || len(resp.Data) != len(req.Inputs) {
		got := 0
		if resp != nil {
			got = len(resp.Data)
		}
		return nil, Errorf("create embeddings", "got %d vectors for %d inputs", got, len(req.Inputs))
	}

	vectors := make([][]float32, len(req.Inputs))
	for _, data := range resp.Data {
		idx := int(data.Index)
		if idx < 0 || idx >= len(vectors) || vectors[idx] != nil {
			return nil, Errorf("create embeddings", "invalid or duplicate index %d", idx)
		}
		vectors[idx] = toFloat32(data.Embedding)
	}

	return vectors, nil
}

// toFloat32 converts []float64 to []float32.
// OpenAI API returns float64, but the index stores float32.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
