package providers

import (
	"context"
	"strings"
)

// Embedder turns text into fixed-dimension vectors. Implementations must
// return one vector per input, in input order.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// GenerationRequest carries everything the llm-engine node resolved from its
// config plus the accumulated document context.
type GenerationRequest struct {
	Prompt       string
	Context      string
	Model        string
	Temperature  float64
	MaxTokens    int
	CustomPrompt string
}

// GenerationResult is the normalized completion shape.
type GenerationResult struct {
	Text  string         `json:"text"`
	Model string         `json:"model"`
	Usage map[string]int `json:"usage"`
}

// Generator produces a natural-language completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error)
}

// WebResult is one organic search hit.
type WebResult struct {
	Title         string `json:"title"`
	Link          string `json:"link"`
	Snippet       string `json:"snippet"`
	DisplayedLink string `json:"displayed_link,omitempty"`
}

// WebSearcher retrieves current web snippets used to extend the prompt
// context before generation.
type WebSearcher interface {
	SearchWeb(ctx context.Context, query string, numResults int) ([]WebResult, error)
}

// knownModels are the generation models the workflow editor offers. Anything
// else falls back to the provider default rather than failing mid-run.
var knownModels = map[string]bool{
	"gemini-1.5-flash": true,
	"gemini-1.5-pro":   true,
	"gemini-2.0-flash": true,
	"gpt-4o":           true,
	"gpt-4o-mini":      true,
	"gpt-4-turbo":      true,
	"gpt-3.5-turbo":    true,
}

// ResolveModel maps a requested model name to a usable one: recognized names
// pass through, empty or unknown names resolve to fallback.
func ResolveModel(name, fallback string) string {
	if knownModels[name] {
		return name
	}
	return fallback
}

// BuildPrompt assembles the final prompt the same way for every backend: an
// assistant preamble, the optional context block, and the user question,
// with any custom prompt prefixed to the question.
func BuildPrompt(req GenerationRequest) string {
	question := req.Prompt
	if req.CustomPrompt != "" {
		question = req.CustomPrompt + "\n\nUser Question: " + req.Prompt
	}

	if req.Context != "" {
		return "You are a helpful AI assistant. Use the following context to answer.\n\n" +
			"Context:\n" + req.Context + "\n\nQuestion: " + question + "\n"
	}
	return "You are a helpful AI assistant.\n\nQuestion: " + question
}

// EstimateTokens is a rough word-count based token estimate, used when the
// backend does not report usage.
func EstimateTokens(text string) int {
	return int(float64(len(strings.Fields(text))) * 1.3)
}
