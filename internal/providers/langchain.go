package providers

import (
	"context"

	"github.com/pkg/errors"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"
)

// maxOutputTokens is the largest completion the backends accept; requests
// above it are clamped rather than rejected.
const maxOutputTokens = 8192

// langchainClient is satisfied by *googleai.GoogleAI and *openai.LLM.
type langchainClient interface {
	llms.Model
	embeddings.EmbedderClient
}

// LangChain adapts a langchaingo backend to the Generator and Embedder
// capabilities.
type LangChain struct {
	model        llms.Model
	embedder     *embeddings.EmbedderImpl
	defaultModel string
}

var (
	_ Generator = (*LangChain)(nil)
	_ Embedder  = (*LangChain)(nil)
)

// NewGoogleAI builds a Gemini-backed provider.
func NewGoogleAI(ctx context.Context, apiKey, defaultModel, embeddingModel string) (*LangChain, error) {
	if apiKey == "" {
		return nil, errors.New("GOOGLE_API_KEY is required")
	}
	client, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(defaultModel),
		googleai.WithDefaultEmbeddingModel(embeddingModel),
	)
	if err != nil {
		return nil, errors.Wrap(err, "init googleai client")
	}
	return newLangChain(client, defaultModel)
}

// NewOpenAI builds an OpenAI-backed provider.
func NewOpenAI(apiKey, defaultModel, embeddingModel string) (*LangChain, error) {
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY is required")
	}
	client, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithModel(defaultModel),
		openai.WithEmbeddingModel(embeddingModel),
	)
	if err != nil {
		return nil, errors.Wrap(err, "init openai client")
	}
	return newLangChain(client, defaultModel)
}

func newLangChain(client langchainClient, defaultModel string) (*LangChain, error) {
	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, errors.Wrap(err, "init embedder")
	}
	return &LangChain{model: client, embedder: embedder, defaultModel: defaultModel}, nil
}

// Generate runs a single-turn completion.
func (lc *LangChain) Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	model := req.Model
	if model == "" {
		model = lc.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 || maxTokens > maxOutputTokens {
		maxTokens = maxOutputTokens
	}

	prompt := BuildPrompt(req)
	resp, err := lc.model.GenerateContent(ctx,
		[]llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)},
		llms.WithModel(model),
		llms.WithTemperature(req.Temperature),
		llms.WithMaxTokens(maxTokens),
	)
	if err != nil {
		return nil, errors.Wrap(err, "generate content")
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
		return nil, errors.New("no content generated")
	}

	choice := resp.Choices[0]
	return &GenerationResult{
		Text:  choice.Content,
		Model: model,
		Usage: usageFromInfo(choice.GenerationInfo, prompt, choice.Content),
	}, nil
}

func (lc *LangChain) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return lc.embedder.EmbedDocuments(ctx, texts)
}

func (lc *LangChain) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return lc.embedder.EmbedQuery(ctx, text)
}

// usageFromInfo normalizes backend token accounting; backends that report
// nothing get a word-count estimate.
func usageFromInfo(info map[string]any, prompt, completion string) map[string]int {
	usage := make(map[string]int)
	for out, in := range map[string]string{
		"prompt_tokens":     "PromptTokens",
		"completion_tokens": "CompletionTokens",
		"total_tokens":      "TotalTokens",
	} {
		if n, ok := asInt(info[in]); ok {
			usage[out] = n
		}
	}
	if len(usage) == 0 {
		p := EstimateTokens(prompt)
		c := EstimateTokens(completion)
		usage["prompt_tokens"] = p
		usage["completion_tokens"] = c
		usage["total_tokens"] = p + c
	}
	return usage
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
