package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type fakeBackend struct {
	response *llms.ContentResponse
	err      error
	lastOpts llms.CallOptions
	prompt   string
}

func (f *fakeBackend) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	for _, o := range options {
		o(&f.lastOpts)
	}
	if len(messages) == 1 && len(messages[0].Parts) == 1 {
		if part, ok := messages[0].Parts[0].(llms.TextContent); ok {
			f.prompt = part.Text
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func (f *fakeBackend) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	resp, err := f.GenerateContent(ctx, []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)}, options...)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

func (f *fakeBackend) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2, 3}
	}
	return out, nil
}

func TestGenerateResolvesOptions(t *testing.T) {
	backend := &fakeBackend{response: &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: "hello"}},
	}}
	lc, err := newLangChain(backend, "default-model")
	require.NoError(t, err)

	result, err := lc.Generate(context.Background(), GenerationRequest{
		Prompt:      "hi",
		Model:       "custom-model",
		Temperature: 0.3,
		MaxTokens:   512,
	})
	require.NoError(t, err)

	assert.Equal(t, "hello", result.Text)
	assert.Equal(t, "custom-model", result.Model)
	assert.Equal(t, "custom-model", backend.lastOpts.Model)
	assert.InDelta(t, 0.3, backend.lastOpts.Temperature, 1e-9)
	assert.Equal(t, 512, backend.lastOpts.MaxTokens)
	assert.Contains(t, backend.prompt, "Question: hi")
}

func TestGenerateDefaultsAndClamping(t *testing.T) {
	testCases := []struct {
		name      string
		maxTokens int
		want      int
	}{
		{"zero_gets_ceiling", 0, maxOutputTokens},
		{"over_ceiling_clamped", 100000, maxOutputTokens},
		{"in_range_kept", 1000, 1000},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			backend := &fakeBackend{response: &llms.ContentResponse{
				Choices: []*llms.ContentChoice{{Content: "ok"}},
			}}
			lc, err := newLangChain(backend, "default-model")
			require.NoError(t, err)

			result, err := lc.Generate(context.Background(), GenerationRequest{Prompt: "hi", MaxTokens: tc.maxTokens})
			require.NoError(t, err)
			assert.Equal(t, tc.want, backend.lastOpts.MaxTokens)
			// Empty request model falls back to the configured default.
			assert.Equal(t, "default-model", result.Model)
		})
	}
}

func TestGenerateEmptyResponse(t *testing.T) {
	backend := &fakeBackend{response: &llms.ContentResponse{}}
	lc, err := newLangChain(backend, "m")
	require.NoError(t, err)

	_, err = lc.Generate(context.Background(), GenerationRequest{Prompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no content generated")
}

func TestGenerateUsageFromBackend(t *testing.T) {
	backend := &fakeBackend{response: &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{
			Content: "ok",
			GenerationInfo: map[string]any{
				"PromptTokens":     10,
				"CompletionTokens": 5,
				"TotalTokens":      15,
			},
		}},
	}}
	lc, err := newLangChain(backend, "m")
	require.NoError(t, err)

	result, err := lc.Generate(context.Background(), GenerationRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}, result.Usage)
}

func TestUsageFromInfoEstimates(t *testing.T) {
	usage := usageFromInfo(nil, "one two three four", "five six")
	assert.Equal(t, usage["prompt_tokens"]+usage["completion_tokens"], usage["total_tokens"])
	assert.Greater(t, usage["prompt_tokens"], 0)
	assert.Greater(t, usage["completion_tokens"], 0)
}

func TestEmbedDocumentsPassthrough(t *testing.T) {
	lc, err := newLangChain(&fakeBackend{}, "m")
	require.NoError(t, err)

	vecs, err := lc.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)

	vec, err := lc.EmbedQuery(context.Background(), "a")
	require.NoError(t, err)
	assert.Len(t, vec, 3)
}
