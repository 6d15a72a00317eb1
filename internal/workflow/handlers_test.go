package workflow

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowstack-ai/flowstack/internal/providers"
	"github.com/flowstack-ai/flowstack/internal/retrieval"
)

func newRun(query string, docIDs ...string) *Run {
	return &Run{
		Query:       query,
		DocumentIDs: docIDs,
		Context:     NewExecutionContext(query),
	}
}

func TestExecKnowledgeBaseNoDocuments(t *testing.T) {
	searcher := &fakeSearcher{}
	deps := testDeps()
	deps.Searcher = searcher
	ex := NewExecutor(deps)

	partial, err := ex.execKnowledgeBase(context.Background(), Node{ID: "kb", Type: TypeKnowledgeBase}, newRun("q"))
	require.NoError(t, err)

	// No provider calls when the workflow has no documents.
	assert.Equal(t, 0, searcher.calls)
	assert.Equal(t, "No documents linked to workflow", partial[KeyComponentOutput])
	assert.Equal(t, "", partial[KeyContextText])
	assert.Equal(t, []retrieval.SearchResult{}, partial[KeyKBResults])
}

func TestExecKnowledgeBaseSearchErrorInline(t *testing.T) {
	deps := testDeps()
	deps.Searcher = &fakeSearcher{err: errors.New("index offline")}
	ex := NewExecutor(deps)

	partial, err := ex.execKnowledgeBase(context.Background(), Node{ID: "kb", Type: TypeKnowledgeBase}, newRun("q", "doc-1"))
	require.NoError(t, err)

	assert.Equal(t, "Error searching documents: index offline", partial[KeyComponentOutput])
	assert.Equal(t, []retrieval.SearchResult{}, partial[KeyKBResults])
}

func TestExecKnowledgeBaseFormatsContext(t *testing.T) {
	deps := testDeps()
	deps.Searcher = &fakeSearcher{results: []retrieval.SearchResult{
		{DocumentID: "d1", Content: "first chunk", Similarity: 0.9, Filename: "a.txt"},
		{DocumentID: "d2", Content: "second chunk", Similarity: 0.8, Filename: "b.txt"},
	}}
	ex := NewExecutor(deps)

	partial, err := ex.execKnowledgeBase(context.Background(), Node{ID: "kb", Type: TypeKnowledgeBase}, newRun("q", "d1", "d2"))
	require.NoError(t, err)

	want := "Source: a.txt\nContent: first chunk\n\nSource: b.txt\nContent: second chunk"
	assert.Equal(t, want, partial[KeyContextText])
	assert.Equal(t, want, partial[KeyComponentOutput])
}

func TestExecLLMEngineProviderErrorInline(t *testing.T) {
	deps := testDeps()
	deps.Generator = &fakeGenerator{err: errors.New("rate limited")}
	ex := NewExecutor(deps)

	partial, err := ex.execLLMEngine(context.Background(), Node{ID: "llm", Type: TypeLLMEngine}, newRun("q"))
	require.NoError(t, err)

	assert.Equal(t, "Error generating response: rate limited", partial[KeyLLMResponse])
	assert.Equal(t, "Error: rate limited", partial[KeyComponentOutput])
	assert.Equal(t, []providers.WebResult{}, partial[KeyWebResults])
}

func TestExecLLMEngineNodeConfigOverrides(t *testing.T) {
	gen := &fakeGenerator{text: "ok"}
	deps := testDeps()
	deps.Generator = gen
	ex := NewExecutor(deps)

	// Numbers come out of JSON decoding as float64.
	node := Node{ID: "llm", Type: TypeLLMEngine, Data: NodeData{Config: map[string]any{
		"model":         "gpt-4o-mini",
		"temperature":   0.2,
		"max_tokens":    float64(256),
		"custom_prompt": "Answer tersely.",
	}}}

	_, err := ex.execLLMEngine(context.Background(), node, newRun("q"))
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", gen.lastReq.Model)
	assert.InDelta(t, 0.2, gen.lastReq.Temperature, 1e-9)
	assert.Equal(t, 256, gen.lastReq.MaxTokens)
	assert.Equal(t, "Answer tersely.", gen.lastReq.CustomPrompt)
}

func TestExecLLMEngineWebSearch(t *testing.T) {
	gen := &fakeGenerator{text: "ok"}
	web := &fakeWeb{results: []providers.WebResult{
		{Title: "Go FAQ", Link: "https://go.dev/doc/faq", Snippet: "answers"},
	}}
	deps := testDeps()
	deps.Generator = gen
	deps.Web = web
	ex := NewExecutor(deps)

	node := Node{ID: "llm", Type: TypeLLMEngine, Data: NodeData{Config: map[string]any{
		"enable_web_search": true,
	}}}

	run := newRun("q")
	run.Context.Merge(map[string]any{KeyContextText: "doc chunk"})

	partial, err := ex.execLLMEngine(context.Background(), node, run)
	require.NoError(t, err)

	assert.Equal(t, 1, web.calls)
	assert.Contains(t, gen.lastReq.Context, "Document context:\ndoc chunk")
	assert.Contains(t, gen.lastReq.Context, "Current web information:")
	assert.Contains(t, gen.lastReq.Context, "1. Go FAQ")
	assert.Contains(t, gen.lastReq.Context, "Source: https://go.dev/doc/faq")
	assert.Equal(t, web.results, partial[KeyWebResults])
	assert.Equal(t, true, partial[KeyWebSearchDone])
}

func TestExecLLMEngineWebSearchFailureDegrades(t *testing.T) {
	gen := &fakeGenerator{text: "ok"}
	deps := testDeps()
	deps.Generator = gen
	deps.Web = &fakeWeb{err: errors.New("quota exceeded")}
	ex := NewExecutor(deps)

	node := Node{ID: "llm", Type: TypeLLMEngine, Data: NodeData{Config: map[string]any{
		"enable_web_search": true,
	}}}

	partial, err := ex.execLLMEngine(context.Background(), node, newRun("q"))
	require.NoError(t, err)

	// Generation proceeded without web context.
	assert.Equal(t, "ok", partial[KeyLLMResponse])
	assert.NotContains(t, gen.lastReq.Context, "Current web information:")
	assert.Equal(t, []providers.WebResult{}, partial[KeyWebResults])
	assert.Equal(t, false, partial[KeyWebSearchDone])
}

func TestExecLLMEngineUnknownModelFallsBack(t *testing.T) {
	gen := &fakeGenerator{text: "ok"}
	deps := testDeps()
	deps.Generator = gen
	ex := NewExecutor(deps)

	node := Node{ID: "llm", Type: TypeLLMEngine, Data: NodeData{Config: map[string]any{
		"model": "frontier-9000",
	}}}

	_, err := ex.execLLMEngine(context.Background(), node, newRun("q"))
	require.NoError(t, err)
	assert.Equal(t, deps.DefaultModel, gen.lastReq.Model)
}

func TestExecOutputFormatting(t *testing.T) {
	ex := NewExecutor(testDeps())

	testCases := []struct {
		name    string
		config  map[string]any
		seed    map[string]any
		want    string
		notWant string
	}{
		{
			name: "plain_response",
			seed: map[string]any{KeyLLMResponse: "hello"},
			want: "hello",
		},
		{
			name:    "falls_back_to_component_output",
			seed:    map[string]any{KeyComponentOutput: "passthrough"},
			want:    "passthrough",
			notWant: "**Sources:**",
		},
		{
			name: "sources_footer",
			seed: map[string]any{
				KeyLLMResponse: "hello",
				KeyKBResults: []retrieval.SearchResult{
					{Filename: "a.txt", Similarity: 0.875},
				},
			},
			want: "hello\n\n**Sources:**\n- a.txt (similarity: 0.88)",
		},
		{
			name:    "sources_suppressed",
			config:  map[string]any{"show_sources": false},
			seed:    map[string]any{KeyLLMResponse: "hello", KeyKBResults: []retrieval.SearchResult{{Filename: "a.txt"}}},
			want:    "hello",
			notWant: "**Sources:**",
		},
		{
			name:   "execution_time_footer",
			config: map[string]any{"show_execution_time": true},
			seed:   map[string]any{KeyLLMResponse: "hello", KeyExecutionTime: 1.5},
			want:   "hello\n\n*Execution time: 1.50s*",
		},
		{
			name: "execution_time_hidden_by_default",
			seed: map[string]any{KeyLLMResponse: "hello", KeyExecutionTime: 1.5},
			want: "hello",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			run := newRun("q")
			run.Context.Merge(tc.seed)

			node := Node{ID: "out", Type: TypeOutput, Data: NodeData{Config: tc.config}}
			partial, err := ex.execOutput(context.Background(), node, run)
			require.NoError(t, err)

			got, _ := partial[KeyFinalResponse].(string)
			assert.Equal(t, tc.want, got)
			if tc.notWant != "" {
				assert.NotContains(t, got, tc.notWant)
			}
			assert.Equal(t, got, partial[KeyComponentOutput])
			assert.Equal(t, "markdown", partial[KeyFormat])
		})
	}
}
