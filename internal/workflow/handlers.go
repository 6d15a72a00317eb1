package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/flowstack-ai/flowstack/internal/config"
	"github.com/flowstack-ai/flowstack/internal/providers"
	"github.com/flowstack-ai/flowstack/internal/retrieval"
)

// execUserQuery passes the run's query through unchanged.
func (e *Executor) execUserQuery(_ context.Context, _ Node, run *Run) (map[string]any, error) {
	query := run.Context.GetString(KeyQuery)
	return map[string]any{
		KeyUserQuery:       query,
		KeyComponentOutput: query,
	}, nil
}

// execKnowledgeBase searches the workflow's linked documents and exposes the
// concatenated chunks as context_text. Search failures are reported inline;
// the run continues.
func (e *Executor) execKnowledgeBase(ctx context.Context, node Node, run *Run) (map[string]any, error) {
	if len(run.DocumentIDs) == 0 {
		return map[string]any{
			KeyKBResults:       []retrieval.SearchResult{},
			KeyContextText:     "",
			KeyComponentOutput: "No documents linked to workflow",
		}, nil
	}

	cfg := node.Data.Config
	limit := configInt(cfg, "search_limit", e.deps.Retrieval.SearchLimit)
	threshold := configFloat(cfg, "similarity_threshold", e.deps.Retrieval.SimilarityThreshold)

	query := run.Context.GetString(KeyQuery)
	if e.deps.Searcher == nil {
		return map[string]any{
			KeyKBResults:       []retrieval.SearchResult{},
			KeyContextText:     "",
			KeyComponentOutput: "Error searching documents: retrieval service unavailable",
		}, nil
	}

	results, err := e.deps.Searcher.Search(ctx, query, run.DocumentIDs, limit, threshold)
	if err != nil {
		return map[string]any{
			KeyKBResults:       []retrieval.SearchResult{},
			KeyContextText:     "",
			KeyComponentOutput: fmt.Sprintf("Error searching documents: %v", err),
		}, nil
	}

	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, fmt.Sprintf("Source: %s\nContent: %s", r.Filename, r.Content))
	}
	contextText := strings.Join(blocks, "\n\n")

	return map[string]any{
		KeyKBResults:       results,
		KeyContextText:     contextText,
		KeyComponentOutput: contextText,
	}, nil
}

// execLLMEngine generates a completion from the query and accumulated
// context, optionally augmented with web-search snippets. Provider failures
// become inline error messages rather than faults.
func (e *Executor) execLLMEngine(ctx context.Context, node Node, run *Run) (map[string]any, error) {
	cfg := node.Data.Config

	query := run.Context.GetString(KeyQuery)
	contextText := run.Context.GetString(KeyContextText)

	model := providers.ResolveModel(configString(cfg, "model", ""), e.deps.DefaultModel)
	temperature := configFloat(cfg, "temperature", config.DefaultTemperature)
	maxTokens := configInt(cfg, "max_tokens", config.DefaultMaxTokens)
	customPrompt := configString(cfg, "custom_prompt", "")
	webSearch := configBool(cfg, "enable_web_search", false)
	webCount := configInt(cfg, "web_search_queries", config.DefaultWebResults)

	if e.deps.Generator == nil {
		return llmErrorResult(model, "generation provider unavailable"), nil
	}

	var webResults []providers.WebResult
	webPerformed := false
	fullContext := contextText
	if webSearch && e.deps.Web != nil {
		results, err := e.deps.Web.SearchWeb(ctx, query, webCount)
		if err == nil && len(results) > 0 {
			webResults = results
			webPerformed = true
			fullContext = joinContext(contextText, webContextBlock(results))
		}
		// A failed or empty web search degrades to plain generation.
	}

	gen, err := e.deps.Generator.Generate(ctx, providers.GenerationRequest{
		Prompt:       query,
		Context:      fullContext,
		Model:        model,
		Temperature:  temperature,
		MaxTokens:    maxTokens,
		CustomPrompt: customPrompt,
	})
	if err != nil {
		return llmErrorResult(model, err.Error()), nil
	}

	if webResults == nil {
		webResults = []providers.WebResult{}
	}
	return map[string]any{
		KeyLLMResponse:     gen.Text,
		KeyLLMModel:        gen.Model,
		KeyLLMUsage:        gen.Usage,
		KeyWebResults:      webResults,
		KeyWebSearchDone:   webPerformed,
		KeyComponentOutput: gen.Text,
	}, nil
}

// execOutput formats the final response, optionally appending source and
// timing footers.
func (e *Executor) execOutput(_ context.Context, node Node, run *Run) (map[string]any, error) {
	cfg := node.Data.Config

	response := run.Context.GetString(KeyLLMResponse)
	if response == "" {
		response = run.Context.GetString(KeyComponentOutput)
	}

	format := configString(cfg, "format", "markdown")
	showSources := configBool(cfg, "show_sources", true)
	showExecutionTime := configBool(cfg, "show_execution_time", false)

	if showSources {
		if raw, ok := run.Context.Get(KeyKBResults); ok {
			if results, ok := raw.([]retrieval.SearchResult); ok && len(results) > 0 {
				lines := make([]string, 0, len(results))
				for _, r := range results {
					lines = append(lines, fmt.Sprintf("- %s (similarity: %.2f)", r.Filename, r.Similarity))
				}
				response += "\n\n**Sources:**\n" + strings.Join(lines, "\n")
			}
		}
	}

	if showExecutionTime {
		if elapsed, ok := run.Context.GetFloat(KeyExecutionTime); ok {
			response += fmt.Sprintf("\n\n*Execution time: %.2fs*", elapsed)
		}
	}

	return map[string]any{
		KeyFinalResponse:   response,
		KeyFormat:          format,
		KeyComponentOutput: response,
	}, nil
}

func llmErrorResult(model, message string) map[string]any {
	return map[string]any{
		KeyLLMResponse:     fmt.Sprintf("Error generating response: %s", message),
		KeyLLMModel:        model,
		KeyLLMUsage:        map[string]int{},
		KeyWebResults:      []providers.WebResult{},
		KeyWebSearchDone:   false,
		KeyComponentOutput: fmt.Sprintf("Error: %s", message),
	}
}

// webContextBlock formats organic results into the prompt context.
func webContextBlock(results []providers.WebResult) string {
	var b strings.Builder
	b.WriteString("Current web information:\n")
	for i, r := range results {
		source := r.DisplayedLink
		if source == "" {
			source = r.Link
		}
		fmt.Fprintf(&b, "\n%d. %s\n   Source: %s\n   Content: %s\n", i+1, r.Title, source, r.Snippet)
	}
	return b.String()
}

func joinContext(docContext, webContext string) string {
	parts := make([]string, 0, 2)
	if docContext != "" {
		parts = append(parts, "Document context:\n"+docContext)
	}
	if webContext != "" {
		parts = append(parts, webContext)
	}
	return strings.Join(parts, "\n\n")
}

// Node config values arrive as JSON-decoded any; numbers are float64.

func configString(cfg map[string]any, key, fallback string) string {
	if v, ok := cfg[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func configInt(cfg map[string]any, key string, fallback int) int {
	switch v := cfg[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return fallback
	}
}

func configFloat(cfg map[string]any, key string, fallback float64) float64 {
	switch v := cfg[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return fallback
	}
}

func configBool(cfg map[string]any, key string, fallback bool) bool {
	if v, ok := cfg[key].(bool); ok {
		return v
	}
	return fallback
}
