package workflow

// Well-known context keys. Handlers communicate only through these by
// convention; there is no static contract between nodes.
const (
	KeyQuery           = "query"
	KeyUserQuery       = "user_query"
	KeyContextText     = "context_text"
	KeyLLMResponse     = "llm_response"
	KeyLLMModel        = "llm_model"
	KeyLLMUsage        = "llm_usage"
	KeyWebResults      = "web_results"
	KeyWebSearchDone   = "web_search_performed"
	KeyFinalResponse   = "final_response"
	KeyComponentOutput = "component_output"
	KeyKBResults       = "knowledge_base_results"
	KeyExecutionTime   = "execution_time"
	KeyFormat          = "format"
)

// ExecutionContext is the mutable key-value state threaded through one
// workflow run. It is the sole channel of inter-node communication: each
// handler reads the keys it needs and returns a partial map that is merged
// back by key overwrite. Keys are never deleted, so anything written stays
// readable for the rest of the run.
type ExecutionContext struct {
	values map[string]any
}

// NewExecutionContext seeds a fresh context with the user query.
func NewExecutionContext(query string) *ExecutionContext {
	return &ExecutionContext{values: map[string]any{KeyQuery: query}}
}

// Get returns the raw value for a key.
func (ec *ExecutionContext) Get(key string) (any, bool) {
	v, ok := ec.values[key]
	return v, ok
}

// GetString returns the value for a key when it is a non-empty string.
func (ec *ExecutionContext) GetString(key string) string {
	if v, ok := ec.values[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetFloat returns the value for a key as a float64 when possible.
func (ec *ExecutionContext) GetFloat(key string) (float64, bool) {
	switch v := ec.values[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// Merge folds a handler's partial result into the context. Later writes win
// on key collision.
func (ec *ExecutionContext) Merge(partial map[string]any) {
	for k, v := range partial {
		ec.values[k] = v
	}
}

// Snapshot copies the current state for the caller-facing result.
func (ec *ExecutionContext) Snapshot() map[string]any {
	out := make(map[string]any, len(ec.values))
	for k, v := range ec.values {
		out[k] = v
	}
	return out
}
