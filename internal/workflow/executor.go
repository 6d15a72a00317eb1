package workflow

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/flowstack-ai/flowstack/internal/config"
	"github.com/flowstack-ai/flowstack/internal/metrics"
	"github.com/flowstack-ai/flowstack/internal/providers"
	"github.com/flowstack-ai/flowstack/internal/retrieval"
)

// fallbackResponse is returned when no node produced a final_response.
const fallbackResponse = "No response generated"

// Searcher is the retrieval capability used by the knowledge-base node.
type Searcher interface {
	Search(ctx context.Context, query string, documentIDs []string, limit int, threshold float64) ([]retrieval.SearchResult, error)
}

// Dependencies are the external collaborators the node handlers call into.
// Any of them may be nil; the owning handler then degrades with an inline
// error message instead of failing the run.
type Dependencies struct {
	Searcher     Searcher
	Generator    providers.Generator
	Web          providers.WebSearcher
	Retrieval    config.RetrievalConfig
	DefaultModel string
}

// ExecutionStep is one record of the append-only execution log.
type ExecutionStep struct {
	Component string         `json:"component"`
	NodeID    string         `json:"node_id"`
	Result    map[string]any `json:"result"`
	Timestamp time.Time      `json:"timestamp"`
}

// Request is one execution of a graph against a query. DocumentIDs are the
// documents linked to the workflow, resolved by the caller.
type Request struct {
	Graph       *Graph
	Query       string
	DocumentIDs []string
}

// Result is what a completed run hands back to the caller.
type Result struct {
	RunID         string          `json:"run_id"`
	Response      string          `json:"response"`
	ExecutionTime float64         `json:"execution_time"`
	ExecutionLog  []ExecutionStep `json:"execution_log"`
	Context       map[string]any  `json:"context"`
}

// Handler executes one node: it reads the live context and returns a partial
// context to merge. Provider failures are reported inside the partial map;
// a returned error is structural and fatal to the run.
type Handler func(ctx context.Context, node Node, run *Run) (map[string]any, error)

// Run is the per-execution state handed to handlers.
type Run struct {
	Query       string
	DocumentIDs []string
	Context     *ExecutionContext
}

// Executor dispatches graph nodes in topological order. It holds no per-run
// state; every Execute call gets its own context and log.
type Executor struct {
	deps     Dependencies
	handlers map[string]Handler
	debug    bool
}

type ExecutorOption func(*Executor)

// WithDebug enables dispatch tracing.
func WithDebug() ExecutorOption {
	return func(e *Executor) { e.debug = true }
}

func NewExecutor(deps Dependencies, opts ...ExecutorOption) *Executor {
	e := &Executor{deps: deps}
	e.handlers = map[string]Handler{
		TypeUserQuery:     e.execUserQuery,
		TypeKnowledgeBase: e.execKnowledgeBase,
		TypeLLMEngine:     e.execLLMEngine,
		TypeOutput:        e.execOutput,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Execute runs the graph against the query and returns the final response,
// the execution log and the accumulated context. Nodes unreachable through
// the topological order (cycles, stalled dependencies) are excluded from the
// run rather than failing it.
func (e *Executor) Execute(ctx context.Context, req Request) (*Result, error) {
	if req.Graph == nil || len(req.Graph.Nodes) == 0 {
		return nil, ErrEmptyGraph
	}

	start := time.Now()
	order := req.Graph.ExecutionOrder()
	if e.debug && len(order) < len(req.Graph.Nodes) {
		log.Printf("workflow: %d of %d nodes unreachable, executing without them",
			len(req.Graph.Nodes)-len(order), len(req.Graph.Nodes))
	}

	run := &Run{
		Query:       req.Query,
		DocumentIDs: req.DocumentIDs,
		Context:     NewExecutionContext(req.Query),
	}

	executionLog := make([]ExecutionStep, 0, len(order))
	for _, nodeID := range order {
		select {
		case <-ctx.Done():
			metrics.ExecutionCompleted("cancelled")
			return nil, errors.Wrap(ctx.Err(), "execution cancelled")
		default:
		}

		node, ok := req.Graph.NodeByID(nodeID)
		if !ok {
			continue
		}
		handler, ok := e.handlers[node.Type]
		if !ok {
			metrics.ExecutionCompleted("error")
			return nil, errors.Errorf("unknown component type: %s", node.Type)
		}

		if e.debug {
			log.Printf("workflow: executing %s node %s", node.Type, node.ID)
		}
		nodeStart := time.Now()
		partial, err := handler(ctx, node, run)
		if err != nil {
			metrics.ExecutionCompleted("error")
			return nil, errors.Wrapf(err, "component %s (%s)", node.Type, node.ID)
		}
		metrics.ObserveNode(node.Type, time.Since(nodeStart))

		executionLog = append(executionLog, ExecutionStep{
			Component: node.Type,
			NodeID:    node.ID,
			Result:    partial,
			Timestamp: time.Now(),
		})
		run.Context.Merge(partial)
	}

	// A node that wrote final_response wins even when it wrote the empty
	// string; the fallback covers only runs where no node produced one.
	response := fallbackResponse
	if v, ok := run.Context.Get(KeyFinalResponse); ok {
		if s, ok := v.(string); ok {
			response = s
		}
	}

	metrics.ExecutionCompleted("ok")
	return &Result{
		RunID:         uuid.New().String(),
		Response:      response,
		ExecutionTime: time.Since(start).Seconds(),
		ExecutionLog:  executionLog,
		Context:       run.Context.Snapshot(),
	}, nil
}
