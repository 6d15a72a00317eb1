package main

import (
	"context"
	"log"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/flowstack-ai/flowstack/internal/config"
	"github.com/flowstack-ai/flowstack/internal/providers"
	"github.com/flowstack-ai/flowstack/internal/retrieval"
	"github.com/flowstack-ai/flowstack/internal/vectorstore"
	"github.com/flowstack-ai/flowstack/internal/workflow"
)

var rootCmd = &cobra.Command{
	Use:   "flowstack",
	Short: "Workflow engine with document retrieval",
	Long: `flowstack executes node-and-edge workflows that combine user queries,
document retrieval and LLM generation. Configuration is read from the
environment (a local .env file is honored).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, ingestCmd, runCmd)
}

// runtime bundles the wired collaborators a command needs. close releases
// whatever backends were opened.
type runtime struct {
	cfg       *config.Config
	retrieval *retrieval.Service
	executor  *workflow.Executor
	redis     *redis.Client
	close     func()
}

func buildRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	var closers []func()

	var gen *providers.LangChain
	switch cfg.Providers.Kind {
	case "openai":
		gen, err = providers.NewOpenAI(cfg.Providers.OpenAIAPIKey, cfg.Providers.DefaultModel, cfg.Providers.EmbeddingModel)
	default:
		gen, err = providers.NewGoogleAI(ctx, cfg.Providers.GoogleAPIKey, cfg.Providers.DefaultModel, cfg.Providers.EmbeddingModel)
	}
	if err != nil {
		return nil, errors.Wrap(err, "init provider")
	}

	var index vectorstore.Index
	if cfg.Store.DatabaseURL != "" {
		pg, err := vectorstore.NewPG(ctx, cfg.Store.DatabaseURL, cfg.Retrieval.EmbedDimension)
		if err != nil {
			return nil, errors.Wrap(err, "init pgvector index")
		}
		closers = append(closers, pg.Close)
		index = pg
	} else {
		log.Printf("flowstack: DATABASE_URL not set, using in-memory vector index")
		index = vectorstore.NewMemory()
	}

	var (
		rdb  *redis.Client
		opts []retrieval.Option
	)
	if cfg.Store.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Store.RedisAddr})
		closers = append(closers, func() { _ = rdb.Close() })
		opts = append(opts, retrieval.WithEmbeddingCache(rdb))
	}

	rs := retrieval.New(gen, index, cfg.Retrieval, opts...)

	var execOpts []workflow.ExecutorOption
	if cfg.Server.Debug {
		execOpts = append(execOpts, workflow.WithDebug())
	}
	executor := workflow.NewExecutor(workflow.Dependencies{
		Searcher:     rs,
		Generator:    gen,
		Web:          providers.NewSerpAPI(cfg.Providers.SerpAPIKey),
		Retrieval:    cfg.Retrieval,
		DefaultModel: cfg.Providers.DefaultModel,
	}, execOpts...)

	return &runtime{
		cfg:       cfg,
		retrieval: rs,
		executor:  executor,
		redis:     rdb,
		close: func() {
			for _, c := range closers {
				c()
			}
		},
	}, nil
}
