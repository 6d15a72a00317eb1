package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/flowstack-ai/flowstack/internal/config"
	"github.com/flowstack-ai/flowstack/internal/metrics"
	"github.com/flowstack-ai/flowstack/internal/providers"
	"github.com/flowstack-ai/flowstack/internal/vectorstore"
)

var (
	// ErrNoText fails an ingestion that has nothing to embed.
	ErrNoText = errors.New("retrieval: no text content to embed")
	// ErrIndexWrite marks a failure after embeddings were produced; callers
	// use it to flag partial completion instead of a full failure.
	ErrIndexWrite = errors.New("retrieval: vector index write failed")
)

// SearchResult is one ranked chunk, produced fresh per query.
type SearchResult struct {
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
	Filename   string  `json:"filename"`
}

// IngestRequest carries a document's extracted text into the index.
type IngestRequest struct {
	DocumentID string
	Filename   string
	Text       string
}

// Service orchestrates chunking, embedding and indexing at ingestion time and
// similarity search at query time.
type Service struct {
	embedder providers.Embedder
	index    vectorstore.Index
	cfg      config.RetrievalConfig
	cache    *redis.Client
}

type Option func(*Service)

// WithEmbeddingCache caches query embeddings in redis so repeated chat turns
// against the same query skip the embedding call.
func WithEmbeddingCache(client *redis.Client) Option {
	return func(s *Service) { s.cache = client }
}

func New(embedder providers.Embedder, index vectorstore.Index, cfg config.RetrievalConfig, opts ...Option) *Service {
	s := &Service{embedder: embedder, index: index, cfg: cfg}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Ingest chunks, embeds and indexes a document. Re-running it for the same
// document id drops the previous collection first, so ingestion is idempotent.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) error {
	chunks := Chunk(req.Text, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	if len(chunks) == 0 {
		return ErrNoText
	}

	vectors, err := s.embedBatches(ctx, chunks)
	if err != nil {
		return errors.Wrap(err, "embed chunks")
	}

	if err := s.index.DeleteCollection(ctx, req.DocumentID); err != nil {
		return fmt.Errorf("%w: %v", ErrIndexWrite, err)
	}

	batch := s.cfg.EmbedBatchSize
	if batch <= 0 {
		batch = config.DefaultEmbedBatchSize
	}
	for i := 0; i < len(chunks); i += batch {
		end := i + batch
		if end > len(chunks) {
			end = len(chunks)
		}
		items := make([]vectorstore.Item, 0, end-i)
		for j := i; j < end; j++ {
			items = append(items, vectorstore.Item{
				ID:      fmt.Sprintf("doc_%s_chunk_%d", req.DocumentID, j),
				Vector:  vectors[j],
				Content: chunks[j],
				Metadata: vectorstore.Metadata{
					DocumentID:  req.DocumentID,
					ChunkIndex:  j,
					Filename:    req.Filename,
					ChunkLength: len(chunks[j]),
				},
			})
		}
		if err := s.index.Upsert(ctx, req.DocumentID, items); err != nil {
			return fmt.Errorf("%w: %v", ErrIndexWrite, err)
		}
	}
	metrics.ChunksIngested(len(chunks))
	return nil
}

// embedBatches embeds chunks in small batches with a short pause between
// them, a politeness policy toward provider rate limits.
func (s *Service) embedBatches(ctx context.Context, chunks []string) ([][]float32, error) {
	batch := s.cfg.EmbedBatchSize
	if batch <= 0 {
		batch = config.DefaultEmbedBatchSize
	}

	vectors := make([][]float32, 0, len(chunks))
	for i := 0; i < len(chunks); i += batch {
		end := i + batch
		if end > len(chunks) {
			end = len(chunks)
		}
		out, err := s.embedder.EmbedDocuments(ctx, chunks[i:end])
		if err != nil {
			return nil, err
		}
		if len(out) != end-i {
			return nil, errors.Errorf("embedder returned %d vectors for %d inputs", len(out), end-i)
		}
		vectors = append(vectors, out...)

		if end < len(chunks) && s.cfg.EmbedBatchDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.cfg.EmbedBatchDelay):
			}
		}
	}
	return vectors, nil
}

// Search ranks chunks from the given documents by similarity to the query.
// Documents are searched concurrently with a bounded pool; a document that
// errors or exceeds the per-document timeout is skipped, never fatal. Results
// are filtered by threshold, sorted by similarity descending and capped at
// limit.
func (s *Service) Search(ctx context.Context, query string, documentIDs []string, limit int, threshold float64) ([]SearchResult, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = s.cfg.SearchLimit
	}
	metrics.SearchPerformed()

	queryVec, err := s.queryEmbedding(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "embed query")
	}

	var (
		mu      sync.Mutex
		results []SearchResult
	)
	concurrency := s.cfg.SearchConcurrency
	if concurrency <= 0 {
		concurrency = config.DefaultSearchConcurrency
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, docID := range documentIDs {
		docID := docID
		g.Go(func() error {
			docCtx, cancel := context.WithTimeout(gctx, s.cfg.SearchTimeout)
			defer cancel()

			matches, err := s.index.Query(docCtx, docID, queryVec, limit)
			if err != nil {
				// Missing or slow documents yield partial results.
				if !errors.Is(err, vectorstore.ErrCollectionNotFound) {
					log.Printf("retrieval: skipping document %s: %v", docID, err)
				}
				return nil
			}

			local := make([]SearchResult, 0, len(matches))
			for _, m := range matches {
				similarity := 1 - m.Distance
				if similarity < threshold {
					continue
				}
				local = append(local, SearchResult{
					DocumentID: docID,
					ChunkIndex: m.Metadata.ChunkIndex,
					Content:    m.Content,
					Similarity: similarity,
					Filename:   m.Metadata.Filename,
				})
			}

			mu.Lock()
			results = append(results, local...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // per-document errors never propagate

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		if results[i].DocumentID != results[j].DocumentID {
			return results[i].DocumentID < results[j].DocumentID
		}
		return results[i].ChunkIndex < results[j].ChunkIndex
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *Service) queryEmbedding(ctx context.Context, query string) ([]float32, error) {
	if s.cache == nil {
		return s.embedder.EmbedQuery(ctx, query)
	}

	sum := sha256.Sum256([]byte(query))
	key := "flowstack:qemb:" + hex.EncodeToString(sum[:])
	if data, err := s.cache.Get(ctx, key).Bytes(); err == nil {
		var vec []float32
		if json.Unmarshal(data, &vec) == nil && len(vec) > 0 {
			return vec, nil
		}
	}

	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(vec); err == nil {
		s.cache.Set(ctx, key, data, time.Hour)
	}
	return vec, nil
}
