// Package vectorstore holds per-document chunk vectors behind a narrow index
// capability. Collections are keyed by document id so a re-ingest can drop a
// document's vectors without touching its neighbors.
package vectorstore

import (
	"context"

	"github.com/pkg/errors"
)

// ErrCollectionNotFound is returned by Query when no vectors exist for the
// requested document.
var ErrCollectionNotFound = errors.New("vectorstore: collection not found")

// Metadata is the per-chunk payload stored alongside the vector.
type Metadata struct {
	DocumentID  string `json:"document_id"`
	ChunkIndex  int    `json:"chunk_index"`
	Filename    string `json:"filename"`
	ChunkLength int    `json:"chunk_length"`
}

// Item is one chunk to upsert.
type Item struct {
	ID       string
	Vector   []float32
	Content  string
	Metadata Metadata
}

// Match is one nearest neighbor. Distance is the index's native metric;
// callers convert it to a similarity proxy.
type Match struct {
	ID       string
	Content  string
	Metadata Metadata
	Distance float64
}

// Index is the vector index capability used by the retrieval service.
type Index interface {
	// Upsert writes items into the document's collection, replacing items
	// that share an ID.
	Upsert(ctx context.Context, documentID string, items []Item) error
	// Query returns up to k nearest neighbors, closest first.
	Query(ctx context.Context, documentID string, vector []float32, k int) ([]Match, error)
	// DeleteCollection removes every vector stored for the document.
	DeleteCollection(ctx context.Context, documentID string) error
}
