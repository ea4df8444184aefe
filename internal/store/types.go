// Package store persists chunks and their normalized projections.
//
// The store is the source of truth for chunk content. Raw text and its
// normalized form are always written in the same transaction so a
// reader can never observe a chunk whose projections disagree.
package store

import (
	"context"
	"time"
)

// Chunk is the persisted unit of retrievable content.
type Chunk struct {
	// ID uniquely identifies the chunk across the corpus.
	ID string

	// DocumentID groups chunks belonging to the same source document.
	DocumentID string

	// SequenceIndex orders chunks within their document, starting at 0.
	SequenceIndex int

	// RawText is the original content, preserved verbatim for display
	// and highlighting.
	RawText string

	// NormalizedText is the matchable projection of RawText produced
	// by the normalization pipeline. Written atomically with RawText.
	NormalizedText string

	// Metadata carries filterable attributes (neighborhood, property
	// type, listing status).
	Metadata map[string]string

	// EmbeddingRef names the embedding vector associated with this
	// chunk in the semantic index, empty if none has been computed.
	EmbeddingRef string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChunkStore is the persistence contract used by the index synchronizer
// and the search engines.
type ChunkStore interface {
	// Put inserts or replaces a chunk. RawText and NormalizedText are
	// committed in a single transaction.
	Put(ctx context.Context, chunk *Chunk) error

	// Get returns the chunk with the given ID, or ERR_202 if absent.
	Get(ctx context.Context, id string) (*Chunk, error)

	// Delete removes a chunk. Deleting an absent chunk is a no-op.
	Delete(ctx context.Context, id string) error

	// List streams every chunk in ID order, invoking fn for each. A
	// non-nil return from fn stops iteration and is returned as-is.
	List(ctx context.Context, fn func(*Chunk) error) error

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// Close releases the underlying database handle.
	Close() error
}
