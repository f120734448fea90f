package types

import (
	"context"

	"github.com/xhad/docrag/internal/models"
)

// DocStore is the external document store this core writes to and queries.
// The store owns embedding computation: callers hand it plain text and it
// persists or compares vectors internally.
type DocStore interface {
	// UpsertChunks writes one batch keyed by chunk_id and returns the number
	// of rows written. Re-upserting an existing chunk_id refreshes text and
	// metadata, never the key fields.
	UpsertChunks(ctx context.Context, chunks []models.Chunk) (int, error)

	// NearestNeighbors embeds query and returns up to limit stored chunks
	// ordered by ascending distance.
	NearestNeighbors(ctx context.Context, query string, limit int) ([]models.ScoredChunk, error)

	// FetchByDocID returns up to limit chunks of one document ordered by
	// chunk_no ascending.
	FetchByDocID(ctx context.Context, docID string, limit int) ([]models.Chunk, error)

	Close()
}

// Embedder turns texts into vectors. Implementations sit behind the store;
// the ingestion and retrieval core never sees a vector.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}
