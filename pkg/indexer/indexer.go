package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/xhad/docrag/internal/models"
	"github.com/xhad/docrag/internal/types"
)

const (
	DefaultBatchSize  = 500
	DefaultMaxRetries = 3
	DefaultRetryDelay = 500 * time.Millisecond
)

type Config struct {
	BatchSize  int
	MaxRetries int
	RetryDelay time.Duration
}

// Indexer persists chunks to the document store in bounded batches. Writes
// are idempotent per chunk_id, so a failed run can be replayed whole: the
// batches that already landed converge to the same rows. Earlier batches
// are never rolled back when a later one fails (at-least-once semantics).
type Indexer struct {
	config Config
	store  types.DocStore
}

func NewWithConfig(config Config, store types.DocStore) *Indexer {
	if config.BatchSize == 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = DefaultRetryDelay
	}
	return &Indexer{config: config, store: store}
}

// Index writes chunks in batches and returns the running total of rows
// written. A batch that keeps failing after retries surfaces an error
// naming the batch index and the chunk_id range attempted; the total
// reflects every batch that landed before it.
func (ix *Indexer) Index(ctx context.Context, chunks []models.Chunk) (int, error) {
	kept := make([]models.Chunk, 0, len(chunks))
	for _, ch := range chunks {
		if ch.Text == "" {
			continue
		}
		kept = append(kept, ch)
	}

	total := 0
	for i := 0; i < len(kept); i += ix.config.BatchSize {
		end := i + ix.config.BatchSize
		if end > len(kept) {
			end = len(kept)
		}
		batch := kept[i:end]

		written, err := ix.writeBatch(ctx, batch)
		if err != nil {
			return total, fmt.Errorf("failed to write batch %d (%s..%s): %w",
				i/ix.config.BatchSize, batch[0].ChunkID, batch[len(batch)-1].ChunkID, err)
		}
		total += written
	}
	return total, nil
}

// writeBatch retries one batch with doubling delay. The batch is a single
// request to the store, so a retry can never half-apply it.
func (ix *Indexer) writeBatch(ctx context.Context, batch []models.Chunk) (int, error) {
	delay := ix.config.RetryDelay
	var lastErr error

	for attempt := 1; attempt <= ix.config.MaxRetries; attempt++ {
		written, err := ix.store.UpsertChunks(ctx, batch)
		if err == nil {
			return written, nil
		}
		lastErr = err

		if attempt == ix.config.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return 0, fmt.Errorf("exhausted %d attempts: %w", ix.config.MaxRetries, lastErr)
}
