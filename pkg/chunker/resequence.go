package chunker

import (
	"fmt"

	"github.com/xhad/docrag/internal/models"
)

// Resequence reassigns chunk numbers so that every document in the batch
// ends up with one contiguous 0..N-1 sequence. Per-unit chunking numbers
// chunks locally from zero, which collides when a document spans multiple
// pages; this repairs the numbering and rebuilds each chunk_id.
//
// Chunks must arrive in their intended order (pages ascending, then local
// chunk order). Empty-text chunks are dropped before numbering so they
// never occupy a slot. Documents are numbered independently of each other
// even when mixed in one batch.
func Resequence(chunks []models.Chunk) []models.Chunk {
	grouped := make(map[string][]models.Chunk)
	var docOrder []string
	for _, ch := range chunks {
		if _, seen := grouped[ch.DocID]; !seen {
			docOrder = append(docOrder, ch.DocID)
		}
		grouped[ch.DocID] = append(grouped[ch.DocID], ch)
	}

	out := make([]models.Chunk, 0, len(chunks))
	for _, docID := range docOrder {
		seq := 0
		for _, ch := range grouped[docID] {
			if ch.Text == "" {
				continue
			}
			ch.ChunkNo = seq
			ch.ChunkID = ChunkID(docID, seq)
			seq++
			out = append(out, ch)
		}
	}
	return out
}

// ChunkID derives the composite upsert key for one chunk.
func ChunkID(docID string, chunkNo int) string {
	return fmt.Sprintf("%s:%d", docID, chunkNo)
}
