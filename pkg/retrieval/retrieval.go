package retrieval

import (
	"context"
	"fmt"

	"github.com/xhad/docrag/internal/models"
	"github.com/xhad/docrag/internal/types"
)

const (
	DefaultOversample    = 6
	DefaultMinCandidates = 50
	DefaultSnippetLen    = 400
)

type Config struct {
	// Oversample scales k into the candidate count requested from the store.
	// It is a tunable, not a correctness guarantee: a selective scope can
	// still leave fewer than k qualifying candidates.
	Oversample    int
	MinCandidates int
	SnippetLen    int
}

// Scope narrows a search to chunks matching every set filter. DocIDs is an
// any-of filter so a caller can restrict retrieval to the documents attached
// to one session.
type Scope struct {
	DocID  string
	DocIDs []string
	Symbol string
	Title  string
	URL    string
}

func (s *Scope) matches(ch models.Chunk) bool {
	if s == nil {
		return true
	}
	if s.DocID != "" && ch.DocID != s.DocID {
		return false
	}
	if len(s.DocIDs) > 0 {
		ok := false
		for _, id := range s.DocIDs {
			if ch.DocID == id {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if s.Symbol != "" && ch.Symbol != s.Symbol {
		return false
	}
	if s.Title != "" && ch.Title != s.Title {
		return false
	}
	if s.URL != "" && ch.URL != s.URL {
		return false
	}
	return true
}

// Engine answers nearest-neighbor queries against the store and expands
// hits to full per-document context. It never retries: retrieval sits on
// the read path and callers wrap it with their own timeout policy.
type Engine struct {
	config Config
	store  types.DocStore
}

func NewWithConfig(config Config, store types.DocStore) *Engine {
	if config.Oversample == 0 {
		config.Oversample = DefaultOversample
	}
	if config.MinCandidates == 0 {
		config.MinCandidates = DefaultMinCandidates
	}
	if config.SnippetLen == 0 {
		config.SnippetLen = DefaultSnippetLen
	}
	return &Engine{config: config, store: store}
}

// Search returns the k chunks nearest to query that match scope, nearest
// first. The store ranks before the scope filter runs, so the engine
// oversamples candidates; when the filter is selective enough, fewer than
// k hits come back and that is not an error.
func (e *Engine) Search(ctx context.Context, query string, k int, scope *Scope) ([]models.SearchHit, error) {
	if k < 1 {
		return nil, fmt.Errorf("retrieval: k must be positive, got %d", k)
	}

	candidates := k * e.config.Oversample
	if candidates < e.config.MinCandidates {
		candidates = e.config.MinCandidates
	}

	scored, err := e.store.NearestNeighbors(ctx, query, candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to search store: %w", err)
	}

	var hits []models.SearchHit
	for _, sc := range scored {
		if !scope.matches(sc.Chunk) {
			continue
		}
		hits = append(hits, models.SearchHit{
			ChunkID:  sc.ChunkID,
			DocID:    sc.DocID,
			PageNo:   sc.PageNo,
			Symbol:   sc.Symbol,
			Title:    sc.Title,
			URL:      sc.URL,
			Snippet:  snippet(sc.Text, e.config.SnippetLen),
			Distance: sc.Distance,
		})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

// Expand fetches the full ordered chunk list for the first expandTopN
// distinct documents in hits, in the order each document first appears.
// That order comes back as the docID slice so callers iterate documents
// deterministically; the map alone would lose it. Each list is capped at
// maxChunksPerDoc and ordered by chunk_no, giving the consumer the local
// context around a matched fragment rather than the fragment alone.
func (e *Engine) Expand(ctx context.Context, hits []models.SearchHit, expandTopN, maxChunksPerDoc int) ([]string, map[string][]models.Chunk, error) {
	if expandTopN < 1 {
		return nil, map[string][]models.Chunk{}, nil
	}
	if maxChunksPerDoc < 1 {
		maxChunksPerDoc = 1
	}

	var docIDs []string
	seen := make(map[string]bool)
	for _, hit := range hits {
		if seen[hit.DocID] {
			continue
		}
		seen[hit.DocID] = true
		docIDs = append(docIDs, hit.DocID)
		if len(docIDs) == expandTopN {
			break
		}
	}

	expansion := make(map[string][]models.Chunk, len(docIDs))
	for _, docID := range docIDs {
		chunks, err := e.store.FetchByDocID(ctx, docID, maxChunksPerDoc)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to expand doc %s: %w", docID, err)
		}
		expansion[docID] = chunks
	}
	return docIDs, expansion, nil
}

func snippet(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen])
}
