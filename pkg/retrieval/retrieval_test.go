package retrieval_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/docrag/internal/models"
	"github.com/xhad/docrag/pkg/retrieval"
)

// fakeStore serves canned neighbor lists and per-document chunk sets.
type fakeStore struct {
	neighbors      []models.ScoredChunk
	docs           map[string][]models.Chunk
	requestedLimit int
	searchErr      error
	fetchErr       error
}

func (f *fakeStore) UpsertChunks(context.Context, []models.Chunk) (int, error) {
	return 0, nil
}

func (f *fakeStore) NearestNeighbors(_ context.Context, _ string, limit int) ([]models.ScoredChunk, error) {
	f.requestedLimit = limit
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if limit > len(f.neighbors) {
		limit = len(f.neighbors)
	}
	return f.neighbors[:limit], nil
}

func (f *fakeStore) FetchByDocID(_ context.Context, docID string, limit int) ([]models.Chunk, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	chunks := f.docs[docID]
	sorted := make([]models.Chunk, len(chunks))
	copy(sorted, chunks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ChunkNo < sorted[j].ChunkNo })
	if limit < len(sorted) {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

func (f *fakeStore) Close() {}

func scored(docID string, chunkNo int, symbol string, distance float64) models.ScoredChunk {
	return models.ScoredChunk{
		Chunk: models.Chunk{
			DocID:   docID,
			ChunkID: fmt.Sprintf("%s:%d", docID, chunkNo),
			ChunkNo: chunkNo,
			Symbol:  symbol,
			Text:    fmt.Sprintf("text of %s chunk %d", docID, chunkNo),
		},
		Distance: distance,
	}
}

func TestSearch_TruncatesToK(t *testing.T) {
	store := &fakeStore{}
	for i := 0; i < 20; i++ {
		store.neighbors = append(store.neighbors, scored("doc", i, "", float64(i)))
	}
	e := retrieval.NewWithConfig(retrieval.Config{}, store)

	hits, err := e.Search(context.Background(), "query", 3, nil)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "doc:0", hits[0].ChunkID)
	assert.Equal(t, "doc:2", hits[2].ChunkID)
}

func TestSearch_OversamplesCandidates(t *testing.T) {
	store := &fakeStore{}
	e := retrieval.NewWithConfig(retrieval.Config{Oversample: 6, MinCandidates: 50}, store)

	_, err := e.Search(context.Background(), "query", 3, nil)
	require.NoError(t, err)
	// 6*3 < 50, so the floor wins.
	assert.Equal(t, 50, store.requestedLimit)

	_, err = e.Search(context.Background(), "query", 20, nil)
	require.NoError(t, err)
	assert.Equal(t, 120, store.requestedLimit)
}

func TestSearch_ScopeFilter(t *testing.T) {
	store := &fakeStore{neighbors: []models.ScoredChunk{
		scored("doc1", 0, "AAPL", 0.1),
		scored("doc2", 0, "TSLA", 0.2),
		scored("doc1", 1, "AAPL", 0.3),
		scored("doc3", 0, "AAPL", 0.4),
	}}
	e := retrieval.NewWithConfig(retrieval.Config{}, store)

	hits, err := e.Search(context.Background(), "query", 10, &retrieval.Scope{Symbol: "AAPL"})
	require.NoError(t, err)
	require.Len(t, hits, 3)
	for _, hit := range hits {
		assert.Equal(t, "AAPL", hit.Symbol)
	}

	hits, err = e.Search(context.Background(), "query", 10, &retrieval.Scope{DocID: "doc2"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "doc2:0", hits[0].ChunkID)
}

func TestSearch_DocIDListScope(t *testing.T) {
	store := &fakeStore{neighbors: []models.ScoredChunk{
		scored("doc1", 0, "", 0.1),
		scored("doc2", 0, "", 0.2),
		scored("doc3", 0, "", 0.3),
	}}
	e := retrieval.NewWithConfig(retrieval.Config{}, store)

	hits, err := e.Search(context.Background(), "query", 10,
		&retrieval.Scope{DocIDs: []string{"doc1", "doc3"}})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "doc1", hits[0].DocID)
	assert.Equal(t, "doc3", hits[1].DocID)
}

func TestSearch_SelectiveScopeUnderReturns(t *testing.T) {
	// The scope filter runs after the store's own ranking, so a selective
	// filter can legitimately return fewer than k hits.
	store := &fakeStore{neighbors: []models.ScoredChunk{
		scored("doc1", 0, "AAPL", 0.1),
		scored("doc2", 0, "TSLA", 0.2),
	}}
	e := retrieval.NewWithConfig(retrieval.Config{}, store)

	hits, err := e.Search(context.Background(), "query", 5, &retrieval.Scope{Symbol: "AAPL"})
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestSearch_Snippet(t *testing.T) {
	long := scored("doc", 0, "", 0.1)
	for len(long.Text) < 1000 {
		long.Text += " more text"
	}
	store := &fakeStore{neighbors: []models.ScoredChunk{long}}
	e := retrieval.NewWithConfig(retrieval.Config{SnippetLen: 40}, store)

	hits, err := e.Search(context.Background(), "query", 1, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Len(t, hits[0].Snippet, 40)
	assert.Equal(t, long.Text[:40], hits[0].Snippet)
}

func TestSearch_InvalidK(t *testing.T) {
	e := retrieval.NewWithConfig(retrieval.Config{}, &fakeStore{})
	_, err := e.Search(context.Background(), "query", 0, nil)
	assert.Error(t, err)
}

func TestSearch_StoreErrorSurfaced(t *testing.T) {
	store := &fakeStore{searchErr: errors.New("store unreachable")}
	e := retrieval.NewWithConfig(retrieval.Config{}, store)

	_, err := e.Search(context.Background(), "query", 5, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store unreachable")
}

func docChunks(docID string, n int) []models.Chunk {
	chunks := make([]models.Chunk, n)
	for i := 0; i < n; i++ {
		chunks[i] = models.Chunk{
			DocID:   docID,
			ChunkID: fmt.Sprintf("%s:%d", docID, i),
			ChunkNo: i,
			Text:    fmt.Sprintf("%s chunk %d", docID, i),
		}
	}
	return chunks
}

func TestExpand_FirstAppearanceOrder(t *testing.T) {
	store := &fakeStore{docs: map[string][]models.Chunk{
		"docA": docChunks("docA", 6),
		"docB": docChunks("docB", 3),
	}}
	e := retrieval.NewWithConfig(retrieval.Config{}, store)

	// docA appears first among the hits even though its second hit ranks
	// below docB's.
	hits := []models.SearchHit{
		{DocID: "docA", ChunkID: "docA:5"},
		{DocID: "docB", ChunkID: "docB:2"},
		{DocID: "docA", ChunkID: "docA:1"},
	}

	order, expansion, err := e.Expand(context.Background(), hits, 1, 50)
	require.NoError(t, err)
	require.Len(t, expansion, 1)
	assert.Equal(t, []string{"docA"}, order)

	chunks, ok := expansion["docA"]
	require.True(t, ok)
	require.Len(t, chunks, 6)
	// Document order, not relevance order.
	for i, ch := range chunks {
		assert.Equal(t, i, ch.ChunkNo)
	}
}

func TestExpand_TopNDistinctDocs(t *testing.T) {
	store := &fakeStore{docs: map[string][]models.Chunk{
		"docA": docChunks("docA", 2),
		"docB": docChunks("docB", 2),
		"docC": docChunks("docC", 2),
	}}
	e := retrieval.NewWithConfig(retrieval.Config{}, store)

	hits := []models.SearchHit{
		{DocID: "docB"},
		{DocID: "docA"},
		{DocID: "docB"},
		{DocID: "docC"},
	}

	order, expansion, err := e.Expand(context.Background(), hits, 2, 50)
	require.NoError(t, err)
	require.Len(t, expansion, 2)
	// The returned order follows first appearance among the hits, not
	// alphabetical or map order.
	assert.Equal(t, []string{"docB", "docA"}, order)
	assert.Contains(t, expansion, "docB")
	assert.Contains(t, expansion, "docA")
	assert.NotContains(t, expansion, "docC")
}

func TestExpand_CapsChunksPerDoc(t *testing.T) {
	store := &fakeStore{docs: map[string][]models.Chunk{
		"docA": docChunks("docA", 10),
	}}
	e := retrieval.NewWithConfig(retrieval.Config{}, store)

	_, expansion, err := e.Expand(context.Background(),
		[]models.SearchHit{{DocID: "docA"}}, 1, 4)
	require.NoError(t, err)
	require.Len(t, expansion["docA"], 4)
	assert.Equal(t, 0, expansion["docA"][0].ChunkNo)
	assert.Equal(t, 3, expansion["docA"][3].ChunkNo)
}

func TestExpand_ZeroTopN(t *testing.T) {
	e := retrieval.NewWithConfig(retrieval.Config{}, &fakeStore{})
	order, expansion, err := e.Expand(context.Background(),
		[]models.SearchHit{{DocID: "docA"}}, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, order)
	assert.Empty(t, expansion)
}

func TestExpand_FetchErrorSurfaced(t *testing.T) {
	store := &fakeStore{fetchErr: errors.New("store down")}
	e := retrieval.NewWithConfig(retrieval.Config{}, store)

	_, _, err := e.Expand(context.Background(),
		[]models.SearchHit{{DocID: "docA"}}, 1, 10)
	assert.Error(t, err)
}
