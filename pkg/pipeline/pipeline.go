package pipeline

import (
	"context"
	"log"
	"sync"

	"github.com/xhad/docrag/internal/models"
	"github.com/xhad/docrag/internal/types"
	"github.com/xhad/docrag/pkg/chunker"
	"github.com/xhad/docrag/pkg/extract"
	"github.com/xhad/docrag/pkg/indexer"
	"github.com/xhad/docrag/pkg/retrieval"
)

const DefaultWorkers = 4

type Config struct {
	Chunker   chunker.Config
	Indexer   indexer.Config
	Retrieval retrieval.Config
	Extractor extract.Config
	// Workers bounds batch-ingestion concurrency so many large extracted
	// texts are never held in memory at once.
	Workers int
	// OnProgress, when set, is called after each file in a batch finishes.
	OnProgress func(path string)
}

// Metadata is stamped uniformly on every chunk of one ingestion call.
type Metadata struct {
	Symbol string
	Title  string
	URL    string
}

// Pipeline wires extraction, chunking, indexing, and retrieval around one
// injected document store.
type Pipeline struct {
	config    Config
	extractor *extract.Extractor
	chunker   *chunker.Chunker
	indexer   *indexer.Indexer
	retrieval *retrieval.Engine
}

// NewWithConfig validates chunking parameters up front, so a bad overlap is
// rejected before any file is touched.
func NewWithConfig(config Config, store types.DocStore) (*Pipeline, error) {
	if config.Workers == 0 {
		config.Workers = DefaultWorkers
	}

	ck, err := chunker.NewWithConfig(config.Chunker)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		config:    config,
		extractor: extract.NewWithConfig(config.Extractor),
		chunker:   ck,
		indexer:   indexer.NewWithConfig(config.Indexer, store),
		retrieval: retrieval.NewWithConfig(config.Retrieval, store),
	}, nil
}

// Ingest processes one file end to end: hash, extract, chunk, resequence,
// index. A zero-chunk result with a nil error means the file held nothing
// extractable (unsupported format or empty content), which is not a failure.
func (p *Pipeline) Ingest(ctx context.Context, path string, meta Metadata) (models.IngestResult, error) {
	result := models.IngestResult{SourcePath: path}

	docID, err := extract.ComputeDocID(path)
	if err != nil {
		return result, err
	}
	result.DocID = docID

	units, err := p.extractor.Extract(ctx, path)
	if err != nil {
		return result, err
	}

	var chunks []models.Chunk
	for _, unit := range units {
		for j, text := range p.chunker.Split(unit.Text) {
			chunks = append(chunks, models.Chunk{
				DocID:      docID,
				ChunkID:    chunker.ChunkID(docID, j),
				SourcePath: path,
				PageNo:     unit.PageNo,
				ChunkNo:    j,
				Text:       text,
				Symbol:     meta.Symbol,
				Title:      meta.Title,
				URL:        meta.URL,
			})
		}
	}
	if len(chunks) == 0 {
		return result, nil
	}

	chunks = chunker.Resequence(chunks)

	written, err := p.indexer.Index(ctx, chunks)
	result.ChunksWritten = written
	return result, err
}

// IngestBatch processes paths on a bounded worker pool. One file's failure
// is logged and recorded in its FileResult without aborting the rest; the
// store's idempotent upserts are the only synchronization point.
func (p *Pipeline) IngestBatch(ctx context.Context, paths []string, meta Metadata) []models.FileResult {
	results := make([]models.FileResult, len(paths))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < p.config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				path := paths[i]
				res, err := p.Ingest(ctx, path, meta)
				if err != nil {
					log.Printf("ingest failed for %s: %v", path, err)
				}
				results[i] = models.FileResult{
					Path:          path,
					DocID:         res.DocID,
					ChunksWritten: res.ChunksWritten,
					Err:           err,
				}
				if p.config.OnProgress != nil {
					p.config.OnProgress(path)
				}
			}
		}()
	}

	for i := range paths {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

// IngestDir ingests every supported file under root.
func (p *Pipeline) IngestDir(ctx context.Context, root string, meta Metadata) ([]models.FileResult, error) {
	paths, err := extract.CollectPaths(root)
	if err != nil {
		return nil, err
	}
	return p.IngestBatch(ctx, paths, meta), nil
}

// Search proxies to the retrieval engine.
func (p *Pipeline) Search(ctx context.Context, query string, k int, scope *retrieval.Scope) ([]models.SearchHit, error) {
	return p.retrieval.Search(ctx, query, k, scope)
}

// Expand proxies to the retrieval engine.
func (p *Pipeline) Expand(ctx context.Context, hits []models.SearchHit, expandTopN, maxChunksPerDoc int) ([]string, map[string][]models.Chunk, error) {
	return p.retrieval.Expand(ctx, hits, expandTopN, maxChunksPerDoc)
}

// SearchResult pairs ranked hits with the expanded context of the documents
// they came from. DocOrder lists the expanded doc IDs in first-appearance
// hit order; iterate it rather than ranging over Expansion.
type SearchResult struct {
	Hits      []models.SearchHit
	DocOrder  []string
	Expansion map[string][]models.Chunk
}

// SearchWithExpansion runs a scoped search and expands the top documents in
// one call.
func (p *Pipeline) SearchWithExpansion(ctx context.Context, query string, k int, scope *retrieval.Scope, expandTopN, maxChunksPerDoc int) (*SearchResult, error) {
	hits, err := p.retrieval.Search(ctx, query, k, scope)
	if err != nil {
		return nil, err
	}
	order, expansion, err := p.retrieval.Expand(ctx, hits, expandTopN, maxChunksPerDoc)
	if err != nil {
		return nil, err
	}
	return &SearchResult{Hits: hits, DocOrder: order, Expansion: expansion}, nil
}
