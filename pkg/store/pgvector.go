package store

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/xhad/docrag/internal/models"
	"github.com/xhad/docrag/internal/types"
)

type VectorStoreConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
}

// VectorStore is the pgvector-backed document store. It computes embeddings
// itself (through the injected Embedder) so the rest of the pipeline only
// ever handles text. Rows are keyed by chunk_id; re-upserting the same key
// refreshes text, metadata, and the embedding, never doc_id or chunk_no.
type VectorStore struct {
	config   VectorStoreConfig
	pool     *pgxpool.Pool
	embedder types.Embedder
}

func NewWithConfig(config VectorStoreConfig, embedder types.Embedder) (*VectorStore, error) {
	if config.TableName == "" {
		config.TableName = "chunks"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}

	pool, err := pgxpool.New(context.Background(), config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &VectorStore{
		config:   config,
		pool:     pool,
		embedder: embedder,
	}

	if err := vs.initialize(); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *VectorStore) initialize() error {
	ctx := context.Background()

	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			chunk_id TEXT PRIMARY KEY,
			doc_id TEXT NOT NULL,
			chunk_no INTEGER NOT NULL,
			page_no INTEGER NOT NULL DEFAULT 0,
			symbol TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			embedding vector(%d)
		)`, vs.config.TableName, vs.config.VectorDim)

	if _, err := vs.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	createDocIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_doc_id_idx
		ON %s (doc_id, chunk_no)`,
		vs.config.TableName, vs.config.TableName)

	if _, err := vs.pool.Exec(ctx, createDocIndex); err != nil {
		return fmt.Errorf("failed to create doc_id index: %w", err)
	}

	createVectorIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		vs.config.TableName, vs.config.TableName)

	if _, err := vs.pool.Exec(ctx, createVectorIndex); err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}

	return nil
}

// UpsertChunks embeds and writes one batch inside a single transaction, so
// a batch either lands whole or not at all from the caller's perspective.
func (vs *VectorStore) UpsertChunks(ctx context.Context, chunks []models.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = sanitizeUTF8(ch.Text)
	}

	embeddings, err := vs.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed batch: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(embeddings), len(chunks))
	}

	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (chunk_id, doc_id, chunk_no, page_no, symbol, title, url, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (chunk_id) DO UPDATE SET
			content = EXCLUDED.content,
			symbol = EXCLUDED.symbol,
			title = EXCLUDED.title,
			url = EXCLUDED.url,
			page_no = EXCLUDED.page_no,
			embedding = EXCLUDED.embedding`,
		vs.config.TableName)

	for i, ch := range chunks {
		_, err := tx.Exec(ctx, stmt,
			ch.ChunkID,
			ch.DocID,
			ch.ChunkNo,
			ch.PageNo,
			ch.Symbol,
			sanitizeUTF8(ch.Title),
			ch.URL,
			texts[i],
			pgvector.NewVector(embeddings[i]),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert chunk %s: %w", ch.ChunkID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return len(chunks), nil
}

// NearestNeighbors embeds query and returns the closest stored chunks by
// cosine distance, most similar first.
func (vs *VectorStore) NearestNeighbors(ctx context.Context, query string, limit int) ([]models.ScoredChunk, error) {
	embeddings, err := vs.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query", len(embeddings))
	}

	sql := fmt.Sprintf(`
		SELECT chunk_id, doc_id, chunk_no, page_no, symbol, title, url, content,
			embedding <=> $1 AS distance
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`,
		vs.config.TableName)

	rows, err := vs.pool.Query(ctx, sql, pgvector.NewVector(embeddings[0]), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query neighbors: %w", err)
	}
	defer rows.Close()

	var results []models.ScoredChunk
	for rows.Next() {
		var sc models.ScoredChunk
		err := rows.Scan(
			&sc.ChunkID,
			&sc.DocID,
			&sc.ChunkNo,
			&sc.PageNo,
			&sc.Symbol,
			&sc.Title,
			&sc.URL,
			&sc.Text,
			&sc.Distance,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, sc)
	}
	return results, rows.Err()
}

// FetchByDocID returns one document's chunks in original document order.
func (vs *VectorStore) FetchByDocID(ctx context.Context, docID string, limit int) ([]models.Chunk, error) {
	sql := fmt.Sprintf(`
		SELECT chunk_id, doc_id, chunk_no, page_no, symbol, title, url, content
		FROM %s
		WHERE doc_id = $1
		ORDER BY chunk_no ASC
		LIMIT $2`,
		vs.config.TableName)

	rows, err := vs.pool.Query(ctx, sql, docID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chunks for doc %s: %w", docID, err)
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var ch models.Chunk
		err := rows.Scan(
			&ch.ChunkID,
			&ch.DocID,
			&ch.ChunkNo,
			&ch.PageNo,
			&ch.Symbol,
			&ch.Title,
			&ch.URL,
			&ch.Text,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		chunks = append(chunks, ch)
	}
	return chunks, rows.Err()
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
