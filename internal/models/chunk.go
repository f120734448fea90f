package models

// Chunk is a bounded span of a document's extracted text. DocID is the
// hex-encoded SHA-256 of the source file's raw bytes, so identity follows
// content, never path. PageNo is 1-indexed for paginated formats and 0 for
// everything else.
type Chunk struct {
	DocID      string
	ChunkID    string
	SourcePath string
	PageNo     int
	ChunkNo    int
	Text       string

	// Caller-supplied metadata, stamped uniformly across one ingestion call.
	Symbol string
	Title  string
	URL    string
}

// ScoredChunk is a chunk as returned by a nearest-neighbor lookup.
type ScoredChunk struct {
	Chunk
	Distance float64
}

// SearchHit is one retrieval result, nearest first. Snippet is a bounded
// prefix of the chunk text.
type SearchHit struct {
	ChunkID  string
	DocID    string
	PageNo   int
	Symbol   string
	Title    string
	URL      string
	Snippet  string
	Distance float64
}

// IngestResult reports what a single-file ingestion wrote.
type IngestResult struct {
	DocID         string
	SourcePath    string
	ChunksWritten int
}

// FileResult is the per-file outcome of a batch ingestion. Err is set when
// the file failed to process; ChunksWritten == 0 with a nil Err means the
// file was readable but nothing could be extracted from it.
type FileResult struct {
	Path          string
	DocID         string
	ChunksWritten int
	Err           error
}
