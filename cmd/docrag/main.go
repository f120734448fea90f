package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/xhad/docrag/pkg/chunker"
	cfgPkg "github.com/xhad/docrag/pkg/config"
	"github.com/xhad/docrag/pkg/extract"
	"github.com/xhad/docrag/pkg/indexer"
	"github.com/xhad/docrag/pkg/pipeline"
	"github.com/xhad/docrag/pkg/retrieval"
	"github.com/xhad/docrag/pkg/store"
)

type Flags struct {
	ConfigPath string
	DBUrl      string
	OllamaURL  string
	Model      string
	TableName  string

	IngestPath string
	MaxChars   int
	Overlap    int
	BatchSize  int
	Workers    int
	Symbol     string
	Title      string
	URL        string

	Query  string
	K      int
	DocID  string
	Expand int
}

func main() {
	flags := parseFlags()

	if err := run(flags); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() Flags {
	var f Flags

	flag.StringVar(&f.ConfigPath, "config", "", "Path to config file")
	flag.StringVar(&f.DBUrl, "db-url", "", "PostgreSQL connection string")
	flag.StringVar(&f.OllamaURL, "ollama-url", "", "Ollama server URL")
	flag.StringVar(&f.Model, "model", "", "Embedding model")
	flag.StringVar(&f.TableName, "table", "", "Chunk table name")

	flag.StringVar(&f.IngestPath, "ingest", "", "File or directory to ingest")
	flag.IntVar(&f.MaxChars, "max-chars", 0, "Max characters per chunk")
	flag.IntVar(&f.Overlap, "overlap", -1, "Overlap between chunks")
	flag.IntVar(&f.BatchSize, "batch-size", 0, "Batch size for store writes")
	flag.IntVar(&f.Workers, "workers", 0, "Concurrent ingestion workers")
	flag.StringVar(&f.Symbol, "symbol", "", "Ticker symbol to stamp on all chunks")
	flag.StringVar(&f.Title, "title", "", "Title to stamp on all chunks")
	flag.StringVar(&f.URL, "url", "", "Source URL to stamp on all chunks")

	flag.StringVar(&f.Query, "query", "", "Search query")
	flag.IntVar(&f.K, "k", 5, "Number of results")
	flag.StringVar(&f.DocID, "doc", "", "Restrict search to one doc_id")
	flag.IntVar(&f.Expand, "expand", 0, "Expand the top N distinct documents")
	flag.Parse()

	return f
}

func mergeFlags(cfg *cfgPkg.Config, f Flags) {
	if f.DBUrl != "" {
		cfg.Database.URL = f.DBUrl
	}
	if f.OllamaURL != "" {
		cfg.Embedding.BaseURL = f.OllamaURL
	}
	if f.Model != "" {
		cfg.Embedding.Model = f.Model
	}
	if f.TableName != "" {
		cfg.Database.TableName = f.TableName
	}
	if f.MaxChars > 0 {
		cfg.Ingest.MaxChars = f.MaxChars
	}
	if f.Overlap >= 0 {
		cfg.Ingest.Overlap = &f.Overlap
	}
	if f.BatchSize > 0 {
		cfg.Ingest.BatchSize = f.BatchSize
	}
	if f.Workers > 0 {
		cfg.Ingest.Workers = f.Workers
	}
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func run(flags Flags) error {
	if flags.IngestPath == "" && flags.Query == "" {
		flag.Usage()
		return fmt.Errorf("nothing to do: pass -ingest or -query")
	}

	cfg, err := cfgPkg.LoadConfig(flags.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	mergeFlags(cfg, flags)

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %s", e.Error())
		}
		return fmt.Errorf("invalid configuration")
	}

	embedder, err := store.NewEmbedderWithConfig(store.EmbedderConfig{
		Model:     cfg.Embedding.Model,
		BaseURL:   cfg.Embedding.BaseURL,
		RateLimit: cfg.Embedding.RateLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %w", err)
	}

	vectorStore, err := store.NewWithConfig(store.VectorStoreConfig{
		ConnString: cfg.Database.URL,
		TableName:  cfg.Database.TableName,
		VectorDim:  cfg.Database.VectorDim,
	}, embedder)
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %w", err)
	}
	defer vectorStore.Close()

	ctx := context.Background()

	if flags.IngestPath != "" {
		if err := runIngest(ctx, cfg, flags, vectorStore); err != nil {
			return err
		}
	}

	if flags.Query != "" {
		if err := runQuery(ctx, cfg, flags, vectorStore); err != nil {
			return err
		}
	}

	return nil
}

func runIngest(ctx context.Context, cfg *cfgPkg.Config, flags Flags, vectorStore *store.VectorStore) error {
	paths, err := extract.CollectPaths(flags.IngestPath)
	if err != nil {
		return fmt.Errorf("failed to collect input files: %w", err)
	}
	if len(paths) == 0 {
		color.Yellow("No supported files under %s", flags.IngestPath)
		return nil
	}

	bar := getProgressBar(len(paths), " Ingesting documents")

	p, err := pipeline.NewWithConfig(pipeline.Config{
		Chunker: chunker.Config{
			MaxChars: cfg.Ingest.MaxChars,
			Overlap:  *cfg.Ingest.Overlap,
		},
		Indexer: indexer.Config{
			BatchSize: cfg.Ingest.BatchSize,
		},
		Extractor: extract.Config{
			OCRCommand: cfg.Ingest.OCRCommand,
		},
		Workers: cfg.Ingest.Workers,
		OnProgress: func(string) {
			bar.Add(1)
		},
	}, vectorStore)
	if err != nil {
		return err
	}

	results := p.IngestBatch(ctx, paths, pipeline.Metadata{
		Symbol: flags.Symbol,
		Title:  flags.Title,
		URL:    flags.URL,
	})
	bar.Finish()
	fmt.Println()

	var written, empty, failed int
	for _, res := range results {
		switch {
		case res.Err != nil:
			failed++
			color.Red("✗ %s: %v", res.Path, res.Err)
		case res.ChunksWritten == 0:
			empty++
			color.Yellow("- %s: nothing extracted", res.Path)
		default:
			written += res.ChunksWritten
			color.Green("✓ %s: %d chunks (doc %.12s)", res.Path, res.ChunksWritten, res.DocID)
		}
	}

	color.Cyan("\nIngested %d chunks from %d files (%d empty, %d failed)",
		written, len(results), empty, failed)
	if failed > 0 {
		// Surface the failure to run() so deferred cleanup still executes.
		return fmt.Errorf("%d of %d files failed", failed, len(results))
	}
	return nil
}

func runQuery(ctx context.Context, cfg *cfgPkg.Config, flags Flags, vectorStore *store.VectorStore) error {
	p, err := pipeline.NewWithConfig(pipeline.Config{
		Chunker: chunker.Config{
			MaxChars: cfg.Ingest.MaxChars,
			Overlap:  *cfg.Ingest.Overlap,
		},
		Retrieval: retrieval.Config{
			Oversample:    cfg.Retrieval.Oversample,
			MinCandidates: cfg.Retrieval.MinCandidates,
			SnippetLen:    cfg.Retrieval.SnippetLen,
		},
	}, vectorStore)
	if err != nil {
		return err
	}

	var scope *retrieval.Scope
	if flags.DocID != "" || flags.Symbol != "" {
		scope = &retrieval.Scope{DocID: flags.DocID, Symbol: flags.Symbol}
	}

	spinner := getSpinner(" Searching...")
	result, err := p.SearchWithExpansion(ctx, flags.Query, flags.K, scope,
		flags.Expand, cfg.Retrieval.MaxChunksPerDoc)
	spinner.Finish()
	fmt.Println()

	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if len(result.Hits) == 0 {
		color.Yellow("No results")
		return nil
	}

	for i, hit := range result.Hits {
		color.Cyan("%d. %s (distance %.4f)", i+1, hit.ChunkID, hit.Distance)
		if hit.Title != "" || hit.Symbol != "" {
			color.Blue("   %s %s", hit.Symbol, hit.Title)
		}
		if hit.PageNo > 0 {
			color.Blue("   page %d", hit.PageNo)
		}
		fmt.Printf("   %s\n\n", hit.Snippet)
	}

	for _, docID := range result.DocOrder {
		chunks := result.Expansion[docID]
		color.Magenta("Document %.12s (%d chunks):", docID, len(chunks))
		for _, ch := range chunks {
			fmt.Printf("  [%d] %s\n", ch.ChunkNo, ch.Text)
		}
		fmt.Println()
	}

	return nil
}
