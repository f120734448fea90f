package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Database struct {
		URL       string `yaml:"url"`
		TableName string `yaml:"table_name"`
		VectorDim int    `yaml:"vector_dim"`
	} `yaml:"database"`

	Embedding struct {
		BaseURL   string  `yaml:"base_url"`
		Model     string  `yaml:"model"`
		RateLimit float64 `yaml:"rate_limit"`
	} `yaml:"embedding"`

	Ingest struct {
		MaxChars int `yaml:"max_chars"`
		// Overlap is a pointer so an explicit `overlap: 0` survives
		// defaulting; nil means unset.
		Overlap    *int   `yaml:"overlap"`
		BatchSize  int    `yaml:"batch_size"`
		Workers    int    `yaml:"workers"`
		OCRCommand string `yaml:"ocr_command"`
	} `yaml:"ingest"`

	Retrieval struct {
		Oversample      int `yaml:"oversample"`
		MinCandidates   int `yaml:"min_candidates"`
		SnippetLen      int `yaml:"snippet_len"`
		ExpandTopN      int `yaml:"expand_top_n"`
		MaxChunksPerDoc int `yaml:"max_chunks_per_doc"`
	} `yaml:"retrieval"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"docrag.yaml",
			"docrag.yml",
			filepath.Join(os.Getenv("HOME"), ".config/docrag/config.yaml"),
			"/etc/docrag/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Database.TableName == "" {
		config.Database.TableName = "chunks"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 768
	}

	if config.Embedding.BaseURL == "" {
		config.Embedding.BaseURL = "http://localhost:11434"
	}
	if config.Embedding.Model == "" {
		config.Embedding.Model = "nomic-embed-text:latest"
	}
	if config.Embedding.RateLimit == 0 {
		config.Embedding.RateLimit = 10
	}

	if config.Ingest.MaxChars == 0 {
		config.Ingest.MaxChars = 6000
	}
	if config.Ingest.Overlap == nil {
		overlap := 300
		config.Ingest.Overlap = &overlap
	}
	if config.Ingest.BatchSize == 0 {
		config.Ingest.BatchSize = 500
	}
	if config.Ingest.Workers == 0 {
		config.Ingest.Workers = 4
	}
	if config.Ingest.OCRCommand == "" {
		config.Ingest.OCRCommand = "tesseract"
	}

	if config.Retrieval.Oversample == 0 {
		config.Retrieval.Oversample = 6
	}
	if config.Retrieval.MinCandidates == 0 {
		config.Retrieval.MinCandidates = 50
	}
	if config.Retrieval.SnippetLen == 0 {
		config.Retrieval.SnippetLen = 400
	}
	if config.Retrieval.ExpandTopN == 0 {
		config.Retrieval.ExpandTopN = 2
	}
	if config.Retrieval.MaxChunksPerDoc == 0 {
		config.Retrieval.MaxChunksPerDoc = 50
	}
}

func mergeWithEnv(config *Config) {
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.Embedding.BaseURL = baseURL
	}
}
