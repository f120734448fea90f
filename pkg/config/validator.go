package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if c.Database.URL == "" {
		errors = append(errors, ValidationError{
			Field:   "database.url",
			Message: "database URL is required",
		})
	} else if _, err := url.Parse(c.Database.URL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "database.url",
			Message: "invalid database URL",
		})
	}

	if c.Database.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	if c.Embedding.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "embedding.base_url",
			Message: "embedding base URL is required",
		})
	}

	if c.Embedding.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "embedding.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	if c.Ingest.MaxChars < 1 {
		errors = append(errors, ValidationError{
			Field:   "ingest.max_chars",
			Message: "max_chars must be positive",
		})
	}

	// An overlap >= max_chars would keep the chunking window from advancing.
	if c.Ingest.Overlap == nil || *c.Ingest.Overlap < 0 || *c.Ingest.Overlap >= c.Ingest.MaxChars {
		errors = append(errors, ValidationError{
			Field:   "ingest.overlap",
			Message: "overlap must be non-negative and less than max_chars",
		})
	}

	if c.Ingest.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "ingest.batch_size",
			Message: "batch_size must be positive",
		})
	}

	if c.Ingest.Workers < 1 {
		errors = append(errors, ValidationError{
			Field:   "ingest.workers",
			Message: "workers must be positive",
		})
	}

	if c.Retrieval.Oversample < 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.oversample",
			Message: "oversample must be positive",
		})
	}

	if c.Retrieval.MinCandidates < 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.min_candidates",
			Message: "min_candidates must be positive",
		})
	}

	if c.Retrieval.SnippetLen < 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.snippet_len",
			Message: "snippet_len must be positive",
		})
	}

	return errors
}
