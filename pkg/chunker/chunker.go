package chunker

import (
	"errors"
	"fmt"
	"strings"
)

const (
	DefaultMaxChars = 6000
	DefaultOverlap  = 300
)

// ErrInvalidOverlap is returned when overlap is negative or not smaller
// than max_chars. An overlap >= max_chars would keep the window from ever
// advancing.
var ErrInvalidOverlap = errors.New("chunker: overlap must satisfy 0 <= overlap < max_chars")

type Config struct {
	MaxChars int
	Overlap  int
}

// Chunker splits long text into overlapping fixed-size windows. Splitting
// is a pure function of the input, so the chunk list for fixed text and
// fixed parameters is always reproducible.
type Chunker struct {
	config Config
}

func NewWithConfig(config Config) (*Chunker, error) {
	if config.MaxChars == 0 {
		config.MaxChars = DefaultMaxChars
	}
	if config.MaxChars < 1 {
		return nil, fmt.Errorf("chunker: max_chars must be positive, got %d", config.MaxChars)
	}
	if config.Overlap < 0 || config.Overlap >= config.MaxChars {
		return nil, fmt.Errorf("%w: max_chars=%d overlap=%d", ErrInvalidOverlap, config.MaxChars, config.Overlap)
	}
	return &Chunker{config: config}, nil
}

func New() *Chunker {
	c, _ := NewWithConfig(Config{MaxChars: DefaultMaxChars, Overlap: DefaultOverlap})
	return c
}

// Split cuts text into windows of at most MaxChars characters, each window
// after the first starting Overlap characters before the previous window's
// end. Operates on runes so multi-byte text never splits mid-character.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= c.config.MaxChars {
		return []string{text}
	}

	var chunks []string
	offset := 0
	for offset < len(runes) {
		end := offset + c.config.MaxChars
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[offset:end]))
		if end == len(runes) {
			break
		}
		offset = end - c.config.Overlap
		if offset < 0 {
			offset = 0
		}
	}
	return chunks
}
