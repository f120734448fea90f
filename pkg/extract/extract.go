package extract

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// Unit is one extracted span of plain text. PageNo is 1-indexed for PDFs
// and 0 for single-unit formats.
type Unit struct {
	PageNo int
	Text   string
}

type Config struct {
	// OCRCommand is the tesseract-compatible binary invoked for images.
	OCRCommand string
	// Runner executes OCRCommand; defaults to os/exec.
	Runner CommandRunner
}

// Extractor converts files of unknown format into plain text units.
type Extractor struct {
	config Config
}

func NewWithConfig(config Config) *Extractor {
	if config.OCRCommand == "" {
		config.OCRCommand = "tesseract"
	}
	if config.Runner == nil {
		config.Runner = execRunner{}
	}
	return &Extractor{config: config}
}

func New() *Extractor {
	return NewWithConfig(Config{})
}

// Extract classifies path and returns its text units. An unsupported format
// yields zero units and a nil error so callers can report "nothing indexed"
// rather than a failure.
func (e *Extractor) Extract(ctx context.Context, path string) ([]Unit, error) {
	switch DetectKind(path) {
	case KindPDF:
		return extractPDF(path)
	case KindHTML:
		text, err := extractHTML(path)
		if err != nil {
			return nil, err
		}
		return []Unit{{Text: text}}, nil
	case KindText:
		text, err := extractText(path)
		if err != nil {
			return nil, err
		}
		return []Unit{{Text: text}}, nil
	case KindImage:
		text, err := e.extractImage(ctx, path)
		if err != nil {
			return nil, err
		}
		return []Unit{{Text: text}}, nil
	default:
		return nil, nil
	}
}

// extractPDF returns one unit per page in page order, pages 1-indexed.
func extractPDF(path string) ([]Unit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat pdf: %w", err)
	}

	reader, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to parse pdf %s: %w", path, err)
	}

	var units []Unit
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to extract pdf page %d: %w", i, err)
		}
		units = append(units, Unit{PageNo: i, Text: CleanWhitespace(text)})
	}
	return units, nil
}

// extractHTML strips script/style/noscript elements and flattens the rest
// of the document to text, one line per block element.
func extractHTML(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open html: %w", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to parse html %s: %w", path, err)
	}

	doc.Find("script, style, noscript").Remove()

	sel := doc.Find("body")
	if sel.Length() == 0 {
		sel = doc.Selection
	}

	var sb strings.Builder
	for _, node := range sel.Nodes {
		flattenHTML(node, &sb)
	}
	return CleanWhitespace(sb.String()), nil
}

// Block-level tags that end a line of text. Without the separator,
// adjacent minified blocks like <p>a</p><p>b</p> would run together.
var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"br": true, "dd": true, "div": true, "dl": true, "dt": true,
	"fieldset": true, "figure": true, "footer": true, "form": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "li": true, "main": true, "nav": true,
	"ol": true, "p": true, "pre": true, "section": true, "table": true,
	"td": true, "th": true, "tr": true, "ul": true,
}

func flattenHTML(n *html.Node, sb *strings.Builder) {
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		flattenHTML(c, sb)
	}
	if n.Type == html.ElementNode && blockTags[n.Data] {
		sb.WriteString("\n")
	}
}

func extractText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return CleanWhitespace(string(data)), nil
}

// extractImage runs OCR over the image and returns the recognized text.
func (e *Extractor) extractImage(ctx context.Context, path string) (string, error) {
	out, err := e.config.Runner.Run(ctx, e.config.OCRCommand, path, "stdout")
	if err != nil {
		return "", fmt.Errorf("ocr failed for %s: %w", path, err)
	}
	return CleanWhitespace(string(out)), nil
}

var (
	runsOfBlanks = regexp.MustCompile(`[ \t]+`)
	blankLines   = regexp.MustCompile(`\n{2,}`)
)

// CleanWhitespace collapses runs of spaces and tabs to one space, runs of
// blank lines to a single blank line, and trims the result.
func CleanWhitespace(s string) string {
	s = runsOfBlanks.ReplaceAllString(s, " ")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
