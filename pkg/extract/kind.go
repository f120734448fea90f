package extract

import (
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Kind classifies an input file for extraction.
type Kind string

const (
	KindPDF         Kind = "pdf"
	KindHTML        Kind = "html"
	KindText        Kind = "text"
	KindImage       Kind = "image"
	KindUnsupported Kind = "unsupported"
)

var extKinds = map[string]Kind{
	".pdf":  KindPDF,
	".html": KindHTML,
	".htm":  KindHTML,
	".txt":  KindText,
	".md":   KindText,
	".csv":  KindText,
	".png":  KindImage,
	".jpg":  KindImage,
	".jpeg": KindImage,
	".webp": KindImage,
	".bmp":  KindImage,
	".tif":  KindImage,
	".tiff": KindImage,
}

// DetectKind classifies a file by extension first, then by sniffing the
// leading bytes when the extension is unknown.
func DetectKind(path string) Kind {
	ext := strings.ToLower(filepath.Ext(path))
	if kind, ok := extKinds[ext]; ok {
		return kind
	}
	return sniffKind(path)
}

func sniffKind(path string) Kind {
	f, err := os.Open(path)
	if err != nil {
		return KindUnsupported
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return KindUnsupported
	}

	switch ct := http.DetectContentType(buf[:n]); {
	case strings.Contains(ct, "html"):
		return KindHTML
	case strings.Contains(ct, "pdf"):
		return KindPDF
	case strings.HasPrefix(ct, "image/"):
		return KindImage
	case strings.HasPrefix(ct, "text/"):
		return KindText
	default:
		return KindUnsupported
	}
}

// SupportedExtensions returns every extension the extractor handles.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(extKinds))
	for ext := range extKinds {
		exts = append(exts, ext)
	}
	return exts
}

// CollectPaths walks root and returns every file with a supported extension.
// A plain file path is returned as-is.
func CollectPaths(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := extKinds[strings.ToLower(filepath.Ext(path))]; ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}
