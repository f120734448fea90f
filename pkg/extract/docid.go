package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// ComputeDocID hashes a file's raw bytes and returns the hex digest. The
// hash is streamed so memory stays constant for arbitrarily large files.
// Two byte-identical files always produce the same id regardless of name;
// this id is the sole deduplication key for the whole pipeline.
func ComputeDocID(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file for hashing: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
