package market

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

// ReadClosesFile reads a close CSV from disk. Files ending in .xz or .lzma
// are decompressed on the fly.
func ReadClosesFile(path string) ([]Close, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := decompress(path, f)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", path, err)
	}
	return ReadClosesCSV(r)
}

func decompress(path string, in io.Reader) (io.Reader, error) {
	switch {
	case strings.HasSuffix(path, ".xz"):
		return xz.NewReader(in)
	case strings.HasSuffix(path, ".lzma"):
		return lzma.NewReader(in)
	default:
		return in, nil
	}
}
