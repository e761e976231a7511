package market

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

const fileRows = "date,symbol,close\n2026-01-02,spy,480.5\n2026-01-05,SPY,482\n"

func writeCompressed(t *testing.T, path string, wrap func(io.Writer) (io.WriteCloser, error)) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := io.WriteCloser(f)
	if wrap != nil {
		w, err = wrap(f)
		require.NoError(t, err)
	}
	_, err = io.WriteString(w, fileRows)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestReadClosesFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		file string
		wrap func(io.Writer) (io.WriteCloser, error)
	}{
		{"plain", "spy.csv", nil},
		{"xz", "spy.csv.xz", func(w io.Writer) (io.WriteCloser, error) { return xz.NewWriter(w) }},
		{"lzma", "spy.csv.lzma", func(w io.Writer) (io.WriteCloser, error) { return lzma.NewWriter(w) }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), tt.file)
			writeCompressed(t, path, tt.wrap)

			got, err := ReadClosesFile(path)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "SPY", got[0].Symbol)
			assert.Equal(t, 482.0, got[1].Price)
		})
	}
}

func TestReadClosesFileErrors(t *testing.T) {
	t.Parallel()

	_, err := ReadClosesFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.csv.xz")
	require.NoError(t, os.WriteFile(path, []byte(fileRows), 0644))
	_, err = ReadClosesFile(path)
	assert.ErrorContains(t, err, "decompress")
}
