package gzip

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/specialistvlad/gobblego/internal/registry"
	"github.com/specialistvlad/gobblego/modules/internal/testtree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gunzip(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	zr, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	out, err := io.ReadAll(zr)
	require.NoError(t, err)
	return string(out)
}

func TestCompress(t *testing.T) {
	body := strings.Repeat("body { color: red; }\n", 50)
	var logs []string
	d := testtree.Dir(t, map[string]string{
		"css/app.css": body,
		"logo.png":    "png",
	}, registry.Options{"level": 9}, &logs)

	require.NoError(t, Compress(context.Background(), d))

	out := testtree.Read(t, d.OutputDir)
	assert.Len(t, out, 3)
	assert.Equal(t, body, out["css/app.css"])
	assert.Equal(t, "png", out["logo.png"])
	assert.Equal(t, body, gunzip(t, filepath.Join(d.OutputDir, "css", "app.css.gz")))
	assert.NotContains(t, out, "logo.png.gz")
	assert.Equal(t, []string{"compressed 1 of 2 files"}, logs)
}

func TestCompressPatternsAndLevel(t *testing.T) {
	d := testtree.Dir(t, map[string]string{"data.bin": "bin"}, registry.Options{"patterns": "*.bin"}, nil)
	require.NoError(t, Compress(context.Background(), d))
	assert.Equal(t, "bin", gunzip(t, filepath.Join(d.OutputDir, "data.bin.gz")))

	d = testtree.Dir(t, map[string]string{"a.txt": "a"}, registry.Options{"level": 42}, nil)
	assert.Error(t, Compress(context.Background(), d))
}
