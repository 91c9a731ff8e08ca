package metadata

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-translator/internal/config"
	"pdf-translator/internal/types"
)

const sampleJSON = `[{"page":0,"regionBoundary":{"x1":1,"y1":2,"x2":3,"y2":4},"figType":"Figure","name":"fig1","caption":"c"}]`

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell-based fake extractor")
	}
}

func touchPDF(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("%PDF-1.4\n"), 0644))
	return p
}

func TestStem(t *testing.T) {
	assert.Equal(t, "paper", Stem("/a/b/paper.pdf"))
	assert.Equal(t, "paper.v2", Stem("paper.v2.pdf"))
	assert.Equal(t, "noext", Stem("noext"))
}

func TestJSONPath(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.MetadataConfig
		want string
	}{
		{"defaults", config.MetadataConfig{}, "paper.json"},
		{"work dir", config.MetadataConfig{WorkDir: "/w"}, "/w/paper.json"},
		{"absolute json dir", config.MetadataConfig{WorkDir: "/w", JSONDir: "/j"}, "/j/paper.json"},
		{"relative json dir", config.MetadataConfig{WorkDir: "/w", JSONDir: "meta"}, "/w/meta/paper.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRunner(tt.cfg)
			assert.Equal(t, filepath.FromSlash(tt.want), r.JSONPath("/in/paper.pdf"))
		})
	}
}

func TestExpandArgs(t *testing.T) {
	r := NewRunner(config.MetadataConfig{Command: "java", JSONDir: "out/"})
	args := r.expandArgs("/in/paper.pdf")
	assert.Equal(t, []string{"-jar", "pdf.jar", "/in/paper.pdf", "-d", "out" + string(filepath.Separator)}, args)

	r = NewRunner(config.MetadataConfig{Command: "java"})
	args = r.expandArgs("/in/paper.pdf")
	assert.Equal(t, "", args[4], "empty prefix writes next to the working directory")
}

func TestRunWritesSidecar(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	pdf := touchPDF(t, dir, "paper.pdf")
	jsonDir := filepath.Join(dir, "meta")

	r := NewRunner(config.MetadataConfig{
		Command: "sh",
		Args:    []string{"-c", `printf '%s' "$3" > "$1$2.json"`, "fake", "{prefix}", "{stem}", sampleJSON},
		JSONDir: jsonDir,
	})

	jsonPath, err := r.Run(context.Background(), pdf)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(jsonDir, "paper.json"), jsonPath)

	regions, err := LoadRegions(jsonPath)
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Equal(t, "fig1", regions[0].Name)
}

func TestRunWithoutSidecarIsNotFatal(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	pdf := touchPDF(t, dir, "paper.pdf")

	r := NewRunner(config.MetadataConfig{Command: "true", Args: []string{}, WorkDir: dir})
	jsonPath, err := r.Run(context.Background(), pdf)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "paper.json"), jsonPath)
}

func TestRunFailure(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	pdf := touchPDF(t, dir, "paper.pdf")

	r := NewRunner(config.MetadataConfig{Command: "sh", Args: []string{"-c", "echo broken jar >&2; exit 1"}})
	_, err := r.Run(context.Background(), pdf)
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrExtraction))
	assert.Contains(t, err.Error(), "broken jar")
}

func TestRunMissingBinary(t *testing.T) {
	dir := t.TempDir()
	pdf := touchPDF(t, dir, "paper.pdf")

	r := NewRunner(config.MetadataConfig{Command: "no-such-extractor-9c1e"})
	_, err := r.Run(context.Background(), pdf)
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrExtraction))
}

func TestLoadRegionsErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadRegions(filepath.Join(dir, "missing.json"))
	assert.True(t, types.HasCode(err, types.ErrFileNotFound))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0644))
	_, err = LoadRegions(bad)
	assert.True(t, types.HasCode(err, types.ErrMetadataInvalid))

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte("[]"), 0644))
	regions, err := LoadRegions(empty)
	require.NoError(t, err)
	assert.Empty(t, regions)
}
