package pdf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-translator/internal/testutil"
	"pdf-translator/internal/types"
)

func TestPageCount(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []int{1, 3} {
		path := testutil.WritePDF(t, dir, "doc.pdf", n)
		count, err := PageCount(path)
		require.NoError(t, err)
		assert.Equal(t, n, count)
	}
}

func TestPageCountMissingFile(t *testing.T) {
	_, err := PageCount(filepath.Join(t.TempDir(), "missing.pdf"))
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrFileNotFound))
}

func TestPageCountGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.pdf")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a pdf"), 0644))

	_, err := PageCount(path)
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrInvalidInput))
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, Validate(testutil.WritePDF(t, dir, "ok.pdf", 2)))

	bad := filepath.Join(dir, "bad.pdf")
	require.NoError(t, os.WriteFile(bad, []byte("%PDF-1.4\nbroken"), 0644))
	err := Validate(bad)
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrInvalidInput))
}

func TestExtractText(t *testing.T) {
	path := testutil.WritePDF(t, t.TempDir(), "doc.pdf", 2)
	text, err := ExtractText(path)
	require.NoError(t, err)
	assert.Contains(t, text, "Hello page 1")
	assert.Contains(t, text, "Hello page 2")
	assert.Less(t, strings.Index(text, "Hello page 1"), strings.Index(text, "Hello page 2"))

	_, err = ExtractText(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "caf\u00e9", normalizeText("  cafe\u0301\n"))
	assert.Equal(t, "\ud55c", normalizeText("\u1112\u1161\u11ab"))
}
