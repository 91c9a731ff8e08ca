package generator

import (
	_ "embed"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

// ListingPrefix introduces the image directory listing sent alongside the PDF
const ListingPrefix = "图片目录下ls结果为:"

//go:embed default_prompt.md
var defaultPrompt string

// DefaultPrompt returns the built-in system prompt
func DefaultPrompt() string {
	return defaultPrompt
}

// LoadPrompt reads the system prompt from path. A missing file falls back to
// the built-in prompt; any other read error is a configuration error.
func LoadPrompt(path string) (string, error) {
	if path == "" {
		return defaultPrompt, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("prompt file not found, using built-in prompt", logger.String("path", path))
			return defaultPrompt, nil
		}
		return "", types.NewAppErrorWithDetails(types.ErrConfig, "failed to read prompt file", path, err)
	}
	return string(data), nil
}

// ListImages returns the sorted entry names of dir, one per line, the way
// `ls` prints them. A missing directory yields an empty listing.
func ListImages(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("image directory not found", logger.String("dir", dir))
			return "", nil
		}
		return "", types.NewAppErrorWithDetails(types.ErrInternal, "failed to list image directory", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	if len(names) == 0 {
		return "", nil
	}
	return strings.Join(names, "\n") + "\n", nil
}

// ListingText is the auxiliary text input telling the model which figure files exist
func ListingText(listing string) string {
	return ListingPrefix + listing
}

// ImageDir is the directory holding the figures for an output PDF
func ImageDir(outputPDF string) string {
	return filepath.Dir(outputPDF)
}
