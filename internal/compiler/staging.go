package compiler

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

// stageResources copies each resource directory into tmpDir. Problems never
// abort the compilation; they come back as warnings.
func stageResources(tmpDir, projectRoot string, resources []Resource) []types.StagingWarning {
	var warnings []types.StagingWarning
	warn := func(res, format string, args ...interface{}) {
		msg := fmt.Sprintf(format, args...)
		logger.Warn("resource not staged", logger.String("resource", res), logger.String("reason", msg))
		warnings = append(warnings, types.StagingWarning{Resource: res, Message: msg})
	}

	for _, r := range resources {
		src := r.Path
		if !filepath.IsAbs(src) && projectRoot != "" {
			src = filepath.Join(projectRoot, src)
		}

		info, err := os.Stat(src)
		if err != nil {
			warn(r.Path, "source directory not found: %s", src)
			continue
		}
		if !info.IsDir() {
			warn(r.Path, "source is not a directory: %s", src)
			continue
		}

		name := r.StageAs
		if name == "" {
			name = filepath.Base(filepath.Clean(src))
		}
		dst := filepath.Join(tmpDir, name)
		if _, err := os.Stat(dst); err == nil {
			warn(r.Path, "destination already exists: %s", name)
			continue
		}

		if err := copyDir(src, dst); err != nil {
			warn(r.Path, "copy failed: %v", err)
			continue
		}
		logger.Debug("resource staged", logger.String("source", src), logger.String("as", name))
	}
	return warnings
}

// copyFile copies a file from src to dst, creating dst's directory
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		destFile.Close()
		return err
	}
	return destFile.Close()
}

// copyDir recursively copies a directory
func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		dstPath := filepath.Join(dst, relPath)

		if d.IsDir() {
			return os.MkdirAll(dstPath, 0755)
		}
		return copyFile(path, dstPath)
	})
}
