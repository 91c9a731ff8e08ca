// Package metadata invokes the external structural-metadata extractor and
// loads the region descriptions it writes.
package metadata

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"pdf-translator/internal/config"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/proc"
	"pdf-translator/internal/types"
)

// Runner runs the metadata extractor command
type Runner struct {
	command string
	args    []string
	workDir string
	jsonDir string
}

// NewRunner creates a Runner from the metadata configuration
func NewRunner(cfg config.MetadataConfig) *Runner {
	args := cfg.Args
	if args == nil {
		args = config.DefaultMetadataArgs
	}
	return &Runner{
		command: cfg.Command,
		args:    args,
		workDir: cfg.WorkDir,
		jsonDir: cfg.JSONDir,
	}
}

// Stem returns the file name of pdfPath without its extension
func Stem(pdfPath string) string {
	base := filepath.Base(pdfPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// JSONPath returns where the extractor writes the sidecar for pdfPath
func (r *Runner) JSONPath(pdfPath string) string {
	return filepath.Join(r.outputDir(), Stem(pdfPath)+".json")
}

func (r *Runner) outputDir() string {
	dir := r.jsonDir
	if dir == "" {
		dir = r.workDir
	} else if !filepath.IsAbs(dir) && r.workDir != "" {
		dir = filepath.Join(r.workDir, dir)
	}
	if dir == "" {
		dir = "."
	}
	return dir
}

// prefix is the output prefix handed to the extractor; the extractor appends
// "<stem>.json" to it verbatim.
func (r *Runner) prefix() string {
	if r.jsonDir == "" {
		return ""
	}
	return strings.TrimRight(r.jsonDir, `/\`) + string(filepath.Separator)
}

func (r *Runner) expandArgs(pdfPath string) []string {
	replacer := strings.NewReplacer(
		"{pdf}", pdfPath,
		"{prefix}", r.prefix(),
		"{stem}", Stem(pdfPath),
	)
	args := make([]string, len(r.args))
	for i, a := range r.args {
		args[i] = replacer.Replace(a)
	}
	return args
}

// Run executes the extractor against pdfPath and returns the expected JSON path.
// A failed or missing extractor is fatal and reported as ErrExtraction.
func (r *Runner) Run(ctx context.Context, pdfPath string) (string, error) {
	absPDF, err := filepath.Abs(pdfPath)
	if err != nil {
		return "", types.NewAppError(types.ErrInternal, "failed to resolve pdf path", err)
	}

	if r.jsonDir != "" {
		if err := os.MkdirAll(r.outputDir(), 0755); err != nil {
			return "", types.NewAppError(types.ErrInternal, "failed to create metadata directory", err)
		}
	}

	spec := proc.Spec{
		Name: r.command,
		Args: r.expandArgs(absPDF),
		Dir:  r.workDir,
	}
	logger.Info("running metadata extractor", logger.String("command", spec.String()))

	res, err := proc.Run(ctx, spec)
	if res.Stdout != "" {
		logger.Debug("metadata extractor stdout", logger.String("output", res.Stdout))
	}
	if err != nil {
		wrapped := eris.Wrapf(err, "metadata: %s failed for %s: %s", r.command, absPDF, res.Stderr)
		if proc.IsNotFound(err) {
			logger.Error("metadata extractor not found", err, logger.String("command", r.command))
			return "", types.NewAppErrorWithDetails(types.ErrExtraction, "metadata extractor not found", r.command, wrapped)
		}
		logger.Error("metadata extractor failed", err,
			logger.Int("exitCode", res.ExitCode),
			logger.String("stderr", res.Stderr))
		return "", types.NewAppError(types.ErrExtraction, "metadata extractor failed", wrapped)
	}

	jsonPath := r.JSONPath(absPDF)
	if _, err := os.Stat(jsonPath); err != nil {
		logger.Warn("metadata extractor exited cleanly but wrote no sidecar", logger.String("expected", jsonPath))
	} else {
		logger.Info("metadata extracted", logger.String("json", jsonPath), logger.Duration("elapsed", res.Duration))
	}
	return jsonPath, nil
}

// LoadRegions reads the region array written by the extractor
func LoadRegions(path string) ([]types.Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.NewAppErrorWithDetails(types.ErrFileNotFound, "metadata file not found", path, err)
		}
		return nil, types.NewAppErrorWithDetails(types.ErrInternal, "failed to read metadata file", path, err)
	}

	var regions []types.Region
	if err := json.Unmarshal(data, &regions); err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrMetadataInvalid, "malformed metadata file", path, err)
	}
	return regions, nil
}
