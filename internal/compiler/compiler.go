// Package compiler provides LaTeX compilation functionality.
package compiler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"pdf-translator/internal/config"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/pdf"
	"pdf-translator/internal/proc"
	"pdf-translator/internal/types"
)

const (
	// TempDocumentName is the source file written into the workspace
	TempDocumentName = "temp_document.tex"
	// tempOutputName is what latexmk produces from TempDocumentName
	tempOutputName = "temp_document.pdf"
)

// DefaultTimeout is the default compilation timeout
const DefaultTimeout = 5 * time.Minute

// Resource is a directory copied into the compilation workspace
type Resource struct {
	// Path is absolute or relative to the project root
	Path string
	// StageAs names the directory inside the workspace; base name of Path when empty
	StageAs string
}

// CompileRequest describes one compilation
type CompileRequest struct {
	Source      string
	OutputPath  string
	Engine      types.Engine // compiler default when empty
	ProjectRoot string       // working directory when empty
	Resources   []Resource
}

// LaTeXCompiler is responsible for compiling LaTeX documents
type LaTeXCompiler struct {
	latexmk  string
	engine   types.Engine
	timeout  time.Duration
	tempRoot string
}

// NewLaTeXCompiler creates a new LaTeXCompiler instance
func NewLaTeXCompiler(cfg config.CompilerConfig) *LaTeXCompiler {
	c := &LaTeXCompiler{
		latexmk:  cfg.Latexmk,
		engine:   types.Engine(cfg.Engine),
		timeout:  cfg.Timeout(),
		tempRoot: cfg.TempRoot,
	}
	if c.latexmk == "" {
		c.latexmk = config.DefaultLatexmk
	}
	if c.engine == "" {
		c.engine = types.EngineXeLaTeX
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	return c
}

// GetEngine returns the default engine
func (c *LaTeXCompiler) GetEngine() types.Engine {
	return c.engine
}

// GetTimeout returns the compilation timeout
func (c *LaTeXCompiler) GetTimeout() time.Duration {
	return c.timeout
}

// CompileFile compiles a tex file from disk. Relative resources resolve against
// the directory holding the file.
func (c *LaTeXCompiler) CompileFile(ctx context.Context, texPath, outputPath string, engine types.Engine, resources []Resource) (*types.CompileResult, error) {
	content, err := os.ReadFile(texPath)
	if err != nil {
		logger.Error("failed to read tex file", err, logger.String("texPath", texPath))
		return &types.CompileResult{
			Success:  false,
			ErrorMsg: fmt.Sprintf("failed to read tex file: %v", err),
		}, types.NewAppErrorWithDetails(types.ErrFileNotFound, "failed to read tex file", texPath, err)
	}

	absTex, err := filepath.Abs(texPath)
	if err != nil {
		return &types.CompileResult{Success: false, ErrorMsg: err.Error()},
			types.NewAppError(types.ErrInternal, "failed to get absolute path", err)
	}

	return c.CompileSource(ctx, CompileRequest{
		Source:      string(content),
		OutputPath:  outputPath,
		Engine:      engine,
		ProjectRoot: filepath.Dir(absTex),
		Resources:   resources,
	})
}

// CompileSource compiles LaTeX source in an isolated temporary workspace and
// copies the resulting PDF to req.OutputPath. Success is decided solely by the
// presence of the PDF; the latexmk exit status is only logged.
func (c *LaTeXCompiler) CompileSource(ctx context.Context, req CompileRequest) (*types.CompileResult, error) {
	engine := req.Engine
	if engine == "" {
		engine = c.engine
	}
	if !engine.Valid() {
		return &types.CompileResult{Success: false, ErrorMsg: "unsupported engine " + string(engine)},
			types.NewAppErrorWithDetails(types.ErrInvalidInput, "unsupported LaTeX engine", string(engine), nil)
	}
	if req.OutputPath == "" {
		return &types.CompileResult{Success: false, ErrorMsg: "missing output path"},
			types.NewAppError(types.ErrInvalidInput, "missing output path", nil)
	}

	if c.tempRoot != "" {
		if err := os.MkdirAll(c.tempRoot, 0755); err != nil {
			return &types.CompileResult{Success: false, ErrorMsg: err.Error()},
				types.NewAppError(types.ErrInternal, "failed to create temp root", err)
		}
	}
	tmpDir, err := os.MkdirTemp(c.tempRoot, "latex-compile-")
	if err != nil {
		logger.Error("failed to create compilation workspace", err)
		return &types.CompileResult{Success: false, ErrorMsg: err.Error()},
			types.NewAppError(types.ErrInternal, "failed to create compilation workspace", err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			logger.Warn("failed to remove compilation workspace", logger.String("dir", tmpDir), logger.Err(err))
		}
	}()
	logger.Debug("compilation workspace created", logger.String("dir", tmpDir))

	texPath := filepath.Join(tmpDir, TempDocumentName)
	if err := os.WriteFile(texPath, []byte(req.Source), 0644); err != nil {
		logger.Error("failed to write tex source", err, logger.String("path", texPath))
		return &types.CompileResult{Success: false, ErrorMsg: err.Error()},
			types.NewAppError(types.ErrInternal, "failed to write tex source", err)
	}

	result := &types.CompileResult{}
	result.Warnings = stageResources(tmpDir, req.ProjectRoot, req.Resources)

	spec := proc.Spec{
		Name:    c.latexmk,
		Args:    buildLatexmkArgs(engine, tmpDir),
		Dir:     tmpDir,
		Timeout: c.timeout,
	}
	logger.Info("running latexmk", logger.String("engine", string(engine)), logger.String("command", spec.String()))

	res, runErr := proc.Run(ctx, spec)
	result.Log = res.Combined()
	if runErr != nil {
		if proc.IsNotFound(runErr) {
			logger.Error("latexmk not found, please install a TeX distribution", runErr, logger.String("latexmk", c.latexmk))
			result.ErrorMsg = "latexmk not found"
			return result, types.NewAppErrorWithDetails(types.ErrCompilerNotFound, "LaTeX build tool not found", c.latexmk,
				eris.Wrapf(runErr, "compiler: %s", c.latexmk))
		}
		if res.TimedOut {
			logger.Warn("latexmk timed out", logger.Duration("timeout", c.timeout))
		} else {
			logger.Warn("latexmk exited with errors", logger.Int("exitCode", res.ExitCode), logger.Err(runErr))
		}
	}

	builtPDF := filepath.Join(tmpDir, tempOutputName)
	if _, err := os.Stat(builtPDF); err != nil {
		logger.Error("PDF file was not generated", nil, logger.String("expectedPath", builtPDF))
		result.ErrorMsg = "PDF file was not generated"
		var cause error
		if runErr != nil {
			cause = eris.Wrapf(runErr, "compiler: latexmk exit %d", res.ExitCode)
		}
		return result, types.NewAppError(types.ErrCompileOutputMissing, "PDF file was not generated", cause)
	}

	outPath, err := filepath.Abs(req.OutputPath)
	if err != nil {
		result.ErrorMsg = err.Error()
		return result, types.NewAppError(types.ErrInternal, "failed to get absolute output path", err)
	}
	if err := copyFile(builtPDF, outPath); err != nil {
		logger.Error("failed to copy compiled PDF", err, logger.String("output", outPath))
		result.ErrorMsg = err.Error()
		return result, types.NewAppError(types.ErrInternal, "failed to copy compiled PDF", err)
	}

	result.Success = true
	result.PDFPath = outPath

	if err := pdf.Validate(outPath); err != nil {
		logger.Warn("compiled PDF failed validation", logger.String("path", outPath), logger.Err(err))
		result.Warnings = append(result.Warnings, types.StagingWarning{Resource: outPath, Message: err.Error()})
	}
	if pages, err := pdf.PageCount(outPath); err == nil {
		result.PageCount = pages
	}

	logger.Info("compilation completed successfully",
		logger.String("pdfPath", outPath),
		logger.Int("pages", result.PageCount),
		logger.Duration("elapsed", res.Duration))
	return result, nil
}

// buildLatexmkArgs builds the latexmk command line. -g forces a rebuild and
// -f keeps going past errors so partially broken documents still yield a PDF.
func buildLatexmkArgs(engine types.Engine, outputDir string) []string {
	return []string{
		"-" + string(engine),
		"-interaction=nonstopmode",
		"-file-line-error",
		"-output-directory=" + outputDir,
		"-g",
		"-f",
		TempDocumentName,
	}
}
