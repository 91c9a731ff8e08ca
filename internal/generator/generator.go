// Package generator asks a generative model to translate a PDF into a LaTeX
// document, extracts that document from the streamed answer and compiles it.
package generator

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pdf-translator/internal/compiler"
	"pdf-translator/internal/config"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

// Compiler turns LaTeX source into a PDF
type Compiler interface {
	CompileSource(ctx context.Context, req compiler.CompileRequest) (*types.CompileResult, error)
}

// Output describes what one Generate call produced
type Output struct {
	LaTeX        string
	DebugTexPath string
	ResponsePath string // raw response dump, only set when no LaTeX block was found
	Compile      *types.CompileResult
}

// Generator runs the translate-extract-compile step
type Generator struct {
	cfg      config.GenerationConfig
	provider Provider
	compiler Compiler
	out      io.Writer
	workDir  string
}

// New creates a Generator. Streamed chunks are echoed to stdout.
func New(cfg config.GenerationConfig, provider Provider, c Compiler) *Generator {
	workDir, err := os.Getwd()
	if err != nil {
		workDir = "."
	}
	return &Generator{
		cfg:      cfg,
		provider: provider,
		compiler: c,
		out:      os.Stdout,
		workDir:  workDir,
	}
}

// SetOutput redirects the streamed chunks
func (g *Generator) SetOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	g.out = w
}

// SetWorkDir sets the project root relative paths resolve against
func (g *Generator) SetWorkDir(dir string) {
	g.workDir = dir
}

func (g *Generator) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(g.workDir, path)
}

// Generate translates inputPDF and writes the compiled result to outputPDF.
// The figures are expected in the directory containing outputPDF.
func (g *Generator) Generate(ctx context.Context, inputPDF, outputPDF string) (*Output, error) {
	out := &Output{DebugTexPath: g.resolve(g.cfg.DebugTex)}

	pdfBytes, err := os.ReadFile(inputPDF)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Error("input pdf not found", err, logger.String("input", inputPDF))
			return out, types.NewAppErrorWithDetails(types.ErrFileNotFound, "input pdf not found", inputPDF, err)
		}
		return out, types.NewAppError(types.ErrInternal, "failed to read input pdf", err)
	}

	prompt, err := LoadPrompt(g.resolve(g.cfg.PromptFile))
	if err != nil {
		return out, err
	}

	imageDir := ImageDir(outputPDF)
	listing, err := ListImages(imageDir)
	if err != nil {
		return out, err
	}

	req := &Request{
		Model:           g.cfg.ResolvedModel(),
		SystemPrompt:    prompt,
		PDFPath:         inputPDF,
		PDF:             pdfBytes,
		Listing:         ListingText(listing),
		MaxOutputTokens: g.cfg.ResolvedMaxOutputTokens(),
		Temperature:     g.cfg.Temperature,
	}

	response, err := g.stream(ctx, req)
	if err != nil {
		return out, err
	}

	latex, extractErr := ExtractLaTeX(response)
	out.LaTeX = latex
	if err := writeFile(out.DebugTexPath, latex); err != nil {
		logger.Warn("failed to write debug tex", logger.String("path", out.DebugTexPath), logger.Err(err))
	} else {
		logger.Info("generated LaTeX saved", logger.String("path", out.DebugTexPath), logger.Int("bytes", len(latex)))
	}

	if extractErr != nil {
		out.ResponsePath = strings.TrimSuffix(out.DebugTexPath, filepath.Ext(out.DebugTexPath)) + ".response.txt"
		if err := writeFile(out.ResponsePath, response); err != nil {
			logger.Warn("failed to save raw response", logger.String("path", out.ResponsePath), logger.Err(err))
			out.ResponsePath = ""
		}
		logger.Error("model response contains no LaTeX document, skipping compilation", extractErr,
			logger.String("response", out.ResponsePath))
		return out, extractErr
	}

	result, err := g.compiler.CompileSource(ctx, compiler.CompileRequest{
		Source:      latex,
		OutputPath:  outputPDF,
		Engine:      types.EngineXeLaTeX,
		ProjectRoot: g.workDir,
		Resources:   []compiler.Resource{{Path: imageDir, StageAs: g.cfg.ImageStageName}},
	})
	out.Compile = result
	return out, err
}

// stream runs the provider under the configured timeout and collects the response
func (g *Generator) stream(ctx context.Context, req *Request) (string, error) {
	timeout := g.cfg.Timeout()
	if timeout <= 0 {
		timeout = time.Duration(config.DefaultGenerationTimeoutMS) * time.Millisecond
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger.Info("requesting translation",
		logger.String("provider", g.provider.Name()),
		logger.String("model", req.Model),
		logger.String("input", req.PDFPath),
		logger.Duration("timeout", timeout))

	var sb strings.Builder
	start := time.Now()
	err := g.provider.Stream(callCtx, req, func(chunk string) {
		sb.WriteString(chunk)
		io.WriteString(g.out, chunk)
	})
	io.WriteString(g.out, "\n")

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			logger.Error("translation request timed out", err, logger.Duration("timeout", timeout))
			return "", types.NewAppErrorWithDetails(types.ErrGenerationTimeout, "translation request timed out", timeout.String(), err)
		}
		logger.Error("translation request failed", err, logger.String("provider", g.provider.Name()))
		return "", types.NewAppError(types.ErrGeneration, "translation request failed", err)
	}

	logger.Info("translation received",
		logger.Int("chars", sb.Len()),
		logger.Duration("elapsed", time.Since(start)))
	return sb.String(), nil
}

func writeFile(path, content string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(content), 0644)
}
