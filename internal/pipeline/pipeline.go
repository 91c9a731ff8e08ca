// Package pipeline runs the PDF translation stages in order: metadata
// extraction, figure rendering, then translation and compilation.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"pdf-translator/internal/compiler"
	"pdf-translator/internal/config"
	"pdf-translator/internal/figures"
	"pdf-translator/internal/generator"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/metadata"
	"pdf-translator/internal/pdf"
	"pdf-translator/internal/results"
	"pdf-translator/internal/types"
)

// OutputSuffix is appended to the input stem to name the translated PDF
const OutputSuffix = "_cn.pdf"

// MetadataRunner runs the figure metadata extractor
type MetadataRunner interface {
	Run(ctx context.Context, pdfPath string) (string, error)
	JSONPath(pdfPath string) string
}

// FigureExtractor renders figure regions into images
type FigureExtractor interface {
	Extract(ctx context.Context, req figures.Request) (*figures.Result, error)
}

// Generator translates a PDF and compiles the result
type Generator interface {
	Generate(ctx context.Context, inputPDF, outputPDF string) (*generator.Output, error)
}

// GeneratorFactory builds a Generator once the credential for a run is known
type GeneratorFactory func(ctx context.Context, cfg config.GenerationConfig) (Generator, error)

// Driver wires the stages together
type Driver struct {
	cfg          *config.Config
	metadata     MetadataRunner
	figures      FigureExtractor
	newGenerator GeneratorFactory
}

// NewDriver creates a Driver with the production stages configured by cfg
func NewDriver(cfg *config.Config) (*Driver, error) {
	extractor, err := figures.NewExtractor(cfg.Figures)
	if err != nil {
		return nil, err
	}
	return NewDriverWith(cfg, metadata.NewRunner(cfg.Metadata), extractor, DefaultGeneratorFactory(cfg.Compiler)), nil
}

// NewDriverWith creates a Driver from explicit stage implementations
func NewDriverWith(cfg *config.Config, m MetadataRunner, f FigureExtractor, g GeneratorFactory) *Driver {
	return &Driver{
		cfg:          cfg,
		metadata:     m,
		figures:      f,
		newGenerator: g,
	}
}

// DefaultGeneratorFactory builds the provider selected in the generation
// config and compiles with latexmk.
func DefaultGeneratorFactory(compilerCfg config.CompilerConfig) GeneratorFactory {
	return func(ctx context.Context, cfg config.GenerationConfig) (Generator, error) {
		provider, err := generator.NewProvider(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return generator.New(cfg, provider, compiler.NewLaTeXCompiler(compilerCfg)), nil
	}
}

// OutputPath returns the translated PDF path for input inside outputDir
func OutputPath(input, outputDir string) string {
	return filepath.Join(outputDir, metadata.Stem(input)+OutputSuffix)
}

// RecordPath returns where the run record for input is stored
func RecordPath(input, outputDir string) string {
	return filepath.Join(outputDir, metadata.Stem(input)+results.RecordSuffix)
}

// Run translates input into <outputDir>/<stem>_cn.pdf. A non-empty apiKey
// overrides the configured credential for this run. The returned record is
// never nil and has already been saved to <outputDir>/<stem>.run.json when
// the output directory is usable.
func (d *Driver) Run(ctx context.Context, input, outputDir, apiKey string) (*results.RunRecord, error) {
	record := results.NewRunRecord(input)
	logger.Info("starting pipeline",
		logger.String("run", record.ID),
		logger.String("input", input),
		logger.String("output_dir", outputDir))

	store, err := d.prepare(input, outputDir, record)
	if err != nil {
		record.Fail(err)
		if store != nil {
			d.save(store, record)
		}
		return record, err
	}

	err = d.run(ctx, input, outputDir, apiKey, record)
	if err != nil {
		record.Fail(err)
		logger.Error("pipeline failed", err,
			logger.String("run", record.ID),
			logger.String("stage", string(record.Stage)))
	} else {
		logger.Info("pipeline complete",
			logger.String("run", record.ID),
			logger.String("output", record.OutputPDF),
			logger.Duration("elapsed", record.Duration()))
	}
	d.save(store, record)
	return record, err
}

// prepare checks the inputs and opens the record store
func (d *Driver) prepare(input, outputDir string, record *results.RunRecord) (*results.ResultManager, error) {
	if outputDir == "" {
		return nil, types.NewAppError(types.ErrInvalidInput, "output directory is required", nil)
	}
	store, err := results.NewResultManager(outputDir)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(input)
	if err != nil {
		logger.Error("input pdf not found", err, logger.String("input", input))
		return store, types.NewAppErrorWithDetails(types.ErrFileNotFound, "input pdf not found", input, err)
	}
	if info.IsDir() {
		return store, types.NewAppErrorWithDetails(types.ErrInvalidInput, "input is a directory", input, nil)
	}

	if sum, err := results.CalculateFileMD5(input); err == nil {
		record.SourceMD5 = sum
		if prev, err := store.FindByMD5(sum, results.StatusComplete); err == nil && prev != nil {
			record.PreviousRun = prev.ID
			logger.Info("source was translated before, running again",
				logger.String("previous_run", prev.ID),
				logger.String("previous_output", prev.OutputPDF),
				logger.String("finished_at", prev.FinishedAt.Format(time.RFC3339)))
		}
	}
	if pages, err := pdf.PageCount(input); err == nil {
		record.PageCount = pages
		logger.Info("input pdf", logger.String("input", input), logger.Int("pages", pages))
	} else {
		logger.Debug("could not count input pages", logger.Err(err))
	}
	return store, nil
}

func (d *Driver) run(ctx context.Context, input, outputDir, apiKey string, record *results.RunRecord) error {
	// Step 1: figure metadata, fatal on failure
	record.Enter(results.StageMetadata)
	jsonPath, err := d.metadata.Run(ctx, input)
	if err != nil {
		return err
	}
	if jsonPath == "" {
		jsonPath = d.metadata.JSONPath(input)
	}
	record.MetadataJSON = jsonPath

	if err := ctx.Err(); err != nil {
		return types.NewAppError(types.ErrInternal, "cancelled", err)
	}

	// Step 2: figures, problems are logged and the run continues
	record.Enter(results.StageFigures)
	figResult, err := d.figures.Extract(ctx, figures.Request{
		PDFPath:   input,
		JSONPath:  jsonPath,
		OutputDir: outputDir,
		DPI:       d.cfg.Figures.DPI,
	})
	if figResult != nil {
		for _, f := range figResult.Files {
			record.Figures = append(record.Figures, filepath.Base(f))
		}
		for _, w := range figResult.Warnings {
			record.AddWarning(string(results.StageFigures), w)
		}
		logger.Info("figures ready", logger.Strings("files", record.Figures))
	}
	if err != nil {
		logger.Warn("figure extraction failed, continuing without figures", logger.Err(err))
		record.AddWarning(string(results.StageFigures), err.Error())
	}

	if err := ctx.Err(); err != nil {
		return types.NewAppError(types.ErrInternal, "cancelled", err)
	}

	// Step 3: translate and compile
	record.Enter(results.StageGenerate)
	genCfg := d.cfg.Generation
	if apiKey != "" {
		genCfg.APIKey = apiKey
	}
	gen, err := d.newGenerator(ctx, genCfg)
	if err != nil {
		return err
	}

	outputPDF := OutputPath(input, outputDir)
	out, err := gen.Generate(ctx, input, outputPDF)
	if out != nil {
		record.DebugTex = out.DebugTexPath
		if out.Compile != nil {
			record.Enter(results.StageCompile)
			record.OutputPages = out.Compile.PageCount
			for _, w := range out.Compile.Warnings {
				record.AddWarning(w.Resource, w.Message)
			}
		}
	}
	if err != nil {
		return err
	}

	path := outputPDF
	if out != nil && out.Compile != nil && out.Compile.PDFPath != "" {
		path = out.Compile.PDFPath
	}
	record.Complete(path)
	return nil
}

func (d *Driver) save(store *results.ResultManager, record *results.RunRecord) {
	path, err := store.Save(record)
	if err != nil {
		logger.Warn("failed to save run record", logger.Err(err))
		return
	}
	logger.Debug("run record saved", logger.String("path", path))
}
