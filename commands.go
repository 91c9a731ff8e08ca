package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pdf-translator/internal/compiler"
	"pdf-translator/internal/figures"
	"pdf-translator/internal/generator"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

var (
	figJSONFile string
	figDPI      int

	genInput  string
	genOutput string

	compileOutput    string
	compileEngine    string
	compileResources []string
)

var figuresCmd = &cobra.Command{
	Use:   "figures PDF OUTPUT_DIR",
	Short: "Render the Figure regions listed in a metadata JSON file to PNG",
	Args:  cobra.ExactArgs(2),
	RunE:  runFigures,
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Translate a PDF into LaTeX and compile it",
	Long: `Sends the PDF and the listing of the output PDF's directory to the configured
model, saves the returned LaTeX document and compiles it with xelatex. Figures are
expected next to the output PDF.`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

var compileCmd = &cobra.Command{
	Use:   "compile TEX",
	Short: "Compile a LaTeX file with latexmk",
	Long: `Compiles TEX in a temporary workspace. Each --resource directory is copied into
the workspace first; use DIR=NAME to stage it under a different name.`,
	Args: cobra.ExactArgs(1),
	RunE: runCompile,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pdf-translator version %s\n", Version)
	},
}

func init() {
	figuresCmd.Flags().StringVarP(&figJSONFile, "json_file", "j", "outputa.json", "Figure metadata JSON")
	figuresCmd.Flags().IntVarP(&figDPI, "dpi", "d", 300, "Render resolution")

	generateCmd.Flags().StringVarP(&genInput, "input", "i", "input.pdf", "Input PDF")
	generateCmd.Flags().StringVarP(&genOutput, "output", "o", "output.pdf", "Output PDF")

	compileCmd.Flags().StringVarP(&compileOutput, "output", "o", "output.pdf", "Output PDF")
	compileCmd.Flags().StringVar(&compileEngine, "engine", "", "pdflatex, xelatex or lualatex (default from config)")
	compileCmd.Flags().StringArrayVar(&compileResources, "resource", nil, "Directory to stage into the workspace, DIR or DIR=NAME")
}

func runFigures(cmd *cobra.Command, args []string) error {
	extractor, err := figures.NewExtractor(cfgManager.GetConfig().Figures)
	if err != nil {
		return err
	}

	result, err := extractor.Extract(cmd.Context(), figures.Request{
		PDFPath:   args[0],
		JSONPath:  figJSONFile,
		OutputDir: args[1],
		DPI:       figDPI,
	})
	if err != nil {
		return err
	}
	for _, f := range result.Files {
		fmt.Println(f)
	}
	logger.Info("figures extracted",
		logger.Int("files", len(result.Files)),
		logger.Int("warnings", len(result.Warnings)))
	return nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg := cfgManager.GetConfig()
	provider, err := generator.NewProvider(cmd.Context(), cfg.Generation)
	if err != nil {
		return err
	}

	gen := generator.New(cfg.Generation, provider, compiler.NewLaTeXCompiler(cfg.Compiler))
	out, err := gen.Generate(cmd.Context(), genInput, genOutput)
	if err != nil {
		return err
	}
	fmt.Printf("Translated PDF: %s\n", out.Compile.PDFPath)
	return nil
}

func runCompile(cmd *cobra.Command, args []string) error {
	cfg := cfgManager.GetConfig()
	c := compiler.NewLaTeXCompiler(cfg.Compiler)

	engine := c.GetEngine()
	if compileEngine != "" {
		engine = types.Engine(compileEngine)
	}

	result, err := c.CompileFile(cmd.Context(), args[0], compileOutput, engine, parseResources(compileResources))
	if err != nil {
		if result != nil && result.Log != "" {
			logger.Debug("latexmk output", logger.String("log", result.Log))
		}
		return err
	}
	for _, w := range result.Warnings {
		fmt.Printf("warning: %s: %s\n", w.Resource, w.Message)
	}
	fmt.Printf("Compiled PDF: %s (%d pages)\n", result.PDFPath, result.PageCount)
	return nil
}

// parseResources turns DIR or DIR=NAME flags into staging resources
func parseResources(values []string) []compiler.Resource {
	resources := make([]compiler.Resource, 0, len(values))
	for _, v := range values {
		path, name, _ := strings.Cut(v, "=")
		resources = append(resources, compiler.Resource{Path: path, StageAs: name})
	}
	return resources
}
