package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pdf-translator/internal/config"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/pipeline"
	"pdf-translator/internal/types"
)

// Version is set at build time with -ldflags "-X main.Version=..."
var Version = "dev"

var (
	configPath string
	verbose    bool
	logFile    string
	apiKey     string

	inputPath string
	outputDir string

	cfgManager *config.ConfigManager
)

var rootCmd = &cobra.Command{
	Use:   "pdf-translator",
	Short: "Translate an academic PDF into a Chinese PDF",
	Long: `Extracts the figures of a PDF, asks a generative model to rewrite the paper
as a Chinese LaTeX document that reuses those figures, and compiles it with latexmk.

The translated PDF is written to <output>/<stem>_cn.pdf.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
	RunE:               runPipeline,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "TOML configuration file (default "+config.DefaultConfigFileName+")")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file as well")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api_key", "", "API key for the generation provider (overrides "+config.EnvAPIKey+")")

	rootCmd.Flags().StringVarP(&inputPath, "input", "i", "", "Input PDF")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory")
	rootCmd.MarkFlagRequired("input")
	rootCmd.MarkFlagRequired("output")

	rootCmd.AddCommand(figuresCmd, generateCmd, compileCmd, versionCmd)
}

// setup loads the configuration and starts the logger
func setup(cmd *cobra.Command, args []string) error {
	cfgManager = config.NewConfigManager(configPath)
	if err := cfgManager.Load(); err != nil {
		return err
	}
	cfgManager.SetAPIKey(apiKey)

	cfg := cfgManager.GetConfig()
	logCfg := cfg.Logging.LoggerConfig()
	if verbose {
		logCfg.Level = logger.LevelDebug
	}
	if logFile != "" {
		logCfg.LogFilePath = logFile
	}
	if err := logger.Init(logCfg); err != nil {
		return types.NewAppError(types.ErrConfig, "failed to initialize logger", err)
	}

	logger.Debug("configuration loaded",
		logger.String("path", cfgManager.GetConfigPath()),
		logger.String("provider", cfg.Generation.Provider),
		logger.String("model", cfg.Generation.ResolvedModel()),
		logger.String("renderer", cfg.Figures.Renderer),
		logger.String("engine", cfg.Compiler.Engine))
	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	return logger.Close()
}

func runPipeline(cmd *cobra.Command, args []string) error {
	driver, err := pipeline.NewDriver(cfgManager.GetConfig())
	if err != nil {
		return err
	}

	record, err := driver.Run(cmd.Context(), inputPath, outputDir, apiKey)
	if err != nil {
		return err
	}
	fmt.Printf("Translated PDF: %s\n", record.OutputPDF)
	if len(record.Warnings) > 0 {
		fmt.Printf("%d warning(s), see %s\n", len(record.Warnings), pipeline.RecordPath(inputPath, outputDir))
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Close()
		os.Exit(1)
	}
}
