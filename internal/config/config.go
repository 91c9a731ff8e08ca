// Package config provides configuration management for the PDF translation pipeline.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

const (
	// DefaultConfigFileName is the config file looked up in the working directory
	DefaultConfigFileName = "pdf-translator.toml"

	// EnvAPIKey is the environment variable holding the AI provider credential
	EnvAPIKey = "API_KEY"
	// EnvTimeout is the AI call timeout in milliseconds
	EnvTimeout = "TIMEOUT"
	// EnvProvider selects the AI provider
	EnvProvider = "AI_PROVIDER"
	// EnvModel selects the AI model
	EnvModel = "AI_MODEL"
	// EnvBaseURL overrides the AI provider endpoint
	EnvBaseURL = "AI_BASE_URL"
	// EnvEngine overrides the LaTeX engine
	EnvEngine = "LATEX_ENGINE"
	// EnvLogLevel overrides the log level
	EnvLogLevel = "LOG_LEVEL"

	// DefaultDPI is the figure rasterization resolution
	DefaultDPI = 300
	// DefaultRenderer is the page renderer used for figures
	DefaultRenderer = "mupdf"
	// DefaultPdftoppm is the poppler binary used by the poppler renderer
	DefaultPdftoppm = "pdftoppm"

	// DefaultProvider is the AI provider
	DefaultProvider = "gemini"
	// DefaultGeminiModel is the default model for the gemini provider
	DefaultGeminiModel = "gemini-2.5-flash"
	// DefaultClaudeModel is the default model for the claude provider
	DefaultClaudeModel = "claude-sonnet-4-5"
	// DefaultOpenAIModel is the default model for the openai provider
	DefaultOpenAIModel = "gpt-4o"
	// DefaultGeminiMaxOutputTokens is the output cap for the gemini provider
	DefaultGeminiMaxOutputTokens = 65535
	// DefaultClaudeMaxOutputTokens is the output cap for the claude provider
	DefaultClaudeMaxOutputTokens = 64000
	// DefaultOpenAIMaxOutputTokens is the output cap for the openai provider
	DefaultOpenAIMaxOutputTokens = 16384
	// DefaultTemperature is the sampling temperature
	DefaultTemperature = 0.1
	// DefaultGenerationTimeoutMS is the AI call timeout (10 minutes)
	DefaultGenerationTimeoutMS = 10 * 60 * 1000
	// DefaultPromptFile is the system prompt file
	DefaultPromptFile = "prompt.md"
	// DefaultDebugTex is where the extracted LaTeX is always written
	DefaultDebugTex = "output.tex"
	// DefaultImageStageName is the directory name figures are staged under for compilation
	DefaultImageStageName = "images"

	// DefaultEngine is the LaTeX engine
	DefaultEngine = "xelatex"
	// DefaultLatexmk is the LaTeX build tool
	DefaultLatexmk = "latexmk"
	// DefaultCompileTimeoutMS is the latexmk timeout (5 minutes)
	DefaultCompileTimeoutMS = 5 * 60 * 1000

	// DefaultLogLevel is the minimum log level
	DefaultLogLevel = "info"
	// DefaultLogMaxSizeMB is the log rotation size
	DefaultLogMaxSizeMB = 10
	// DefaultLogMaxBackups is the number of rotated log files kept
	DefaultLogMaxBackups = 5
)

// DefaultMetadataArgs is the argument template of the metadata extractor.
// {pdf}, {prefix} and {stem} are substituted per run.
var DefaultMetadataArgs = []string{"-jar", "pdf.jar", "{pdf}", "-d", "{prefix}"}

// Config is the full pipeline configuration
type Config struct {
	Metadata   MetadataConfig   `toml:"metadata"`
	Figures    FiguresConfig    `toml:"figures"`
	Generation GenerationConfig `toml:"generation"`
	Compiler   CompilerConfig   `toml:"compiler"`
	Logging    LoggingConfig    `toml:"logging"`
}

// MetadataConfig configures the external metadata extractor
type MetadataConfig struct {
	Command string   `toml:"command" validate:"required"`
	Args    []string `toml:"args"`
	WorkDir string   `toml:"work_dir"`
	JSONDir string   `toml:"json_dir"`
}

// FiguresConfig configures figure rasterization
type FiguresConfig struct {
	DPI      int    `toml:"dpi" validate:"gt=0,lte=1200"`
	Renderer string `toml:"renderer" validate:"oneof=mupdf poppler"`
	// PageBase is subtracted from the JSON page field before indexing pages.
	PageBase int    `toml:"page_base" validate:"oneof=0 1"`
	Pdftoppm string `toml:"pdftoppm"`
}

// GenerationConfig configures the AI translation call
type GenerationConfig struct {
	Provider        string  `toml:"provider" validate:"oneof=gemini claude openai"`
	Model           string  `toml:"model"`
	APIKey          string  `toml:"api_key"`
	BaseURL         string  `toml:"base_url" validate:"omitempty,url"`
	MaxOutputTokens int     `toml:"max_output_tokens" validate:"gte=0"` // 0 selects the provider default
	Temperature     float64 `toml:"temperature" validate:"gte=0,lte=2"`
	TimeoutMS       int     `toml:"timeout_ms" validate:"gt=0"`
	PromptFile      string  `toml:"prompt_file"`
	DebugTex        string  `toml:"debug_tex" validate:"required"`
	ImageStageName  string  `toml:"image_stage_name" validate:"required"`
}

// Timeout returns the AI call timeout
func (g GenerationConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutMS) * time.Millisecond
}

// ResolvedMaxOutputTokens returns the configured output cap or the provider's default
func (g GenerationConfig) ResolvedMaxOutputTokens() int {
	if g.MaxOutputTokens > 0 {
		return g.MaxOutputTokens
	}
	switch g.Provider {
	case "claude":
		return DefaultClaudeMaxOutputTokens
	case "openai":
		return DefaultOpenAIMaxOutputTokens
	default:
		return DefaultGeminiMaxOutputTokens
	}
}

// ResolvedModel returns the configured model or the provider's default
func (g GenerationConfig) ResolvedModel() string {
	if g.Model != "" {
		return g.Model
	}
	switch g.Provider {
	case "claude":
		return DefaultClaudeModel
	case "openai":
		return DefaultOpenAIModel
	default:
		return DefaultGeminiModel
	}
}

// CompilerConfig configures latexmk
type CompilerConfig struct {
	Engine    string `toml:"engine" validate:"oneof=pdflatex xelatex lualatex"`
	Latexmk   string `toml:"latexmk" validate:"required"`
	TimeoutMS int    `toml:"timeout_ms" validate:"gt=0"`
	TempRoot  string `toml:"temp_root"`
}

// Timeout returns the compile timeout
func (c CompilerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// LoggingConfig configures the logger
type LoggingConfig struct {
	Level      string `toml:"level" validate:"oneof=debug info warn error"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `toml:"max_backups" validate:"gte=0"`
	Console    bool   `toml:"console"`
}

// LoggerConfig converts the section into a logger configuration
func (l LoggingConfig) LoggerConfig() *logger.Config {
	return &logger.Config{
		LogFilePath:   l.File,
		MaxFileSize:   int64(l.MaxSizeMB) * 1024 * 1024,
		MaxBackups:    l.MaxBackups,
		Level:         logger.ParseLevel(l.Level),
		EnableConsole: l.Console,
	}
}

// Default returns a Config populated with default values
func Default() *Config {
	return &Config{
		Metadata: MetadataConfig{
			Command: "java",
			Args:    append([]string(nil), DefaultMetadataArgs...),
		},
		Figures: FiguresConfig{
			DPI:      DefaultDPI,
			Renderer: DefaultRenderer,
			Pdftoppm: DefaultPdftoppm,
		},
		Generation: GenerationConfig{
			Provider:        DefaultProvider,
			Temperature:     DefaultTemperature,
			TimeoutMS:       DefaultGenerationTimeoutMS,
			PromptFile:      DefaultPromptFile,
			DebugTex:        DefaultDebugTex,
			ImageStageName:  DefaultImageStageName,
		},
		Compiler: CompilerConfig{
			Engine:    DefaultEngine,
			Latexmk:   DefaultLatexmk,
			TimeoutMS: DefaultCompileTimeoutMS,
		},
		Logging: LoggingConfig{
			Level:      DefaultLogLevel,
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			Console:    true,
		},
	}
}

// Validate checks field constraints with go-playground/validator
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return types.NewAppErrorWithDetails(types.ErrConfig, "invalid configuration", describeValidation(err), err)
	}
	return nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Namespace()+" failed '"+fe.Tag()+"'")
	}
	return strings.Join(parts, "; ")
}

// ConfigManager manages application configuration
type ConfigManager struct {
	configPath string
	config     *Config
}

// NewConfigManager creates a new ConfigManager with the specified config path.
// If configPath is empty, DefaultConfigFileName in the working directory is used.
func NewConfigManager(configPath string) *ConfigManager {
	if configPath == "" {
		configPath = DefaultConfigFileName
	}
	return &ConfigManager{
		configPath: configPath,
		config:     Default(),
	}
}

// Load reads .env, the TOML file and environment overrides, in that order of
// increasing priority, then validates the result. A missing file means defaults.
func (m *ConfigManager) Load() error {
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file found, using system environment variables")
	}

	cfg := Default()
	data, err := os.ReadFile(m.configPath)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			logger.Error("failed to parse config file", err, logger.String("path", m.configPath))
			return types.NewAppErrorWithDetails(types.ErrConfig, "failed to parse config file", m.configPath, err)
		}
		logger.Info("configuration loaded", logger.String("path", m.configPath))
	case os.IsNotExist(err):
		logger.Debug("config file not found, using defaults", logger.String("path", m.configPath))
	default:
		logger.Error("failed to read config file", err, logger.String("path", m.configPath))
		return types.NewAppError(types.ErrConfig, "failed to read config file", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}
	m.config = cfg
	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(cfg *Config) {
	if key := os.Getenv(EnvAPIKey); key != "" {
		cfg.Generation.APIKey = key
	}
	if timeout := os.Getenv(EnvTimeout); timeout != "" {
		if ms, err := strconv.Atoi(timeout); err == nil {
			cfg.Generation.TimeoutMS = ms
		} else {
			logger.Warn("ignoring invalid TIMEOUT", logger.String("value", timeout))
		}
	}
	if provider := os.Getenv(EnvProvider); provider != "" {
		cfg.Generation.Provider = strings.ToLower(provider)
	}
	if model := os.Getenv(EnvModel); model != "" {
		cfg.Generation.Model = model
	}
	if baseURL := os.Getenv(EnvBaseURL); baseURL != "" {
		cfg.Generation.BaseURL = baseURL
	}
	if engine := os.Getenv(EnvEngine); engine != "" {
		cfg.Compiler.Engine = engine
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		cfg.Logging.Level = strings.ToLower(level)
	}
}

// GetConfig returns the loaded configuration
func (m *ConfigManager) GetConfig() *Config {
	return m.config
}

// GetConfigPath returns the config file path
func (m *ConfigManager) GetConfigPath() string {
	return m.configPath
}

// GetAPIKey returns the AI provider credential
func (m *ConfigManager) GetAPIKey() string {
	return m.config.Generation.APIKey
}

// SetAPIKey overrides the AI provider credential, e.g. from a CLI flag.
// An empty key leaves the current value untouched.
func (m *ConfigManager) SetAPIKey(key string) {
	if key != "" {
		m.config.Generation.APIKey = key
	}
}
