package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvAPIKey, EnvTimeout, EnvProvider, EnvModel, EnvBaseURL, EnvEngine, EnvLogLevel} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pdf-translator.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	m := NewConfigManager(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, m.Load())

	cfg := m.GetConfig()
	assert.Equal(t, "java", cfg.Metadata.Command)
	assert.Equal(t, DefaultMetadataArgs, cfg.Metadata.Args)
	assert.Equal(t, 300, cfg.Figures.DPI)
	assert.Equal(t, "mupdf", cfg.Figures.Renderer)
	assert.Equal(t, 0, cfg.Figures.PageBase)
	assert.Equal(t, "gemini", cfg.Generation.Provider)
	assert.Equal(t, 0, cfg.Generation.MaxOutputTokens)
	assert.Equal(t, DefaultGeminiMaxOutputTokens, cfg.Generation.ResolvedMaxOutputTokens())
	assert.InDelta(t, 0.1, cfg.Generation.Temperature, 1e-9)
	assert.Equal(t, 10*time.Minute, cfg.Generation.Timeout())
	assert.Equal(t, "output.tex", cfg.Generation.DebugTex)
	assert.Equal(t, "images", cfg.Generation.ImageStageName)
	assert.Equal(t, "xelatex", cfg.Compiler.Engine)
	assert.Equal(t, 5*time.Minute, cfg.Compiler.Timeout())
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadTOMLFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
[metadata]
command = "/opt/pdffigures/run.sh"
args = ["{pdf}", "{prefix}"]
json_dir = "meta"

[figures]
dpi = 150
renderer = "poppler"
page_base = 1

[generation]
provider = "claude"
temperature = 0.3
timeout_ms = 1000

[compiler]
engine = "lualatex"
temp_root = "/var/tmp"

[logging]
level = "debug"
file = "run.log"
max_size_mb = 2
`)

	m := NewConfigManager(path)
	require.NoError(t, m.Load())
	cfg := m.GetConfig()

	assert.Equal(t, "/opt/pdffigures/run.sh", cfg.Metadata.Command)
	assert.Equal(t, []string{"{pdf}", "{prefix}"}, cfg.Metadata.Args)
	assert.Equal(t, "meta", cfg.Metadata.JSONDir)
	assert.Equal(t, 150, cfg.Figures.DPI)
	assert.Equal(t, "poppler", cfg.Figures.Renderer)
	assert.Equal(t, 1, cfg.Figures.PageBase)
	assert.Equal(t, "claude", cfg.Generation.Provider)
	assert.Equal(t, DefaultClaudeModel, cfg.Generation.ResolvedModel())
	assert.Equal(t, 64000, cfg.Generation.ResolvedMaxOutputTokens())
	assert.Equal(t, time.Second, cfg.Generation.Timeout())
	assert.Equal(t, "lualatex", cfg.Compiler.Engine)
	assert.Equal(t, "/var/tmp", cfg.Compiler.TempRoot)

	lc := cfg.Logging.LoggerConfig()
	assert.Equal(t, logger.LevelDebug, lc.Level)
	assert.Equal(t, "run.log", lc.LogFilePath)
	assert.Equal(t, int64(2*1024*1024), lc.MaxFileSize)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvAPIKey, "secret")
	t.Setenv(EnvTimeout, "2500")
	t.Setenv(EnvProvider, "OpenAI")
	t.Setenv(EnvModel, "gpt-4.1")
	t.Setenv(EnvBaseURL, "http://localhost:8080/v1")
	t.Setenv(EnvEngine, "pdflatex")
	t.Setenv(EnvLogLevel, "WARN")

	path := writeConfig(t, "[generation]\napi_key = \"from-file\"\n")
	m := NewConfigManager(path)
	require.NoError(t, m.Load())
	cfg := m.GetConfig()

	assert.Equal(t, "secret", m.GetAPIKey())
	assert.Equal(t, 2500*time.Millisecond, cfg.Generation.Timeout())
	assert.Equal(t, "openai", cfg.Generation.Provider)
	assert.Equal(t, "gpt-4.1", cfg.Generation.ResolvedModel())
	assert.Equal(t, "http://localhost:8080/v1", cfg.Generation.BaseURL)
	assert.Equal(t, "pdflatex", cfg.Compiler.Engine)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestInvalidTimeoutIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvTimeout, "soon")

	m := NewConfigManager(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, m.Load())
	assert.Equal(t, DefaultGenerationTimeoutMS, m.GetConfig().Generation.TimeoutMS)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown renderer", "[figures]\nrenderer = \"ghostscript\"\n"},
		{"zero dpi", "[figures]\ndpi = 0\n"},
		{"bad page base", "[figures]\npage_base = 2\n"},
		{"unknown provider", "[generation]\nprovider = \"llama\"\n"},
		{"unknown engine", "[compiler]\nengine = \"context\"\n"},
		{"bad base url", "[generation]\nbase_url = \"not a url\"\n"},
		{"negative max output tokens", "[generation]\nmax_output_tokens = -1\n"},
		{"malformed toml", "[figures\ndpi = 1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			m := NewConfigManager(writeConfig(t, tt.content))
			err := m.Load()
			require.Error(t, err)
			assert.True(t, types.HasCode(err, types.ErrConfig))
		})
	}
}

func TestSetAPIKey(t *testing.T) {
	m := NewConfigManager("")
	assert.Equal(t, DefaultConfigFileName, m.GetConfigPath())

	m.SetAPIKey("k1")
	assert.Equal(t, "k1", m.GetAPIKey())
	m.SetAPIKey("")
	assert.Equal(t, "k1", m.GetAPIKey())
}

func TestResolvedModel(t *testing.T) {
	tests := []struct {
		provider  string
		model     string
		maxTokens int
		want      string
		wantMax   int
	}{
		{"gemini", "", 0, DefaultGeminiModel, 65535},
		{"claude", "", 0, DefaultClaudeModel, 64000},
		{"openai", "", 0, DefaultOpenAIModel, 16384},
		{"gemini", "gemini-2.5-pro", 0, "gemini-2.5-pro", 65535},
		{"openai", "gpt-4.1", 32768, "gpt-4.1", 32768},
	}
	for _, tt := range tests {
		g := GenerationConfig{Provider: tt.provider, Model: tt.model, MaxOutputTokens: tt.maxTokens}
		assert.Equal(t, tt.want, g.ResolvedModel())
		assert.Equal(t, tt.wantMax, g.ResolvedMaxOutputTokens(), tt.provider)
	}
}
