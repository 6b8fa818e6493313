package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no config.yaml present

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "claude-sonnet-4-6", cfg.Anthropic.Model)
	assert.Equal(t, 90*time.Second, cfg.Anthropic.VisionTimeout())
	assert.Equal(t, 15*time.Second, cfg.Anthropic.StructuredParseTimeout())
	assert.Equal(t, 90*time.Second, cfg.Anthropic.StructuredFallbackTimeout())
	assert.Equal(t, 12000, cfg.Anthropic.DraftMaxChars)
	assert.Equal(t, 2, cfg.PDF.MaxPages)
	assert.Equal(t, 1568, cfg.PDF.TargetLongEdge)
	assert.Equal(t, "gray", cfg.PDF.ColorMode)
	assert.Equal(t, int64(15*1024*1024), cfg.PDF.MaxPDFBytes())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.False(t, cfg.MockMode)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LEAVECLI_ANTHROPIC_MODEL", "claude-opus-4-1")
	t.Setenv("LEAVECLI_PDF_MAX_PAGES", "4")
	t.Setenv("LEAVECLI_MOCK_MODE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "claude-opus-4-1", cfg.Anthropic.Model)
	assert.Equal(t, 4, cfg.PDF.MaxPages)
	assert.True(t, cfg.MockMode)
}

func TestResolvedModels(t *testing.T) {
	c := AnthropicConfig{Model: "claude-sonnet-4-6"}

	// Per-stage models default to the shared model id.
	assert.Equal(t, "claude-sonnet-4-6", c.ResolvedVisionModel(""))
	assert.Equal(t, "claude-sonnet-4-6", c.ResolvedStructuredModel())

	// Stage-specific configuration wins over the shared id.
	c.VisionModel = "claude-opus-4-1"
	c.StructuredModel = "claude-haiku-4-5"
	assert.Equal(t, "claude-opus-4-1", c.ResolvedVisionModel(""))
	assert.Equal(t, "claude-haiku-4-5", c.ResolvedStructuredModel())

	// A per-run override beats everything.
	assert.Equal(t, "claude-haiku-4-5", c.ResolvedVisionModel("claude-haiku-4-5"))
}
