package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/resolvd/internal/config"
	"github.com/fyrsmithlabs/resolvd/internal/resolution"
)

func TestUnconfiguredCompletion(t *testing.T) {
	// Without an API key the engine still exists; every generation
	// attempt fails with a generation error rather than a panic or a
	// silent empty result.
	engine := resolution.NewEngine(unconfiguredCompletion{}, 0, zap.NewNop())

	_, err := engine.Generate(context.Background(), "connection refused", nil, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, resolution.ErrGeneration)
	assert.Contains(t, err.Error(), "api_key not configured")
}

func TestNewResolutionEngine(t *testing.T) {
	t.Run("without api key", func(t *testing.T) {
		cfg := &config.Config{}

		engine, err := newResolutionEngine(cfg, zap.NewNop())
		require.NoError(t, err)
		require.NotNil(t, engine)
	})

	t.Run("with api key", func(t *testing.T) {
		cfg := &config.Config{}
		cfg.LLM.APIKey = "sk-test"
		cfg.LLM.BaseURL = "https://openrouter.ai/api/v1"
		cfg.LLM.Model = "openai/gpt-4o-mini"

		engine, err := newResolutionEngine(cfg, zap.NewNop())
		require.NoError(t, err)
		require.NotNil(t, engine)
	})
}

func TestInitTelemetry(t *testing.T) {
	t.Run("disabled by default", func(t *testing.T) {
		cfg := &config.Config{}

		tel, err := initTelemetry(context.Background(), cfg)
		require.NoError(t, err)
		assert.False(t, tel.IsEnabled())
	})

	t.Run("enabled without endpoint stays off", func(t *testing.T) {
		// Export needs a collector endpoint; the flag alone must not
		// start exporters pointed at nothing.
		cfg := &config.Config{}
		cfg.Observability.EnableTelemetry = true

		tel, err := initTelemetry(context.Background(), cfg)
		require.NoError(t, err)
		assert.False(t, tel.IsEnabled())
	})
}
