package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "OPENAI_MODEL", "LEAD_WEBHOOK_URLS", "PARAM_PREFIX", "BEDROCK_MODEL_ID", "LEAD_REPLY_DELAY"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)
	assert.Equal(t, 1000, cfg.OpenAIMaxTokens)
	assert.InDelta(t, 0.7, cfg.OpenAITemperature, 1e-9)
	assert.Equal(t, time.Second, cfg.LeadReplyDelay)
	assert.Nil(t, cfg.LeadWebhookURLs)
	assert.True(t, cfg.Offline())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("PARAM_PREFIX", "/sales-assistant/")
	t.Setenv("LEAD_WEBHOOK_URLS", " https://a.example/hook , ,https://b.example/hook")
	t.Setenv("MODERATION_ENABLED", "true")
	t.Setenv("SINK_TIMEOUT", "3s")
	t.Setenv("HISTORY_LIMIT", "not-a-number")

	cfg := Load()
	require.Equal(t, "9090", cfg.Port)
	require.Equal(t, "/sales-assistant", cfg.ParamPrefix)
	require.Equal(t, []string{"https://a.example/hook", "https://b.example/hook"}, cfg.LeadWebhookURLs)
	require.True(t, cfg.ModerationEnabled)
	require.Equal(t, 3*time.Second, cfg.SinkTimeout)
	require.Equal(t, 50, cfg.HistoryLimit)
	require.False(t, cfg.Offline())
}

func TestGetEnvAsDuration_InvalidFallsBack(t *testing.T) {
	t.Setenv("TURN_LOCK_TTL", "soon")
	require.Equal(t, 2*time.Minute, getEnvAsDuration("TURN_LOCK_TTL", 2*time.Minute))
}
