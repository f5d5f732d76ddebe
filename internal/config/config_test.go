package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 9090, cfg.Server.GRPCPort)
	assert.Equal(t, 10, cfg.Validation.MinSubmissionTime)
	assert.Equal(t, 5, cfg.Validation.ChallengeTimeValue)
	assert.True(t, cfg.Validation.HoneypotCheck)
	assert.True(t, cfg.AntiSpam.Settings.IsZero())
	assert.Empty(t, cfg.Redis.URL)
	assert.False(t, cfg.Security.RateLimit.Enabled)
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
server:
  http_port: 8181
  shutdown_timeout: 5s
anti_spam:
  min_submission_time: 6
  max_random_delay: 2
  settings:
    enable_multiple_challenges: false
    max_challenges: 4
validation:
  challenge_check: false
  min_submission_time: 6
security:
  rate_limit:
    enabled: true
    requests_per_minute: 30
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8181, cfg.Server.HTTPPort)
	assert.Equal(t, 9090, cfg.Server.GRPCPort, "unset keys keep their defaults")
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 6, cfg.AntiSpam.MinSubmissionTime)
	require.NotNil(t, cfg.AntiSpam.Settings.EnableMultipleChallenges)
	assert.False(t, *cfg.AntiSpam.Settings.EnableMultipleChallenges)
	require.NotNil(t, cfg.AntiSpam.Settings.MaxChallenges)
	assert.Equal(t, 4, *cfg.AntiSpam.Settings.MaxChallenges)
	assert.Nil(t, cfg.AntiSpam.Settings.EnableHoneypot)
	assert.False(t, cfg.Validation.ChallengeCheck)
	assert.True(t, cfg.Validation.TimeDelayCheck)
	assert.Equal(t, 30, cfg.Security.RateLimit.RequestsPerMinute)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("HTTP_PORT", "8282")
	t.Setenv("REDIS_URL", "redis://localhost:6379/1")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("MIN_SUBMISSION_TIME", "12")
	t.Setenv("CHALLENGE_TIME_VALUE", "4")
	t.Setenv("MAX_CHALLENGES", "2")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8282, cfg.Server.HTTPPort)
	assert.Equal(t, "redis://localhost:6379/1", cfg.Redis.URL)
	assert.Equal(t, "debug", cfg.Monitoring.Logging.Level)
	assert.Equal(t, 12, cfg.Validation.MinSubmissionTime)
	assert.Equal(t, 12, cfg.AntiSpam.MinSubmissionTime)
	assert.Equal(t, 4, cfg.Validation.ChallengeTimeValue)
	require.NotNil(t, cfg.AntiSpam.Settings.ChallengeTimeValue)
	assert.Equal(t, 4, *cfg.AntiSpam.Settings.ChallengeTimeValue)
	require.NotNil(t, cfg.AntiSpam.Settings.MaxChallenges)
	assert.Equal(t, 2, *cfg.AntiSpam.Settings.MaxChallenges)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
	}{
		{name: "malformed yaml", content: "server: [1"},
		{name: "port clash", content: "server:\n  http_port: 9090\n"},
		{name: "port out of range", content: "server:\n  grpc_port: 70000\n"},
		{name: "zero time value", content: "anti_spam:\n  settings:\n    challenge_time_value: 0\n"},
		{name: "negative delay", content: "anti_spam:\n  max_random_delay: -1\n"},
		{name: "rate limit without budget", content: "security:\n  rate_limit:\n    enabled: true\n    requests_per_minute: 0\n"},
		{name: "bad env number", env: map[string]string{"GRPC_PORT": "abc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.content != "" {
				path = writeConfig(t, tt.content)
			}
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
