package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	cmd.SetArgs(args)

	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetIn(strings.NewReader(stdin))

	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func submission(t *testing.T, elapsed time.Duration, extra map[string]interface{}) string {
	t.Helper()
	now := time.Now().UnixMilli()
	body := map[string]interface{}{
		"email":              "ada@example.com",
		"firstFocusTime":     now - elapsed.Milliseconds(),
		"submissionTime":     now,
		"challengeCompleted": true,
		"challengeMetrics":   map[string]interface{}{"completedChallenges": 1, "requiredChallenges": 1},
	}
	for k, v := range extra {
		body[k] = v
	}
	data, err := json.Marshal(body)
	require.NoError(t, err)
	return string(data)
}

func TestRoot_Help(t *testing.T) {
	out, err := execute(t, "", "--help")
	require.NoError(t, err)

	for _, sub := range []string{"serve", "validate", "challenge", "settings"} {
		assert.Contains(t, out, sub)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		stdin     bool
		wantErr   error
		wantValid bool
		wantBot   bool
	}{
		{
			name:      "human from file",
			body:      submission(t, 20*time.Second, nil),
			wantValid: true,
		},
		{
			name:      "human from stdin",
			body:      submission(t, 20*time.Second, nil),
			stdin:     true,
			wantValid: true,
		},
		{
			name:    "bot exits cleanly",
			body:    submission(t, 20*time.Second, map[string]interface{}{"website_field": "x"}),
			wantBot: true,
		},
		{
			name:    "invalid human exits non-zero",
			body:    submission(t, time.Second, map[string]interface{}{"challengeCompleted": false}),
			wantErr: errRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := []string{"validate"}
			stdin := ""
			if tt.stdin {
				stdin = tt.body
			} else {
				args = append(args, "--file", writeFile(t, "body.json", tt.body))
			}

			out, err := execute(t, stdin, args...)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}

			var verdict map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(out), &verdict))
			assert.Equal(t, tt.wantValid, verdict["valid"])
			assert.Equal(t, tt.wantBot, verdict["isBot"])
		})
	}

	_, err := execute(t, "{nope", "validate")
	assert.Error(t, err)
}

func TestChallenge(t *testing.T) {
	out, err := execute(t, "", "challenge", "--type", "arithmetic", "--answer")
	require.NoError(t, err)

	var ch map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &ch))
	assert.Equal(t, "arithmetic", ch["type"])
	assert.NotEmpty(t, ch["question"])
	assert.NotEmpty(t, ch["answer"])

	out, err = execute(t, "", "challenge")
	require.NoError(t, err)
	var hidden map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &hidden))
	assert.NotContains(t, hidden, "answer")

	_, err = execute(t, "", "challenge", "--type", "maze")
	assert.Error(t, err)
}

func TestSettings(t *testing.T) {
	path := writeFile(t, "config.yaml", `
anti_spam:
  settings:
    max_challenges: 2
    enable_honeypot: false
`)

	out, err := execute(t, "", "settings", "show", "--config", path)
	require.NoError(t, err)

	var s map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, 2.0, s["MAX_CHALLENGES"])
	assert.Equal(t, false, s["ENABLE_HONEYPOT"])
	assert.Equal(t, true, s["ENABLE_TIME_DELAY"])

	_, err = execute(t, "", "settings", "push", "--config", path)
	assert.ErrorContains(t, err, "redis is not configured")
}
