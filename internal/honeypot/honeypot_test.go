package honeypot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/FlooooowY/SteelMount-FormShield/internal/challenge"
)

func TestIsTriggered(t *testing.T) {
	const field = "contact_input"

	tests := []struct {
		name   string
		values map[string]any
		want   bool
	}{
		{name: "absent", values: map[string]any{"email": "a@b.c"}, want: false},
		{name: "empty string", values: map[string]any{field: ""}, want: false},
		{name: "nil", values: map[string]any{field: nil}, want: false},
		{name: "zero", values: map[string]any{field: 0}, want: false},
		{name: "zero float", values: map[string]any{field: 0.0}, want: false},
		{name: "false", values: map[string]any{field: false}, want: false},
		{name: "filled", values: map[string]any{field: "spam"}, want: true},
		{name: "whitespace", values: map[string]any{field: " "}, want: true},
		{name: "true", values: map[string]any{field: true}, want: true},
		{name: "form multi value", values: map[string]any{field: []string{"", "x"}}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTriggered(tt.values, field))
		})
	}
}

func TestIsTriggered_EmptyFieldName(t *testing.T) {
	assert.False(t, IsTriggered(map[string]any{"": "x"}, ""))
}

func TestGenerateFieldName(t *testing.T) {
	rng := challenge.NewRand(5)
	names := map[string]bool{}

	for i := 0; i < 100; i++ {
		name := GenerateFieldName(rng)
		parts := strings.Split(name, "_")
		assert.Len(t, parts, 2)
		assert.True(t, MatchesSuspiciousSuffix(name), "generated names must be recognisable server-side: %s", name)
		names[name] = true
	}
	assert.Greater(t, len(names), 1, "names are randomised")
}

func TestMatchesSuspiciousSuffix(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{key: "contact_input", want: true},
		{key: "Website_Field", want: true},
		{key: "user_data", want: true},
		{key: "account_value", want: true},
		{key: "referral_entry", want: true},
		{key: "email", want: false},
		{key: "input", want: false},
		{key: "message", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesSuspiciousSuffix(tt.key))
		})
	}
}
