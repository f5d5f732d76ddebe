package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlooooowY/SteelMount-FormShield/internal/domain"
)

func TestResolve_LayerOrder(t *testing.T) {
	ambient := Overrides{
		EnableMultipleChallenges: Bool(false),
		ChallengeTimeValue:       Int(4),
		MaxChallenges:            Int(5),
	}
	local := Overrides{
		ChallengeTimeValue: Int(2),
		EnableHoneypot:     Bool(false),
	}

	s, err := Resolve(Defaults(), ambient, local)
	require.NoError(t, err)

	assert.Equal(t, domain.AntiSpamSettings{
		EnableTimeDelay:          true,
		EnableChallenge:          true,
		EnableHoneypot:           false,
		EnableMultipleChallenges: false,
		ChallengeTimeValue:       2,
		MaxChallenges:            5,
	}, s)
}

func TestResolve_NoLayers(t *testing.T) {
	s, err := Resolve(Defaults())
	require.NoError(t, err)
	assert.Equal(t, Defaults(), s)
}

func TestResolve_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		layer Overrides
	}{
		{name: "zero time value", layer: Overrides{ChallengeTimeValue: Int(0)}},
		{name: "no rounds with challenges on", layer: Overrides{MaxChallenges: Int(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(Defaults(), tt.layer)
			assert.Error(t, err)
		})
	}

	_, err := Resolve(Defaults(), Overrides{MaxChallenges: Int(0), EnableChallenge: Bool(false)})
	assert.NoError(t, err, "max challenges is irrelevant when challenges are off")
}

func TestOverrides_Merge(t *testing.T) {
	base := Overrides{ChallengeTimeValue: Int(4), EnableHoneypot: Bool(true)}
	top := Overrides{ChallengeTimeValue: Int(8)}

	merged := base.Merge(top)
	require.NotNil(t, merged.ChallengeTimeValue)
	assert.Equal(t, 8, *merged.ChallengeTimeValue)
	require.NotNil(t, merged.EnableHoneypot)
	assert.True(t, *merged.EnableHoneypot)
	assert.True(t, Overrides{}.IsZero())
	assert.False(t, merged.IsZero())
}

func TestParseOverrides_RoundTripsFields(t *testing.T) {
	o := Overrides{
		EnableTimeDelay:          Bool(false),
		EnableChallenge:          Bool(true),
		EnableHoneypot:           Bool(true),
		EnableMultipleChallenges: Bool(false),
		ChallengeTimeValue:       Int(7),
		MaxChallenges:            Int(2),
	}

	parsed, err := ParseOverrides(o.Fields())
	require.NoError(t, err)
	assert.Equal(t, o, parsed)
}

func TestParseOverrides(t *testing.T) {
	o, err := ParseOverrides(map[string]string{
		"challenge_time_value": " 6 ",
		"unrelated":            "x",
	})
	require.NoError(t, err)
	require.NotNil(t, o.ChallengeTimeValue)
	assert.Equal(t, 6, *o.ChallengeTimeValue)
	assert.Nil(t, o.MaxChallenges)

	_, err = ParseOverrides(map[string]string{domain.OptionEnableHoneypot: "maybe"})
	assert.Error(t, err)

	_, err = ParseOverrides(map[string]string{domain.OptionMaxChallenges: "three"})
	assert.Error(t, err)
}
