// Package settings resolves the effective anti-spam settings of a form from
// library defaults, the ambient (process-wide) layer and per-form overrides.
package settings

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/FlooooowY/SteelMount-FormShield/internal/domain"
)

// Library defaults
const (
	DefaultChallengeTimeValue = 5
	DefaultMaxChallenges      = 3
	DefaultMinSubmissionTime  = 10
	DefaultMaxRandomDelay     = 5
)

// Defaults returns the library default settings
func Defaults() domain.AntiSpamSettings {
	return domain.AntiSpamSettings{
		EnableTimeDelay:          true,
		EnableChallenge:          true,
		EnableHoneypot:           true,
		EnableMultipleChallenges: true,
		ChallengeTimeValue:       DefaultChallengeTimeValue,
		MaxChallenges:            DefaultMaxChallenges,
	}
}

// Overrides is one layer of the chain; nil fields leave the value below untouched
type Overrides struct {
	EnableTimeDelay          *bool `yaml:"enable_time_delay" json:"ENABLE_TIME_DELAY,omitempty"`
	EnableChallenge          *bool `yaml:"enable_challenge_dialog" json:"ENABLE_CHALLENGE_DIALOG,omitempty"`
	EnableHoneypot           *bool `yaml:"enable_honeypot" json:"ENABLE_HONEYPOT,omitempty"`
	EnableMultipleChallenges *bool `yaml:"enable_multiple_challenges" json:"ENABLE_MULTIPLE_CHALLENGES,omitempty"`
	ChallengeTimeValue       *int  `yaml:"challenge_time_value" json:"CHALLENGE_TIME_VALUE,omitempty"`
	MaxChallenges            *int  `yaml:"max_challenges" json:"MAX_CHALLENGES,omitempty"`
}

// IsZero reports whether the layer overrides nothing
func (o Overrides) IsZero() bool {
	return o == Overrides{}
}

// Apply writes the set fields of o over s
func (o Overrides) Apply(s domain.AntiSpamSettings) domain.AntiSpamSettings {
	if o.EnableTimeDelay != nil {
		s.EnableTimeDelay = *o.EnableTimeDelay
	}
	if o.EnableChallenge != nil {
		s.EnableChallenge = *o.EnableChallenge
	}
	if o.EnableHoneypot != nil {
		s.EnableHoneypot = *o.EnableHoneypot
	}
	if o.EnableMultipleChallenges != nil {
		s.EnableMultipleChallenges = *o.EnableMultipleChallenges
	}
	if o.ChallengeTimeValue != nil {
		s.ChallengeTimeValue = *o.ChallengeTimeValue
	}
	if o.MaxChallenges != nil {
		s.MaxChallenges = *o.MaxChallenges
	}
	return s
}

// Merge returns a layer where the set fields of top win over o
func (o Overrides) Merge(top Overrides) Overrides {
	if top.EnableTimeDelay != nil {
		o.EnableTimeDelay = top.EnableTimeDelay
	}
	if top.EnableChallenge != nil {
		o.EnableChallenge = top.EnableChallenge
	}
	if top.EnableHoneypot != nil {
		o.EnableHoneypot = top.EnableHoneypot
	}
	if top.EnableMultipleChallenges != nil {
		o.EnableMultipleChallenges = top.EnableMultipleChallenges
	}
	if top.ChallengeTimeValue != nil {
		o.ChallengeTimeValue = top.ChallengeTimeValue
	}
	if top.MaxChallenges != nil {
		o.MaxChallenges = top.MaxChallenges
	}
	return o
}

// Resolve applies the layers over base in order and validates the result
func Resolve(base domain.AntiSpamSettings, layers ...Overrides) (domain.AntiSpamSettings, error) {
	s := base
	for _, l := range layers {
		s = l.Apply(s)
	}
	if err := Validate(s); err != nil {
		return domain.AntiSpamSettings{}, err
	}
	return s, nil
}

// Validate checks the numeric options
func Validate(s domain.AntiSpamSettings) error {
	if s.ChallengeTimeValue <= 0 {
		return fmt.Errorf("challenge time value must be positive: %d", s.ChallengeTimeValue)
	}
	if s.EnableChallenge && s.MaxChallenges < 1 {
		return fmt.Errorf("max challenges must be at least 1 when challenges are enabled: %d", s.MaxChallenges)
	}
	return nil
}

// ParseOverrides decodes a flat option-name map such as a Redis hash.
// Unknown keys are ignored; malformed values are errors.
func ParseOverrides(fields map[string]string) (Overrides, error) {
	var o Overrides
	for key, raw := range fields {
		raw = strings.TrimSpace(raw)
		switch strings.ToUpper(key) {
		case domain.OptionEnableTimeDelay:
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return Overrides{}, fmt.Errorf("invalid %s: %w", key, err)
			}
			o.EnableTimeDelay = &b
		case domain.OptionEnableChallenge:
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return Overrides{}, fmt.Errorf("invalid %s: %w", key, err)
			}
			o.EnableChallenge = &b
		case domain.OptionEnableHoneypot:
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return Overrides{}, fmt.Errorf("invalid %s: %w", key, err)
			}
			o.EnableHoneypot = &b
		case domain.OptionEnableMultipleChallenges:
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return Overrides{}, fmt.Errorf("invalid %s: %w", key, err)
			}
			o.EnableMultipleChallenges = &b
		case domain.OptionChallengeTimeValue:
			n, err := strconv.Atoi(raw)
			if err != nil {
				return Overrides{}, fmt.Errorf("invalid %s: %w", key, err)
			}
			o.ChallengeTimeValue = &n
		case domain.OptionMaxChallenges:
			n, err := strconv.Atoi(raw)
			if err != nil {
				return Overrides{}, fmt.Errorf("invalid %s: %w", key, err)
			}
			o.MaxChallenges = &n
		}
	}
	return o, nil
}

// Fields encodes the set fields with the option names
func (o Overrides) Fields() map[string]string {
	fields := make(map[string]string)
	if o.EnableTimeDelay != nil {
		fields[domain.OptionEnableTimeDelay] = strconv.FormatBool(*o.EnableTimeDelay)
	}
	if o.EnableChallenge != nil {
		fields[domain.OptionEnableChallenge] = strconv.FormatBool(*o.EnableChallenge)
	}
	if o.EnableHoneypot != nil {
		fields[domain.OptionEnableHoneypot] = strconv.FormatBool(*o.EnableHoneypot)
	}
	if o.EnableMultipleChallenges != nil {
		fields[domain.OptionEnableMultipleChallenges] = strconv.FormatBool(*o.EnableMultipleChallenges)
	}
	if o.ChallengeTimeValue != nil {
		fields[domain.OptionChallengeTimeValue] = strconv.Itoa(*o.ChallengeTimeValue)
	}
	if o.MaxChallenges != nil {
		fields[domain.OptionMaxChallenges] = strconv.Itoa(*o.MaxChallenges)
	}
	return fields
}

// Bool returns a pointer for building layers
func Bool(b bool) *bool { return &b }

// Int returns a pointer for building layers
func Int(n int) *int { return &n }
