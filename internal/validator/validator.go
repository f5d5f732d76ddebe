// Package validator re-derives the anti-spam verdict of a submission on the
// server. Every function is pure: it sees one body plus server options and
// never trusts a client-asserted pass/fail flag.
package validator

import (
	"fmt"
	"strings"
	"time"

	"github.com/FlooooowY/SteelMount-FormShield/internal/domain"
	"github.com/FlooooowY/SteelMount-FormShield/internal/honeypot"
)

// Server verdict messages
const (
	MessageHoneypot          = "Honeypot field detected"
	MessageNoInteraction     = "Unable to verify form interaction. Please try again."
	MessageTooQuick          = "Form submitted too quickly. Please try again."
	MessageChallenge         = "Please complete the verification challenge."
	MessageMetricsMissing    = "Challenge verification data is missing."
	MessageNoneCompleted     = "At least one challenge must be completed."
	incompleteRequiredFormat = "Please complete all required challenges (%d/%d completed)."
)

// Body is a decoded submission: form values plus the anti-spam payload
type Body map[string]any

// Options selects the checks and thresholds. Supplied independently of the
// client settings.
type Options struct {
	HoneypotCheck      bool `yaml:"honeypot_check"`
	TimeDelayCheck     bool `yaml:"time_delay_check"`
	ChallengeCheck     bool `yaml:"challenge_check"`
	MinSubmissionTime  int  `yaml:"min_submission_time"`
	ChallengeTimeValue int  `yaml:"challenge_time_value"`

	// Now replaces the server clock for bodies without a submission time
	Now func() time.Time `yaml:"-"`
}

// DefaultOptions enables every check with a 10 second minimum and 5 seconds
// of credit per completed challenge
func DefaultOptions() Options {
	return Options{
		HoneypotCheck:      true,
		TimeDelayCheck:     true,
		ChallengeCheck:     true,
		MinSubmissionTime:  10,
		ChallengeTimeValue: 5,
	}
}

// Option adjusts one field on top of DefaultOptions
type Option func(*Options)

// WithOptions replaces every field, for callers holding a complete loaded
// configuration
func WithOptions(o Options) Option {
	return func(opts *Options) {
		*opts = o
	}
}

// WithHoneypotCheck toggles the honeypot check
func WithHoneypotCheck(enabled bool) Option {
	return func(opts *Options) {
		opts.HoneypotCheck = enabled
	}
}

// WithTimeDelayCheck toggles the time delay check
func WithTimeDelayCheck(enabled bool) Option {
	return func(opts *Options) {
		opts.TimeDelayCheck = enabled
	}
}

// WithChallengeCheck toggles the challenge check and the time delay waiver
func WithChallengeCheck(enabled bool) Option {
	return func(opts *Options) {
		opts.ChallengeCheck = enabled
	}
}

// WithMinSubmissionTime sets the minimum interaction window in seconds
func WithMinSubmissionTime(seconds int) Option {
	return func(opts *Options) {
		opts.MinSubmissionTime = seconds
	}
}

// WithChallengeTimeValue sets the credit in seconds per completed challenge
func WithChallengeTimeValue(seconds int) Option {
	return func(opts *Options) {
		opts.ChallengeTimeValue = seconds
	}
}

// WithClock replaces the server clock
func WithClock(now func() time.Time) Option {
	return func(opts *Options) {
		opts.Now = now
	}
}

// NewOptions applies opts over DefaultOptions. Checks not mentioned stay on.
func NewOptions(opts ...Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ValidateHoneypot flags any non-payload key that carries a value and ends in
// a generic honeypot suffix. The client-chosen field name is not needed.
func ValidateHoneypot(body Body) domain.ServerVerdict {
	for key, value := range body {
		if domain.IsKnownField(key) {
			continue
		}
		if honeypot.IsTruthy(value) && honeypot.MatchesSuspiciousSuffix(key) {
			return domain.InvalidVerdict(MessageHoneypot, true)
		}
	}
	return domain.ValidVerdict()
}

// ValidateTimeDelay checks the interaction window against the server clock
func ValidateTimeDelay(body Body, minSubmissionTime, challengeTimeValue int) domain.ServerVerdict {
	return ValidateTimeDelayAt(body, minSubmissionTime, challengeTimeValue, time.Now())
}

// ValidateTimeDelayAt checks the elapsed time plus challenge credit against the
// minimum. now stands in for a missing submission time.
//
// Credit is only granted when the body reports a completed challenge, and a
// credited window must exceed the minimum rather than merely reach it.
func ValidateTimeDelayAt(body Body, minSubmissionTime, challengeTimeValue int, now time.Time) domain.ServerVerdict {
	firstFocus, ok := number(body[domain.FieldFirstFocusTime])
	if !ok {
		return domain.InvalidVerdict(MessageNoInteraction, false)
	}

	submission, ok := number(body[domain.FieldSubmissionTime])
	if !ok {
		submission = float64(now.UnixMilli())
	}

	elapsed := (submission - firstFocus) / 1000
	minimum := float64(minSubmissionTime)
	if elapsed >= minimum {
		return domain.ValidVerdict()
	}

	if honeypot.IsTruthy(body[domain.FieldChallengeCompleted]) {
		if m, ok := metrics(body[domain.FieldChallengeMetrics]); ok && m.CompletedChallenges > 0 {
			if elapsed+float64(m.CompletedChallenges*challengeTimeValue) > minimum {
				return domain.ValidVerdict()
			}
		}
	}
	return domain.InvalidVerdict(MessageTooQuick, false)
}

// ValidateChallenge checks the reported challenge completion
func ValidateChallenge(body Body) domain.ServerVerdict {
	if !honeypot.IsTruthy(body[domain.FieldChallengeCompleted]) {
		return domain.InvalidVerdict(MessageChallenge, false)
	}

	m, ok := metrics(body[domain.FieldChallengeMetrics])
	if !ok {
		return domain.InvalidVerdict(MessageMetricsMissing, false)
	}
	if m.CompletedChallenges < 1 {
		return domain.InvalidVerdict(MessageNoneCompleted, false)
	}
	if !m.Satisfied() {
		return domain.InvalidVerdict(
			fmt.Sprintf(incompleteRequiredFormat, m.CompletedChallenges, m.RequiredChallenges), false)
	}

	return domain.ValidVerdict()
}

// ValidateFormShield runs the enabled checks in priority order: honeypot,
// time delay, challenge. A completed challenge waives a failed time delay.
// Options are applied over DefaultOptions.
func ValidateFormShield(body Body, options ...Option) domain.ServerVerdict {
	opts := NewOptions(options...)

	if opts.HoneypotCheck {
		if v := ValidateHoneypot(body); !v.Valid {
			return v
		}
	}

	if opts.TimeDelayCheck {
		now := time.Now()
		if opts.Now != nil {
			now = opts.Now()
		}
		v := ValidateTimeDelayAt(body, opts.MinSubmissionTime, opts.ChallengeTimeValue, now)
		waived := opts.ChallengeCheck && honeypot.IsTruthy(body[domain.FieldChallengeCompleted])
		if !v.Valid && !waived {
			return v
		}
	}

	if opts.ChallengeCheck {
		if v := ValidateChallenge(body); !v.Valid {
			return v
		}
	}

	return domain.ValidVerdict()
}

// metrics reads the challenge metrics sub-document
func metrics(v any) (domain.ChallengeMetrics, bool) {
	switch m := v.(type) {
	case domain.ChallengeMetrics:
		return m, true
	case *domain.ChallengeMetrics:
		if m == nil {
			return domain.ChallengeMetrics{}, false
		}
		return *m, true
	case map[string]any:
		return domain.ChallengeMetrics{
			CompletedChallenges:  intValue(m[domain.MetricCompletedChallenges]),
			TotalChallengeTimeMs: intValue(m[domain.MetricTotalChallengeTime]),
			RequiredChallenges:   intValue(m[domain.MetricRequiredChallenges]),
		}, true
	default:
		return domain.ChallengeMetrics{}, false
	}
}

func intValue(v any) int {
	n, ok := number(v)
	if !ok {
		return 0
	}
	return int(n)
}

// firstString unwraps single-element form values
func firstString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s), true
	case []string:
		if len(s) == 0 {
			return "", false
		}
		return strings.TrimSpace(s[0]), true
	default:
		return "", false
	}
}
