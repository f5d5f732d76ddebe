// Package timegate measures the time between the first field interaction
// and submission against a per-form randomised threshold.
package timegate

import (
	"errors"
	"math"
	"time"

	"github.com/FlooooowY/SteelMount-FormShield/internal/challenge"
)

// ErrInvalidRequiredSeconds is returned when the threshold would not be positive
var ErrInvalidRequiredSeconds = errors.New("required seconds must be positive")

// Options configures a Tracker
type Options struct {
	Enabled bool
	// MinSubmissionTime is the base threshold in seconds
	MinSubmissionTime int
	// MaxRandomDelay widens the threshold to [min, min+delay]
	MaxRandomDelay int
	// RequiredSeconds, when positive, replaces the random draw
	RequiredSeconds int
	Clock           func() time.Time
	Rand            challenge.Rand
}

// Result is the outcome of one evaluation
type Result struct {
	Passed         bool
	DeficitSeconds float64
	ElapsedSeconds float64
}

// Tracker holds the time window of one form instance
type Tracker struct {
	enabled          bool
	requiredSeconds  int
	clock            func() time.Time
	firstInteraction *time.Time
}

// New creates a tracker. The threshold is drawn once here.
func New(opts Options) (*Tracker, error) {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	required := opts.RequiredSeconds
	if required <= 0 {
		rng := opts.Rand
		if rng == nil {
			rng = challenge.NewRand(0)
		}
		required = opts.MinSubmissionTime
		if opts.MaxRandomDelay > 0 {
			required += rng.Intn(opts.MaxRandomDelay + 1)
		}
	}
	if required <= 0 {
		return nil, ErrInvalidRequiredSeconds
	}

	return &Tracker{
		enabled:         opts.Enabled,
		requiredSeconds: required,
		clock:           opts.Clock,
	}, nil
}

// RecordFirstInteraction stores the current time on the first call only
func (t *Tracker) RecordFirstInteraction() {
	if t.firstInteraction != nil {
		return
	}
	now := t.clock()
	t.firstInteraction = &now
}

// FirstInteraction returns the recorded timestamp, if any
func (t *Tracker) FirstInteraction() (time.Time, bool) {
	if t.firstInteraction == nil {
		return time.Time{}, false
	}
	return *t.firstInteraction, true
}

// RequiredSeconds returns the threshold of this form instance
func (t *Tracker) RequiredSeconds() int {
	return t.requiredSeconds
}

// Enabled reports whether the gate is active
func (t *Tracker) Enabled() bool {
	return t.enabled
}

// Evaluate checks the window against now.
// A missing interaction fails with the full threshold as deficit.
func (t *Tracker) Evaluate(now time.Time) Result {
	if !t.enabled {
		return Result{Passed: true}
	}

	required := float64(t.requiredSeconds)
	if t.firstInteraction == nil {
		return Result{Passed: false, DeficitSeconds: required}
	}

	elapsed := now.Sub(*t.firstInteraction).Seconds()
	deficit := math.Max(0, required-elapsed)

	return Result{
		Passed:         elapsed >= required,
		DeficitSeconds: deficit,
		ElapsedSeconds: elapsed,
	}
}

// EvaluateNow evaluates against the tracker clock
func (t *Tracker) EvaluateNow() Result {
	return t.Evaluate(t.clock())
}

// Reset starts a new submission lifecycle; the threshold is kept
func (t *Tracker) Reset() {
	t.firstInteraction = nil
}
