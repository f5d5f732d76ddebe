// Package shield combines the honeypot, the time gate and the challenge
// machine into the pass/fail decision of one form instance.
package shield

import (
	"fmt"
	"time"

	"github.com/FlooooowY/SteelMount-FormShield/internal/challenge"
	"github.com/FlooooowY/SteelMount-FormShield/internal/domain"
	"github.com/FlooooowY/SteelMount-FormShield/internal/flow"
	"github.com/FlooooowY/SteelMount-FormShield/internal/honeypot"
	"github.com/FlooooowY/SteelMount-FormShield/internal/settings"
	"github.com/FlooooowY/SteelMount-FormShield/internal/timegate"
)

// Verdict messages shown to humans. Bots get no message.
const (
	MessageSingleChallenge = "Please complete the verification challenge."
	MessageTooQuick        = "Form submitted too quickly. Please try again."
	multiChallengeFormat   = "Please complete %d challenges to verify you are human."
)

// SuccessFunc receives the stored values once every required round is done
type SuccessFunc func(values map[string]any, challengeCompleted bool, metrics domain.ChallengeMetrics)

// FormOptions configures a Form
type FormOptions struct {
	// HoneypotField is generated when empty
	HoneypotField     string
	MinSubmissionTime int
	MaxRandomDelay    int
	// RequiredSeconds, when positive, replaces the random threshold
	RequiredSeconds int
	// ChallengeType pins the challenge type; empty picks at random
	ChallengeType string

	Clock     func() time.Time
	Rand      challenge.Rand
	Scheduler Scheduler

	OnError         func(message string)
	OnShowChallenge func(ch domain.Challenge, round int)
}

// Form is the decision engine of one form instance.
// It is owned by a single goroutine.
type Form struct {
	settings      domain.AntiSpamSettings
	honeypotField string
	clock         func() time.Time
	tracker       *timegate.Tracker
	machine       *flow.Machine

	scheduler Scheduler
	queue     *TaskQueue

	onError         func(string)
	onShowChallenge func(domain.Challenge, int)

	values      map[string]any
	valuesIsBot bool
	visible     bool
}

// NewForm creates a form instance with resolved settings
func NewForm(gen flow.Generator, s domain.AntiSpamSettings, opts FormOptions) (*Form, error) {
	if gen == nil {
		return nil, fmt.Errorf("challenge generator is required")
	}
	if err := settings.Validate(s); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Rand == nil {
		opts.Rand = challenge.NewRand(0)
	}
	if opts.MinSubmissionTime == 0 && opts.RequiredSeconds <= 0 {
		opts.MinSubmissionTime = settings.DefaultMinSubmissionTime
		opts.MaxRandomDelay = settings.DefaultMaxRandomDelay
	}

	tracker, err := timegate.New(timegate.Options{
		Enabled:           s.EnableTimeDelay,
		MinSubmissionTime: opts.MinSubmissionTime,
		MaxRandomDelay:    opts.MaxRandomDelay,
		RequiredSeconds:   opts.RequiredSeconds,
		Clock:             opts.Clock,
		Rand:              opts.Rand,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create time gate: %w", err)
	}

	field := opts.HoneypotField
	if field == "" {
		field = honeypot.GenerateFieldName(opts.Rand)
	}

	f := &Form{
		settings:      s,
		honeypotField: field,
		clock:         opts.Clock,
		tracker:       tracker,
		machine: flow.New(gen, flow.Options{
			ChallengeType:      opts.ChallengeType,
			MultipleChallenges: s.EnableMultipleChallenges,
			Clock:              opts.Clock,
		}),
		scheduler:       opts.Scheduler,
		onError:         opts.OnError,
		onShowChallenge: opts.OnShowChallenge,
	}
	if f.scheduler == nil {
		f.queue = NewTaskQueue()
		f.scheduler = f.queue
	}

	return f, nil
}

// RecordInteraction marks the first field interaction; later calls are no-ops
func (f *Form) RecordInteraction() {
	f.tracker.RecordFirstInteraction()
}

// CheckSubmission computes a verdict without side effects.
// The honeypot outranks every other signal.
func (f *Form) CheckSubmission(values map[string]any) domain.Verdict {
	v := domain.Verdict{TimeDelayPassed: true}

	if f.settings.EnableHoneypot && honeypot.IsTriggered(values, f.honeypotField) {
		v.IsBot = true
	}

	if f.tracker.Enabled() {
		res := f.tracker.Evaluate(f.clock())
		v.TimeDelayPassed = res.Passed
		v.TimeDeficitSeconds = res.DeficitSeconds

		if !res.Passed {
			if f.settings.EnableChallenge {
				v.RequiredChallenges = flow.CalcRequiredChallenges(
					res.DeficitSeconds, f.settings.ChallengeTimeValue, f.settings.MaxChallenges)
				if f.settings.EnableMultipleChallenges && v.RequiredChallenges > 1 {
					v.ErrorMessage = fmt.Sprintf(multiChallengeFormat, v.RequiredChallenges)
				} else {
					v.ErrorMessage = MessageSingleChallenge
				}
			} else {
				v.ErrorMessage = MessageTooQuick
			}
		}
	}

	if v.IsBot {
		v.ErrorMessage = ""
	}
	v.Passed = v.TimeDelayPassed && !v.IsBot

	return v
}

// ValidateSubmission checks the values, reports the message and, when a
// human failed the time gate, schedules the challenge dialog.
func (f *Form) ValidateSubmission(values map[string]any) domain.Verdict {
	v := f.CheckSubmission(values)

	if v.ErrorMessage != "" && f.onError != nil {
		f.onError(v.ErrorMessage)
	}

	f.values = copyValues(values)
	f.valuesIsBot = v.IsBot

	if !v.Passed && !v.IsBot && f.settings.EnableChallenge {
		required := v.RequiredChallenges
		f.scheduler.Schedule(func() {
			f.showChallenge(required)
		})
	}

	return v
}

func (f *Form) showChallenge(required int) {
	rounds := 1
	if f.settings.EnableMultipleChallenges {
		rounds = max(1, required)
		f.machine.Reset()
	}

	if err := f.machine.Begin(rounds); err != nil {
		if f.onError != nil {
			f.onError(err.Error())
		}
		return
	}

	f.visible = true
	if f.onShowChallenge != nil {
		ch, _ := f.machine.Challenge()
		f.onShowChallenge(ch, f.machine.Round())
	}
}

// CompleteChallengeFlow submits an answer to the running challenge sequence.
// onSuccess runs with the stored values once the sequence is complete.
func (f *Form) CompleteChallengeFlow(answer string, onSuccess SuccessFunc) (flow.Outcome, error) {
	out, err := f.machine.SubmitAnswer(answer)
	if err != nil {
		return flow.Outcome{}, err
	}

	if out.Complete {
		f.visible = false
		if onSuccess != nil {
			onSuccess(copyValues(f.values), true, out.Metrics)
		}
	}

	return out, nil
}

// BuildSubmissionPayload snapshots the anti-spam metadata at call time
func (f *Form) BuildSubmissionPayload() domain.SubmissionPayload {
	metrics := f.machine.Metrics()
	s := f.settings

	p := domain.SubmissionPayload{
		SubmissionTime:     f.clock().UnixMilli(),
		ChallengeCompleted: metrics.CompletedChallenges > 0,
		ChallengeMetrics:   metrics,
		AntiSpamSettings:   &s,
	}
	if first, ok := f.tracker.FirstInteraction(); ok {
		ms := first.UnixMilli()
		p.FirstFocusTime = &ms
	}

	return p
}

// StoredValues returns the values of the last validated submission and whether
// they were flagged as coming from a bot
func (f *Form) StoredValues() (map[string]any, bool) {
	return copyValues(f.values), f.valuesIsBot
}

// ChallengeVisible reports whether the challenge dialog is showing
func (f *Form) ChallengeVisible() bool {
	return f.visible
}

// CurrentChallenge returns the challenge awaiting an answer
func (f *Form) CurrentChallenge() (domain.Challenge, bool) {
	return f.machine.Challenge()
}

// Round returns the current challenge round
func (f *Form) Round() int {
	return f.machine.Round()
}

// Metrics returns the challenge metrics of the current sequence
func (f *Form) Metrics() domain.ChallengeMetrics {
	return f.machine.Metrics()
}

// HoneypotField returns the decoy field name of this instance
func (f *Form) HoneypotField() string {
	return f.honeypotField
}

// Settings returns the effective settings
func (f *Form) Settings() domain.AntiSpamSettings {
	return f.settings
}

// RequiredSeconds returns the time-gate threshold of this instance
func (f *Form) RequiredSeconds() int {
	return f.tracker.RequiredSeconds()
}

// Drain runs tasks deferred on the built-in queue. It is a no-op when a
// custom scheduler was supplied.
func (f *Form) Drain() int {
	if f.queue == nil {
		return 0
	}
	return f.queue.Drain()
}

// Reset starts a new submission lifecycle
func (f *Form) Reset() {
	f.tracker.Reset()
	f.machine.Reset()
	f.values = nil
	f.valuesIsBot = false
	f.visible = false
}

func copyValues(values map[string]any) map[string]any {
	if values == nil {
		return nil
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}
