// Package flow runs single or multi-round challenge sequences and tracks
// the metrics that earn time-gate credit.
package flow

import (
	"errors"
	"fmt"
	"time"

	"github.com/FlooooowY/SteelMount-FormShield/internal/domain"
)

// Generator produces and checks challenges.
// Both *challenge.Registry and *challenge.Pool satisfy it.
type Generator interface {
	Generate(challengeType string) (domain.Challenge, error)
	ValidateAnswer(answer string, challenge domain.Challenge) bool
}

// State of the machine
type State int

const (
	StateIdle State = iota
	StateAwaitingAnswer
	StateAllRoundsComplete
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingAnswer:
		return "awaiting_answer"
	case StateAllRoundsComplete:
		return "all_rounds_complete"
	default:
		return "unknown"
	}
}

// User-facing messages
const (
	MessageIncorrect = "Incorrect answer. Please try again."
	progressFormat   = "Challenge %d of %d completed. Please complete the next challenge."
)

// ErrNotAwaitingAnswer is returned when an answer arrives outside a sequence
var ErrNotAwaitingAnswer = errors.New("challenge machine is not awaiting an answer")

// Options configures a Machine
type Options struct {
	// ChallengeType is passed to the generator; empty means random
	ChallengeType      string
	MultipleChallenges bool
	Clock              func() time.Time
}

// Outcome describes what one answer did to the sequence
type Outcome struct {
	Correct  bool
	Complete bool
	Message  string
	Round    int
	Metrics  domain.ChallengeMetrics
	// Next is the challenge now awaiting an answer; zero when complete
	Next domain.Challenge
}

// Machine is the challenge state machine of one form instance.
// It is not safe for concurrent use.
type Machine struct {
	gen        Generator
	opts       Options
	state      State
	round      int
	metrics    domain.ChallengeMetrics
	current    *domain.Challenge
	roundStart time.Time
}

// New creates an idle machine
func New(gen Generator, opts Options) *Machine {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Machine{
		gen:   gen,
		opts:  opts,
		state: StateIdle,
		round: 1,
	}
}

// Begin starts a new sequence requiring the given number of rounds
func (m *Machine) Begin(required int) error {
	if required < 0 {
		required = 0
	}

	ch, err := m.gen.Generate(m.opts.ChallengeType)
	if err != nil {
		return fmt.Errorf("failed to generate challenge: %w", err)
	}

	m.metrics = domain.ChallengeMetrics{RequiredChallenges: required}
	m.round = 1
	m.current = &ch
	m.state = StateAwaitingAnswer
	m.roundStart = m.opts.Clock()

	return nil
}

// SubmitAnswer checks the answer against the current challenge.
// Incorrect answers never lock the user out; a fresh challenge follows.
func (m *Machine) SubmitAnswer(answer string) (Outcome, error) {
	if m.state != StateAwaitingAnswer || m.current == nil {
		return Outcome{}, ErrNotAwaitingAnswer
	}

	if !m.gen.ValidateAnswer(answer, *m.current) {
		if err := m.next(); err != nil {
			return Outcome{}, err
		}
		return Outcome{
			Correct: false,
			Message: MessageIncorrect,
			Round:   m.round,
			Metrics: m.metrics,
			Next:    *m.current,
		}, nil
	}

	// the answered round is counted only after the next one is generated
	elapsed := int(m.opts.Clock().Sub(m.roundStart).Milliseconds())
	completed := m.metrics.CompletedChallenges + 1

	if m.opts.MultipleChallenges && completed < m.metrics.RequiredChallenges {
		if err := m.next(); err != nil {
			return Outcome{}, err
		}
		m.metrics.TotalChallengeTimeMs += elapsed
		m.metrics.CompletedChallenges = completed
		m.round++
		return Outcome{
			Correct: true,
			Message: fmt.Sprintf(progressFormat, m.metrics.CompletedChallenges, m.metrics.RequiredChallenges),
			Round:   m.round,
			Metrics: m.metrics,
			Next:    *m.current,
		}, nil
	}

	m.metrics.TotalChallengeTimeMs += elapsed
	m.metrics.CompletedChallenges = completed
	m.state = StateAllRoundsComplete
	m.current = nil

	return Outcome{
		Correct:  true,
		Complete: true,
		Round:    m.round,
		Metrics:  m.metrics,
	}, nil
}

// Reset returns to idle and discards the pending challenge
func (m *Machine) Reset() {
	m.state = StateIdle
	m.metrics = domain.ChallengeMetrics{}
	m.round = 1
	m.current = nil
}

// State returns the current state
func (m *Machine) State() State {
	return m.state
}

// Round returns the 1-based round number
func (m *Machine) Round() int {
	return m.round
}

// Metrics returns a copy of the sequence metrics
func (m *Machine) Metrics() domain.ChallengeMetrics {
	return m.metrics
}

// Challenge returns the challenge awaiting an answer
func (m *Machine) Challenge() (domain.Challenge, bool) {
	if m.current == nil {
		return domain.Challenge{}, false
	}
	return *m.current, true
}

// next replaces the current challenge and restarts the round timer
func (m *Machine) next() error {
	ch, err := m.gen.Generate(m.opts.ChallengeType)
	if err != nil {
		return fmt.Errorf("failed to generate challenge: %w", err)
	}
	m.current = &ch
	m.roundStart = m.opts.Clock()
	return nil
}
