package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/FlooooowY/SteelMount-FormShield/internal/challenge"
	"github.com/FlooooowY/SteelMount-FormShield/internal/domain"
	"github.com/FlooooowY/SteelMount-FormShield/internal/logger"
	"github.com/FlooooowY/SteelMount-FormShield/internal/monitoring"
	"github.com/FlooooowY/SteelMount-FormShield/internal/settings"
	"github.com/FlooooowY/SteelMount-FormShield/internal/shield"
	"github.com/FlooooowY/SteelMount-FormShield/internal/validator"
)

// Surfaces that report verdicts
const (
	SurfaceHTTP      = "http"
	SurfaceGRPC      = "grpc"
	SurfaceWebSocket = "websocket"
	SurfaceCLI       = "cli"
)

// SubmissionUsecase defines the interface for submission business logic
type SubmissionUsecase interface {
	// ValidateSubmission re-derives the verdict of one submission body
	ValidateSubmission(ctx context.Context, surface string, body validator.Body) domain.ServerVerdict
	// AmbientSettings resolves library defaults, configuration and the shared hash
	AmbientSettings(ctx context.Context) (domain.AntiSpamSettings, error)
	// NewForm creates a hosted form instance with the ambient settings
	NewForm(ctx context.Context, local settings.Overrides, opts shield.FormOptions) (*shield.Form, error)
	// GenerateChallenge returns a challenge from the shared registry
	GenerateChallenge(challengeType string) (domain.Challenge, error)
	// RecordSequence reports a completed challenge sequence
	RecordSequence(metrics domain.ChallengeMetrics)
	Options() validator.Options
	Registry() *challenge.Registry
}

// SettingsSource provides the shared ambient layer
type SettingsSource interface {
	Load(ctx context.Context) (settings.Overrides, error)
}

// Config represents the usecase configuration
type Config struct {
	Validation validator.Options
	// Ambient is the configured layer applied over library defaults
	Ambient           settings.Overrides
	MinSubmissionTime int
	MaxRandomDelay    int
	ChallengeType     string
}

// submissionUsecase implements SubmissionUsecase
type submissionUsecase struct {
	config   Config
	registry *challenge.Registry
	source   SettingsSource
	metrics  *monitoring.Metrics
	log      *logrus.Entry
}

// NewSubmissionUsecase creates a new submission usecase. source and metrics may be nil.
func NewSubmissionUsecase(config Config, registry *challenge.Registry, source SettingsSource, metrics *monitoring.Metrics) SubmissionUsecase {
	if registry == nil {
		registry = challenge.NewDefaultRegistry(nil)
	}
	return &submissionUsecase{
		config:   config,
		registry: registry,
		source:   source,
		metrics:  metrics,
		log:      logger.WithComponent("submission"),
	}
}

// ValidateSubmission validates a body with the configured server options
func (u *submissionUsecase) ValidateSubmission(ctx context.Context, surface string, body validator.Body) domain.ServerVerdict {
	verdict := validator.ValidateFormShield(body, validator.WithOptions(u.config.Validation))

	if u.metrics != nil {
		u.metrics.RecordVerdict(surface, verdict.Valid, verdict.IsBot)
	}

	entry := u.log.WithFields(logrus.Fields{
		"surface": surface,
		"valid":   verdict.Valid,
		"is_bot":  verdict.IsBot,
	})
	switch {
	case verdict.IsBot:
		entry.WithField("reason", verdict.Message()).Info("Bot submission dropped")
	case !verdict.Valid:
		entry.WithField("reason", verdict.Message()).Debug("Submission rejected")
	default:
		entry.Debug("Submission accepted")
	}

	return verdict
}

// AmbientSettings resolves the process-wide settings. A failing shared
// source falls back to the configured layer.
func (u *submissionUsecase) AmbientSettings(ctx context.Context) (domain.AntiSpamSettings, error) {
	layer := u.config.Ambient

	if u.source != nil {
		shared, err := u.source.Load(ctx)
		if u.metrics != nil {
			u.metrics.RecordSettingsLoad("redis", err)
		}
		if err != nil {
			u.log.WithError(err).Warn("Failed to load shared settings, using configured values")
		} else {
			layer = layer.Merge(shared)
		}
	}

	s, err := settings.Resolve(settings.Defaults(), layer)
	if err != nil {
		return domain.AntiSpamSettings{}, fmt.Errorf("failed to resolve ambient settings: %w", err)
	}
	return s, nil
}

// NewForm creates a form with ambient settings and the given local layer
func (u *submissionUsecase) NewForm(ctx context.Context, local settings.Overrides, opts shield.FormOptions) (*shield.Form, error) {
	ambient, err := u.AmbientSettings(ctx)
	if err != nil {
		return nil, err
	}

	s, err := settings.Resolve(ambient, local)
	if err != nil {
		return nil, fmt.Errorf("invalid form settings: %w", err)
	}

	if opts.MinSubmissionTime == 0 && opts.RequiredSeconds == 0 {
		opts.MinSubmissionTime = u.config.MinSubmissionTime
		opts.MaxRandomDelay = u.config.MaxRandomDelay
	}
	if opts.ChallengeType == "" {
		opts.ChallengeType = u.config.ChallengeType
	}

	gen := instrumentedGenerator{registry: u.registry, metrics: u.metrics}
	form, err := shield.NewForm(gen, s, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create form: %w", err)
	}
	return form, nil
}

// GenerateChallenge returns a challenge from the shared registry
func (u *submissionUsecase) GenerateChallenge(challengeType string) (domain.Challenge, error) {
	ch, err := u.registry.Generate(challengeType)
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("failed to generate challenge: %w", err)
	}
	if u.metrics != nil {
		u.metrics.RecordChallengeGenerated(ch.Type)
	}
	return ch, nil
}

// RecordSequence reports a completed challenge sequence
func (u *submissionUsecase) RecordSequence(m domain.ChallengeMetrics) {
	u.log.WithFields(logrus.Fields{
		"completed": m.CompletedChallenges,
		"required":  m.RequiredChallenges,
		"total_ms":  m.TotalChallengeTimeMs,
	}).Debug("Challenge sequence completed")

	if u.metrics != nil {
		u.metrics.RecordSequenceCompleted(time.Duration(m.TotalChallengeTimeMs) * time.Millisecond)
	}
}

// Options returns the server validation options
func (u *submissionUsecase) Options() validator.Options {
	return u.config.Validation
}

// Registry returns the shared challenge registry
func (u *submissionUsecase) Registry() *challenge.Registry {
	return u.registry
}

// instrumentedGenerator counts generated challenges and answer outcomes
type instrumentedGenerator struct {
	registry *challenge.Registry
	metrics  *monitoring.Metrics
}

func (g instrumentedGenerator) Generate(challengeType string) (domain.Challenge, error) {
	ch, err := g.registry.Generate(challengeType)
	if err == nil && g.metrics != nil {
		g.metrics.RecordChallengeGenerated(ch.Type)
	}
	return ch, err
}

func (g instrumentedGenerator) ValidateAnswer(answer string, ch domain.Challenge) bool {
	ok := g.registry.ValidateAnswer(answer, ch)
	if g.metrics != nil {
		g.metrics.RecordChallengeAnswer(ok)
	}
	return ok
}

