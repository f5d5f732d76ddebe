package challenge

import (
	"fmt"
	"strings"
	"sync"

	"github.com/FlooooowY/SteelMount-FormShield/internal/domain"
)

// Definition describes one challenge type
type Definition struct {
	// Generate produces a fresh challenge. Required.
	Generate func() domain.Challenge
	// Validate overrides the default trim/case-insensitive comparison. Optional.
	Validate func(answer string, challenge domain.Challenge) bool
	// Presentation is opaque rendering data for UIs. Optional.
	Presentation any
}

// Registry is the catalog of challenge types.
// It is built once at the application root and shared by every form.
type Registry struct {
	mu          sync.RWMutex
	definitions map[string]Definition
	order       []string
	rng         Rand

	// Generation tracking
	generated map[string]int64
	muStats   sync.Mutex
}

// NewRegistry creates an empty registry
func NewRegistry(rng Rand) *Registry {
	if rng == nil {
		rng = NewRand(0)
	}
	return &Registry{
		definitions: make(map[string]Definition),
		rng:         rng,
		generated:   make(map[string]int64),
	}
}

// NewDefaultRegistry creates a registry with the built-in arithmetic and trivia types
func NewDefaultRegistry(rng Rand) *Registry {
	r := NewRegistry(rng)
	builtins := []struct {
		name string
		def  Definition
	}{
		{TypeArithmetic, Definition{
			Generate:     func() domain.Challenge { return Arithmetic(r.rng) },
			Presentation: map[string]string{"input": "number"},
		}},
		{TypeTrivia, Definition{
			Generate:     func() domain.Challenge { return Trivia(r.rng) },
			Presentation: map[string]string{"input": "text"},
		}},
	}
	for _, b := range builtins {
		if err := r.Register(b.name, b.def); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds or replaces a challenge type. Last write wins so host
// applications can override the built-ins. A definition without a
// generator is rejected.
func (r *Registry) Register(challengeType string, def Definition) error {
	if challengeType == "" {
		return fmt.Errorf("%w: empty type name", ErrInvalidDefinition)
	}
	if def.Generate == nil {
		return fmt.Errorf("%w: %s has no generator", ErrInvalidDefinition, challengeType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.definitions[challengeType]; !exists {
		r.order = append(r.order, challengeType)
	}
	r.definitions[challengeType] = def
	return nil
}

// Generate creates a challenge of the given type, or of a uniformly random
// registered type when challengeType is empty.
func (r *Registry) Generate(challengeType string) (domain.Challenge, error) {
	r.mu.RLock()
	if len(r.order) == 0 {
		r.mu.RUnlock()
		return domain.Challenge{}, ErrNoChallengeTypesRegistered
	}
	if challengeType == "" {
		challengeType = r.order[r.rng.Intn(len(r.order))]
	}
	def, exists := r.definitions[challengeType]
	r.mu.RUnlock()

	if !exists {
		return domain.Challenge{}, fmt.Errorf("%w: %s", ErrUnknownChallengeType, challengeType)
	}

	challenge := def.Generate()
	if challenge.Type == "" {
		challenge.Type = challengeType
	}
	r.recordGeneration(challengeType)

	return challenge, nil
}

// ValidateAnswer checks an answer with the type's validator, or by
// case-insensitive trimmed equality.
func (r *Registry) ValidateAnswer(answer string, challenge domain.Challenge) bool {
	r.mu.RLock()
	def, exists := r.definitions[challenge.Type]
	r.mu.RUnlock()

	if exists && def.Validate != nil {
		return def.Validate(answer, challenge)
	}
	return MatchAnswer(answer, challenge.Answer)
}

// ListTypes returns the registered types in insertion order
func (r *Registry) ListTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, len(r.order))
	copy(types, r.order)
	return types
}

// Presentation returns the opaque presentation data of a type
func (r *Registry) Presentation(challengeType string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, exists := r.definitions[challengeType]
	if !exists || def.Presentation == nil {
		return nil, false
	}
	return def.Presentation, true
}

// GetStats returns generation counts per type
func (r *Registry) GetStats() map[string]interface{} {
	r.muStats.Lock()
	defer r.muStats.Unlock()

	var total int64
	perType := make(map[string]int64, len(r.generated))
	for t, n := range r.generated {
		perType[t] = n
		total += n
	}

	return map[string]interface{}{
		"total_generations": total,
		"by_type":           perType,
		"registered_types":  len(r.ListTypes()),
	}
}

func (r *Registry) recordGeneration(challengeType string) {
	r.muStats.Lock()
	defer r.muStats.Unlock()
	r.generated[challengeType]++
}

// MatchAnswer is the default answer comparison
func MatchAnswer(answer, expected string) bool {
	return strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(expected))
}
