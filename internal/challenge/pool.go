package challenge

import (
	"fmt"

	"github.com/FlooooowY/SteelMount-FormShield/internal/domain"
)

// Pool is the default question source. Without an explicit type it flips a
// single coin between arithmetic and trivia. It works without a Registry.
type Pool struct {
	rng Rand
}

// NewPool creates the default pool
func NewPool(rng Rand) *Pool {
	if rng == nil {
		rng = NewRand(0)
	}
	return &Pool{rng: rng}
}

// Generate returns a challenge of the given built-in type, or a coin flip
// between the two when challengeType is empty.
func (p *Pool) Generate(challengeType string) (domain.Challenge, error) {
	switch challengeType {
	case "":
		if p.rng.Intn(2) == 0 {
			return Arithmetic(p.rng), nil
		}
		return Trivia(p.rng), nil
	case TypeArithmetic:
		return Arithmetic(p.rng), nil
	case TypeTrivia:
		return Trivia(p.rng), nil
	default:
		return domain.Challenge{}, fmt.Errorf("%w: %s", ErrUnknownChallengeType, challengeType)
	}
}

// ValidateAnswer uses the default comparison
func (p *Pool) ValidateAnswer(answer string, challenge domain.Challenge) bool {
	return MatchAnswer(answer, challenge.Answer)
}
