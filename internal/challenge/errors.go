package challenge

import "errors"

// Registry errors. All signal a broken integration, not a suspicious user.
var (
	ErrNoChallengeTypesRegistered = errors.New("no challenge types registered")
	ErrUnknownChallengeType       = errors.New("unknown challenge type")
	ErrInvalidDefinition          = errors.New("invalid challenge definition")
)
