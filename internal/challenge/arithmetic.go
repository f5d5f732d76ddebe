package challenge

import (
	"fmt"
	"strconv"

	"github.com/FlooooowY/SteelMount-FormShield/internal/domain"
)

// Built-in challenge types
const (
	TypeArithmetic = "arithmetic"
	TypeTrivia     = "trivia"
)

const (
	minOperand = 1
	maxOperand = 10
)

// Arithmetic generates an addition problem with operands in [1, 10]
func Arithmetic(rng Rand) domain.Challenge {
	a := between(rng, minOperand, maxOperand)
	b := between(rng, minOperand, maxOperand)

	return domain.Challenge{
		Type:     TypeArithmetic,
		Question: fmt.Sprintf("What is %d + %d?", a, b),
		Answer:   strconv.Itoa(a + b),
		AuxData: map[string]string{
			"a": strconv.Itoa(a),
			"b": strconv.Itoa(b),
		},
	}
}
