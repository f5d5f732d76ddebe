package challenge

import "github.com/FlooooowY/SteelMount-FormShield/internal/domain"

type triviaQuestion struct {
	question string
	answer   string
}

var triviaPool = []triviaQuestion{
	{"What color is the sky on a clear day?", "blue"},
	{"How many days are in a week?", "7"},
	{"What is the opposite of hot?", "cold"},
	{"Fill in the blank: The sun rises in the ____.", "east"},
	{"How many legs does a cat have?", "4"},
	{"What color is grass?", "green"},
	{"Fill in the blank: Ice is frozen ____.", "water"},
	{"What is the first letter of the alphabet?", "a"},
	{"How many hours are in a day?", "24"},
	{"Fill in the blank: A week has seven ____.", "days"},
	{"What animal says \"moo\"?", "cow"},
	{"What is the opposite of up?", "down"},
}

// Trivia picks a question from the built-in pool
func Trivia(rng Rand) domain.Challenge {
	q := triviaPool[rng.Intn(len(triviaPool))]
	return domain.Challenge{
		Type:     TypeTrivia,
		Question: q.question,
		Answer:   q.answer,
	}
}
