package domain

// Challenge represents a single human-verification question.
// A challenge is single-use: once answered, a fresh one must be generated.
type Challenge struct {
	Type     string            `json:"type"`
	Question string            `json:"question"`
	Answer   string            `json:"-"` // Hidden from JSON
	AuxData  map[string]string `json:"aux_data,omitempty"`
}

// ChallengeMetrics accumulates across one multi-round challenge sequence
type ChallengeMetrics struct {
	CompletedChallenges  int `json:"completedChallenges"`
	TotalChallengeTimeMs int `json:"totalChallengeTime"`
	RequiredChallenges   int `json:"requiredChallenges"`
}

// Satisfied reports whether the completed rounds cover the requirement (at least one).
func (m ChallengeMetrics) Satisfied() bool {
	required := m.RequiredChallenges
	if required < 1 {
		required = 1
	}
	return m.CompletedChallenges >= required
}
