package flow

import "math"

// CalcRequiredChallenges converts a time deficit into challenge rounds:
// ceil(deficit / timeValue) clamped to [0, maxChallenges].
func CalcRequiredChallenges(deficitSeconds float64, timeValue, maxChallenges int) int {
	if deficitSeconds <= 0 || maxChallenges <= 0 {
		return 0
	}
	if timeValue <= 0 {
		return maxChallenges
	}

	required := int(math.Ceil(deficitSeconds / float64(timeValue)))
	if required > maxChallenges {
		return maxChallenges
	}
	return required
}
