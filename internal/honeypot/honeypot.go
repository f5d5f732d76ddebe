// Package honeypot detects submissions that filled the hidden decoy field.
package honeypot

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/FlooooowY/SteelMount-FormShield/internal/challenge"
)

var subjects = []string{
	"contact", "user", "company", "website", "address",
	"phone", "profile", "account", "message", "referral",
}

// kinds double as the suffixes the server heuristic looks for
var kinds = []string{"input", "field", "data", "value", "entry"}

// SuspiciousSuffixes are the generic name endings of generated honeypot fields
var SuspiciousSuffixes = func() []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = "_" + k
	}
	return out
}()

// GenerateFieldName composes "<subject>_<kind>" from two independent draws
func GenerateFieldName(rng challenge.Rand) string {
	if rng == nil {
		rng = challenge.NewRand(0)
	}
	return subjects[rng.Intn(len(subjects))] + "_" + kinds[rng.Intn(len(kinds))]
}

// IsTriggered reports whether the honeypot field carries a truthy value.
// Absent and empty values never trigger.
func IsTriggered(values map[string]any, fieldName string) bool {
	if fieldName == "" {
		return false
	}
	v, ok := values[fieldName]
	if !ok {
		return false
	}
	return IsTruthy(v)
}

// MatchesSuspiciousSuffix reports whether key ends in one of the generic suffixes
func MatchesSuspiciousSuffix(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range SuspiciousSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}

// IsTruthy applies JavaScript truthiness to a decoded form or JSON value
func IsTruthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case []string:
		for _, s := range val {
			if s != "" {
				return true
			}
		}
		return false
	case float64:
		return val != 0 && !math.IsNaN(val)
	case float32:
		return val != 0 && !math.IsNaN(float64(val))
	case int:
		return val != 0
	case int64:
		return val != 0
	case int32:
		return val != 0
	case json.Number:
		f, err := val.Float64()
		return err != nil || f != 0
	default:
		return true
	}
}
