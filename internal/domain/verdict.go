package domain

// Verdict is the client-side result of one submission check
type Verdict struct {
	Passed             bool    `json:"passed"`
	IsBot              bool    `json:"isBot"`
	TimeDelayPassed    bool    `json:"timeDelayPassed"`
	ErrorMessage       string  `json:"errorMessage,omitempty"`
	TimeDeficitSeconds float64 `json:"timeDeficitSeconds"`
	RequiredChallenges int     `json:"requiredChallenges"`
}

// ServerVerdict is the result of re-validating a submission body on the server
type ServerVerdict struct {
	Valid bool    `json:"valid"`
	Error *string `json:"error"`
	IsBot bool    `json:"isBot"`
}

// Message returns the error message or an empty string
func (v ServerVerdict) Message() string {
	if v.Error == nil {
		return ""
	}
	return *v.Error
}

// ValidVerdict returns the passing server verdict
func ValidVerdict() ServerVerdict {
	return ServerVerdict{Valid: true}
}

// InvalidVerdict returns a failing server verdict with the given message
func InvalidVerdict(message string, isBot bool) ServerVerdict {
	return ServerVerdict{Valid: false, Error: &message, IsBot: isBot}
}
