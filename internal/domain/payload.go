package domain

// Payload field names. Anything else in a submission body is a form value.
const (
	FieldFirstFocusTime     = "firstFocusTime"
	FieldSubmissionTime     = "submissionTime"
	FieldChallengeCompleted = "challengeCompleted"
	FieldChallengeMetrics   = "challengeMetrics"
	FieldAntiSpamSettings   = "antiSpamSettings"

	MetricCompletedChallenges = "completedChallenges"
	MetricTotalChallengeTime  = "totalChallengeTime"
	MetricRequiredChallenges  = "requiredChallenges"
)

// KnownFields lists the payload keys that are never treated as form values
var KnownFields = []string{
	FieldFirstFocusTime,
	FieldSubmissionTime,
	FieldChallengeCompleted,
	FieldChallengeMetrics,
	FieldAntiSpamSettings,
}

// IsKnownField reports whether key is one of the payload keys
func IsKnownField(key string) bool {
	for _, f := range KnownFields {
		if f == key {
			return true
		}
	}
	return false
}

// SubmissionPayload is the anti-spam metadata the client ships with a form.
// Times are epoch milliseconds.
type SubmissionPayload struct {
	FirstFocusTime     *int64            `json:"firstFocusTime"`
	SubmissionTime     int64             `json:"submissionTime"`
	ChallengeCompleted bool              `json:"challengeCompleted"`
	ChallengeMetrics   ChallengeMetrics  `json:"challengeMetrics"`
	AntiSpamSettings   *AntiSpamSettings `json:"antiSpamSettings,omitempty"`
}

// Body merges the form values with the payload into one submission body.
// Payload keys win over form values of the same name.
func (p SubmissionPayload) Body(values map[string]any) map[string]any {
	body := make(map[string]any, len(values)+len(KnownFields))
	for k, v := range values {
		body[k] = v
	}

	if p.FirstFocusTime != nil {
		body[FieldFirstFocusTime] = *p.FirstFocusTime
	} else {
		body[FieldFirstFocusTime] = nil
	}
	body[FieldSubmissionTime] = p.SubmissionTime
	body[FieldChallengeCompleted] = p.ChallengeCompleted
	body[FieldChallengeMetrics] = map[string]any{
		MetricCompletedChallenges: p.ChallengeMetrics.CompletedChallenges,
		MetricTotalChallengeTime:  p.ChallengeMetrics.TotalChallengeTimeMs,
		MetricRequiredChallenges:  p.ChallengeMetrics.RequiredChallenges,
	}
	if p.AntiSpamSettings != nil {
		s := p.AntiSpamSettings
		body[FieldAntiSpamSettings] = map[string]any{
			OptionEnableTimeDelay:          s.EnableTimeDelay,
			OptionEnableChallenge:          s.EnableChallenge,
			OptionEnableHoneypot:           s.EnableHoneypot,
			OptionEnableMultipleChallenges: s.EnableMultipleChallenges,
			OptionChallengeTimeValue:       s.ChallengeTimeValue,
			OptionMaxChallenges:            s.MaxChallenges,
		}
	}

	return body
}
