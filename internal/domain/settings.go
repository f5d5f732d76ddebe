package domain

// AntiSpamSettings is the effective configuration of one form instance.
// The JSON names are the option names shipped in the submission payload.
type AntiSpamSettings struct {
	EnableTimeDelay          bool `json:"ENABLE_TIME_DELAY" yaml:"enable_time_delay"`
	EnableChallenge          bool `json:"ENABLE_CHALLENGE_DIALOG" yaml:"enable_challenge_dialog"`
	EnableHoneypot           bool `json:"ENABLE_HONEYPOT" yaml:"enable_honeypot"`
	EnableMultipleChallenges bool `json:"ENABLE_MULTIPLE_CHALLENGES" yaml:"enable_multiple_challenges"`
	ChallengeTimeValue       int  `json:"CHALLENGE_TIME_VALUE" yaml:"challenge_time_value"`
	MaxChallenges            int  `json:"MAX_CHALLENGES" yaml:"max_challenges"`
}

// Option names recognised on the wire and in the ambient settings hash
const (
	OptionEnableTimeDelay          = "ENABLE_TIME_DELAY"
	OptionEnableChallenge          = "ENABLE_CHALLENGE_DIALOG"
	OptionEnableHoneypot           = "ENABLE_HONEYPOT"
	OptionEnableMultipleChallenges = "ENABLE_MULTIPLE_CHALLENGES"
	OptionChallengeTimeValue       = "CHALLENGE_TIME_VALUE"
	OptionMaxChallenges            = "MAX_CHALLENGES"
)
