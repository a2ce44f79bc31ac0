package model

// Mode selects the pacing and assistance rules of a session.
type Mode string

const (
	ModeTimed   Mode = "timed"
	ModeTutor   Mode = "tutor"
	ModeUntimed Mode = "untimed"
)

// ParseMode converts raw input into a known Mode.
func ParseMode(raw string) (Mode, bool) {
	switch m := Mode(raw); m {
	case ModeTimed, ModeTutor, ModeUntimed:
		return m, true
	default:
		return "", false
	}
}

// ModePolicy is the ruleset a mode imposes on a session.
type ModePolicy struct {
	TimePerQuestion    *int `json:"time_per_question,omitempty"` // seconds
	TotalTime          *int `json:"total_time,omitempty"`        // seconds
	ShowCorrectAnswer  bool `json:"show_correct_answer"`
	ShowExplanation    bool `json:"show_explanation"`
	AllowReview        bool `json:"allow_review"`
	AllowPause         bool `json:"allow_pause"`
	HintsPerQuestion   int  `json:"hints_per_question"`
	AdaptiveEnabled    bool `json:"adaptive_enabled"`
	RandomizeQuestions bool `json:"randomize_questions"`
}
