package service

import "github.com/Wajahat883/EDU-PREP-sub001/internal/model"

// Hint allowance per question.
const (
	tutorHintsPerQuestion   = 3
	untimedHintsPerQuestion = 5
)

// ResolveModePolicy returns the ruleset for mode. Only timed mode carries a
// clock; its total is questionCount * secondsPerQuestion.
func ResolveModePolicy(mode model.Mode, questionCount, secondsPerQuestion int) model.ModePolicy {
	switch mode {
	case model.ModeTimed:
		per := secondsPerQuestion
		total := questionCount * secondsPerQuestion
		return model.ModePolicy{
			TimePerQuestion:    &per,
			TotalTime:          &total,
			RandomizeQuestions: true,
		}
	case model.ModeTutor:
		return model.ModePolicy{
			ShowCorrectAnswer: true,
			ShowExplanation:   true,
			AllowReview:       true,
			AllowPause:        true,
			HintsPerQuestion:  tutorHintsPerQuestion,
			AdaptiveEnabled:   true,
		}
	default:
		return model.ModePolicy{
			AllowReview:      true,
			AllowPause:       true,
			HintsPerQuestion: untimedHintsPerQuestion,
		}
	}
}
