package service

import "github.com/Wajahat883/EDU-PREP-sub001/internal/model"

// NextDifficulty steps the target difficulty one level towards the student's
// performance, clamped to the 1..10 scale.
func NextDifficulty(current int, lastCorrect bool) int {
	if lastCorrect {
		return min(current+1, model.MaxDifficulty)
	}
	return max(current-1, model.MinDifficulty)
}

// applyAdaptive records the next difficulty after an answer.
func applyAdaptive(f *model.AdaptiveFeatures, correct bool) {
	if !f.AdaptiveEnabled {
		return
	}
	f.NextQuestionDifficulty = NextDifficulty(f.NextQuestionDifficulty, correct)
	f.DifficultyHistory = append(f.DifficultyHistory, f.NextQuestionDifficulty)
}
