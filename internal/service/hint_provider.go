package service

import (
	"context"
	"fmt"
)

// Hint levels accepted by RequestHint.
const (
	MinHintLevel = 1
	MaxHintLevel = 3
)

// HintProvider produces hint text for a question. Real deployments plug in the
// content service; LeveledHintProvider is the built-in fallback.
type HintProvider interface {
	Hint(ctx context.Context, questionID string, level int) (string, error)
}

// LeveledHintProvider returns generic study prompts that get more specific
// with the level, enriched with the subject when the question bank knows it.
type LeveledHintProvider struct {
	questions QuestionBank
}

func NewLeveledHintProvider(questions QuestionBank) *LeveledHintProvider {
	return &LeveledHintProvider{questions: questions}
}

func (p *LeveledHintProvider) Hint(ctx context.Context, questionID string, level int) (string, error) {
	subject := ""
	if p.questions != nil {
		meta, err := p.questions.GetQuestionMeta(ctx, []string{questionID})
		if err == nil {
			if m, ok := meta[questionID]; ok && m != nil {
				subject = m.Subject()
			}
		}
	}

	switch level {
	case 1:
		return "Re-read the stem and restate in your own words what is being asked.", nil
	case 2:
		return "Eliminate the options that contradict a key fact given in the stem.", nil
	case 3:
		if subject != "" {
			return fmt.Sprintf("Recall the core %s principle this question tests, then check each remaining option against it.", subject), nil
		}
		return "Recall the core principle this question tests, then check each remaining option against it.", nil
	default:
		return "", fmt.Errorf("%w: hint level must be between %d and %d", ErrValidation, MinHintLevel, MaxHintLevel)
	}
}
