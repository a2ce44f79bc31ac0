package service

import (
	"fmt"
	"sort"

	"github.com/Wajahat883/EDU-PREP-sub001/internal/model"
	"github.com/shopspring/decimal"
)

// Difficulty buckets used in breakdowns.
const (
	DifficultyEasy    = "easy"
	DifficultyMedium  = "medium"
	DifficultyHard    = "hard"
	attributeUnknown  = "unknown"
	weakGroupCeiling  = 60.0
	recommendationCap = 10
)

// ScoringInput is everything the engine needs to grade one session.
type ScoringInput struct {
	SessionID         string
	ExamTypeID        string
	QuestionIDs       []string
	Answers           []model.Answer
	Questions         map[string]model.QuestionMeta
	TimeLimit         *int
	ShowCorrectAnswer bool
}

// ScoringEngine turns answers plus question metadata into a ScoringResult.
// It has no side effects; the same input always yields the same result.
type ScoringEngine struct {
	scales *ScaleRegistry
}

func NewScoringEngine(scales *ScaleRegistry) *ScoringEngine {
	if scales == nil {
		scales = NewScaleRegistry()
	}
	return &ScoringEngine{scales: scales}
}

func (e *ScoringEngine) Score(in ScoringInput) *model.ScoringResult {
	total := len(in.QuestionIDs)
	correct := 0
	timeSpent := 0
	for _, a := range in.Answers {
		if a.IsCorrect {
			correct++
		}
		timeSpent += a.TimeSpent
	}

	pct := percentage(correct, total)
	grade, level := GradeFor(pct)

	res := &model.ScoringResult{
		SessionID:           in.SessionID,
		ExamTypeID:          in.ExamTypeID,
		CorrectCount:        correct,
		TotalQuestions:      total,
		AnsweredCount:       len(in.Answers),
		ScorePercentage:     pct,
		Grade:               grade,
		PerformanceLevel:    level,
		TimeAnalysis:        timeAnalysis(timeSpent, len(in.Answers), in.TimeLimit),
		BloomBreakdown:      make(map[string]model.GroupScore),
		DifficultyBreakdown: make(map[string]model.GroupScore),
		SubjectBreakdown:    make(map[string]model.GroupScore),
		BloomDistribution:   make(map[string]int),
	}

	for _, a := range in.Answers {
		meta := in.Questions[a.QuestionID]
		bloom, bucket, subject := attributeUnknown, attributeUnknown, attributeUnknown
		if meta != nil {
			bloom = orUnknown(meta.BloomLevel())
			bucket = DifficultyBucket(meta.Difficulty())
			subject = orUnknown(meta.Subject())
		}
		tally(res.BloomBreakdown, bloom, a.IsCorrect)
		tally(res.DifficultyBreakdown, bucket, a.IsCorrect)
		tally(res.SubjectBreakdown, subject, a.IsCorrect)
		res.BloomDistribution[bloom]++
	}
	finalize(res.BloomBreakdown)
	finalize(res.DifficultyBreakdown)
	finalize(res.SubjectBreakdown)

	res.Questions = reviewSheet(in)
	res.Recommendations = recommendations(res)
	res.StandardizedScore = e.scales.Lookup(in.ExamTypeID, pct)
	return res
}

// Statistics projects the stored summary out of a result.
func Statistics(r *model.ScoringResult) *model.SessionStatistics {
	return &model.SessionStatistics{
		CorrectCount:           r.CorrectCount,
		TotalQuestions:         r.TotalQuestions,
		ScorePercentage:        r.ScorePercentage,
		AverageTimePerQuestion: r.TimeAnalysis.AverageTimePerQuestion,
		BloomDistribution:      r.BloomDistribution,
		DifficultyStats:        r.DifficultyBreakdown,
	}
}

// GradeFor buckets a percentage into a letter grade and performance level.
func GradeFor(pct float64) (string, string) {
	switch {
	case pct >= 90:
		return model.GradeA, model.PerformanceExcellent
	case pct >= 80:
		return model.GradeB, model.PerformanceGood
	case pct >= 70:
		return model.GradeC, model.PerformanceAverage
	case pct >= 60:
		return model.GradeD, model.PerformanceBelowAverage
	default:
		return model.GradeF, model.PerformancePoor
	}
}

// DifficultyBucket groups the 1..10 scale into easy, medium and hard.
func DifficultyBucket(d int) string {
	switch {
	case d >= 1 && d <= 3:
		return DifficultyEasy
	case d >= 4 && d <= 7:
		return DifficultyMedium
	case d >= 8 && d <= 10:
		return DifficultyHard
	default:
		return attributeUnknown
	}
}

func percentage(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return round2(decimal.NewFromInt(int64(part)).
		Div(decimal.NewFromInt(int64(whole))).
		Mul(decimal.NewFromInt(100)))
}

func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func timeAnalysis(totalSpent, answered int, limit *int) model.TimeAnalysis {
	ta := model.TimeAnalysis{TotalTimeSpent: totalSpent}
	if answered > 0 {
		ta.AverageTimePerQuestion = round2(decimal.NewFromInt(int64(totalSpent)).Div(decimal.NewFromInt(int64(answered))))
	}
	if limit != nil && *limit > 0 {
		l := *limit
		eff := percentage(totalSpent, l)
		ta.TimeLimit = &l
		ta.TimeEfficiency = &eff
	}
	return ta
}

func tally(groups map[string]model.GroupScore, key string, correct bool) {
	g := groups[key]
	g.Total++
	if correct {
		g.Correct++
	}
	groups[key] = g
}

func finalize(groups map[string]model.GroupScore) {
	for k, g := range groups {
		g.Percentage = percentage(g.Correct, g.Total)
		groups[k] = g
	}
}

func orUnknown(s string) string {
	if s == "" {
		return attributeUnknown
	}
	return s
}

func reviewSheet(in ScoringInput) []model.QuestionReview {
	byQuestion := make(map[string]model.Answer, len(in.Answers))
	for _, a := range in.Answers {
		byQuestion[a.QuestionID] = a
	}

	out := make([]model.QuestionReview, 0, len(in.QuestionIDs))
	for _, qid := range in.QuestionIDs {
		r := model.QuestionReview{QuestionID: qid}
		if a, ok := byQuestion[qid]; ok {
			r.Answered = true
			r.SelectedOption = a.SelectedOption
			r.IsCorrect = a.IsCorrect
			r.MarkedForReview = a.MarkedForReview
			r.TimeSpent = a.TimeSpent
			r.HintsUsed = len(a.Hints)
		}
		if in.ShowCorrectAnswer {
			if meta := in.Questions[qid]; meta != nil {
				r.CorrectOption = meta.CorrectOption()
			}
		}
		out = append(out, r)
	}
	return out
}

func recommendations(r *model.ScoringResult) []string {
	var out []string

	switch {
	case r.ScorePercentage >= 90:
		out = append(out, "Outstanding performance. Move on to harder question sets to stay sharp.")
	case r.ScorePercentage >= 70:
		out = append(out, "Solid performance. Target your weaker areas to reach the top tier.")
	case r.ScorePercentage >= 50:
		out = append(out, "Fair performance. Review the core concepts before your next attempt.")
	default:
		out = append(out, "Focus on fundamentals and try tutor mode for guided practice.")
	}

	if unanswered := r.TotalQuestions - r.AnsweredCount; unanswered > 0 {
		out = append(out, fmt.Sprintf("You left %d question(s) unanswered. Work on pacing so you reach every question.", unanswered))
	}

	out = append(out, weakGroups("Review %s: %.0f%% correct (%d/%d).", r.SubjectBreakdown)...)
	out = append(out, weakGroups("Practice %s-level questions: %.0f%% correct (%d/%d).", r.BloomBreakdown)...)
	out = append(out, weakGroups("Strengthen %s questions: %.0f%% correct (%d/%d).", r.DifficultyBreakdown)...)

	if len(out) > recommendationCap {
		out = out[:recommendationCap]
	}
	return out
}

func weakGroups(format string, groups map[string]model.GroupScore) []string {
	keys := make([]string, 0, len(groups))
	for k, g := range groups {
		if k != attributeUnknown && g.Percentage < weakGroupCeiling {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		out = append(out, fmt.Sprintf(format, k, g.Percentage, g.Correct, g.Total))
	}
	return out
}
