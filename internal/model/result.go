package model

// Grade letters.
const (
	GradeA = "A"
	GradeB = "B"
	GradeC = "C"
	GradeD = "D"
	GradeF = "F"
)

// Performance levels paired with grades.
const (
	PerformanceExcellent    = "excellent"
	PerformanceGood         = "good"
	PerformanceAverage      = "average"
	PerformanceBelowAverage = "below_average"
	PerformancePoor         = "poor"
)

// GroupScore is the tally for one attribute bucket.
type GroupScore struct {
	Correct    int     `json:"correct"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// TimeAnalysis summarises time usage. TimeEfficiency is nil without a limit.
type TimeAnalysis struct {
	TotalTimeSpent         int      `json:"total_time_spent"`
	AverageTimePerQuestion float64  `json:"average_time_per_question"`
	TimeLimit              *int     `json:"time_limit,omitempty"`
	TimeEfficiency         *float64 `json:"time_efficiency,omitempty"`
}

// StandardizedScore maps a raw percentage onto an external exam scale.
type StandardizedScore struct {
	ExamTypeID      string `json:"exam_type_id"`
	Percentile      int    `json:"percentile"`
	EquivalentRange string `json:"equivalent_range"`
	BelowBenchmark  bool   `json:"below_benchmark"`
}

// QuestionReview is the per-question line of a result sheet.
type QuestionReview struct {
	QuestionID      string `json:"question_id"`
	Answered        bool   `json:"answered"`
	SelectedOption  string `json:"selected_option,omitempty"`
	CorrectOption   string `json:"correct_option,omitempty"`
	IsCorrect       bool   `json:"is_correct"`
	MarkedForReview bool   `json:"marked_for_review"`
	TimeSpent       int    `json:"time_spent"`
	HintsUsed       int    `json:"hints_used"`
}

// ScoringResult is the full outcome of a completed session.
type ScoringResult struct {
	SessionID           string                `json:"session_id"`
	ExamTypeID          string                `json:"exam_type_id"`
	CorrectCount        int                   `json:"correct_count"`
	TotalQuestions      int                   `json:"total_questions"`
	AnsweredCount       int                   `json:"answered_count"`
	ScorePercentage     float64               `json:"score_percentage"`
	Grade               string                `json:"grade"`
	PerformanceLevel    string                `json:"performance_level"`
	TimeAnalysis        TimeAnalysis          `json:"time_analysis"`
	BloomBreakdown      map[string]GroupScore `json:"bloom_breakdown"`
	DifficultyBreakdown map[string]GroupScore `json:"difficulty_breakdown"`
	SubjectBreakdown    map[string]GroupScore `json:"subject_breakdown"`
	BloomDistribution   map[string]int        `json:"bloom_distribution"`
	Recommendations     []string              `json:"recommendations"`
	StandardizedScore   StandardizedScore     `json:"standardized_score"`
	Questions           []QuestionReview      `json:"questions"`
}
