package model

// ExamTypeSummary aggregates stored results for one exam type.
type ExamTypeSummary struct {
	ExamTypeID        string           `json:"exam_type_id"`
	Completed         int64            `json:"completed"`
	AverageScore      float64          `json:"average_score"`
	GradeDistribution map[string]int64 `json:"grade_distribution"`
	ActiveSessions    int64            `json:"active_sessions"`
}
