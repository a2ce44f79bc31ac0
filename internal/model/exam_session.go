package model

import (
	"slices"
	"time"
)

// SessionStatus enumerates exam session states.
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusPaused     SessionStatus = "paused"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusAbandoned  SessionStatus = "abandoned"
)

// Terminal reports whether no further mutation is allowed in this status.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusAbandoned
}

// CompletionReason records how a session reached completed.
type CompletionReason string

const (
	CompletionSubmitted   CompletionReason = "submitted"
	CompletionTimeExpired CompletionReason = "time_expired"
)

// Neutral starting point on the 1..10 difficulty scale.
const (
	MinDifficulty     = 1
	MaxDifficulty     = 10
	DefaultDifficulty = 5
)

// Answer is one submitted response inside a session.
type Answer struct {
	QuestionID      string    `json:"question_id"`
	SelectedOption  string    `json:"selected_option"`
	TimeSpent       int       `json:"time_spent"` // seconds
	IsCorrect       bool      `json:"is_correct"`
	MarkedForReview bool      `json:"marked_for_review"`
	Hints           []string  `json:"hints"`
	AnsweredAt      time.Time `json:"answered_at"`
}

// AdaptiveFeatures tracks the difficulty target for the next question.
type AdaptiveFeatures struct {
	NextQuestionDifficulty int   `json:"next_question_difficulty"`
	DifficultyHistory      []int `json:"difficulty_history"`
	AdaptiveEnabled        bool  `json:"adaptive_enabled"`
}

// SessionStatistics is filled in when a session completes.
type SessionStatistics struct {
	CorrectCount           int                   `json:"correct_count"`
	TotalQuestions         int                   `json:"total_questions"`
	ScorePercentage        float64               `json:"score_percentage"`
	AverageTimePerQuestion float64               `json:"average_time_per_question"`
	BloomDistribution      map[string]int        `json:"bloom_distribution"`
	DifficultyStats        map[string]GroupScore `json:"difficulty_stats"`
}

// ExamSession represents a student's exam attempt.
type ExamSession struct {
	ID                   string        `json:"id"`
	UserID               string        `json:"user_id"`
	ExamTypeID           string        `json:"exam_type_id"`
	Mode                 Mode          `json:"mode"`
	QuestionIDs          []string      `json:"question_ids"`
	CurrentQuestionIndex int           `json:"current_question_index"`
	Status               SessionStatus `json:"status"`

	StartedAt       time.Time  `json:"started_at"`
	PausedAt        *time.Time `json:"paused_at,omitempty"`
	ResumedAt       *time.Time `json:"resumed_at,omitempty"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	TotalPausedTime float64    `json:"total_paused_time"` // seconds

	TimeLimit     *int `json:"time_limit,omitempty"`     // seconds, timed mode only
	TimeRemaining *int `json:"time_remaining,omitempty"` // last snapshot, never authoritative

	Answers          []Answer         `json:"answers"`
	AdaptiveFeatures AdaptiveFeatures `json:"adaptive_features"`
	HintsUsed        int              `json:"hints_used"`
	HintsRemaining   int              `json:"hints_remaining"`

	Statistics       *SessionStatistics `json:"statistics,omitempty"`
	Results          *ScoringResult     `json:"-"`
	CompletionReason CompletionReason   `json:"completion_reason,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// IsTimed reports whether the session runs against a countdown.
func (s *ExamSession) IsTimed() bool {
	return s.Mode == ModeTimed && s.TimeLimit != nil
}

// PausedFor returns the accumulated pause time.
func (s *ExamSession) PausedFor() time.Duration {
	return time.Duration(s.TotalPausedTime * float64(time.Second))
}

// HasQuestion reports whether questionID belongs to this session.
func (s *ExamSession) HasQuestion(questionID string) bool {
	return slices.Contains(s.QuestionIDs, questionID)
}

// AnswerIndex returns the position of the answer for questionID, or -1.
func (s *ExamSession) AnswerIndex(questionID string) int {
	for i := range s.Answers {
		if s.Answers[i].QuestionID == questionID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so stores never share slices with callers.
func (s *ExamSession) Clone() *ExamSession {
	if s == nil {
		return nil
	}
	c := *s
	c.QuestionIDs = slices.Clone(s.QuestionIDs)
	c.PausedAt = cloneTime(s.PausedAt)
	c.ResumedAt = cloneTime(s.ResumedAt)
	c.EndedAt = cloneTime(s.EndedAt)
	c.TimeLimit = cloneInt(s.TimeLimit)
	c.TimeRemaining = cloneInt(s.TimeRemaining)
	c.Answers = make([]Answer, len(s.Answers))
	for i, a := range s.Answers {
		a.Hints = slices.Clone(a.Hints)
		c.Answers[i] = a
	}
	c.AdaptiveFeatures.DifficultyHistory = slices.Clone(s.AdaptiveFeatures.DifficultyHistory)
	if s.Statistics != nil {
		st := *s.Statistics
		c.Statistics = &st
	}
	if s.Results != nil {
		r := *s.Results
		c.Results = &r
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneInt(n *int) *int {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}

// CreateSessionRequest is the payload for starting an exam attempt.
type CreateSessionRequest struct {
	ExamTypeID  string   `json:"exam_type_id" binding:"required,max=64"`
	Mode        string   `json:"mode" binding:"required,session_mode"`
	QuestionIDs []string `json:"question_ids" binding:"required,min=1,dive,required"`
	TimeLimit   *int     `json:"time_limit" binding:"omitempty,min=1"`
}

// SubmitAnswerRequest is the payload for answering the current question.
type SubmitAnswerRequest struct {
	QuestionID     string `json:"question_id" binding:"required"`
	SelectedOption string `json:"selected_option" binding:"required,max=64"`
	TimeSpent      int    `json:"time_spent" binding:"min=0"`
	IsCorrect      bool   `json:"is_correct"`
}

// RequestHintRequest is the payload for asking for a hint.
type RequestHintRequest struct {
	HintLevel int `json:"hint_level" binding:"required"`
}

// FlagQuestionRequest is the payload for toggling a review flag.
type FlagQuestionRequest struct {
	QuestionID string `json:"question_id" binding:"required"`
}
