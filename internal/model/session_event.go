package model

// Event names delivered on a session's push channel.
const (
	EventNameTimerUpdate      = "timer_update"
	EventNameTimeExpired      = "time_expired"
	EventNameExamPaused       = "exam_paused"
	EventNameExamResumed      = "exam_resumed"
	EventNameSessionCompleted = "session_completed"
)

// WarningLevel classifies how much of the countdown is left.
type WarningLevel string

const (
	WarningLevelNormal   WarningLevel = "normal"
	WarningLevelWarning  WarningLevel = "warning"
	WarningLevelCritical WarningLevel = "critical"
)

type EventTimerUpdate struct {
	SessionID     string       `json:"session_id"`
	TimeRemaining int          `json:"time_remaining"`
	TotalTime     int          `json:"total_time"`
	WarningLevel  WarningLevel `json:"warning_level"`
}

func (EventTimerUpdate) Name() string         { return EventNameTimerUpdate }
func (e EventTimerUpdate) SessionKey() string { return e.SessionID }

type EventTimeExpired struct {
	SessionID string `json:"session_id"`
	TotalTime int    `json:"total_time"`
}

func (EventTimeExpired) Name() string         { return EventNameTimeExpired }
func (e EventTimeExpired) SessionKey() string { return e.SessionID }

type EventExamPaused struct {
	SessionID     string `json:"session_id"`
	TimeRemaining *int   `json:"time_remaining,omitempty"`
}

func (EventExamPaused) Name() string         { return EventNameExamPaused }
func (e EventExamPaused) SessionKey() string { return e.SessionID }

type EventExamResumed struct {
	SessionID       string  `json:"session_id"`
	TotalPausedTime float64 `json:"total_paused_time"`
	TimeRemaining   *int    `json:"time_remaining,omitempty"`
}

func (EventExamResumed) Name() string         { return EventNameExamResumed }
func (e EventExamResumed) SessionKey() string { return e.SessionID }

// EventSessionCompleted carries the record handed to analytics consumers.
type EventSessionCompleted struct {
	SessionID  string           `json:"session_id"`
	UserID     string           `json:"user_id"`
	ExamTypeID string           `json:"exam_type_id"`
	Mode       Mode             `json:"mode"`
	Reason     CompletionReason `json:"reason"`
	Result     ScoringResult    `json:"result"`
}

func (EventSessionCompleted) Name() string         { return EventNameSessionCompleted }
func (e EventSessionCompleted) SessionKey() string { return e.SessionID }
