package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Wajahat883/EDU-PREP-sub001/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const sessionColumns = `id, user_id, exam_type_id, mode, question_ids, current_question_index, status,
	started_at, paused_at, resumed_at, ended_at, total_paused_time, time_limit, time_remaining,
	answers, adaptive_features, hints_used, hints_remaining, statistics, results, completion_reason, updated_at`

// ExamSessionRepository handles exam session data access.
type ExamSessionRepository struct {
	pool *pgxpool.Pool
}

// NewExamSessionRepository creates a new ExamSessionRepository.
func NewExamSessionRepository(pool *pgxpool.Pool) *ExamSessionRepository {
	return &ExamSessionRepository{pool: pool}
}

// Create inserts a new exam session.
func (r *ExamSessionRepository) Create(ctx context.Context, s *model.ExamSession) error {
	id, err := uuid.Parse(s.ID)
	if err != nil {
		return fmt.Errorf("session id: %w", err)
	}
	doc, err := encodeSession(s)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO exam_sessions (`+sessionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`,
		id, s.UserID, s.ExamTypeID, s.Mode, s.QuestionIDs, s.CurrentQuestionIndex, s.Status,
		s.StartedAt, s.PausedAt, s.ResumedAt, s.EndedAt, s.TotalPausedTime, s.TimeLimit, s.TimeRemaining,
		doc.answers, doc.adaptive, s.HintsUsed, s.HintsRemaining, doc.statistics, doc.results,
		nullableReason(s.CompletionReason), s.UpdatedAt,
	)
	return err
}

// GetByID retrieves a session by id.
func (r *ExamSessionRepository) GetByID(ctx context.Context, id string) (*model.ExamSession, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrSessionNotFound
	}

	s, err := scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions WHERE id = $1`, uid))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	return s, err
}

// Update overwrites every mutable column of a session.
func (r *ExamSessionRepository) Update(ctx context.Context, s *model.ExamSession) error {
	id, err := uuid.Parse(s.ID)
	if err != nil {
		return ErrSessionNotFound
	}
	doc, err := encodeSession(s)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET question_ids = $2, current_question_index = $3, status = $4,
		     paused_at = $5, resumed_at = $6, ended_at = $7, total_paused_time = $8,
		     time_limit = $9, time_remaining = $10, answers = $11, adaptive_features = $12,
		     hints_used = $13, hints_remaining = $14, statistics = $15, results = $16,
		     completion_reason = $17, updated_at = $18
		 WHERE id = $1`,
		id, s.QuestionIDs, s.CurrentQuestionIndex, s.Status,
		s.PausedAt, s.ResumedAt, s.EndedAt, s.TotalPausedTime,
		s.TimeLimit, s.TimeRemaining, doc.answers, doc.adaptive,
		s.HintsUsed, s.HintsRemaining, doc.statistics, doc.results,
		nullableReason(s.CompletionReason), s.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ListByUser retrieves a user's sessions, newest first.
func (r *ExamSessionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]model.ExamSession, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE user_id = $1
		 ORDER BY started_at DESC
		 LIMIT $2`, userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSessions(rows)
}

// ListActiveTimed retrieves timed sessions whose countdown must be restored.
func (r *ExamSessionRepository) ListActiveTimed(ctx context.Context) ([]model.ExamSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE mode = $1 AND status IN ($2, $3) AND time_limit IS NOT NULL`,
		model.ModeTimed, model.SessionStatusInProgress, model.SessionStatusPaused,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSessions(rows)
}

func collectSessions(rows pgx.Rows) ([]model.ExamSession, error) {
	var sessions []model.ExamSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

type sessionDoc struct {
	answers    []byte
	adaptive   []byte
	statistics []byte
	results    []byte
}

func encodeSession(s *model.ExamSession) (sessionDoc, error) {
	var (
		doc sessionDoc
		err error
	)
	answers := s.Answers
	if answers == nil {
		answers = []model.Answer{}
	}
	if doc.answers, err = json.Marshal(answers); err != nil {
		return doc, fmt.Errorf("marshal answers: %w", err)
	}
	if doc.adaptive, err = json.Marshal(s.AdaptiveFeatures); err != nil {
		return doc, fmt.Errorf("marshal adaptive features: %w", err)
	}
	if s.Statistics != nil {
		if doc.statistics, err = json.Marshal(s.Statistics); err != nil {
			return doc, fmt.Errorf("marshal statistics: %w", err)
		}
	}
	if s.Results != nil {
		if doc.results, err = json.Marshal(s.Results); err != nil {
			return doc, fmt.Errorf("marshal results: %w", err)
		}
	}
	return doc, nil
}

func scanSession(row pgx.Row) (*model.ExamSession, error) {
	var (
		s      model.ExamSession
		id     uuid.UUID
		doc    sessionDoc
		reason *string
	)
	err := row.Scan(&id, &s.UserID, &s.ExamTypeID, &s.Mode, &s.QuestionIDs, &s.CurrentQuestionIndex, &s.Status,
		&s.StartedAt, &s.PausedAt, &s.ResumedAt, &s.EndedAt, &s.TotalPausedTime, &s.TimeLimit, &s.TimeRemaining,
		&doc.answers, &doc.adaptive, &s.HintsUsed, &s.HintsRemaining, &doc.statistics, &doc.results,
		&reason, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}

	s.ID = id.String()
	if reason != nil {
		s.CompletionReason = model.CompletionReason(*reason)
	}
	if err := json.Unmarshal(doc.answers, &s.Answers); err != nil {
		return nil, fmt.Errorf("unmarshal answers: %w", err)
	}
	if err := json.Unmarshal(doc.adaptive, &s.AdaptiveFeatures); err != nil {
		return nil, fmt.Errorf("unmarshal adaptive features: %w", err)
	}
	if len(doc.statistics) > 0 {
		s.Statistics = &model.SessionStatistics{}
		if err := json.Unmarshal(doc.statistics, s.Statistics); err != nil {
			return nil, fmt.Errorf("unmarshal statistics: %w", err)
		}
	}
	if len(doc.results) > 0 {
		s.Results = &model.ScoringResult{}
		if err := json.Unmarshal(doc.results, s.Results); err != nil {
			return nil, fmt.Errorf("unmarshal results: %w", err)
		}
	}
	return &s, nil
}

func nullableReason(r model.CompletionReason) *string {
	if r == "" {
		return nil
	}
	v := string(r)
	return &v
}
