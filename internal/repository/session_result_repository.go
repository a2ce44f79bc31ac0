package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Wajahat883/EDU-PREP-sub001/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// SessionResultRecord is one row of the session_results analytics table.
type SessionResultRecord struct {
	SessionID   string                 `json:"session_id"`
	UserID      string                 `json:"user_id"`
	ExamTypeID  string                 `json:"exam_type_id"`
	Mode        model.Mode             `json:"mode"`
	Reason      model.CompletionReason `json:"reason"`
	Result      model.ScoringResult    `json:"result"`
	CompletedAt time.Time              `json:"completed_at"`

	// Attempts counts failed writes; it is queue bookkeeping, not a column.
	Attempts int `json:"attempts,omitempty"`
}

// SessionResultRepository writes completion records.
type SessionResultRepository struct {
	pool *pgxpool.Pool
}

// NewSessionResultRepository creates a new SessionResultRepository.
func NewSessionResultRepository(pool *pgxpool.Pool) *SessionResultRepository {
	return &SessionResultRepository{pool: pool}
}

// BulkInsert stores a batch with one UNNEST statement. Rows that already
// exist are left untouched.
func (r *SessionResultRepository) BulkInsert(ctx context.Context, batch []*SessionResultRecord) error {
	n := len(batch)
	if n == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, n)
	users := make([]string, 0, n)
	examTypes := make([]string, 0, n)
	modes := make([]string, 0, n)
	reasons := make([]string, 0, n)
	corrects := make([]int32, 0, n)
	totals := make([]int32, 0, n)
	scores := make([]float64, 0, n)
	grades := make([]string, 0, n)
	results := make([]string, 0, n)
	completedAts := make([]time.Time, 0, n)

	for _, rec := range batch {
		id, err := uuid.Parse(rec.SessionID)
		if err != nil {
			return fmt.Errorf("session id %q: %w", rec.SessionID, err)
		}
		raw, err := json.Marshal(rec.Result)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		ids = append(ids, id)
		users = append(users, rec.UserID)
		examTypes = append(examTypes, rec.ExamTypeID)
		modes = append(modes, string(rec.Mode))
		reasons = append(reasons, string(rec.Reason))
		corrects = append(corrects, int32(rec.Result.CorrectCount))
		totals = append(totals, int32(rec.Result.TotalQuestions))
		scores = append(scores, roundScore(rec.Result.ScorePercentage))
		grades = append(grades, rec.Result.Grade)
		results = append(results, string(raw))
		completedAts = append(completedAts, rec.CompletedAt)
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO session_results
			(session_id, user_id, exam_type_id, mode, reason, correct_count, total_questions,
			 score_percentage, grade, result, completed_at)
		SELECT u.session_id, u.user_id, u.exam_type_id, u.mode, u.reason, u.correct_count,
		       u.total_questions, u.score_percentage, u.grade, u.result::jsonb, u.completed_at
		FROM UNNEST(
			$1::uuid[],
			$2::text[],
			$3::text[],
			$4::text[],
			$5::text[],
			$6::int[],
			$7::int[],
			$8::numeric[],
			$9::text[],
			$10::text[],
			$11::timestamptz[]
		) AS u (session_id, user_id, exam_type_id, mode, reason, correct_count, total_questions,
		        score_percentage, grade, result, completed_at)
		ON CONFLICT (session_id) DO NOTHING`,
		ids, users, examTypes, modes, reasons, corrects, totals, scores, grades, results, completedAts,
	)
	return err
}

// Insert stores a single record.
func (r *SessionResultRepository) Insert(ctx context.Context, rec *SessionResultRecord) error {
	id, err := uuid.Parse(rec.SessionID)
	if err != nil {
		return fmt.Errorf("session id %q: %w", rec.SessionID, err)
	}
	raw, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO session_results
			(session_id, user_id, exam_type_id, mode, reason, correct_count, total_questions,
			 score_percentage, grade, result, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (session_id) DO NOTHING`,
		id, rec.UserID, rec.ExamTypeID, string(rec.Mode), string(rec.Reason),
		rec.Result.CorrectCount, rec.Result.TotalQuestions,
		roundScore(rec.Result.ScorePercentage), rec.Result.Grade, raw, rec.CompletedAt,
	)
	return err
}

// roundScore pins the value to the NUMERIC(5,2) column precision.
func roundScore(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
