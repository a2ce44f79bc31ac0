package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// MonitorRepository reads aggregate numbers for the completion monitor.
type MonitorRepository struct {
	pool *pgxpool.Pool
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(pool *pgxpool.Pool) *MonitorRepository {
	return &MonitorRepository{pool: pool}
}

// CompletionStats returns the number of stored results and their average score.
func (r *MonitorRepository) CompletionStats(ctx context.Context, examTypeID string) (int64, float64, error) {
	var (
		count int64
		avg   decimal.Decimal
	)
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(ROUND(AVG(score_percentage), 2), 0)::text
		 FROM session_results
		 WHERE exam_type_id = $1`,
		examTypeID,
	).Scan(&count, &avg)
	if err != nil {
		return 0, 0, err
	}
	return count, avg.InexactFloat64(), nil
}

// GradeCounts returns how many stored results landed on each letter grade.
func (r *MonitorRepository) GradeCounts(ctx context.Context, examTypeID string) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT grade, COUNT(*)
		 FROM session_results
		 WHERE exam_type_id = $1
		 GROUP BY grade`,
		examTypeID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var grade string
		var n int64
		if err := rows.Scan(&grade, &n); err != nil {
			return nil, err
		}
		counts[grade] = n
	}
	return counts, rows.Err()
}

// ActiveSessionCount returns sessions of the exam type still in progress or paused.
func (r *MonitorRepository) ActiveSessionCount(ctx context.Context, examTypeID string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exam_sessions
		 WHERE exam_type_id = $1 AND status IN ('in_progress', 'paused')`,
		examTypeID,
	).Scan(&n)
	return n, err
}
