package repository

import (
	"context"

	"github.com/Wajahat883/EDU-PREP-sub001/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QuestionRepository reads question-bank metadata.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// GetMetaByIDs returns metadata for the given ids. Unknown ids are skipped.
func (r *QuestionRepository) GetMetaByIDs(ctx context.Context, ids []string) ([]model.QuestionMetadata, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT question_id, difficulty, bloom_level, subject, correct_answer
		 FROM question_metadata
		 WHERE question_id = ANY($1)`, ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.QuestionMetadata
	for rows.Next() {
		var q model.QuestionMetadata
		if err := rows.Scan(&q.QuestionID, &q.DifficultyLevel, &q.Bloom, &q.SubjectName, &q.CorrectAnswer); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}
