package model

// QuestionMeta is the read-only view of question-bank data the engine needs.
type QuestionMeta interface {
	Difficulty() int
	BloomLevel() string
	Subject() string
	CorrectOption() string
}

// QuestionMetadata is the question bank's record for one question.
type QuestionMetadata struct {
	QuestionID      string `json:"question_id"`
	DifficultyLevel int    `json:"difficulty"`
	Bloom           string `json:"bloom_level"`
	SubjectName     string `json:"subject"`
	CorrectAnswer   string `json:"correct_answer"`
}

func (q QuestionMetadata) Difficulty() int       { return q.DifficultyLevel }
func (q QuestionMetadata) BloomLevel() string    { return q.Bloom }
func (q QuestionMetadata) Subject() string       { return q.SubjectName }
func (q QuestionMetadata) CorrectOption() string { return q.CorrectAnswer }
