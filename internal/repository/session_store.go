package repository

import (
	"context"
	"errors"

	"github.com/Wajahat883/EDU-PREP-sub001/internal/model"
)

// ErrSessionNotFound is returned by every SessionStore for unknown ids.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore persists exam sessions. Implementations must hand out
// copies so callers never alias stored state.
type SessionStore interface {
	Create(ctx context.Context, s *model.ExamSession) error
	GetByID(ctx context.Context, id string) (*model.ExamSession, error)
	Update(ctx context.Context, s *model.ExamSession) error
	ListByUser(ctx context.Context, userID string, limit int) ([]model.ExamSession, error)
	// ListActiveTimed returns timed sessions still in progress or paused.
	ListActiveTimed(ctx context.Context) ([]model.ExamSession, error)
}
