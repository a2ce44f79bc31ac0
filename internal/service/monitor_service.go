package service

import (
	"context"

	"github.com/Wajahat883/EDU-PREP-sub001/internal/model"
	"golang.org/x/sync/errgroup"
)

// MonitorStats is the read side the completion monitor needs.
// *repository.MonitorRepository satisfies it.
type MonitorStats interface {
	CompletionStats(ctx context.Context, examTypeID string) (int64, float64, error)
	GradeCounts(ctx context.Context, examTypeID string) (map[string]int64, error)
	ActiveSessionCount(ctx context.Context, examTypeID string) (int64, error)
}

// MonitorService builds exam type summaries for the live completion monitor.
type MonitorService struct {
	stats MonitorStats
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(stats MonitorStats) *MonitorService {
	return &MonitorService{stats: stats}
}

// Summary fetches completion stats, grade counts and the active session
// count concurrently. The active count is best-effort.
func (s *MonitorService) Summary(ctx context.Context, examTypeID string) (*model.ExamTypeSummary, error) {
	summary := &model.ExamTypeSummary{
		ExamTypeID:        examTypeID,
		GradeDistribution: make(map[string]int64),
	}

	var active int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		count, avg, err := s.stats.CompletionStats(gctx, examTypeID)
		if err != nil {
			return err
		}
		summary.Completed = count
		summary.AverageScore = avg
		return nil
	})
	g.Go(func() error {
		grades, err := s.stats.GradeCounts(gctx, examTypeID)
		if err != nil {
			return err
		}
		if grades != nil {
			summary.GradeDistribution = grades
		}
		return nil
	})

	activeDone := make(chan struct{})
	go func() {
		defer close(activeDone)
		if n, err := s.stats.ActiveSessionCount(ctx, examTypeID); err == nil {
			active = n
		}
	}()

	err := g.Wait()
	<-activeDone
	if err != nil {
		return nil, err
	}
	summary.ActiveSessions = active
	return summary, nil
}
