package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStats struct {
	statsErr  error
	gradesErr error
	activeErr error
}

func (f fakeStats) CompletionStats(context.Context, string) (int64, float64, error) {
	return 4, 72.5, f.statsErr
}

func (f fakeStats) GradeCounts(context.Context, string) (map[string]int64, error) {
	if f.gradesErr != nil {
		return nil, f.gradesErr
	}
	return map[string]int64{"B": 1, "C": 3}, nil
}

func (f fakeStats) ActiveSessionCount(context.Context, string) (int64, error) {
	return 7, f.activeErr
}

func TestMonitorService_Summary(t *testing.T) {
	summary, err := NewMonitorService(fakeStats{}).Summary(context.Background(), "mcat")
	require.NoError(t, err)

	assert.Equal(t, "mcat", summary.ExamTypeID)
	assert.Equal(t, int64(4), summary.Completed)
	assert.Equal(t, 72.5, summary.AverageScore)
	assert.Equal(t, map[string]int64{"B": 1, "C": 3}, summary.GradeDistribution)
	assert.Equal(t, int64(7), summary.ActiveSessions)
}

func TestMonitorService_ActiveCountIsBestEffort(t *testing.T) {
	summary, err := NewMonitorService(fakeStats{activeErr: errors.New("timeout")}).Summary(context.Background(), "mcat")
	require.NoError(t, err)
	assert.Zero(t, summary.ActiveSessions)
	assert.Equal(t, int64(4), summary.Completed)
}

func TestMonitorService_StatsErrorsFail(t *testing.T) {
	boom := errors.New("db down")

	_, err := NewMonitorService(fakeStats{statsErr: boom}).Summary(context.Background(), "mcat")
	assert.ErrorIs(t, err, boom)

	_, err = NewMonitorService(fakeStats{gradesErr: boom}).Summary(context.Background(), "mcat")
	assert.ErrorIs(t, err, boom)
}
