package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Wajahat883/EDU-PREP-sub001/internal/config"
	"github.com/Wajahat883/EDU-PREP-sub001/internal/model"
	"github.com/Wajahat883/EDU-PREP-sub001/internal/repository"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	mu        sync.Mutex
	bulkErr   error
	failIDs   map[string]bool
	stored    []*repository.SessionResultRecord
	bulkCalls int
}

func (s *fakeSink) BulkInsert(_ context.Context, batch []*repository.SessionResultRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bulkCalls++
	if s.bulkErr != nil {
		return s.bulkErr
	}
	s.stored = append(s.stored, batch...)
	return nil
}

func (s *fakeSink) Insert(_ context.Context, rec *repository.SessionResultRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failIDs[rec.SessionID] {
		return errors.New("insert failed")
	}
	s.stored = append(s.stored, rec)
	return nil
}

func (s *fakeSink) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.stored))
	for _, r := range s.stored {
		out = append(out, r.SessionID)
	}
	return out
}

func newWorker(t *testing.T, sink ResultSink) (*ResultsWorker, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	w := NewResultsWorker(sink, rdb, zerolog.Nop())
	w.now = func() time.Time { return time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC) }
	return w, mr, rdb
}

func completed(id string) model.EventSessionCompleted {
	return model.EventSessionCompleted{
		SessionID:  id,
		UserID:     "user-1",
		ExamTypeID: "mcat",
		Mode:       model.ModeTimed,
		Reason:     model.CompletionSubmitted,
		Result:     model.ScoringResult{SessionID: id, CorrectCount: 3, TotalQuestions: 5, ScorePercentage: 60, Grade: model.GradeD},
	}
}

func TestResultsWorker_EnqueueOnlyCompletions(t *testing.T) {
	w, mr, _ := newWorker(t, &fakeSink{})
	ctx := context.Background()

	require.NoError(t, w.Enqueue(ctx, model.EventExamPaused{SessionID: "s1"}))
	assert.False(t, mr.Exists(config.WorkerKey.PersistResultsQueue))

	require.NoError(t, w.Enqueue(ctx, completed("s1")))
	items, err := mr.List(config.WorkerKey.PersistResultsQueue)
	require.NoError(t, err)
	require.Len(t, items, 1)

	var rec repository.SessionResultRecord
	require.NoError(t, json.Unmarshal([]byte(items[0]), &rec))
	assert.Equal(t, "s1", rec.SessionID)
	assert.Equal(t, model.CompletionSubmitted, rec.Reason)
	assert.Equal(t, 60.0, rec.Result.ScorePercentage)
	assert.Equal(t, w.now(), rec.CompletedAt)
}

func TestResultsWorker_DrainsQueueOnShutdown(t *testing.T) {
	sink := &fakeSink{}
	w, mr, _ := newWorker(t, sink)

	require.NoError(t, w.Enqueue(context.Background(), completed("s1")))
	require.NoError(t, w.Enqueue(context.Background(), completed("s2")))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return !mr.Exists(config.WorkerKey.PersistResultsQueue)
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not stop")
	}

	assert.ElementsMatch(t, []string{"s1", "s2"}, sink.ids())
}

func TestResultsWorker_FallbackRequeuesFailures(t *testing.T) {
	sink := &fakeSink{bulkErr: errors.New("bulk failed"), failIDs: map[string]bool{"s2": true}}
	w, mr, _ := newWorker(t, sink)

	a, b := completed("s1"), completed("s2")
	w.flushSafe(context.Background(), []*repository.SessionResultRecord{
		{SessionID: a.SessionID, ExamTypeID: a.ExamTypeID, Result: a.Result},
		{SessionID: b.SessionID, ExamTypeID: b.ExamTypeID, Result: b.Result},
	})

	assert.Equal(t, []string{"s1"}, sink.ids())

	items, err := mr.List(config.WorkerKey.PersistResultsQueue)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Contains(t, items[0], `"session_id":"s2"`)
	assert.Contains(t, items[0], `"attempts":1`)
}

func TestResultsWorker_PersistentFailureMovesToDeadLetter(t *testing.T) {
	sink := &fakeSink{bulkErr: errors.New("bulk failed"), failIDs: map[string]bool{"s1": true}}
	w, mr, _ := newWorker(t, sink)
	ctx := context.Background()

	rec := &repository.SessionResultRecord{SessionID: "s1", ExamTypeID: "mcat"}
	for i := 1; i < ResultMaxAttempts; i++ {
		w.flushSafe(ctx, []*repository.SessionResultRecord{rec})

		items, err := mr.List(config.WorkerKey.PersistResultsQueue)
		require.NoError(t, err)
		require.Len(t, items, 1, "attempt %d", i)
		mr.Del(config.WorkerKey.PersistResultsQueue)
	}

	w.flushSafe(ctx, []*repository.SessionResultRecord{rec})

	assert.False(t, mr.Exists(config.WorkerKey.PersistResultsQueue), "exhausted record must leave the work queue")
	dead, err := mr.List(config.WorkerKey.PersistResultsDeadLetter)
	require.NoError(t, err)
	require.Len(t, dead, 1)

	var parked repository.SessionResultRecord
	require.NoError(t, json.Unmarshal([]byte(dead[0]), &parked))
	assert.Equal(t, "s1", parked.SessionID)
	assert.Equal(t, ResultMaxAttempts, parked.Attempts)
	assert.Empty(t, sink.ids())
}

func TestResultsWorker_RequeueSurvivesRedisOutage(t *testing.T) {
	sink := &fakeSink{bulkErr: errors.New("bulk failed"), failIDs: map[string]bool{"s1": true}}
	w, mr, _ := newWorker(t, sink)
	mr.Close()

	assert.NotPanics(t, func() {
		w.flushSafe(context.Background(), []*repository.SessionResultRecord{{SessionID: "s1"}})
	})
}

func TestResultsWorker_AnnouncesStoredResults(t *testing.T) {
	w, _, rdb := newWorker(t, &fakeSink{})
	ctx := context.Background()

	sub := rdb.Subscribe(ctx, config.CacheKey.ExamTypeMonitorChannel("mcat"))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	c := completed("s1")
	w.flushSafe(ctx, []*repository.SessionResultRecord{
		{SessionID: c.SessionID, UserID: c.UserID, ExamTypeID: c.ExamTypeID, Reason: c.Reason, Result: c.Result},
	})

	select {
	case msg := <-sub.Channel():
		var got monitorPayload
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, "s1", got.SessionID)
		assert.Equal(t, 60.0, got.ScorePercentage)
		assert.Equal(t, model.GradeD, got.Grade)
	case <-time.After(2 * time.Second):
		t.Fatal("no monitor message")
	}
}
