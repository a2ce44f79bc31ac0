package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Wajahat883/EDU-PREP-sub001/internal/config"
	"github.com/Wajahat883/EDU-PREP-sub001/internal/event"
	"github.com/Wajahat883/EDU-PREP-sub001/internal/model"
	"github.com/Wajahat883/EDU-PREP-sub001/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	ResultBatchSize    = 50
	ResultBatchTimeout = 2 * time.Second
	ResultPollTimeout  = 1 * time.Second

	// ResultMaxAttempts is how many failed single inserts a record survives
	// before it is parked on the dead-letter list.
	ResultMaxAttempts = 5
)

// ResultSink is where completed session results end up.
type ResultSink interface {
	BulkInsert(ctx context.Context, batch []*repository.SessionResultRecord) error
	Insert(ctx context.Context, rec *repository.SessionResultRecord) error
}

// ResultsWorker moves completion records from a Redis queue into the
// analytics table in batches, then announces them on the exam type's
// monitor channel.
type ResultsWorker struct {
	sink ResultSink
	rdb  redis.UniversalClient
	now  func() time.Time
	log  zerolog.Logger
}

func NewResultsWorker(sink ResultSink, rdb redis.UniversalClient, log zerolog.Logger) *ResultsWorker {
	return &ResultsWorker{
		sink: sink,
		rdb:  rdb,
		now:  time.Now,
		log:  log.With().Str("component", "results_worker").Logger(),
	}
}

// monitorPayload is what dashboards following an exam type receive.
type monitorPayload struct {
	SessionID       string                 `json:"session_id"`
	UserID          string                 `json:"user_id"`
	Reason          model.CompletionReason `json:"reason"`
	ScorePercentage float64                `json:"score_percentage"`
	Grade           string                 `json:"grade"`
	CompletedAt     time.Time              `json:"completed_at"`
}

// Enqueue is registered as an event bus handler. Only completions are queued.
func (w *ResultsWorker) Enqueue(ctx context.Context, e event.Event) error {
	done, ok := e.(model.EventSessionCompleted)
	if !ok {
		return nil
	}

	rec := &repository.SessionResultRecord{
		SessionID:   done.SessionID,
		UserID:      done.UserID,
		ExamTypeID:  done.ExamTypeID,
		Mode:        done.Mode,
		Reason:      done.Reason,
		Result:      done.Result,
		CompletedAt: w.now().UTC(),
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return w.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw).Err()
}

func (w *ResultsWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResultsWorker started")

	batch := make([]*repository.SessionResultRecord, 0, ResultBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= ResultBatchSize || time.Since(lastFlush) >= ResultBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, ResultPollTimeout, config.WorkerKey.PersistResultsQueue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var rec repository.SessionResultRecord
			if err := json.Unmarshal([]byte(item[1]), &rec); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &rec)
		}
	}
}

func (w *ResultsWorker) flushSafe(ctx context.Context, batch []*repository.SessionResultRecord) {
	if len(batch) == 0 {
		return
	}

	if err := w.sink.BulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("size", len(batch)).Msg("Bulk result insert failed, using fallback")

		stored := make([]*repository.SessionResultRecord, 0, len(batch))
		for _, rec := range batch {
			if err := w.sink.Insert(ctx, rec); err != nil {
				w.requeue(ctx, rec, err)
				continue
			}
			stored = append(stored, rec)
		}
		w.announce(ctx, stored)
		return
	}

	w.announce(ctx, batch)
}

// requeue puts a failed record back on the queue, or on the dead-letter list
// once it has used up its attempts.
func (w *ResultsWorker) requeue(ctx context.Context, rec *repository.SessionResultRecord, cause error) {
	rec.Attempts++
	key := config.WorkerKey.PersistResultsQueue
	if rec.Attempts >= ResultMaxAttempts {
		key = config.WorkerKey.PersistResultsDeadLetter
	}

	w.log.Error().Err(cause).
		Str("session_id", rec.SessionID).
		Int("attempts", rec.Attempts).
		Str("queue", key).
		Msg("Single insert failed, requeueing")

	raw, err := json.Marshal(rec)
	if err != nil {
		w.log.Error().Err(err).Str("session_id", rec.SessionID).Msg("Result record encode failed, dropping")
		return
	}
	if err := w.rdb.RPush(ctx, key, raw).Err(); err != nil {
		w.log.Error().Err(err).
			Str("session_id", rec.SessionID).
			Str("queue", key).
			Msg("Requeue failed, result lost")
	}
}

func (w *ResultsWorker) announce(ctx context.Context, batch []*repository.SessionResultRecord) {
	if len(batch) == 0 {
		return
	}

	pipe := w.rdb.Pipeline()
	for _, rec := range batch {
		raw, err := json.Marshal(monitorPayload{
			SessionID:       rec.SessionID,
			UserID:          rec.UserID,
			Reason:          rec.Reason,
			ScorePercentage: rec.Result.ScorePercentage,
			Grade:           rec.Result.Grade,
			CompletedAt:     rec.CompletedAt,
		})
		if err != nil {
			continue
		}
		pipe.Publish(ctx, config.CacheKey.ExamTypeMonitorChannel(rec.ExamTypeID), raw)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Warn().Err(err).Msg("Monitor publish failed")
	}
}
