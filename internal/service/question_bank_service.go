package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Wajahat883/EDU-PREP-sub001/internal/config"
	"github.com/Wajahat883/EDU-PREP-sub001/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// QuestionBank is the read-only lookup into the external question bank.
// Ids it does not know are simply absent from the result.
type QuestionBank interface {
	GetQuestionMeta(ctx context.Context, ids []string) (map[string]model.QuestionMeta, error)
}

// QuestionMetaLoader is the backing source behind the cache.
type QuestionMetaLoader interface {
	GetMetaByIDs(ctx context.Context, ids []string) ([]model.QuestionMetadata, error)
}

// QuestionBankService reads question metadata through a Redis read-through cache.
type QuestionBankService struct {
	loader QuestionMetaLoader
	rdb    redis.UniversalClient
	ttl    time.Duration
	log    zerolog.Logger
}

func NewQuestionBankService(loader QuestionMetaLoader, rdb redis.UniversalClient, ttl time.Duration, log zerolog.Logger) *QuestionBankService {
	return &QuestionBankService{
		loader: loader,
		rdb:    rdb,
		ttl:    ttl,
		log:    log.With().Str("component", "question_bank").Logger(),
	}
}

func (s *QuestionBankService) GetQuestionMeta(ctx context.Context, ids []string) (map[string]model.QuestionMeta, error) {
	out := make(map[string]model.QuestionMeta, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	missing := s.fromCache(ctx, ids, out)
	if len(missing) == 0 {
		return out, nil
	}

	loaded, err := s.loader.GetMetaByIDs(ctx, missing)
	if err != nil {
		return out, fmt.Errorf("load question metadata: %w", err)
	}
	for _, q := range loaded {
		out[q.QuestionID] = q
	}
	s.fill(ctx, loaded)
	return out, nil
}

// fromCache fills out with cached entries and returns the ids it could not serve.
// A Redis failure degrades to a full load rather than an error.
func (s *QuestionBankService) fromCache(ctx context.Context, ids []string, out map[string]model.QuestionMeta) []string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = config.CacheKey.QuestionMetaKey(id)
	}

	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Msg("Question cache read failed")
		}
		return ids
	}

	var missing []string
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			missing = append(missing, ids[i])
			continue
		}
		var q model.QuestionMetadata
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			missing = append(missing, ids[i])
			continue
		}
		out[ids[i]] = q
	}
	return missing
}

func (s *QuestionBankService) fill(ctx context.Context, loaded []model.QuestionMetadata) {
	if len(loaded) == 0 {
		return
	}
	pipe := s.rdb.Pipeline()
	for _, q := range loaded {
		raw, err := json.Marshal(q)
		if err != nil {
			continue
		}
		pipe.Set(ctx, config.CacheKey.QuestionMetaKey(q.QuestionID), raw, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Int("count", len(loaded)).Msg("Question cache fill failed")
	}
}

// StaticQuestionBank serves metadata from memory. Used with the memory store
// and in tests.
type StaticQuestionBank map[string]model.QuestionMetadata

func (b StaticQuestionBank) GetQuestionMeta(_ context.Context, ids []string) (map[string]model.QuestionMeta, error) {
	out := make(map[string]model.QuestionMeta, len(ids))
	for _, id := range ids {
		if q, ok := b[id]; ok {
			out[id] = q
		}
	}
	return out, nil
}
