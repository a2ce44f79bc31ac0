package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Wajahat883/EDU-PREP-sub001/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisRelay mirrors bus events onto per-session Redis PubSub channels so
// other processes (proctoring dashboards, analytics) can follow a session.
type RedisRelay struct {
	rdb redis.UniversalClient
	log zerolog.Logger
}

func NewRedisRelay(rdb redis.UniversalClient, log zerolog.Logger) *RedisRelay {
	return &RedisRelay{
		rdb: rdb,
		log: log.With().Str("component", "redis_relay").Logger(),
	}
}

// Handle is registered on the bus with Bus.Handle.
func (r *RedisRelay) Handle(ctx context.Context, e Event) error {
	raw, err := json.Marshal(Wrap(e))
	if err != nil {
		return fmt.Errorf("marshal %s: %w", e.Name(), err)
	}

	channel := config.CacheKey.SessionEventsChannel(e.SessionKey())
	if err := r.rdb.Publish(ctx, channel, raw).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// Follow subscribes to a session's mirrored channel and decodes each message
// into an envelope with raw data. The returned channel closes when ctx ends.
func (r *RedisRelay) Follow(ctx context.Context, sessionID string) <-chan RawEnvelope {
	out := make(chan RawEnvelope, defaultBufferSize)
	pubsub := r.rdb.Subscribe(ctx, config.CacheKey.SessionEventsChannel(sessionID))

	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env RawEnvelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					r.log.Warn().Err(err).Str("session_id", sessionID).Msg("Dropping malformed relay message")
					continue
				}
				select {
				case out <- env:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

// RawEnvelope is an Envelope whose payload has not been decoded yet.
type RawEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}
