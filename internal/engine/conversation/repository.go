package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	errx "github.com/intentcore/server/internal/core/error"
	"github.com/intentcore/server/internal/engine/model"
	logx "github.com/intentcore/server/pkg/logger"
)

// Repository stores per-conversation resolved intent history, which feeds
// the decomposition prompt on later turns.
type Repository interface {
	AppendIntents(ctx context.Context, conversationID string, intents []model.ResolvedIntent) error
	RecentIntents(ctx context.Context, conversationID string) ([]model.ResolvedIntent, error)
	Clear(ctx context.Context, conversationID string) error
}

// RedisRepository keeps intent history in a capped redis list with a
// sliding TTL.
type RedisRepository struct {
	rdb      redis.Cmdable
	ttl      time.Duration
	maxTurns int
}

func NewRedisRepository(rdb redis.Cmdable, ttl time.Duration, maxTurns int) *RedisRepository {
	return &RedisRepository{rdb: rdb, ttl: ttl, maxTurns: maxTurns}
}

func (r *RedisRepository) intentKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:intents", conversationID)
}

// AppendIntents pushes the turn's resolved intents and trims the list to
// the configured turn cap. TTL is extended on every touch.
func (r *RedisRepository) AppendIntents(ctx context.Context, conversationID string, intents []model.ResolvedIntent) error {
	if len(intents) == 0 {
		return nil
	}
	key := r.intentKey(conversationID)

	values := make([]interface{}, 0, len(intents))
	for _, intent := range intents {
		b, err := json.Marshal(intent)
		if err != nil {
			logx.Error().Err(err).Str("conversationID", conversationID).Msg("failed to marshal intent")
			return fmt.Errorf("marshal intent: %w", err)
		}
		values = append(values, b)
	}

	if err := r.rdb.RPush(ctx, key, values...).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to push intents to redis")
		return errx.WrapRedis(err)
	}

	if r.maxTurns > 0 {
		if err := r.rdb.LTrim(ctx, key, int64(-r.maxTurns), -1).Err(); err != nil {
			logx.Error().Err(err).Str("key", key).Msg("failed to trim intent history")
			return errx.WrapRedis(err)
		}
	}

	// extend TTL on touch
	if r.ttl > 0 {
		if ok, err := r.rdb.Expire(ctx, key, r.ttl).Result(); err != nil {
			logx.Error().Err(err).Str("key", key).Msg("failed to set expire")
			return errx.WrapRedis(err)
		} else if !ok {
			logx.Warn().Str("key", key).Dur("ttl", r.ttl).Msg("failed to set TTL on intent history key")
		}
	}
	return nil
}

// RecentIntents returns the conversation's stored intents, oldest first.
func (r *RedisRepository) RecentIntents(ctx context.Context, conversationID string) ([]model.ResolvedIntent, error) {
	key := r.intentKey(conversationID)

	rows, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load intent history from redis")
		return nil, errx.WrapRedis(err)
	}

	intents := make([]model.ResolvedIntent, 0, len(rows))
	for i, s := range rows {
		var intent model.ResolvedIntent
		if err := json.Unmarshal([]byte(s), &intent); err != nil {
			logx.Error().Err(err).Str("conversationID", conversationID).Int("index", i).Msg("failed to unmarshal intent")
			return nil, fmt.Errorf("unmarshal intent at index %d: %w", i, err)
		}
		intents = append(intents, intent)
	}
	return intents, nil
}

func (r *RedisRepository) Clear(ctx context.Context, conversationID string) error {
	key := r.intentKey(conversationID)
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete intent history from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ Repository = (*RedisRepository)(nil)
