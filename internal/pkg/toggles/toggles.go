package toggles

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// aiModerationKey is the global toggle; per-course overrides live under
// aiModerationKey + ":" + courseID. Values are parsed with strconv
// ("1", "true", "t", ...).
const aiModerationKey = "forum:toggle:ai_moderation"

// Store resolves feature toggles from Redis. A nil client resolves every
// toggle to disabled, so the forum runs safely without Redis.
type Store struct {
	redis *redis.Client
}

// NewStore creates a toggle store. client may be nil.
func NewStore(client *redis.Client) *Store {
	return &Store{redis: client}
}

// AIModerationEnabled reports whether AI moderation is enabled for the
// course. The per-course key wins over the global key; a missing key or
// a Redis error counts as disabled.
func (s *Store) AIModerationEnabled(ctx context.Context, courseID string) bool {
	if s == nil || s.redis == nil {
		return false
	}

	if courseID != "" {
		if v, ok := s.lookup(ctx, aiModerationKey+":"+courseID); ok {
			return v
		}
	}
	if v, ok := s.lookup(ctx, aiModerationKey); ok {
		return v
	}
	return false
}

func (s *Store) lookup(ctx context.Context, key string) (value, found bool) {
	raw, err := s.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, false
	}
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Toggle lookup failed, treating as disabled")
		return false, false
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("Toggle value is not a boolean, treating as disabled")
		return false, true
	}
	return v, true
}
