package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quizbot/internal/domain"
	"quizbot/internal/infra/memory"
)

// RoundRepository caches rounds in Redis and falls back to a loader on cache miss.
// Rounds are stored as JSON:  SET quizbot:round:{n} {json}
// The bank size is stored as: SET quizbot:rounds:total {n}
type RoundRepository struct {
	client *redis.Client
	loader memory.RoundLoader
	ttl    time.Duration
	sf     singleflight.Group
}

func NewRoundRepository(client *redis.Client, loader memory.RoundLoader, ttl time.Duration) *RoundRepository {
	return &RoundRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
	}
}

func (r *RoundRepository) GetRound(ctx context.Context, number int) (domain.Round, error) {
	if round, ok := r.cached(ctx, number); ok {
		return round, nil
	}

	result, err, _ := r.sf.Do(roundKey(number), func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if round, ok := r.cached(ctx, number); ok {
			return round, nil
		}

		round, err := r.loader.LoadRound(ctx, number)
		if err != nil {
			return domain.Round{}, err
		}
		round.Number = number
		if err := round.Validate(); err != nil {
			return domain.Round{}, err
		}

		if raw, err := json.Marshal(round); err == nil {
			_ = r.client.Set(ctx, roundKey(number), raw, r.ttlWithJitter()).Err()
		}
		return round, nil
	})
	if err != nil {
		return domain.Round{}, err
	}
	return result.(domain.Round), nil
}

func (r *RoundRepository) TotalRounds(ctx context.Context) (int, error) {
	if raw, err := r.client.Get(ctx, totalKey).Result(); err == nil {
		if n, err := strconv.Atoi(raw); err == nil {
			return n, nil
		}
	}

	result, err, _ := r.sf.Do(totalKey, func() (interface{}, error) {
		total, err := r.loader.CountRounds(ctx)
		if err != nil {
			return 0, err
		}
		_ = r.client.Set(ctx, totalKey, total, r.ttlWithJitter()).Err()
		return total, nil
	})
	if err != nil {
		return 0, err
	}
	return result.(int), nil
}

// Invalidate drops every cached round so the next read reloads from the source.
func (r *RoundRepository) Invalidate(ctx context.Context) error {
	keys, err := r.client.Keys(ctx, "quizbot:round:*").Result()
	if err != nil {
		return err
	}
	keys = append(keys, totalKey)
	return r.client.Del(ctx, keys...).Err()
}

func (r *RoundRepository) cached(ctx context.Context, number int) (domain.Round, bool) {
	raw, err := r.client.Get(ctx, roundKey(number)).Bytes()
	if err != nil {
		// redis.Nil is a plain miss; anything else falls through to the loader too.
		return domain.Round{}, false
	}
	var round domain.Round
	if err := json.Unmarshal(raw, &round); err != nil {
		return domain.Round{}, false
	}
	return round, true
}

const totalKey = "quizbot:rounds:total"

func roundKey(number int) string {
	return "quizbot:round:" + strconv.Itoa(number)
}

func (r *RoundRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(rand.Int63n(jitterMax+1))
}
