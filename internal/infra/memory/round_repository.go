package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quizbot/internal/domain"
)

// RoundLoader fetches rounds from a backing store (files, Postgres, Firebase).
type RoundLoader interface {
	LoadRound(ctx context.Context, number int) (domain.Round, error)
	CountRounds(ctx context.Context) (int, error)
}

// RoundRepository caches rounds with TTL to avoid repeated backend hits.
type RoundRepository struct {
	loader RoundLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu         sync.RWMutex
	cache      map[int]cachedRound
	total      int
	totalUntil time.Time
}

type cachedRound struct {
	round     domain.Round
	expiresAt time.Time
}

func NewRoundRepository(loader RoundLoader, ttl time.Duration) *RoundRepository {
	return &RoundRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		cache:  make(map[int]cachedRound),
	}
}

func (r *RoundRepository) GetRound(ctx context.Context, number int) (domain.Round, error) {
	if round, ok := r.cached(number); ok {
		return round, nil
	}

	result, err, _ := r.sf.Do(strconv.Itoa(number), func() (interface{}, error) {
		if round, ok := r.cached(number); ok {
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

		r.mu.Lock()
		r.cache[number] = cachedRound{
			round:     round,
			expiresAt: r.clock().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return round, nil
	})
	if err != nil {
		return domain.Round{}, err
	}
	return result.(domain.Round), nil
}

func (r *RoundRepository) TotalRounds(ctx context.Context) (int, error) {
	now := r.clock()
	r.mu.RLock()
	if r.totalUntil.After(now) {
		total := r.total
		r.mu.RUnlock()
		return total, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do("total", func() (interface{}, error) {
		total, err := r.loader.CountRounds(ctx)
		if err != nil {
			return 0, err
		}
		r.mu.Lock()
		r.total = total
		r.totalUntil = r.clock().Add(r.ttlWithJitter())
		r.mu.Unlock()
		return total, nil
	})
	if err != nil {
		return 0, err
	}
	return result.(int), nil
}

func (r *RoundRepository) cached(number int) (domain.Round, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[number]
	if !ok || !entry.expiresAt.After(now) {
		return domain.Round{}, false
	}
	return entry.round, true
}

func (r *RoundRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(rand.Int63n(jitterMax+1))
}

// StaticRoundLoader is a loader backed by an in-memory slice, round 1 first (useful for tests/demos).
type StaticRoundLoader struct {
	rounds []domain.Round
}

func NewStaticRoundLoader(rounds ...domain.Round) *StaticRoundLoader {
	return &StaticRoundLoader{rounds: rounds}
}

func (l *StaticRoundLoader) LoadRound(_ context.Context, number int) (domain.Round, error) {
	if number < 1 || number > len(l.rounds) {
		return domain.Round{}, domain.ErrRoundNotFound
	}
	round := l.rounds[number-1]
	round.Number = number
	return round, nil
}

func (l *StaticRoundLoader) CountRounds(context.Context) (int, error) {
	return len(l.rounds), nil
}
