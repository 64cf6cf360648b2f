package app

import (
	"context"
	"fmt"
	"sync"

	"quizbot/internal/domain"
)

// RoundRepository is the question bank: rounds numbered 1..TotalRounds.
type RoundRepository interface {
	GetRound(ctx context.Context, number int) (domain.Round, error)
	TotalRounds(ctx context.Context) (int, error)
}

// RoundSelector binds a round to each chat. A running quiz keeps the round it started with.
type RoundSelector struct {
	rounds RoundRepository

	mu    sync.RWMutex
	bound map[int64]domain.Round
}

func NewRoundSelector(rounds RoundRepository) *RoundSelector {
	return &RoundSelector{rounds: rounds, bound: make(map[int64]domain.Round)}
}

// Select binds round number to the chat. The previous binding is untouched on failure.
func (r *RoundSelector) Select(ctx context.Context, chatID int64, number int) (domain.Round, error) {
	total, err := r.rounds.TotalRounds(ctx)
	if err != nil {
		return domain.Round{}, fmt.Errorf("count rounds: %w", err)
	}
	if number < 1 || number > total {
		return domain.Round{}, fmt.Errorf("%w: %d not in [1, %d]", domain.ErrInvalidRound, number, total)
	}
	round, err := r.rounds.GetRound(ctx, number)
	if err != nil {
		return domain.Round{}, fmt.Errorf("load round %d: %w", number, err)
	}
	round.Number = number

	r.mu.Lock()
	r.bound[chatID] = round
	r.mu.Unlock()
	return round, nil
}

// Bound returns the round bound to the chat.
func (r *RoundSelector) Bound(chatID int64) (domain.Round, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	round, ok := r.bound[chatID]
	return round, ok
}

// TotalRounds reports the size of the question bank.
func (r *RoundSelector) TotalRounds(ctx context.Context) (int, error) {
	return r.rounds.TotalRounds(ctx)
}
