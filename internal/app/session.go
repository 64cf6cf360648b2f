package app

import (
	"sync"
	"time"

	"quizbot/internal/domain"
)

// Session is the mutable quiz state of one chat. All fields are guarded by mu, which is the
// per-chat exclusion scope shared by the state machine and the answer drain.
type Session struct {
	ChatID int64

	// out orders edits of the prompt message; it is taken before mu, never after.
	out sync.Mutex

	mu              sync.Mutex
	round           domain.Round
	currentQuestion int
	activeUsers     map[int64]string
	activeOrder     []int64
	answeredUsers   map[int64]struct{}
	questionStart   time.Time
	promptRef       domain.MessageRef
	tickCount       int
	accepting       bool
	ended           bool

	timeout Cancel
	tick    Cancel
	advance Cancel
}

// NewSession is exported for infrastructure layers that create sessions on behalf of the service.
func NewSession(chatID int64, round domain.Round) *Session {
	return &Session{
		ChatID:        chatID,
		round:         round,
		activeUsers:   make(map[int64]string),
		answeredUsers: make(map[int64]struct{}),
	}
}

// SessionSnapshot is a read-only copy of a session.
type SessionSnapshot struct {
	ChatID          int64
	Round           int
	CurrentQuestion int
	ActiveUsers     []domain.ScoreEntry
	AnsweredUsers   int
	Accepting       bool
	TickCount       int
	PromptRef       domain.MessageRef
}

func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]domain.ScoreEntry, 0, len(s.activeOrder))
	for _, id := range s.activeOrder {
		users = append(users, domain.ScoreEntry{UserID: id, DisplayName: s.activeUsers[id]})
	}
	return SessionSnapshot{
		ChatID:          s.ChatID,
		Round:           s.round.Number,
		CurrentQuestion: s.currentQuestion,
		ActiveUsers:     users,
		AnsweredUsers:   len(s.answeredUsers),
		Accepting:       s.accepting,
		TickCount:       s.tickCount,
		PromptRef:       s.promptRef,
	}
}

// markActiveLocked records the user's display name, keeping first-answer order.
func (s *Session) markActiveLocked(userID int64, name string) {
	if _, seen := s.activeUsers[userID]; !seen {
		s.activeOrder = append(s.activeOrder, userID)
	}
	s.activeUsers[userID] = name
}

// disarmLocked cancels every pending action of the session.
func (s *Session) disarmLocked() {
	for _, c := range []*Cancel{&s.timeout, &s.tick, &s.advance} {
		if *c != nil {
			(*c)()
			*c = nil
		}
	}
}
