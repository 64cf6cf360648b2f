package app

import "sync"

// ScoreLedger counts correct answers per user, partitioned by chat.
type ScoreLedger struct {
	mu     sync.RWMutex
	scores map[int64]map[int64]int
}

func NewScoreLedger() *ScoreLedger {
	return &ScoreLedger{scores: make(map[int64]map[int64]int)}
}

// Reset drops every score recorded for the chat.
func (l *ScoreLedger) Reset(chatID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.scores, chatID)
}

// Increment adds one point and returns the new score. Entries are created lazily.
func (l *ScoreLedger) Increment(chatID, userID int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	users, ok := l.scores[chatID]
	if !ok {
		users = make(map[int64]int)
		l.scores[chatID] = users
	}
	users[userID]++
	return users[userID]
}

// Score returns the user's score, zero when absent.
func (l *ScoreLedger) Score(chatID, userID int64) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.scores[chatID][userID]
}

// AnswerInbox keeps the latest raw answer per user for the question currently open in each chat.
type AnswerInbox struct {
	mu      sync.RWMutex
	answers map[int64]map[int64]string
}

func NewAnswerInbox() *AnswerInbox {
	return &AnswerInbox{answers: make(map[int64]map[int64]string)}
}

// Record stores the answer, overwriting any earlier one from the same user.
func (b *AnswerInbox) Record(chatID, userID int64, value string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	users, ok := b.answers[chatID]
	if !ok {
		users = make(map[int64]string)
		b.answers[chatID] = users
	}
	users[userID] = value
}

// Clear empties the chat's inbox.
func (b *AnswerInbox) Clear(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.answers, chatID)
}

// Snapshot returns a copy of the chat's current answers.
func (b *AnswerInbox) Snapshot(chatID int64) map[int64]string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[int64]string, len(b.answers[chatID]))
	for user, value := range b.answers[chatID] {
		out[user] = value
	}
	return out
}
