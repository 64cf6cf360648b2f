package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"quizbot/internal/domain"
)

// AnswerQueue buffers inbound answers per chat and applies them one at a time at a fixed rate.
// A chat's drain loop exists only while its queue is non-empty.
type AnswerQueue struct {
	capacity int
	interval time.Duration
	sched    Scheduler
	apply    func(domain.AnswerEvent)
	log      zerolog.Logger

	mu    sync.Mutex
	chats map[int64][]domain.AnswerEvent
}

func NewAnswerQueue(capacity int, interval time.Duration, sched Scheduler, apply func(domain.AnswerEvent), log zerolog.Logger) *AnswerQueue {
	return &AnswerQueue{
		capacity: capacity,
		interval: interval,
		sched:    sched,
		apply:    apply,
		log:      log,
		chats:    make(map[int64][]domain.AnswerEvent),
	}
}

// Submit enqueues the event, or drops it with ErrQueueFull when the chat's queue is at capacity.
func (q *AnswerQueue) Submit(ev domain.AnswerEvent) error {
	q.mu.Lock()
	pending, draining := q.chats[ev.ChatID]
	if len(pending) >= q.capacity {
		q.mu.Unlock()
		q.log.Warn().Int64("chat_id", ev.ChatID).Int64("user_id", ev.User.ID).Int("capacity", q.capacity).Msg("answer queue full, dropping event")
		return domain.ErrQueueFull
	}
	q.chats[ev.ChatID] = append(pending, ev)
	q.mu.Unlock()

	if !draining {
		q.sched.After(0, func() { q.drain(ev.ChatID) })
	}
	return nil
}

// Len returns the number of queued events for the chat.
func (q *AnswerQueue) Len(chatID int64) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.chats[chatID])
}

// Draining reports whether the chat currently has a drain loop.
func (q *AnswerQueue) Draining(chatID int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.chats[chatID]
	return ok
}

func (q *AnswerQueue) drain(chatID int64) {
	q.mu.Lock()
	pending := q.chats[chatID]
	if len(pending) == 0 {
		delete(q.chats, chatID)
		q.mu.Unlock()
		return
	}
	ev := pending[0]
	pending[0] = domain.AnswerEvent{}
	q.chats[chatID] = pending[1:]
	q.mu.Unlock()

	q.apply(ev)
	q.sched.After(q.interval, func() { q.drain(chatID) })
}
