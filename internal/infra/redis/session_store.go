package redis

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"quizbot/internal/app"
	"quizbot/internal/domain"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Sessions (and their timers) live in process; Redis carries a liveness marker per running chat
// so operators and sibling instances can see which chats have a quiz in progress.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger

	mu       sync.RWMutex
	sessions map[int64]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration, log zerolog.Logger) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		log:      log,
		sessions: make(map[int64]*app.Session),
	}
}

func (s *SessionStore) Create(chatID int64, round domain.Round) (*app.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[chatID]; ok {
		return session, false
	}
	session := app.NewSession(chatID, round)
	s.sessions[chatID] = session
	// best-effort liveness marker
	if err := s.client.Set(context.Background(), Key(chatID), round.Number, s.ttl).Err(); err != nil {
		s.log.Warn().Err(err).Int64("chat_id", chatID).Msg("set session marker failed")
	}
	return session, true
}

func (s *SessionStore) Get(chatID int64) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[chatID]
	return session, ok
}

func (s *SessionStore) Delete(chatID int64, session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.sessions[chatID]
	if !ok || current != session {
		return
	}
	delete(s.sessions, chatID)
	if err := s.client.Del(context.Background(), Key(chatID)).Err(); err != nil {
		s.log.Warn().Err(err).Int64("chat_id", chatID).Msg("clear session marker failed")
	}
}

// Running reports whether any instance has marked the chat as running.
func (s *SessionStore) Running(ctx context.Context, chatID int64) (bool, error) {
	n, err := s.client.Exists(ctx, Key(chatID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Key is the liveness marker key of a chat.
func Key(chatID int64) string {
	return "quizbot:session:" + strconv.FormatInt(chatID, 10)
}
