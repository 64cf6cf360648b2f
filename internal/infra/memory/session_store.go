package memory

import (
	"sync"

	"quizbot/internal/app"
	"quizbot/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[int64]*app.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
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
	if current, ok := s.sessions[chatID]; ok && current == session {
		delete(s.sessions, chatID)
	}
}

// Len reports how many chats have a live session.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
