package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"quizbot/internal/domain"
)

// SessionRepository abstracts how live chat sessions are stored (in-memory, Redis, etc).
type SessionRepository interface {
	// Create stores a fresh session, or returns false when the chat already has one.
	Create(chatID int64, round domain.Round) (*Session, bool)
	Get(chatID int64) (*Session, bool)
	// Delete removes the chat's session if it is still the given one.
	Delete(chatID int64, session *Session)
}

// Platform is the outbound chat client.
type Platform interface {
	SendMessage(ctx context.Context, chatID int64, text string, kb domain.Keyboard) (domain.MessageRef, error)
	EditMessageText(ctx context.Context, chatID int64, ref domain.MessageRef, text string, kb domain.Keyboard) error
	EditMessageReplyMarkup(ctx context.Context, chatID int64, ref domain.MessageRef, kb domain.Keyboard) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// EventPublisher forwards quiz lifecycle events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.QuizEvent) error
}

// PublishFailurePolicy decides what happens when a question cannot be published.
type PublishFailurePolicy string

const (
	PublishAbort PublishFailurePolicy = "abort"
	PublishRetry PublishFailurePolicy = "retry"
)

// Settings holds the fixed timing and queueing parameters of the quiz.
type Settings struct {
	QuestionDuration  time.Duration
	RefreshInterval   time.Duration
	RevealPause       time.Duration
	QueueCapacity     int
	DrainInterval     time.Duration
	AllowAnswerChange bool
	PublishFailure    PublishFailurePolicy
	PublishRetries    int
}

func DefaultSettings() Settings {
	return Settings{
		QuestionDuration:  15 * time.Second,
		RefreshInterval:   time.Second,
		RevealPause:       3 * time.Second,
		QueueCapacity:     1000,
		DrainInterval:     50 * time.Millisecond,
		AllowAnswerChange: true,
		PublishFailure:    PublishAbort,
		PublishRetries:    2,
	}
}

// Deps are the state containers and collaborators owned by the caller.
type Deps struct {
	Sessions  SessionRepository
	Rounds    *RoundSelector
	Platform  Platform
	Scheduler Scheduler
	Ledger    *ScoreLedger
	Inbox     *AnswerInbox
	Events    EventPublisher
	Logger    zerolog.Logger
}

// QuizService runs the per-chat quiz state machine:
// IDLE -> RUNNING(i) -> ... -> ENDED -> IDLE.
type QuizService struct {
	sessions SessionRepository
	rounds   *RoundSelector
	platform Platform
	sched    Scheduler
	ledger   *ScoreLedger
	inbox    *AnswerInbox
	events   EventPublisher
	log      zerolog.Logger
	settings Settings
	queue    *AnswerQueue
}

func NewQuizService(deps Deps, settings Settings) *QuizService {
	if deps.Scheduler == nil {
		deps.Scheduler = NewTimerScheduler()
	}
	if deps.Ledger == nil {
		deps.Ledger = NewScoreLedger()
	}
	if deps.Inbox == nil {
		deps.Inbox = NewAnswerInbox()
	}
	s := &QuizService{
		sessions: deps.Sessions,
		rounds:   deps.Rounds,
		platform: deps.Platform,
		sched:    deps.Scheduler,
		ledger:   deps.Ledger,
		inbox:    deps.Inbox,
		events:   deps.Events,
		log:      deps.Logger,
		settings: settings,
	}
	s.queue = NewAnswerQueue(settings.QueueCapacity, settings.DrainInterval, deps.Scheduler, s.applyAnswer, deps.Logger)
	return s
}

// Start begins a quiz on the chat's bound round.
func (s *QuizService) Start(ctx context.Context, chatID int64, starter domain.User) error {
	if _, ok := s.sessions.Get(chatID); ok {
		s.notify(ctx, chatID, msgAlreadyRunning)
		return domain.ErrAlreadyRunning
	}
	round, ok := s.rounds.Bound(chatID)
	if !ok {
		s.notify(ctx, chatID, msgNoRoundSelected)
		return domain.ErrNoRoundSelected
	}
	session, created := s.sessions.Create(chatID, round)
	if !created {
		s.notify(ctx, chatID, msgAlreadyRunning)
		return domain.ErrAlreadyRunning
	}

	s.ledger.Reset(chatID)
	s.inbox.Clear(chatID)
	s.log.Info().Str("event", "QUIZ_START").Int64("chat_id", chatID).Int("round", round.Number).
		Int("questions", round.Len()).Str("started_by", starter.DisplayName()).Msg("quiz started")
	s.publish(ctx, domain.QuizEvent{Type: domain.EventQuizStarted, ChatID: chatID, Round: round.Number})

	if round.Len() == 0 {
		s.notify(ctx, chatID, msgEmptyRound)
		s.end(ctx, session)
		return domain.ErrEmptyRound
	}
	return s.present(context.WithoutCancel(ctx), session, 0)
}

// Stop cancels the chat's running quiz and announces final scores.
func (s *QuizService) Stop(ctx context.Context, chatID int64) error {
	session, ok := s.sessions.Get(chatID)
	if !ok {
		s.notify(ctx, chatID, msgNothingToStop)
		return domain.ErrNoActiveSession
	}

	// Waits for a reveal in flight so the stop notice never lands inside it.
	session.out.Lock()
	defer session.out.Unlock()
	session.mu.Lock()
	if session.ended {
		session.mu.Unlock()
		s.notify(ctx, chatID, msgNothingToStop)
		return domain.ErrNoActiveSession
	}
	scores := s.finishLocked(session)
	session.mu.Unlock()

	s.notify(ctx, chatID, msgStopped)
	s.announceEnd(ctx, session, scores)
	return nil
}

// SelectRound binds a round to the chat.
func (s *QuizService) SelectRound(ctx context.Context, chatID int64, number int) error {
	round, err := s.rounds.Select(ctx, chatID, number)
	if errors.Is(err, domain.ErrInvalidRound) {
		total, _ := s.rounds.TotalRounds(ctx)
		s.notify(ctx, chatID, invalidRoundText(total))
		return err
	}
	if err != nil {
		s.log.Error().Err(err).Int64("chat_id", chatID).Int("round", number).Msg("select round failed")
		s.notify(ctx, chatID, msgGenericError)
		return err
	}
	s.log.Info().Int64("chat_id", chatID).Int("round", number).Int("questions", round.Len()).Msg("round selected")
	s.notify(ctx, chatID, roundSelectedText(round))
	return nil
}

// ListRounds tells the chat how many rounds the question bank holds.
func (s *QuizService) ListRounds(ctx context.Context, chatID int64) error {
	total, err := s.rounds.TotalRounds(ctx)
	if err != nil {
		s.log.Error().Err(err).Int64("chat_id", chatID).Msg("count rounds failed")
		s.notify(ctx, chatID, msgGenericError)
		return err
	}
	s.notify(ctx, chatID, roundsAvailableText(total))
	return nil
}

// SubmitAnswer acknowledges an answer selection and hands it to the ingestion queue.
func (s *QuizService) SubmitAnswer(ctx context.Context, ev domain.AnswerEvent) error {
	if _, ok := parseOption(ev.Value); !ok {
		s.ack(ctx, ev, ackInvalid)
		return fmt.Errorf("%w: %q", domain.ErrInvalidAnswer, ev.Value)
	}
	if _, ok := s.sessions.Get(ev.ChatID); !ok {
		s.ack(ctx, ev, ackNoSession)
		return domain.ErrNoActiveSession
	}
	s.ack(ctx, ev, ackRecorded)
	return s.queue.Submit(ev)
}

// Snapshot returns a copy of the chat's live session.
func (s *QuizService) Snapshot(chatID int64) (SessionSnapshot, bool) {
	session, ok := s.sessions.Get(chatID)
	if !ok {
		return SessionSnapshot{}, false
	}
	return session.Snapshot(), true
}

// Queue exposes the answer ingestion queue.
func (s *QuizService) Queue() *AnswerQueue {
	return s.queue
}

// present publishes question index and arms its countdown and refresh.
func (s *QuizService) present(ctx context.Context, session *Session, index int) error {
	session.mu.Lock()
	if !s.liveLocked(session) {
		session.mu.Unlock()
		return nil
	}
	session.currentQuestion = index
	question, ok := session.round.Question(index)
	if !ok {
		session.mu.Unlock()
		s.end(ctx, session)
		return nil
	}
	session.answeredUsers = make(map[int64]struct{})
	session.tickCount = 0
	session.accepting = false
	s.inbox.Clear(session.ChatID)
	total := session.round.Len()
	session.mu.Unlock()

	s.log.Info().Str("event", "QUESTION_START").Int64("chat_id", session.ChatID).Int("question", index+1).Msg("starting question")

	text := questionText(index, total, question.Prompt, s.settings.QuestionDuration)
	ref, err := s.publishQuestion(ctx, session.ChatID, text, optionsKeyboard(question))
	if err != nil {
		s.log.Error().Err(err).Str("event", "ERROR").Int64("chat_id", session.ChatID).Int("question", index+1).Msg("question publish failed")
		s.notify(ctx, session.ChatID, msgNetworkError)
		s.end(ctx, session)
		return fmt.Errorf("publish question %d: %w", index+1, err)
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	// A stop may have landed while the question was being sent.
	if !s.liveLocked(session) || session.currentQuestion != index {
		return nil
	}
	session.promptRef = ref
	session.questionStart = s.sched.Now()
	session.accepting = true
	session.timeout = s.sched.After(s.settings.QuestionDuration, func() { s.cutoff(ctx, session, index) })
	if s.settings.RefreshInterval > 0 {
		session.tick = s.sched.Every(s.settings.RefreshInterval, func() { s.refresh(ctx, session, index) })
	}
	return nil
}

func (s *QuizService) publishQuestion(ctx context.Context, chatID int64, text string, kb domain.Keyboard) (domain.MessageRef, error) {
	attempts := 1
	if s.settings.PublishFailure == PublishRetry && s.settings.PublishRetries > 0 {
		attempts += s.settings.PublishRetries
	}
	var err error
	for i := 0; i < attempts; i++ {
		var ref domain.MessageRef
		ref, err = s.platform.SendMessage(ctx, chatID, text, kb)
		if err == nil {
			return ref, nil
		}
		s.log.Warn().Err(err).Int64("chat_id", chatID).Int("attempt", i+1).Msg("send question failed")
	}
	return 0, err
}

// refresh edits the prompt with the remaining time.
func (s *QuizService) refresh(ctx context.Context, session *Session, index int) {
	session.out.Lock()
	defer session.out.Unlock()

	session.mu.Lock()
	if !s.liveLocked(session) || !session.accepting || session.currentQuestion != index {
		session.mu.Unlock()
		return
	}
	session.tickCount++
	remaining := s.settings.QuestionDuration - s.sched.Now().Sub(session.questionStart)
	if remaining <= 0 || session.tickCount >= s.maxTicks() {
		if session.tick != nil {
			session.tick()
			session.tick = nil
		}
	}
	question, _ := session.round.Question(index)
	total := session.round.Len()
	ref := session.promptRef
	session.mu.Unlock()

	text := questionText(index, total, question.Prompt, remaining)
	if err := s.platform.EditMessageText(ctx, session.ChatID, ref, text, optionsKeyboard(question)); err != nil {
		s.log.Warn().Err(err).Int64("chat_id", session.ChatID).Msg("timer refresh failed")
	}
}

func (s *QuizService) maxTicks() int {
	if s.settings.RefreshInterval <= 0 {
		return 0
	}
	return int(s.settings.QuestionDuration / s.settings.RefreshInterval)
}

// cutoff closes question index exactly once: scores, reveals, then schedules the next question.
func (s *QuizService) cutoff(ctx context.Context, session *Session, index int) {
	session.out.Lock()
	session.mu.Lock()
	if !s.liveLocked(session) || !session.accepting || session.currentQuestion != index {
		session.mu.Unlock()
		session.out.Unlock()
		s.log.Debug().Int64("chat_id", session.ChatID).Int("question", index+1).Msg("cutoff after teardown ignored")
		return
	}
	session.accepting = false
	session.timeout = nil
	if session.tick != nil {
		session.tick()
		session.tick = nil
	}
	question, _ := session.round.Question(index)
	total := session.round.Len()
	ref := session.promptRef
	correct := s.scoreLocked(session, question)
	roundNo := session.round.Number
	session.mu.Unlock()

	chatID := session.ChatID
	if err := s.platform.EditMessageText(ctx, chatID, ref, questionText(index, total, question.Prompt, 0), optionsKeyboard(question)); err != nil {
		s.log.Warn().Err(err).Int64("chat_id", chatID).Msg("final timer refresh failed")
	}
	s.notify(ctx, chatID, revealText(question))
	if err := s.platform.EditMessageReplyMarkup(ctx, chatID, ref, revealKeyboard(question)); err != nil {
		s.log.Warn().Err(err).Int64("chat_id", chatID).Msg("reveal markup failed")
	}
	s.notify(ctx, chatID, winnersText(correct))
	session.out.Unlock()

	s.log.Info().Str("event", "QUESTION_END").Int64("chat_id", chatID).Int("question", index+1).Strs("correct", correct).Msg("question closed")
	s.logResults(session, index)
	s.publish(ctx, domain.QuizEvent{Type: domain.EventQuestionClosed, ChatID: chatID, Round: roundNo, QuestionIndex: index, Correct: correct})

	session.mu.Lock()
	defer session.mu.Unlock()
	if !s.liveLocked(session) {
		return
	}
	session.advance = s.sched.After(s.settings.RevealPause, func() {
		session.mu.Lock()
		session.advance = nil
		session.mu.Unlock()
		_ = s.present(ctx, session, index+1)
	})
}

// scoreLocked compares every inbox answer with the correct option and credits the ledger.
func (s *QuizService) scoreLocked(session *Session, question domain.Question) []string {
	answers := s.inbox.Snapshot(session.ChatID)
	var names []string
	for _, userID := range session.activeOrder {
		raw, ok := answers[userID]
		if !ok {
			continue
		}
		delete(answers, userID)
		if option, ok := parseOption(raw); ok && option == question.Correct {
			s.ledger.Increment(session.ChatID, userID)
			names = append(names, session.activeUsers[userID])
		}
	}

	// Whatever is left has no display name, which breaks answeredUsers being a subset of activeUsers.
	orphans := make([]int64, 0, len(answers))
	for userID := range answers {
		orphans = append(orphans, userID)
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i] < orphans[j] })
	for _, userID := range orphans {
		s.log.Error().Str("event", "ERROR").Int64("chat_id", session.ChatID).Int64("user_id", userID).Msg("user nickname not found, skipping")
	}
	return names
}

func (s *QuizService) logResults(session *Session, index int) {
	snapshot := session.Snapshot()
	dict := zerolog.Dict()
	for _, u := range snapshot.ActiveUsers {
		dict = dict.Int(u.DisplayName, s.ledger.Score(session.ChatID, u.UserID))
	}
	s.log.Info().Str("event", "QUESTION_RESULTS").Int64("chat_id", session.ChatID).Int("question", index+1).Dict("scores", dict).Msg("question results")
}

// end transitions the session to ENDED exactly once.
func (s *QuizService) end(ctx context.Context, session *Session) {
	session.out.Lock()
	defer session.out.Unlock()
	session.mu.Lock()
	if session.ended {
		session.mu.Unlock()
		return
	}
	scores := s.finishLocked(session)
	session.mu.Unlock()
	s.announceEnd(ctx, session, scores)
}

// finishLocked marks the session ended, disarms it and collects final scores.
func (s *QuizService) finishLocked(session *Session) []domain.ScoreEntry {
	session.ended = true
	session.accepting = false
	session.disarmLocked()
	scores := make([]domain.ScoreEntry, 0, len(session.activeOrder))
	for _, userID := range session.activeOrder {
		scores = append(scores, domain.ScoreEntry{
			UserID:      userID,
			DisplayName: session.activeUsers[userID],
			Score:       s.ledger.Score(session.ChatID, userID),
		})
	}
	return scores
}

func (s *QuizService) announceEnd(ctx context.Context, session *Session, scores []domain.ScoreEntry) {
	text := finalScoresText(scores)
	s.notify(ctx, session.ChatID, text)
	s.log.Info().Str("event", "END").Int64("chat_id", session.ChatID).Msg(text)

	s.inbox.Clear(session.ChatID)
	s.sessions.Delete(session.ChatID, session)
	s.publish(ctx, domain.QuizEvent{Type: domain.EventQuizEnded, ChatID: session.ChatID, Round: session.round.Number, Scores: scores})
}

// applyAnswer is the drain step of the ingestion queue.
func (s *QuizService) applyAnswer(ev domain.AnswerEvent) {
	session, ok := s.sessions.Get(ev.ChatID)
	if !ok {
		s.log.Debug().Int64("chat_id", ev.ChatID).Int64("user_id", ev.User.ID).Msg("answer for chat without session discarded")
		return
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	if !s.liveLocked(session) || !session.accepting {
		s.log.Debug().Int64("chat_id", ev.ChatID).Int64("user_id", ev.User.ID).Msg("late answer discarded")
		return
	}
	if ev.MessageRef != 0 && ev.MessageRef != session.promptRef {
		s.log.Debug().Int64("chat_id", ev.ChatID).Int64("user_id", ev.User.ID).Msg("answer for stale prompt discarded")
		return
	}
	if _, answered := session.answeredUsers[ev.User.ID]; answered && !s.settings.AllowAnswerChange {
		return
	}

	s.inbox.Record(ev.ChatID, ev.User.ID, ev.Value)
	session.answeredUsers[ev.User.ID] = struct{}{}
	session.markActiveLocked(ev.User.ID, ev.User.DisplayName())
}

// liveLocked reports whether the session is still the chat's current, unfinished one.
func (s *QuizService) liveLocked(session *Session) bool {
	if session.ended {
		return false
	}
	current, ok := s.sessions.Get(session.ChatID)
	return ok && current == session
}

func (s *QuizService) notify(ctx context.Context, chatID int64, text string) {
	if _, err := s.platform.SendMessage(ctx, chatID, text, nil); err != nil {
		s.log.Warn().Err(err).Int64("chat_id", chatID).Msg("send message failed")
	}
}

func (s *QuizService) ack(ctx context.Context, ev domain.AnswerEvent, text string) {
	if ev.CallbackID == "" {
		return
	}
	if err := s.platform.AnswerCallback(ctx, ev.CallbackID, text); err != nil {
		s.log.Warn().Err(err).Int64("chat_id", ev.ChatID).Msg("answer callback failed")
	}
}

func (s *QuizService) publish(ctx context.Context, event domain.QuizEvent) {
	if s.events == nil {
		return
	}
	event.At = s.sched.Now()
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Int64("chat_id", event.ChatID).Str("type", string(event.Type)).Msg("publish event failed")
	}
}
