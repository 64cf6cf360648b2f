package app_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"quizbot/internal/app"
	"quizbot/internal/domain"
	"quizbot/internal/infra/memory"
)

var errNetwork = errors.New("network down")

type sentMessage struct {
	chatID int64
	text   string
	kb     domain.Keyboard
	ref    domain.MessageRef
}

type editedMessage struct {
	chatID int64
	ref    domain.MessageRef
	text   string
	kb     domain.Keyboard
}

type callbackAck struct {
	id   string
	text string
}

// recordingPlatform captures every outbound call. Question sends (those with a keyboard) and edits can be made to fail.
type recordingPlatform struct {
	mu        sync.Mutex
	nextRef   domain.MessageRef
	sent      []sentMessage
	edits     []editedMessage
	markups   []editedMessage
	acks      []callbackAck
	failSends int
	failEdits bool

	// beforeSend runs ahead of every send, outside the platform lock. Set it before the quiz starts.
	beforeSend func(text string)
}

func (p *recordingPlatform) SendMessage(_ context.Context, chatID int64, text string, kb domain.Keyboard) (domain.MessageRef, error) {
	if p.beforeSend != nil {
		p.beforeSend(text)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if kb != nil && p.failSends > 0 {
		p.failSends--
		return 0, errNetwork
	}
	p.nextRef++
	p.sent = append(p.sent, sentMessage{chatID: chatID, text: text, kb: kb, ref: p.nextRef})
	return p.nextRef, nil
}

func (p *recordingPlatform) EditMessageText(_ context.Context, chatID int64, ref domain.MessageRef, text string, kb domain.Keyboard) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failEdits {
		return errNetwork
	}
	p.edits = append(p.edits, editedMessage{chatID: chatID, ref: ref, text: text, kb: kb})
	return nil
}

func (p *recordingPlatform) EditMessageReplyMarkup(_ context.Context, chatID int64, ref domain.MessageRef, kb domain.Keyboard) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failEdits {
		return errNetwork
	}
	p.markups = append(p.markups, editedMessage{chatID: chatID, ref: ref, kb: kb})
	return nil
}

func (p *recordingPlatform) AnswerCallback(_ context.Context, callbackID, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.acks = append(p.acks, callbackAck{id: callbackID, text: text})
	return nil
}

// texts returns the plain texts sent to the chat, in order.
func (p *recordingPlatform) texts(chatID int64) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, m := range p.sent {
		if m.chatID == chatID {
			out = append(out, m.text)
		}
	}
	return out
}

func (p *recordingPlatform) lastText(chatID int64) string {
	texts := p.texts(chatID)
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

func (p *recordingPlatform) countPrefix(chatID int64, prefix string) int {
	n := 0
	for _, text := range p.texts(chatID) {
		if strings.HasPrefix(text, prefix) {
			n++
		}
	}
	return n
}

func (p *recordingPlatform) editsFor(chatID int64) []editedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []editedMessage
	for _, e := range p.edits {
		if e.chatID == chatID {
			out = append(out, e)
		}
	}
	return out
}

func (p *recordingPlatform) ackTexts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.acks))
	for _, a := range p.acks {
		out = append(out, a.text)
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.QuizEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.QuizEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	svc      *app.QuizService
	clock    *app.ManualClock
	platform *recordingPlatform
	store    *memory.SessionStore
	ledger   *app.ScoreLedger
	inbox    *app.AnswerInbox
	events   *recordingPublisher
	drain    time.Duration
}

var (
	alice = domain.User{ID: 1, Username: "alice"}
	bob   = domain.User{ID: 2, FirstName: "Bob"}
	carol = domain.User{ID: 3}
)

func newHarness(t *testing.T, settings app.Settings, rounds ...domain.Round) *harness {
	t.Helper()
	h := &harness{
		clock:    app.NewManualClock(time.Date(2025, 10, 18, 12, 0, 0, 0, time.UTC)),
		platform: &recordingPlatform{},
		store:    memory.NewSessionStore(),
		ledger:   app.NewScoreLedger(),
		inbox:    app.NewAnswerInbox(),
		events:   &recordingPublisher{},
		drain:    settings.DrainInterval,
	}
	repo := memory.NewRoundRepository(memory.NewStaticRoundLoader(rounds...), time.Minute)
	h.svc = app.NewQuizService(app.Deps{
		Sessions:  h.store,
		Rounds:    app.NewRoundSelector(repo),
		Platform:  h.platform,
		Scheduler: h.clock,
		Ledger:    h.ledger,
		Inbox:     h.inbox,
		Events:    h.events,
		Logger:    zerolog.Nop(),
	}, settings)
	return h
}

// begin binds round 1 and starts the quiz in the chat.
func (h *harness) begin(t *testing.T, chatID int64) {
	t.Helper()
	ctx := context.Background()
	if err := h.svc.SelectRound(ctx, chatID, 1); err != nil {
		t.Fatalf("select round: %v", err)
	}
	if err := h.svc.Start(ctx, chatID, alice); err != nil {
		t.Fatalf("start: %v", err)
	}
}

// answer submits one answer and lets the queue drain it.
func (h *harness) answer(t *testing.T, chatID int64, user domain.User, value string) {
	t.Helper()
	ev := domain.AnswerEvent{ChatID: chatID, User: user, Value: value, CallbackID: "cb"}
	if err := h.svc.SubmitAnswer(context.Background(), ev); err != nil {
		t.Fatalf("submit answer: %v", err)
	}
	h.clock.Advance(h.drain)
}

func question(prompt string, correct int, answers ...string) domain.Question {
	return domain.Question{Prompt: prompt, Answers: answers, Correct: correct}
}

func twoQuestionRound() domain.Round {
	return domain.Round{Questions: []domain.Question{
		question("2 + 2?", 1, "3", "4", "5", "22"),
		question("Capital of France?", 0, "Paris", "Rome", "Berlin", "Madrid"),
	}}
}
