package domain

import (
	"fmt"
	"strconv"
	"time"
)

// OptionCount is the number of answer options every question carries.
const OptionCount = 4

// Question models a multiple choice question with exactly four options.
type Question struct {
	Prompt  string   `json:"question_text" yaml:"question_text"`
	Answers []string `json:"answers" yaml:"answers"`
	Correct int      `json:"correct_answer" yaml:"correct_answer"`
}

// Validate checks the option count and the correct index.
func (q Question) Validate() error {
	if q.Prompt == "" {
		return fmt.Errorf("%w: empty prompt", ErrInvalidQuestion)
	}
	if len(q.Answers) != OptionCount {
		return fmt.Errorf("%w: %q has %d options, want %d", ErrInvalidQuestion, q.Prompt, len(q.Answers), OptionCount)
	}
	if q.Correct < 0 || q.Correct >= OptionCount {
		return fmt.Errorf("%w: %q has correct index %d", ErrInvalidQuestion, q.Prompt, q.Correct)
	}
	return nil
}

// CorrectText returns the text of the correct option.
func (q Question) CorrectText() string {
	return q.Answers[q.Correct]
}

// Round is an ordered, immutable sequence of questions identified by a 1-based number.
type Round struct {
	Number    int        `json:"number" yaml:"number"`
	Questions []Question `json:"questions" yaml:"questions"`
}

// Question returns the question at index i, or false when i is out of range.
func (r Round) Question(i int) (Question, bool) {
	if i < 0 || i >= len(r.Questions) {
		return Question{}, false
	}
	return r.Questions[i], true
}

// Len returns the number of questions in the round.
func (r Round) Len() int {
	return len(r.Questions)
}

// Validate checks every question of the round.
func (r Round) Validate() error {
	for i, q := range r.Questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("round %d question %d: %w", r.Number, i+1, err)
		}
	}
	return nil
}

// User carries the platform identity hints of a participant.
type User struct {
	ID        int64
	Username  string
	FirstName string
}

// DisplayName prefers the username, then the first name, then a synthesized tag.
func (u User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return "User" + strconv.FormatInt(u.ID, 10)
}

// MessageRef identifies a published chat message so it can be edited in place.
type MessageRef int

// Button is one selectable option of an inline keyboard.
type Button struct {
	Text string `json:"text"`
	Data string `json:"data"`
}

// Keyboard is a grid of buttons, row by row.
type Keyboard [][]Button

// AnswerEvent is an inbound answer selection.
type AnswerEvent struct {
	ChatID     int64
	User       User
	Value      string
	CallbackID string
	// MessageRef is the message whose keyboard was pressed; zero when unknown.
	MessageRef MessageRef
}

// Command is an inbound text command such as /start, /stop or /round 2.
type Command struct {
	ChatID int64
	User   User
	Name   string
	Args   []string
}

// ScoreEntry is one line of a score announcement.
type ScoreEntry struct {
	UserID      int64  `json:"userId"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
}

// EventType names a quiz lifecycle event.
type EventType string

const (
	EventQuizStarted    EventType = "quiz_started"
	EventQuestionClosed EventType = "question_closed"
	EventQuizEnded      EventType = "quiz_ended"
)

// QuizEvent is published to downstream consumers on lifecycle transitions.
type QuizEvent struct {
	Type          EventType    `json:"type"`
	ChatID        int64        `json:"chatId"`
	Round         int          `json:"round"`
	QuestionIndex int          `json:"questionIndex"`
	Correct       []string     `json:"correct,omitempty"`
	Scores        []ScoreEntry `json:"scores,omitempty"`
	At            time.Time    `json:"at"`
}
