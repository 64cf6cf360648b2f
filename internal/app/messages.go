package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"quizbot/internal/domain"
)

const (
	msgAlreadyRunning  = "A quiz is already in progress in this chat."
	msgNoRoundSelected = "Please select a round first using /round <number>."
	msgEmptyRound      = "Error: No questions available for this round."
	msgNothingToStop   = "There is no active quiz to stop."
	msgStopped         = "The quiz has been stopped."
	msgNetworkError    = "Sorry, there was a network error. Please try again later."
	msgGenericError    = "Sorry, we're experiencing technical difficulties. Please try again later."
	msgNoWinners       = "No one answered correctly this time."
	msgNoParticipants  = "No participants."

	ackRecorded  = "Answer recorded"
	ackInvalid   = "Invalid answer. Please select a valid option."
	ackNoSession = "There is no active quiz in this chat."

	markCorrect = " ✅"
	markWrong   = " ❌"
)

func questionText(index, total int, prompt string, remaining time.Duration) string {
	secs := int(remaining.Round(time.Second) / time.Second)
	if secs < 0 {
		secs = 0
	}
	plural := "s"
	if secs == 1 {
		plural = ""
	}
	return fmt.Sprintf("Question %d/%d\n\n%s\n\n⏰ Time remaining: %d second%s", index+1, total, prompt, secs, plural)
}

// optionsKeyboard lays the four options out as a 2x2 grid whose data is the option index.
func optionsKeyboard(q domain.Question) domain.Keyboard {
	return gridKeyboard(q, func(i int, text string) string { return text })
}

// revealKeyboard annotates every option with a correctness marker.
func revealKeyboard(q domain.Question) domain.Keyboard {
	return gridKeyboard(q, func(i int, text string) string {
		if i == q.Correct {
			return text + markCorrect
		}
		return text + markWrong
	})
}

func gridKeyboard(q domain.Question, label func(int, string) string) domain.Keyboard {
	kb := make(domain.Keyboard, 0, 2)
	for row := 0; row < len(q.Answers); row += 2 {
		var buttons []domain.Button
		for i := row; i < row+2 && i < len(q.Answers); i++ {
			buttons = append(buttons, domain.Button{Text: label(i, q.Answers[i]), Data: strconv.Itoa(i)})
		}
		kb = append(kb, buttons)
	}
	return kb
}

func revealText(q domain.Question) string {
	return "Time's up! The correct answer is: " + q.CorrectText()
}

func winnersText(names []string) string {
	if len(names) == 0 {
		return msgNoWinners
	}
	return "Users that answered correctly: " + strings.Join(names, ", ")
}

func finalScoresText(scores []domain.ScoreEntry) string {
	var b strings.Builder
	b.WriteString("Quiz ended! Final scores:\n")
	if len(scores) == 0 {
		b.WriteString(msgNoParticipants)
		return b.String()
	}
	for _, s := range scores {
		fmt.Fprintf(&b, "%s: %d points\n", s.DisplayName, s.Score)
	}
	return b.String()
}

func roundSelectedText(round domain.Round) string {
	return fmt.Sprintf("Round %d selected. It has %d questions.", round.Number, round.Len())
}

func invalidRoundText(total int) string {
	return fmt.Sprintf("Invalid round. Please choose a round between 1 and %d.", total)
}

func roundsAvailableText(total int) string {
	return fmt.Sprintf("There are %d rounds available. Use /round <number> to pick one.", total)
}

// parseOption turns a raw answer value, a single digit "0" to "3", into an option index.
func parseOption(raw string) (int, bool) {
	if len(raw) != 1 || raw[0] < '0' || raw[0] >= '0'+domain.OptionCount {
		return 0, false
	}
	return int(raw[0] - '0'), true
}
