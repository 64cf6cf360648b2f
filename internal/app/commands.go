package app

import (
	"context"
	"strconv"
	"strings"

	"quizbot/internal/domain"
)

// ParseCommand extracts a slash command from message text. "/round@QuizBot 2" yields ("round", ["2"]).
func ParseCommand(text string) (name string, args []string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}
	name = strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	if name == "" {
		return "", nil, false
	}
	return strings.ToLower(name), fields[1:], true
}

// HandleCommand dispatches a parsed chat command. Unknown commands are ignored.
func (s *QuizService) HandleCommand(ctx context.Context, cmd domain.Command) error {
	logger := s.log.With().Int64("chat_id", cmd.ChatID).Str("command", cmd.Name).Logger()
	logger.Debug().Strs("args", cmd.Args).Msg("command received")

	switch cmd.Name {
	case "start", "quiz":
		return s.Start(ctx, cmd.ChatID, cmd.User)
	case "stop":
		return s.Stop(ctx, cmd.ChatID)
	case "round":
		if len(cmd.Args) == 0 {
			return s.ListRounds(ctx, cmd.ChatID)
		}
		number, err := strconv.Atoi(cmd.Args[0])
		if err != nil {
			total, _ := s.rounds.TotalRounds(ctx)
			s.notify(ctx, cmd.ChatID, invalidRoundText(total))
			return domain.ErrInvalidRound
		}
		return s.SelectRound(ctx, cmd.ChatID, number)
	default:
		return nil
	}
}
