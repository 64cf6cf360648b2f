package cli

import (
	"quizbot/internal/app"
	"quizbot/internal/config"
)

// quizSettings converts the quiz section into app settings, filling unset values with defaults.
func quizSettings(cfg config.Config) app.Settings {
	s := app.DefaultSettings()
	s.QuestionDuration = config.TTLDuration(cfg.Quiz.QuestionDuration, s.QuestionDuration)
	s.RefreshInterval = config.TTLDuration(cfg.Quiz.RefreshInterval, s.RefreshInterval)
	s.RevealPause = config.TTLDuration(cfg.Quiz.RevealPause, s.RevealPause)
	s.DrainInterval = config.TTLDuration(cfg.Quiz.DrainInterval, s.DrainInterval)
	if cfg.Quiz.QueueCapacity > 0 {
		s.QueueCapacity = cfg.Quiz.QueueCapacity
	}
	if cfg.Quiz.AllowAnswerChange != nil {
		s.AllowAnswerChange = *cfg.Quiz.AllowAnswerChange
	}
	if cfg.Quiz.PublishFailure != "" {
		s.PublishFailure = app.PublishFailurePolicy(cfg.Quiz.PublishFailure)
	}
	if cfg.Quiz.PublishRetries != nil {
		s.PublishRetries = *cfg.Quiz.PublishRetries
	}
	return s
}
