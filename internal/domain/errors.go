package domain

import "errors"

var (
	// ErrAlreadyRunning is returned when a chat already has a live quiz session.
	ErrAlreadyRunning = errors.New("quiz already running")
	// ErrNoRoundSelected is returned when a quiz is started before a round is bound.
	ErrNoRoundSelected = errors.New("no round selected")
	// ErrInvalidRound indicates a round number outside the question bank.
	ErrInvalidRound = errors.New("invalid round")
	// ErrEmptyRound indicates the bound round has no questions.
	ErrEmptyRound = errors.New("round has no questions")
	// ErrNoActiveSession is returned on stop or answer when the chat has no session.
	ErrNoActiveSession = errors.New("no active quiz session")
	// ErrQueueFull means an answer was dropped by the ingestion queue.
	ErrQueueFull = errors.New("answer queue full")
	// ErrTransport wraps any failed outbound platform call.
	ErrTransport = errors.New("transport failure")
	// ErrRoundNotFound indicates a loader has no round with the requested number.
	ErrRoundNotFound = errors.New("round not found")
	// ErrInvalidQuestion indicates malformed question bank content.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrInvalidAnswer indicates an answer value that is not an option index.
	ErrInvalidAnswer = errors.New("invalid answer")
)
