package app_test

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"quizbot/internal/app"
	"quizbot/internal/domain"
)

func TestAnswerQueueDrainsOnePerInterval(t *testing.T) {
	clock := app.NewManualClock(time.Unix(0, 0))
	var applied []string
	q := app.NewAnswerQueue(10, 50*time.Millisecond, clock, func(ev domain.AnswerEvent) {
		applied = append(applied, ev.Value)
	}, zerolog.Nop())

	for _, v := range []string{"0", "1", "2"} {
		if err := q.Submit(domain.AnswerEvent{ChatID: 1, Value: v}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	if !q.Draining(1) {
		t.Fatalf("expected drain loop after submit")
	}

	clock.Advance(0)
	if len(applied) != 1 {
		t.Fatalf("expected 1 applied immediately, got %d", len(applied))
	}
	clock.Advance(50 * time.Millisecond)
	clock.Advance(50 * time.Millisecond)
	if len(applied) != 3 || applied[0] != "0" || applied[2] != "2" {
		t.Fatalf("expected fifo order, got %v", applied)
	}

	clock.Advance(50 * time.Millisecond)
	if q.Draining(1) {
		t.Fatalf("expected drain loop gone once empty")
	}
	if clock.Pending() != 0 {
		t.Fatalf("expected no pending drain, got %d", clock.Pending())
	}
}

func TestAnswerQueueCapacity(t *testing.T) {
	clock := app.NewManualClock(time.Unix(0, 0))
	q := app.NewAnswerQueue(2, time.Millisecond, clock, func(domain.AnswerEvent) {}, zerolog.Nop())

	_ = q.Submit(domain.AnswerEvent{ChatID: 1, Value: "0"})
	_ = q.Submit(domain.AnswerEvent{ChatID: 1, Value: "1"})
	if err := q.Submit(domain.AnswerEvent{ChatID: 1, Value: "2"}); !errors.Is(err, domain.ErrQueueFull) {
		t.Fatalf("expected queue full, got %v", err)
	}
	if q.Len(1) != 2 {
		t.Fatalf("expected 2 queued, got %d", q.Len(1))
	}
	if err := q.Submit(domain.AnswerEvent{ChatID: 2, Value: "0"}); err != nil {
		t.Fatalf("other chat should have its own capacity: %v", err)
	}
}

func TestAnswerQueueRestartsAfterIdle(t *testing.T) {
	clock := app.NewManualClock(time.Unix(0, 0))
	count := 0
	q := app.NewAnswerQueue(10, 10*time.Millisecond, clock, func(domain.AnswerEvent) { count++ }, zerolog.Nop())

	_ = q.Submit(domain.AnswerEvent{ChatID: 1})
	clock.Advance(time.Second)
	_ = q.Submit(domain.AnswerEvent{ChatID: 1})
	clock.Advance(time.Second)
	if count != 2 {
		t.Fatalf("expected both answers applied, got %d", count)
	}
}
