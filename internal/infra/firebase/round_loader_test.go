package firebase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"quizbot/internal/domain"
)

// fakeSource serves a JSON tree the way the Realtime Database REST API does.
type fakeSource struct {
	tree map[string]json.RawMessage
}

func (f *fakeSource) Get(_ context.Context, path string, v interface{}) error {
	raw, ok := f.tree[path]
	if !ok {
		raw = json.RawMessage("null")
	}
	return json.Unmarshal(raw, v)
}

func (f *fakeSource) GetShallow(_ context.Context, path string, v interface{}) error {
	keys := map[string]bool{}
	for p := range f.tree {
		if rest, ok := strings.CutPrefix(p, path+"/"); ok {
			keys[rest] = true
		}
	}
	raw, _ := json.Marshal(keys)
	return json.Unmarshal(raw, v)
}

func TestRoundLoaderReadsRounds(t *testing.T) {
	source := &fakeSource{tree: map[string]json.RawMessage{
		"rounds/1": json.RawMessage(`{"questions":[{"question_text":"2 + 2?","answers":["3","4","5","22"],"correct_answer":1}]}`),
		"rounds/2": json.RawMessage(`{"questions":[]}`),
		"rounds/4": json.RawMessage(`{"questions":[]}`),
	}}
	loader := NewRoundLoader(source, "")
	ctx := context.Background()

	round, err := loader.LoadRound(ctx, 1)
	if err != nil {
		t.Fatalf("load round: %v", err)
	}
	if round.Number != 1 || round.Questions[0].CorrectText() != "4" {
		t.Fatalf("unexpected round %+v", round)
	}
	if _, err := loader.LoadRound(ctx, 3); !errors.Is(err, domain.ErrRoundNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	total, err := loader.CountRounds(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 contiguous rounds, got %d", total)
	}
}
