package council

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"quorum/internal/model"
)

func TestRunSynthesis_MonotonicPublication(t *testing.T) {
	gen := &fakeGen{
		stream: func(ctx context.Context, req model.Request) ([]model.Chunk, error) {
			return []model.Chunk{{Text: "Hel"}, {Text: "lo "}, {Text: "world"}}, nil
		},
	}
	var published []string
	text, sources, err := runSynthesis(context.Background(), gen, userContents("q"), AgentConfig{}, []string{"a", "b"}, func(s string) {
		published = append(published, s)
	})
	if err != nil {
		t.Fatalf("runSynthesis failed: %v", err)
	}
	if text != "Hello world" {
		t.Errorf("final text %q", text)
	}
	if sources != nil {
		t.Errorf("unexpected sources %v", sources)
	}
	want := []string{"Hel", "Hello ", "Hello world"}
	if diff := cmp.Diff(want, published); diff != "" {
		t.Errorf("published sequence mismatch (-want +got):\n%s", diff)
	}
	for i := 1; i < len(published); i++ {
		if !strings.HasPrefix(published[i], published[i-1]) {
			t.Errorf("publication shrank: %q then %q", published[i-1], published[i])
		}
	}
}

func TestRunSynthesis_EmptyDeltaNotPublished(t *testing.T) {
	gen := &fakeGen{
		stream: func(ctx context.Context, req model.Request) ([]model.Chunk, error) {
			return []model.Chunk{
				{Text: "x"},
				{Citations: []Source{{URI: "https://a", Title: "A"}}},
				{Text: "y"},
			}, nil
		},
	}
	var published []string
	text, sources, err := runSynthesis(context.Background(), gen, userContents("q"), AgentConfig{}, []string{"a"}, func(s string) {
		published = append(published, s)
	})
	if err != nil {
		t.Fatalf("runSynthesis failed: %v", err)
	}
	if text != "xy" {
		t.Errorf("final text %q", text)
	}
	if len(published) != 2 {
		t.Errorf("citation-only chunk was published: %v", published)
	}
	if len(sources) != 1 || sources[0].URI != "https://a" {
		t.Errorf("sources %v", sources)
	}
}

func TestRunSynthesis_AggregateRequest(t *testing.T) {
	gen := &fakeGen{
		stream: func(ctx context.Context, req model.Request) ([]model.Chunk, error) {
			return []model.Chunk{{Text: "done"}}, nil
		},
	}
	refined := []string{"first", "second", "third"}
	if _, _, err := runSynthesis(context.Background(), gen, userContents("q"), AgentConfig{}, refined, func(string) {}); err != nil {
		t.Fatalf("runSynthesis failed: %v", err)
	}
	if gen.streamCount() != 1 {
		t.Fatalf("expected exactly one streaming call, got %d", gen.streamCount())
	}
	block := lastPartText(gen.streamReqs[0])
	for i, a := range refined {
		if !strings.Contains(block, fmt.Sprintf("Agent %d:\n%s\n", i+1, a)) {
			t.Errorf("refined answer %d missing from aggregate: %q", i, block)
		}
	}
}

func TestRunSynthesis_MidStreamFailure(t *testing.T) {
	gen := &fakeGen{
		stream: func(ctx context.Context, req model.Request) ([]model.Chunk, error) {
			return []model.Chunk{{Text: "partial "}}, errors.New("stream reset")
		},
	}
	var published []string
	text, sources, err := runSynthesis(context.Background(), gen, userContents("q"), AgentConfig{}, []string{"a"}, func(s string) {
		published = append(published, s)
	})
	if text != "" || sources != nil {
		t.Errorf("expected no result after failure, got %q / %v", text, sources)
	}
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageSynthesis {
		t.Fatalf("expected synthesis StageError, got %v", err)
	}
	// Deltas before the failure were still observable.
	if len(published) != 1 || published[0] != "partial " {
		t.Errorf("published %v", published)
	}
}

func TestDedupeSources(t *testing.T) {
	pending := []Source{
		{URI: "https://a", Title: "A"},
		{URI: "", Title: "no uri"},
		{URI: "https://b", Title: "B"},
		{URI: "https://a", Title: "A again"},
		{URI: "https://c", Title: "C"},
		{URI: "https://b", Title: "B again"},
	}
	got := dedupeSources(pending)
	want := []Source{
		{URI: "https://a", Title: "A"},
		{URI: "https://b", Title: "B"},
		{URI: "https://c", Title: "C"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("dedupe mismatch (-want +got):\n%s", diff)
	}
}
