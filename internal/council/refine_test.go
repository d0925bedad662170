package council

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"quorum/internal/model"
)

// agentIndexFromCritique recovers which agent a critique request belongs to
// by matching the "My previous answer" block against the initial answers.
func agentIndexFromCritique(t *testing.T, req model.Request, initial []string) int {
	t.Helper()
	block := lastPartText(req)
	for i, a := range initial {
		if strings.Contains(block, "My previous answer:\n"+a+"\n") {
			return i
		}
	}
	t.Fatalf("critique block matches no agent: %q", block)
	return -1
}

func TestRunRefinement_IndexStableUnderReorderedCompletions(t *testing.T) {
	initial := []string{"alpha", "bravo", "charlie", "delta"}
	gen := &fakeGen{
		once: func(ctx context.Context, req model.Request, call int) (*model.Response, error) {
			return nil, nil // replaced below
		},
	}
	gen.once = func(ctx context.Context, req model.Request, call int) (*model.Response, error) {
		i := agentIndexFromCritique(t, req, initial)
		// Higher agent indices finish first.
		time.Sleep(time.Duration(len(initial)-i) * 15 * time.Millisecond)
		return &model.Response{Text: fmt.Sprintf("refined-%d", i)}, nil
	}

	refined, err := runRefinement(context.Background(), gen, userContents("q"), AgentConfig{}, initial)
	if err != nil {
		t.Fatalf("runRefinement failed: %v", err)
	}
	for i := range initial {
		want := fmt.Sprintf("refined-%d", i)
		if refined[i] != want {
			t.Errorf("slot %d: got %q, want %q", i, refined[i], want)
		}
	}
}

func TestRunRefinement_CritiqueContext(t *testing.T) {
	initial := []string{"ans-a", "ans-b", "ans-c", "ans-d"}
	gen := &fakeGen{}
	if _, err := runRefinement(context.Background(), gen, userContents("q"), AgentConfig{}, initial); err != nil {
		t.Fatalf("runRefinement failed: %v", err)
	}
	if len(gen.onceReqs) != len(initial) {
		t.Fatalf("expected %d calls, got %d", len(initial), len(gen.onceReqs))
	}

	for _, req := range gen.onceReqs {
		i := agentIndexFromCritique(t, req, initial)
		block := lastPartText(req)

		// Exactly N-1 peer entries, labeled 1..N-1 with no gaps.
		for label := 1; label < len(initial); label++ {
			if !strings.Contains(block, fmt.Sprintf("Peer answer %d:\n", label)) {
				t.Errorf("agent %d: missing peer label %d", i, label)
			}
		}
		if strings.Contains(block, fmt.Sprintf("Peer answer %d:\n", len(initial))) {
			t.Errorf("agent %d: too many peer entries", i)
		}

		// The agent's own answer never appears as a peer entry.
		if strings.Contains(block, "Peer answer") && strings.Count(block, initial[i]) != 1 {
			t.Errorf("agent %d: own answer duplicated as peer", i)
		}

		// Peers keep their original relative order.
		var wantOrder []string
		for j, a := range initial {
			if j != i {
				wantOrder = append(wantOrder, a)
			}
		}
		pos := -1
		for _, a := range wantOrder {
			next := strings.Index(block, "\n"+a+"\n")
			if next < 0 {
				t.Errorf("agent %d: peer %q missing", i, a)
				continue
			}
			if next < pos {
				t.Errorf("agent %d: peer %q out of order", i, a)
			}
			pos = next
		}
	}
}

func TestRunRefinement_AllOrNothing(t *testing.T) {
	initial := []string{"a", "b", "c"}
	gen := &fakeGen{
		once: func(ctx context.Context, req model.Request, call int) (*model.Response, error) {
			if call == 1 {
				return nil, errors.New("boom")
			}
			return &model.Response{Text: "r"}, nil
		},
	}
	refined, err := runRefinement(context.Background(), gen, userContents("q"), AgentConfig{}, initial)
	if refined != nil {
		t.Errorf("expected no partial results, got %v", refined)
	}
	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("expected StageError, got %v", err)
	}
	if stageErr.Stage != StageRefine {
		t.Errorf("expected refinement stage label, got %s", stageErr.Stage)
	}
}
