package council

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"quorum/internal/model"
)

// Generator is the slice of the model capability the pipeline consumes.
// *model.GeminiClient satisfies it; tests substitute scripted fakes.
type Generator interface {
	GenerateOnce(ctx context.Context, req model.Request) (*model.Response, error)
	GenerateStream(ctx context.Context, req model.Request) (<-chan model.Chunk, <-chan error)
}

// runFanOut spawns n concurrent, independent generation calls with identical
// request content and joins them in agent-index order. Divergence between
// agents comes from non-zero sampling temperature, not request variation.
// Join semantics are all-or-nothing: if any call fails the stage fails as a
// whole, labeled with the stage, and no partial results survive.
func runFanOut(ctx context.Context, gen Generator, contents []model.Message, cfg AgentConfig, n int) ([]string, error) {
	answers := make([]string, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			resp, err := gen.GenerateOnce(gctx, buildRequest(cfg, contents))
			if err != nil {
				return fmt.Errorf("agent %d: %w", i+1, err)
			}
			answers[i] = resp.Text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &StageError{Stage: StageFanOut, Err: err}
	}
	return answers, nil
}
