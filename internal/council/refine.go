package council

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"quorum/internal/model"
)

// runRefinement issues one critique call per agent. Agent i sees its own
// initial answer plus the other n-1 answers relabeled 1..n-1 in their
// original relative order. Output is aligned to the same agent index space
// as the input; join semantics match the fan-out stage.
func runRefinement(ctx context.Context, gen Generator, contents []model.Message, cfg AgentConfig, initial []string) ([]string, error) {
	refined := make([]string, len(initial))
	g, gctx := errgroup.WithContext(ctx)
	for i := range initial {
		g.Go(func() error {
			critique := withTrailingBlock(contents, critiqueBlock(i, initial))
			resp, err := gen.GenerateOnce(gctx, buildRequest(cfg, critique))
			if err != nil {
				return fmt.Errorf("agent %d: %w", i+1, err)
			}
			refined[i] = resp.Text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &StageError{Stage: StageRefine, Err: err}
	}
	return refined, nil
}
