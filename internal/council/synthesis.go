package council

import (
	"context"

	"quorum/internal/model"
)

// runSynthesis issues the single streaming call that folds the refined
// answers into the final response. After every delta the growing buffer is
// handed to publish, so consumers observe strictly growing text. Citation
// candidates are collected but only filtered, deduplicated and returned once
// the stream completes; a failure at any point (including after published
// deltas) aborts the stage.
func runSynthesis(ctx context.Context, gen Generator, contents []model.Message, cfg AgentConfig, refined []string, publish func(text string)) (string, []Source, error) {
	aggregate := withTrailingBlock(contents, synthesisBlock(refined))
	chunks, errs := gen.GenerateStream(ctx, buildRequest(cfg, aggregate))

	var buf []byte
	var pending []Source
	for chunk := range chunks {
		if chunk.Text != "" {
			buf = append(buf, chunk.Text...)
			publish(string(buf))
		}
		pending = append(pending, chunk.Citations...)
	}
	if err := <-errs; err != nil {
		return "", nil, &StageError{Stage: StageSynthesis, Err: err}
	}
	return string(buf), dedupeSources(pending), nil
}

// dedupeSources drops citations without a URI and keeps the first occurrence
// of each URI, preserving first-occurrence order across the whole stream.
func dedupeSources(pending []Source) []Source {
	seen := make(map[string]bool, len(pending))
	var out []Source
	for _, s := range pending {
		if s.URI == "" || seen[s.URI] {
			continue
		}
		seen[s.URI] = true
		out = append(out, s)
	}
	return out
}
