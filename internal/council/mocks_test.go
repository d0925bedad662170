package council

import (
	"context"
	"sync"

	"quorum/internal/model"
)

// fakeGen is a scripted Generator. Behavior is injected per test through
// the once and stream functions; every request is recorded for assertions
// on call counts and content.
type fakeGen struct {
	mu         sync.Mutex
	onceReqs   []model.Request
	streamReqs []model.Request

	// once receives the request and its arrival index (0-based across all
	// unary calls). Nil returns a generic success.
	once func(ctx context.Context, req model.Request, call int) (*model.Response, error)

	// stream returns the chunks to emit followed by a terminal error, or
	// nil for a clean end-of-stream.
	stream func(ctx context.Context, req model.Request) ([]model.Chunk, error)
}

func (g *fakeGen) GenerateOnce(ctx context.Context, req model.Request) (*model.Response, error) {
	g.mu.Lock()
	call := len(g.onceReqs)
	g.onceReqs = append(g.onceReqs, req)
	fn := g.once
	g.mu.Unlock()

	if fn == nil {
		return &model.Response{Text: "ok"}, nil
	}
	return fn(ctx, req, call)
}

func (g *fakeGen) GenerateStream(ctx context.Context, req model.Request) (<-chan model.Chunk, <-chan error) {
	g.mu.Lock()
	g.streamReqs = append(g.streamReqs, req)
	fn := g.stream
	g.mu.Unlock()

	chunks := make(chan model.Chunk, 16)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		if fn == nil {
			return
		}
		out, err := fn(ctx, req)
		for _, c := range out {
			select {
			case chunks <- c:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if err != nil {
			errs <- err
		}
	}()
	return chunks, errs
}

func (g *fakeGen) onceCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.onceReqs)
}

func (g *fakeGen) streamCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.streamReqs)
}

func userContents(text string) []model.Message {
	return []model.Message{{Role: model.RoleUser, Parts: []model.Part{{Text: text}}}}
}

// lastPartText returns the text of the final part of the final message, where
// the critique and synthesis blocks travel.
func lastPartText(req model.Request) string {
	msg := req.Contents[len(req.Contents)-1]
	return msg.Parts[len(msg.Parts)-1].Text
}
