package council

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"quorum/internal/logging"
	"quorum/internal/model"
)

// State is the runner's position in the pipeline.
type State int

const (
	StateIdle State = iota
	StateFanOut
	StateRefine
	StateSynthesize
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFanOut:
		return "fan-out"
	case StateRefine:
		return "refinement"
	case StateSynthesize:
		return "synthesis"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Progress strings shown while the concurrent stages run; cleared once the
// synthesis stream starts revealing text.
const (
	statusFanOut = "Initializing agents…"
	statusRefine = "Refining answers…"
)

// Options tune a Runner.
type Options struct {
	// Agents is the fan-out width N. Values below 2 fall back to 4.
	Agents int
	// MaxAttachmentBytes rejects oversized image submissions before any
	// model call. Zero falls back to 4 MiB.
	MaxAttachmentBytes int
	// Notify, when set, is invoked after every observable change to the
	// turn log or runner state. It must not block.
	Notify func()
}

const (
	defaultAgents             = 4
	defaultMaxAttachmentBytes = 4 << 20
)

// Runner owns the turn log and sequences the three pipeline stages with
// strict barriers. At most one run may be active at a time; concurrent
// submissions are rejected, not queued.
type Runner struct {
	log    *TurnLog
	gen    Generator
	stages StageConfigs

	agents        int
	maxAttachment int
	notify        func()
	logger        *zap.Logger

	inFlight atomic.Bool
	cancelMu sync.Mutex
	cancel   context.CancelFunc

	mu        sync.RWMutex
	state     State
	status    string
	startedAt time.Time
	elapsed   time.Duration
}

// NewRunner creates a pipeline runner over the given turn log and generator.
func NewRunner(log *TurnLog, gen Generator, stages StageConfigs, opts Options) *Runner {
	agents := opts.Agents
	if agents < 2 {
		agents = defaultAgents
	}
	maxAttachment := opts.MaxAttachmentBytes
	if maxAttachment <= 0 {
		maxAttachment = defaultMaxAttachmentBytes
	}
	notify := opts.Notify
	if notify == nil {
		notify = func() {}
	}
	return &Runner{
		log:           log,
		gen:           gen,
		stages:        stages,
		agents:        agents,
		maxAttachment: maxAttachment,
		notify:        notify,
		logger:        logging.Named("council"),
	}
}

// Log returns the turn log for readers.
func (r *Runner) Log() *TurnLog {
	return r.log
}

// Busy reports whether a run is in flight.
func (r *Runner) Busy() bool {
	return r.inFlight.Load()
}

// State returns the current pipeline state.
func (r *Runner) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Status returns the current progress string, empty outside the concurrent
// stages.
func (r *Runner) Status() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Elapsed returns the stopwatch value: running from submission until the
// synthesis transition, frozen through synthesis, zero when idle.
func (r *Runner) Elapsed() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch r.state {
	case StateFanOut, StateRefine:
		return time.Since(r.startedAt)
	case StateSynthesize, StateDone, StateFailed:
		return r.elapsed
	}
	return 0
}

// Cancel aborts the in-flight run, if any. The run surfaces as a failure
// with a cancellation error turn.
func (r *Runner) Cancel() {
	r.cancelMu.Lock()
	defer r.cancelMu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
}

// Submit validates a query and starts the pipeline in the background.
// Results arrive through the turn log. Rejects empty submissions, oversized
// attachments, and submissions while a run is in flight; none of these
// trigger a model call or change the log.
func (r *Runner) Submit(ctx context.Context, text string, image *Attachment) error {
	if strings.TrimSpace(text) == "" && image == nil {
		return ErrEmptySubmission
	}
	if image != nil && len(image.Data) > r.maxAttachment {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrAttachmentTooLarge, len(image.Data), r.maxAttachment)
	}
	if !r.inFlight.CompareAndSwap(false, true) {
		return ErrBusy
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancelMu.Lock()
	r.cancel = cancel
	r.cancelMu.Unlock()

	// History excludes the in-flight exchange: project before appending
	// the user turn.
	history := ProjectHistory(r.log.Snapshot())

	input := Turn{Role: model.RoleUser, Parts: []string{text}, Image: image, Final: true}
	input.ID = r.log.Append(input)

	r.mu.Lock()
	r.state = StateFanOut
	r.status = statusFanOut
	r.startedAt = time.Now()
	r.elapsed = 0
	r.mu.Unlock()
	r.notify()

	r.logger.Info("run started",
		zap.Int("agents", r.agents),
		zap.Int("history_turns", len(history)),
		zap.Bool("has_image", image != nil))

	go r.run(runCtx, cancel, history, input)
	return nil
}

// run drives the three stages. Each stage barrier is strict: no stage k+1
// call is issued before every stage-k call has resolved.
func (r *Runner) run(ctx context.Context, cancel context.CancelFunc, history []model.Message, input Turn) {
	defer func() {
		cancel()
		r.cancelMu.Lock()
		r.cancel = nil
		r.cancelMu.Unlock()

		r.mu.Lock()
		r.state = StateIdle
		r.status = ""
		r.elapsed = 0
		r.mu.Unlock()
		r.inFlight.Store(false)
		r.notify()
	}()

	contents := append(history, model.Message{Role: model.RoleUser, Parts: turnParts(input)})

	initial, err := runFanOut(ctx, r.gen, contents, r.stages.Initial, r.agents)
	if err != nil {
		r.fail(err)
		return
	}

	r.setStage(StateRefine, statusRefine)

	refined, err := runRefinement(ctx, r.gen, contents, r.stages.Refinement, initial)
	if err != nil {
		r.fail(err)
		return
	}

	r.enterSynthesize()

	draftID := r.log.Append(Turn{Role: model.RoleModel})
	publish := func(text string) {
		if err := r.log.SetText(draftID, text); err == nil {
			r.notify()
		}
	}

	text, sources, err := runSynthesis(ctx, r.gen, contents, r.stages.Synthesis, refined, publish)
	if err != nil {
		// Mid-stream failures discard the partial answer: the draft is
		// replaced by the error turn, matching the discard rule for all
		// other partial stage outputs.
		r.log.Remove(draftID)
		r.fail(err)
		return
	}

	if err := r.log.SetText(draftID, text); err != nil {
		r.fail(&StageError{Stage: StageSynthesis, Err: err})
		return
	}
	if err := r.log.Finalize(draftID, sources, &WorkTrace{Initial: initial, Refined: refined}); err != nil {
		r.fail(&StageError{Stage: StageSynthesis, Err: err})
		return
	}

	r.mu.Lock()
	r.state = StateDone
	r.mu.Unlock()
	r.notify()

	r.logger.Info("run completed",
		zap.Duration("deliberation", r.elapsedLocked()),
		zap.Int("answer_len", len(text)),
		zap.Int("sources", len(sources)))
}

func (r *Runner) setStage(s State, status string) {
	r.mu.Lock()
	r.state = s
	r.status = status
	r.mu.Unlock()
	r.notify()
}

// enterSynthesize freezes the deliberation stopwatch and clears the
// progress string; from here on the growing answer is the progress.
func (r *Runner) enterSynthesize() {
	r.mu.Lock()
	r.state = StateSynthesize
	r.status = ""
	r.elapsed = time.Since(r.startedAt)
	r.mu.Unlock()
	r.notify()
}

func (r *Runner) elapsedLocked() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.elapsed
}

// fail appends a single human-readable error turn and marks the run failed.
// Partial stage outputs are never surfaced and never produce a work trace.
func (r *Runner) fail(err error) {
	r.mu.Lock()
	r.state = StateFailed
	r.status = ""
	if r.elapsed == 0 {
		r.elapsed = time.Since(r.startedAt)
	}
	r.mu.Unlock()

	r.logger.Warn("run failed", zap.Error(err))

	r.log.Append(Turn{
		Role:    model.RoleModel,
		Parts:   []string{fmt.Sprintf("The council could not answer: %v", err)},
		IsError: true,
		Final:   true,
	})
	r.notify()
}
