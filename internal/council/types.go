// Package council implements the multi-agent deliberation pipeline: a
// fan-out round of independent answers, a peer-critique refinement round,
// and a single streaming synthesis that folds the refined answers into one
// final cited response.
package council

import (
	"errors"
	"fmt"
	"strings"

	"quorum/internal/model"
)

// Source is a citation surfaced by search-grounded generation. Identity is
// the URI; the finalized source list never contains two equal URIs.
type Source = model.Citation

// Attachment is an optional binary payload submitted with a query.
type Attachment struct {
	MIMEType string
	Data     []byte
}

// WorkTrace records every agent's intermediate answer, indexed by agent
// position. It is attached once, to the finalized synthesis turn.
type WorkTrace struct {
	Initial []string
	Refined []string
}

// Turn is one conversation exchange in the log. Model turns are mutable only
// while they are the in-flight draft of an active run; finalization freezes
// them and attaches sources and the work trace atomically.
type Turn struct {
	ID      string
	Role    model.Role
	Parts   []string
	Image   *Attachment
	Sources []Source
	Work    *WorkTrace
	IsError bool
	Final   bool
}

// Text returns the turn's concatenated text parts.
func (t Turn) Text() string {
	return strings.Join(t.Parts, "")
}

// AgentConfig selects the model behavior for one pipeline stage. One literal
// value per stage, chosen before a run starts.
type AgentConfig struct {
	Model             string
	SystemInstruction string
	Temperature       float64
	SearchEnabled     bool
	ThinkingBudget    int
}

// StageConfigs bundles the per-stage agent configurations.
type StageConfigs struct {
	Initial    AgentConfig
	Refinement AgentConfig
	Synthesis  AgentConfig
}

// Stage labels a pipeline stage for error reporting.
type Stage string

const (
	StageFanOut    Stage = "fan-out"
	StageRefine    Stage = "refinement"
	StageSynthesis Stage = "synthesis"
)

// Validation and flow-control sentinels.
var (
	ErrBusy               = errors.New("a run is already in flight")
	ErrEmptySubmission    = errors.New("submission has no text and no attachment")
	ErrAttachmentTooLarge = errors.New("attachment exceeds the size limit")
)

// StageError labels a pipeline failure with the stage it occurred in. The
// whole run aborts; partial stage output is discarded.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
