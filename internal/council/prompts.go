package council

import (
	"fmt"
	"strings"

	"quorum/internal/model"
)

// Default per-stage system instructions. Config may override any of them.
const (
	DefaultInitialInstruction = "You are one of several independent experts answering the same question. " +
		"Answer thoroughly and accurately in your own words. Use search grounding when it helps. " +
		"Do not mention other experts or this process."

	DefaultRefineInstruction = "You previously answered a question alongside several peer experts. " +
		"You are given your own previous answer and the answers of your peers. " +
		"Critique them all, keep what is correct, fix what is wrong, and produce a single improved answer. " +
		"Output only the improved answer."

	DefaultSynthesisInstruction = "You are the moderator of a panel of experts who each produced a refined answer " +
		"to the user's question. Synthesize their answers into one final, coherent, well-structured response. " +
		"Resolve disagreements in favor of verifiable facts. Do not mention the panel or this process."
)

// buildRequest assembles a model request from a stage config and contents.
func buildRequest(cfg AgentConfig, contents []model.Message) model.Request {
	return model.Request{
		Model:             cfg.Model,
		SystemInstruction: cfg.SystemInstruction,
		Temperature:       cfg.Temperature,
		EnableSearch:      cfg.SearchEnabled,
		ThinkingBudget:    cfg.ThinkingBudget,
		Contents:          contents,
	}
}

// critiqueBlock lays out agent i's own previous answer followed by the other
// answers relabeled 1..N-1 in their original relative order. The peer list
// never contains the agent's own answer and never has numbering gaps.
func critiqueBlock(self int, answers []string) string {
	var sb strings.Builder
	sb.WriteString("My previous answer:\n")
	sb.WriteString(answers[self])
	sb.WriteString("\n")
	label := 0
	for i, a := range answers {
		if i == self {
			continue
		}
		label++
		fmt.Fprintf(&sb, "\nPeer answer %d:\n%s\n", label, a)
	}
	return sb.String()
}

// synthesisBlock lists all refined answers with explicit ordinal labels.
func synthesisBlock(refined []string) string {
	var sb strings.Builder
	sb.WriteString("Refined answers from the expert panel:\n")
	for i, a := range refined {
		fmt.Fprintf(&sb, "\nAgent %d:\n%s\n", i+1, a)
	}
	sb.WriteString("\nSynthesize these into the final answer for the user.")
	return sb.String()
}

// withTrailingBlock appends an extra text part to the final user message of
// the contents, so critique or synthesis material travels with the question
// instead of as a dangling extra message.
func withTrailingBlock(contents []model.Message, block string) []model.Message {
	out := make([]model.Message, len(contents))
	copy(out, contents)
	last := len(out) - 1
	parts := make([]model.Part, len(out[last].Parts), len(out[last].Parts)+1)
	copy(parts, out[last].Parts)
	out[last].Parts = append(parts, model.Part{Text: "\n\n" + block})
	return out
}
