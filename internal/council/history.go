package council

import "quorum/internal/model"

// ProjectHistory turns accumulated conversation state into the role/content
// sequence a model call expects. Sources and work traces are display-only
// metadata and never re-enter a request; error turns are likewise skipped.
// Pure and stable: identical input yields identical output.
func ProjectHistory(turns []Turn) []model.Message {
	msgs := make([]model.Message, 0, len(turns))
	for _, t := range turns {
		if t.IsError {
			continue
		}
		msgs = append(msgs, model.Message{Role: t.Role, Parts: turnParts(t)})
	}
	return msgs
}

// turnParts converts a turn's content into request parts, image first so the
// model sees the attachment before the question about it.
func turnParts(t Turn) []model.Part {
	parts := make([]model.Part, 0, len(t.Parts)+1)
	if t.Image != nil {
		parts = append(parts, model.Part{InlineData: &model.Blob{
			MIMEType: t.Image.MIMEType,
			Data:     t.Image.Data,
		}})
	}
	for _, p := range t.Parts {
		parts = append(parts, model.Part{Text: p})
	}
	return parts
}
