// Package model defines the generative-model capability consumed by the
// deliberation pipeline, plus a Gemini implementation of it.
package model

import (
	"context"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Blob is binary inline content, typically an image attachment.
type Blob struct {
	MIMEType string
	Data     []byte
}

// Part is one segment of a message: text or inline binary data.
type Part struct {
	Text       string
	InlineData *Blob
}

// Message is one role-attributed entry of the request contents.
type Message struct {
	Role  Role
	Parts []Part
}

// Citation is a grounding source surfaced by search-grounded generation.
// Identity is the URI.
type Citation struct {
	URI   string
	Title string
}

// Request carries everything a single generation call needs. The pipeline
// builds one Request per agent call; divergence between agents comes from
// sampling temperature, not from request variation.
type Request struct {
	Model             string
	SystemInstruction string
	Temperature       float64
	EnableSearch      bool
	ThinkingBudget    int
	Contents          []Message
}

// Response is the result of a unary generation call.
type Response struct {
	Text      string
	Citations []Citation
}

// Chunk is one unit of a streaming generation call. Citations ride along on
// whichever chunks the backend attaches grounding metadata to.
type Chunk struct {
	Text      string
	Citations []Citation
}

// Client is the generative-model capability. GenerateStream returns a chunk
// channel and an error channel; both are closed when the stream ends. An
// error may arrive before the first chunk or at any point mid-stream.
type Client interface {
	GenerateOnce(ctx context.Context, req Request) (*Response, error)
	GenerateStream(ctx context.Context, req Request) (<-chan Chunk, <-chan error)
}
