package model

import "time"

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	Timeout         time.Duration
	MaxOutputTokens int
}

// DefaultGeminiConfig returns sensible defaults.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:          apiKey,
		BaseURL:         "https://generativelanguage.googleapis.com/v1beta",
		Model:           "gemini-2.5-flash",
		Timeout:         10 * time.Minute,
		MaxOutputTokens: 65536,
	}
}

// GeminiContent represents content in the request.
type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

// GeminiPart represents a part of the content.
type GeminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *GeminiInlineData `json:"inlineData,omitempty"`
}

// GeminiInlineData carries base64-encoded binary content.
type GeminiInlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// GeminiThinkingConfig controls the reasoning token budget.
type GeminiThinkingConfig struct {
	ThinkingBudget int `json:"thinkingBudget"`
}

// GeminiGenerationConfig represents generation parameters.
type GeminiGenerationConfig struct {
	Temperature     float64               `json:"temperature,omitempty"`
	MaxOutputTokens int                   `json:"maxOutputTokens,omitempty"`
	ThinkingConfig  *GeminiThinkingConfig `json:"thinkingConfig,omitempty"`
}

// GeminiGoogleSearch enables the built-in Google Search grounding tool.
type GeminiGoogleSearch struct{}

// GeminiTool represents a tool declaration.
type GeminiTool struct {
	GoogleSearch *GeminiGoogleSearch `json:"google_search,omitempty"`
}

// GeminiRequest represents the Gemini API request.
type GeminiRequest struct {
	Contents          []GeminiContent        `json:"contents"`
	SystemInstruction *GeminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  GeminiGenerationConfig `json:"generationConfig,omitempty"`
	Tools             []GeminiTool           `json:"tools,omitempty"`
}

// GeminiWeb identifies a web source inside grounding metadata.
type GeminiWeb struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// GeminiGroundingChunk is one grounding source reference.
type GeminiGroundingChunk struct {
	Web *GeminiWeb `json:"web,omitempty"`
}

// GeminiGroundingMetadata carries the sources a response was grounded on.
type GeminiGroundingMetadata struct {
	GroundingChunks  []GeminiGroundingChunk `json:"groundingChunks"`
	WebSearchQueries []string               `json:"webSearchQueries"`
}

// GeminiCandidate is one response candidate.
type GeminiCandidate struct {
	Content struct {
		Parts []GeminiPart `json:"parts"`
		Role  string       `json:"role"`
	} `json:"content"`
	FinishReason      string                   `json:"finishReason"`
	GroundingMetadata *GeminiGroundingMetadata `json:"groundingMetadata,omitempty"`
}

// GeminiResponse represents the API response, for both unary calls and
// individual SSE stream chunks.
type GeminiResponse struct {
	Candidates    []GeminiCandidate `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}
