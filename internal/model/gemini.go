package model

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"quorum/internal/logging"
)

// GeminiClient implements Client against the Gemini REST API.
type GeminiClient struct {
	apiKey          string
	baseURL         string
	model           string
	maxOutputTokens int
	httpClient      *http.Client

	mu          sync.Mutex
	lastRequest time.Time
}

// NewGeminiClient creates a Gemini client with default config.
func NewGeminiClient(apiKey string) *GeminiClient {
	return NewGeminiClientWithConfig(DefaultGeminiConfig(apiKey))
}

// NewGeminiClientWithConfig creates a Gemini client with custom config.
func NewGeminiClientWithConfig(config GeminiConfig) *GeminiClient {
	model := strings.TrimSpace(config.Model)
	if model == "" {
		model = "gemini-2.5-flash"
	}
	maxOutputTokens := config.MaxOutputTokens
	if maxOutputTokens <= 0 {
		maxOutputTokens = 65536
	}
	return &GeminiClient{
		apiKey:          config.APIKey,
		baseURL:         config.BaseURL,
		model:           model,
		maxOutputTokens: maxOutputTokens,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Model returns the default model used when a request names none.
func (c *GeminiClient) Model() string {
	return c.model
}

// pace enforces a minimum gap between outgoing requests.
func (c *GeminiClient) pace() {
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()
}

func (c *GeminiClient) buildRequest(req Request) GeminiRequest {
	contents := make([]GeminiContent, 0, len(req.Contents))
	for _, msg := range req.Contents {
		parts := make([]GeminiPart, 0, len(msg.Parts))
		for _, p := range msg.Parts {
			gp := GeminiPart{Text: p.Text}
			if p.InlineData != nil {
				gp.InlineData = &GeminiInlineData{
					MIMEType: p.InlineData.MIMEType,
					Data:     base64.StdEncoding.EncodeToString(p.InlineData.Data),
				}
			}
			parts = append(parts, gp)
		}
		contents = append(contents, GeminiContent{Role: string(msg.Role), Parts: parts})
	}

	body := GeminiRequest{
		Contents: contents,
		GenerationConfig: GeminiGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: c.maxOutputTokens,
		},
	}
	if req.SystemInstruction != "" {
		body.SystemInstruction = &GeminiContent{
			Parts: []GeminiPart{{Text: req.SystemInstruction}},
		}
	}
	if req.ThinkingBudget > 0 {
		body.GenerationConfig.ThinkingConfig = &GeminiThinkingConfig{
			ThinkingBudget: req.ThinkingBudget,
		}
	}
	if req.EnableSearch {
		body.Tools = []GeminiTool{{GoogleSearch: &GeminiGoogleSearch{}}}
	}
	return body
}

func (c *GeminiClient) resolveModel(req Request) string {
	if strings.TrimSpace(req.Model) != "" {
		return req.Model
	}
	return c.model
}

func extractCitations(resp *GeminiResponse) []Citation {
	if len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return nil
	}
	var citations []Citation
	for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk.Web != nil && chunk.Web.URI != "" {
			citations = append(citations, Citation{URI: chunk.Web.URI, Title: chunk.Web.Title})
		}
	}
	return citations
}

// GenerateOnce sends a unary generation request. Rate-limit responses (429)
// are retried with exponential backoff; other failures surface immediately.
func (c *GeminiClient) GenerateOnce(ctx context.Context, req Request) (*Response, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	log := logging.Named("model")
	startTime := time.Now()

	if c.apiKey == "" {
		return nil, fmt.Errorf("API key not configured")
	}

	c.pace()

	reqBody := c.buildRequest(req)
	modelID := c.resolveModel(req)
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, modelID, c.apiKey)

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	maxRetries := 3
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			select {
			case <-time.After(time.Duration(1<<uint(i-1)) * time.Second):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limit exceeded (429)")
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
		}

		var geminiResp GeminiResponse
		if err := json.Unmarshal(body, &geminiResp); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		if geminiResp.Error != nil {
			return nil, fmt.Errorf("API error: %s", geminiResp.Error.Message)
		}
		if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
			return nil, fmt.Errorf("no completion returned")
		}

		var result strings.Builder
		for _, part := range geminiResp.Candidates[0].Content.Parts {
			result.WriteString(part.Text)
		}

		out := &Response{
			Text:      strings.TrimSpace(result.String()),
			Citations: extractCitations(&geminiResp),
		}

		log.Debug("generate once completed",
			zap.String("model", modelID),
			zap.Duration("elapsed", time.Since(startTime)),
			zap.Int("response_len", len(out.Text)),
			zap.Int("citations", len(out.Citations)))
		return out, nil
	}

	log.Error("generate once: max retries exceeded",
		zap.String("model", modelID),
		zap.Duration("elapsed", time.Since(startTime)),
		zap.Error(lastErr))
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// GenerateStream sends a streaming generation request over SSE. Chunks carry
// text deltas and any grounding citations attached to them, in arrival order.
// Both returned channels are closed when the stream ends.
func (c *GeminiClient) GenerateStream(ctx context.Context, req Request) (<-chan Chunk, <-chan error) {
	chunkChan := make(chan Chunk, 100)
	errorChan := make(chan error, 1)

	log := logging.Named("model")
	modelID := c.resolveModel(req)

	go func() {
		defer close(chunkChan)
		defer close(errorChan)

		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
			defer cancel()
		}

		startTime := time.Now()

		if c.apiKey == "" {
			errorChan <- fmt.Errorf("API key not configured")
			return
		}

		c.pace()

		reqBody := c.buildRequest(req)
		url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s", c.baseURL, modelID, c.apiKey)

		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			errorChan <- fmt.Errorf("failed to marshal request: %w", err)
			return
		}

		httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
		if err != nil {
			errorChan <- fmt.Errorf("failed to create request: %w", err)
			return
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "text/event-stream")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			errorChan <- fmt.Errorf("request failed: %w", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			errorChan <- fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "" {
				continue
			}
			if data == "[DONE]" {
				break
			}

			var chunk GeminiResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if chunk.Error != nil {
				errorChan <- fmt.Errorf("API error: %s", chunk.Error.Message)
				return
			}
			if len(chunk.Candidates) == 0 {
				continue
			}

			var text strings.Builder
			for _, part := range chunk.Candidates[0].Content.Parts {
				text.WriteString(part.Text)
			}
			out := Chunk{
				Text:      text.String(),
				Citations: extractCitations(&chunk),
			}
			if out.Text == "" && len(out.Citations) == 0 {
				continue
			}

			select {
			case chunkChan <- out:
			case <-ctx.Done():
				errorChan <- ctx.Err()
				return
			}
		}
		if err := scanner.Err(); err != nil {
			if ctx.Err() != nil {
				errorChan <- ctx.Err()
				return
			}
			errorChan <- fmt.Errorf("stream error: %w", err)
			return
		}

		log.Debug("generate stream completed",
			zap.String("model", modelID),
			zap.Duration("elapsed", time.Since(startTime)))
	}()

	return chunkChan, errorChan
}
