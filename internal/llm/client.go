// internal/llm/client.go

// Package llm implements the inference backend for act/extract/observe on
// top of the Gemini API.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/nkratz/pagepilot/api/schemas"
	"github.com/nkratz/pagepilot/internal/browser/automation"
	"github.com/nkratz/pagepilot/internal/config"
)

// generator is the narrow slice of the Gemini SDK the client depends on,
// kept as an interface so tests can substitute a canned model.
type generator interface {
	generate(ctx context.Context, prompt string) (string, error)
}

// Client is the Gemini-backed Inferencer.
type Client struct {
	gen     generator
	limiter *rate.Limiter
	logger  *zap.Logger
}

var _ automation.Inferencer = (*Client)(nil)

// geminiGenerator calls the real Gemini API.
type geminiGenerator struct {
	client *genai.Client
	cfg    config.LLMConfig
}

func (g *geminiGenerator) generate(ctx context.Context, prompt string) (string, error) {
	opCtx := ctx
	if g.cfg.APITimeout > 0 {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithTimeout(ctx, g.cfg.APITimeout)
		defer cancel()
	}

	resp, err := g.client.Models.GenerateContent(opCtx, g.cfg.Model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(g.cfg.Temperature),
		MaxOutputTokens:  int32(g.cfg.MaxOutputTokens),
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned an empty response")
	}
	return text, nil
}

// NewClient builds the production inferencer. The API key is required; the
// session layer treats a nil inferencer as "inference disabled".
func NewClient(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm API key is required")
	}

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 30
	}

	return &Client{
		gen:     &geminiGenerator{client: genaiClient, cfg: cfg},
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
		logger:  logger.Named("llm"),
	}, nil
}

// newClientWithGenerator is the test seam.
func newClientWithGenerator(gen generator, logger *zap.Logger) *Client {
	return &Client{
		gen:     gen,
		limiter: rate.NewLimiter(rate.Inf, 1),
		logger:  logger.Named("llm"),
	}
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return c.gen.generate(ctx, prompt)
}

// InferAct decides the single page operation that fulfills the instruction.
func (c *Client) InferAct(ctx context.Context, instruction string, snapshot *automation.DOMSnapshot) (*schemas.InferredAction, error) {
	prompt, err := buildActPrompt(instruction, snapshot)
	if err != nil {
		return nil, err
	}

	raw, err := c.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var action schemas.InferredAction
	if err := json.Unmarshal(stripFences(raw), &action); err != nil {
		return nil, fmt.Errorf("decode act response: %w (payload: %.200s)", err, raw)
	}
	if action.Method == "" || (action.Method != "goto" && action.Selector == "") {
		return nil, fmt.Errorf("act response missing method or selector (payload: %.200s)", raw)
	}

	c.logger.Debug("act inferred",
		zap.String("method", action.Method),
		zap.String("selector", action.Selector))
	return &action, nil
}

// InferExtract pulls structured data matching the optional JSON schema out of
// the rendered page text.
func (c *Client) InferExtract(ctx context.Context, instruction string, schema json.RawMessage, pageText string) (json.RawMessage, error) {
	prompt := buildExtractPrompt(instruction, schema, pageText)

	raw, err := c.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	payload := stripFences(raw)
	if !json.Valid(payload) {
		return nil, fmt.Errorf("extract response is not valid JSON (payload: %.200s)", raw)
	}
	return json.RawMessage(payload), nil
}

// InferObserve proposes candidate actions for the current page.
func (c *Client) InferObserve(ctx context.Context, instruction string, snapshot *automation.DOMSnapshot) ([]schemas.ObservedAction, error) {
	prompt, err := buildObservePrompt(instruction, snapshot)
	if err != nil {
		return nil, err
	}

	raw, err := c.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var actions []schemas.ObservedAction
	if err := json.Unmarshal(stripFences(raw), &actions); err != nil {
		return nil, fmt.Errorf("decode observe response: %w (payload: %.200s)", err, raw)
	}
	return actions, nil
}

// stripFences removes a markdown code fence around a JSON payload. Models
// occasionally wrap JSON output despite the response MIME type.
func stripFences(s string) []byte {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	}
	return []byte(strings.TrimSpace(trimmed))
}
