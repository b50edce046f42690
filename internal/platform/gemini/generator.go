package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/talentforge/talentforge-api/internal/config"
	"github.com/talentforge/talentforge-api/internal/generation"
	"google.golang.org/genai"
)

// baseRetryDelay is the first backoff interval for transient API errors.
const baseRetryDelay = 2 * time.Second

// Generator implements generation.Generator using the Gemini API.
type Generator struct {
	logger *slog.Logger
	cfg    config.LLMConfig
	client *genai.Client
	model  string
}

// NewGenerator creates a Generator backed by a Gemini API client.
func NewGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Generator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return &Generator{
		logger: logger,
		cfg:    cfg,
		client: client,
		model:  cfg.ModelName,
	}, nil
}

// Generate produces the content for one pipeline task.
func (g *Generator) Generate(ctx context.Context, req generation.Request) (map[string]any, error) {
	prompt, err := buildPrompt(req)
	if err != nil {
		return nil, err
	}

	text, err := g.callWithRetry(ctx, req.Task, prompt)
	if err != nil {
		return nil, err
	}

	return parseContent(text)
}

// buildPrompt assembles the task preamble and the JSON-serialized input.
func buildPrompt(req generation.Request) (string, error) {
	if req.Task == "" {
		return "", fmt.Errorf("%w: task cannot be empty", generation.ErrInvalidConfig)
	}

	input, err := json.Marshal(req.Input)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request input: %w", err)
	}

	preamble, ok := taskPrompts[req.Task]
	if !ok {
		preamble = fmt.Sprintf(genericPrompt, req.Task)
	}

	var b strings.Builder
	b.WriteString(preamble)
	b.WriteString("\n\nInput:\n")
	b.Write(input)
	return b.String(), nil
}

// callWithRetry calls the Gemini API with exponential backoff and jitter.
// Transient errors are retried up to cfg.MaxRetries times; blocked content
// and malformed responses are returned immediately.
func (g *Generator) callWithRetry(ctx context.Context, task, prompt string) (string, error) {
	maxRetries := g.cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	genConfig := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		g.logger.InfoContext(ctx, "calling Gemini API",
			"task", task,
			"attempt", attempt+1,
			"max_attempts", maxRetries+1)

		text, transient, err := g.callOnce(ctx, prompt, genConfig)
		if err == nil {
			return text, nil
		}
		lastErr = err

		g.logger.ErrorContext(ctx, "Gemini API call failed",
			"task", task,
			"attempt", attempt+1,
			"transient", transient,
			"error", err)

		if !transient {
			return "", err
		}
		if attempt == maxRetries {
			break
		}

		// delay = base * 2^attempt * jitter in [0.5, 1.0)
		backoff := float64(baseRetryDelay) * math.Pow(2, float64(attempt))
		delay := time.Duration(backoff * (0.5 + rng.Float64()*0.5))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", generation.ErrTransientFailure, ctx.Err())
		}
	}

	return "", fmt.Errorf("%w: exceeded %d attempts: %v",
		generation.ErrTransientFailure, maxRetries+1, lastErr)
}

// callOnce performs a single API call and classifies the outcome. The
// second return reports whether a failure is worth retrying.
func (g *Generator) callOnce(
	ctx context.Context,
	prompt string,
	genConfig *genai.GenerateContentConfig,
) (string, bool, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), genConfig)
	if err != nil {
		// Network and server-side errors are assumed transient.
		return "", true, fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", false, fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}
	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return "", false, fmt.Errorf("%w: finish reason safety", generation.ErrContentBlocked)
	}

	text := resp.Text()
	if text == "" {
		return "", false, fmt.Errorf("%w: empty response text", generation.ErrInvalidResponse)
	}

	return text, false, nil
}

// parseContent decodes the model's JSON reply into step output.
func parseContent(text string) (map[string]any, error) {
	var content map[string]any
	if err := json.Unmarshal([]byte(text), &content); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON response: %v", generation.ErrInvalidResponse, err)
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: empty JSON object", generation.ErrInvalidResponse)
	}
	return content, nil
}
