// Package gemini implements the kernel's generative collaborators on top of
// the Google GenAI SDK: conversational replies, grounded answers, intent
// classification, brainstorming, avatar images and foresight video.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"collective/internal/config"
	"collective/internal/kernel"
	"collective/internal/logging"

	"google.golang.org/genai"
)

// ErrInvalidCredential is returned when the API rejects the configured key.
var ErrInvalidCredential = errors.New("invalid API credential")

// ErrEmptyResponse is returned when a call succeeds but carries no usable output.
var ErrEmptyResponse = errors.New("model returned an empty response")

var (
	_ kernel.LanguageModel  = (*Client)(nil)
	_ kernel.ImageGenerator = (*Client)(nil)
	_ kernel.VideoGenerator = (*Client)(nil)
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config selects models and call limits.
type Config struct {
	APIKey     string
	Model      string
	ImageModel string
	VideoModel string

	// Timeout bounds each text and image call. Video generation is bounded
	// only by the caller's context.
	Timeout time.Duration

	// PollInterval is the wait between polls of a pending video operation.
	PollInterval time.Duration
}

// DefaultConfig returns the models the collective was tuned against.
func DefaultConfig() Config {
	return Config{
		Model:        "gemini-2.5-flash",
		ImageModel:   "imagen-4.0-generate-001",
		VideoModel:   "veo-2.0-generate-001",
		Timeout:      120 * time.Second,
		PollInterval: 10 * time.Second,
	}
}

// FromConfig maps the llm section of the application config.
func FromConfig(c *config.Config) Config {
	cfg := DefaultConfig()
	cfg.APIKey = c.LLM.APIKey
	if c.LLM.Model != "" {
		cfg.Model = c.LLM.Model
	}
	if c.LLM.ImageModel != "" {
		cfg.ImageModel = c.LLM.ImageModel
	}
	if c.LLM.VideoModel != "" {
		cfg.VideoModel = c.LLM.VideoModel
	}
	cfg.Timeout = c.GetLLMTimeout()
	cfg.PollInterval = c.GetVideoPollInterval()
	return cfg
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the Gemini API. It is safe for concurrent use.
type Client struct {
	client *genai.Client
	cfg    Config
}

// New creates a client. An API key is required.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	def := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = def.ImageModel
	}
	if cfg.VideoModel == "" {
		cfg.VideoModel = def.VideoModel
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	logging.API("gemini client ready (model=%s image=%s video=%s)", cfg.Model, cfg.ImageModel, cfg.VideoModel)
	return &Client{client: client, cfg: cfg}, nil
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// generate runs one text call under the per-call timeout.
func (c *Client) generate(ctx context.Context, op, system, prompt string, gc *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	if gc == nil {
		gc = &genai.GenerateContentConfig{}
	}
	if system != "" {
		gc.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	timer := logging.StartTimer(logging.CategoryAPI, op)
	defer timer.Stop()

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, contents, gc)
	if err != nil {
		logging.APIError("%s failed: %v", op, err)
		return nil, classifyError(op, err)
	}
	return resp, nil
}

// classifyError wraps an API error, mapping credential rejections onto
// ErrInvalidCredential.
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, marker := range []string{
		"API key not valid",
		"API_KEY_INVALID",
		"PERMISSION_DENIED",
		"Requested entity was not found",
	} {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%s: %w: %v", op, ErrInvalidCredential, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
