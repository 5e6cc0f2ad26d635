// Package llm wraps the model endpoint used for labeling and rollout
// transforms. Retry on endpoint failure lives here, inside the transform,
// never in the executors.
package llm

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
// Can be overridden via the GEMINI_MODEL environment variable.
const DefaultModel = "gemini-2.5-flash"

// ModelName resolves the model to use: GEMINI_MODEL when set, otherwise
// DefaultModel.
func ModelName() string {
	if env := os.Getenv("GEMINI_MODEL"); env != "" {
		return env
	}
	return DefaultModel
}

// Client is a thin wrapper over the Gemini API with retry.
type Client struct {
	genai      *genai.Client
	model      string
	maxRetries uint64
}

// NewClient creates a client for the given model using the GEMINI_API_KEY
// environment variable. A missing key is a configuration error.
func NewClient(ctx context.Context, model string) (*Client, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}
	if model == "" {
		model = ModelName()
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	log.Info().Str("model", model).Msg("model endpoint client initialized")
	return &Client{genai: gc, model: model, maxRetries: 4}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Generate sends a text prompt and returns the response text, retrying
// transient endpoint failures with exponential backoff.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.GenerateWithSystem(ctx, "", prompt)
}

// GenerateWithSystem is Generate with an optional system instruction.
func (c *Client) GenerateWithSystem(ctx context.Context, system, prompt string) (string, error) {
	var config *genai.GenerateContentConfig
	if system != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{
				Parts: []*genai.Part{{Text: system}},
			},
		}
	}

	var text string
	operation := func() error {
		start := time.Now()
		resp, err := c.genai.Models.GenerateContent(ctx, c.model, genai.Text(prompt), config)
		if err != nil {
			return fmt.Errorf("generate content: %w", err)
		}
		if resp == nil || resp.Text() == "" {
			return fmt.Errorf("empty response from model")
		}
		text = resp.Text()
		log.Debug().
			Dur("elapsed", time.Since(start)).
			Int("prompt_length", len(prompt)).
			Int("response_length", len(text)).
			Msg("model call complete")
		return nil
	}

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries)
	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Dur("retry_in", wait).Msg("model call failed, retrying")
	}
	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify); err != nil {
		return "", err
	}
	return text, nil
}
