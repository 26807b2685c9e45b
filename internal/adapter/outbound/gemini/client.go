// Package gemini runs bulk inference jobs on the Google GenAI Batches API.
package gemini

import (
	"arxivshorts/internal/config"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	// DefaultModel is the generation model used when none is configured.
	DefaultModel = "gemini-2.5-flash"

	defaultTimeout = 60 * time.Second
)

// ClientConfig holds the configuration for the GenAI client.
type ClientConfig struct {
	APIKey   string
	Backend  string
	Project  string
	Location string
	Model    string
	Timeout  time.Duration
}

// ClientConfigFrom maps the application configuration.
func ClientConfigFrom(cfg config.GeminiConfig) ClientConfig {
	return ClientConfig{
		APIKey:   cfg.APIKey,
		Backend:  cfg.Backend,
		Project:  cfg.Project,
		Location: cfg.Location,
		Model:    cfg.Model,
		Timeout:  cfg.Timeout,
	}
}

// Validate validates the client configuration.
func (c *ClientConfig) Validate() error {
	switch c.Backend {
	case "", config.GeminiBackendAPI:
		if strings.TrimSpace(c.APIKey) == "" {
			return errors.New("API key cannot be empty or whitespace")
		}
	case config.GeminiBackendVertex:
		if c.Project == "" || c.Location == "" {
			return errors.New("vertex backend requires project and location")
		}
	default:
		return fmt.Errorf("unsupported backend %q", c.Backend)
	}
	if c.Timeout < 0 {
		return errors.New("timeout must be positive")
	}
	return nil
}

func (c ClientConfig) withDefaults() ClientConfig {
	c.APIKey = strings.TrimSpace(c.APIKey)
	if c.Backend == "" {
		c.Backend = config.GeminiBackendAPI
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	return c
}

func (c ClientConfig) genaiConfig() *genai.ClientConfig {
	if c.Backend == config.GeminiBackendVertex {
		return &genai.ClientConfig{
			Backend:  genai.BackendVertexAI,
			Project:  c.Project,
			Location: c.Location,
		}
	}
	return &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  c.APIKey,
	}
}

// NewGenAIClient validates cfg and creates the SDK client.
func NewGenAIClient(ctx context.Context, cfg ClientConfig) (*genai.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := genai.NewClient(ctx, cfg.withDefaults().genaiConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return client, nil
}
