// Package ai wraps the OpenAI-compatible vision and speech-to-text models
// used to annotate scenes and transcribe audio.
package ai

import (
	"errors"

	"github.com/sashabaranov/go-openai"

	"github.com/kikiluvv/framefinder/internal/config"
)

// ErrNoAPIKey is returned when no API key is configured.
var ErrNoAPIKey = errors.New("no OpenAI API key configured (set ai.api_key or OPENAI_API_KEY)")

// NewClient builds an OpenAI client from the ai config section. BaseURL
// allows any OpenAI-compatible endpoint.
func NewClient(cfg config.AIConfig) (*openai.Client, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, ErrNoAPIKey
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientConfig), nil
}
