package ai

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

// Transcriber turns speech into text.
type Transcriber interface {
	Transcribe(ctx context.Context, name string, audio io.Reader) (string, error)
}

// WhisperTranscriber calls the OpenAI transcription endpoint.
type WhisperTranscriber struct {
	logger zerolog.Logger
	client *openai.Client
	model  string
}

func NewWhisperTranscriber(logger zerolog.Logger, client *openai.Client, model string) *WhisperTranscriber {
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperTranscriber{
		logger: logger.With().Str("component", "transcriber").Logger(),
		client: client,
		model:  model,
	}
}

// Transcribe uploads audio under the given file name; the extension tells
// the service which container it is.
func (w *WhisperTranscriber) Transcribe(ctx context.Context, name string, audio io.Reader) (string, error) {
	w.logger.Info().Str("file", name).Str("model", w.model).Msg("transcribing audio")

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: name,
		Reader:   audio,
	})
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", fmt.Errorf("empty transcription result")
	}
	return text, nil
}
