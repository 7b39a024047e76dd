package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

// DefaultProductPrompt is used when no prompt file is available.
const DefaultProductPrompt = `You are a product recognition assistant. List every identifiable
commercial product visible in the image. Respond with JSON only, in the form
{"products": [{"name": "...", "brand": "...", "category": "..."}]}.`

// ProductDetector identifies products in a single image. The result is the
// model's JSON document.
type ProductDetector interface {
	DetectProducts(ctx context.Context, imagePath string) (json.RawMessage, error)
}

// VisionDetector asks a vision chat model to list the products in an image.
type VisionDetector struct {
	logger    zerolog.Logger
	client    *openai.Client
	model     string
	prompt    string
	maxTokens int
}

// NewVisionDetector loads the system prompt from promptFile, falling back
// to DefaultProductPrompt when the file does not exist.
func NewVisionDetector(logger zerolog.Logger, client *openai.Client, model, promptFile string, maxTokens int) (*VisionDetector, error) {
	logger = logger.With().Str("component", "product-detector").Logger()

	prompt := DefaultProductPrompt
	if promptFile != "" {
		data, err := os.ReadFile(promptFile)
		switch {
		case err == nil:
			prompt = strings.TrimSpace(string(data))
		case os.IsNotExist(err):
			logger.Warn().Str("prompt_file", promptFile).Msg("prompt file not found, using default prompt")
		default:
			return nil, fmt.Errorf("failed to read prompt: %w", err)
		}
	}

	return &VisionDetector{
		logger:    logger,
		client:    client,
		model:     model,
		prompt:    prompt,
		maxTokens: maxTokens,
	}, nil
}

// DetectProducts sends the image inline as a base64 data URL.
func (d *VisionDetector) DetectProducts(ctx context.Context, imagePath string) (json.RawMessage, error) {
	url, err := dataURL(imagePath)
	if err != nil {
		return nil, err
	}

	d.logger.Debug().Str("image", imagePath).Str("model", d.model).Msg("detecting products")

	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     d.model,
		MaxTokens: d.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: d.prompt,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: url},
					},
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("vision request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("vision model returned no choices")
	}

	return ParseProducts(resp.Choices[0].Message.Content), nil
}

// ParseProducts returns the model content as JSON. Content wrapped in a
// markdown code fence is unwrapped; anything that is still not valid JSON
// becomes {"error": "Invalid JSON in model response"}.
func ParseProducts(content string) json.RawMessage {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
		content = strings.TrimSpace(content)
	}
	if !json.Valid([]byte(content)) {
		return ErrorResult("Invalid JSON in model response")
	}
	return json.RawMessage(content)
}

// ErrorResult encodes msg as {"error": msg}.
func ErrorResult(msg string) json.RawMessage {
	data, _ := json.Marshal(map[string]string{"error": msg})
	return data
}

func dataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
