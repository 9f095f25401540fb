package integrations

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const defaultVisionMaxTokens = 1500

// OpenAIVision talks to OpenAI or any host exposing the same chat completions API
type OpenAIVision struct {
	client    *openai.Client
	maxTokens int
}

// NewOpenAIVision creates a client. An empty baseURL targets api.openai.com.
func NewOpenAIVision(apiKey, baseURL string, timeout time.Duration) *OpenAIVision {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIVision{
		client:    openai.NewClientWithConfig(cfg),
		maxTokens: defaultVisionMaxTokens,
	}
}

// Describe sends the prompt and the image as a data URL in one user message
func (v *OpenAIVision) Describe(ctx context.Context, req VisionRequest) (string, error) {
	if len(req.Image) == 0 {
		return "", fmt.Errorf("openai: empty image")
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s",
		imageMIMEType(req.MIMEType, req.Image),
		base64.StdEncoding.EncodeToString(req.Image))

	resp, err := v.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: req.Prompt},
				{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    dataURL,
						Detail: openai.ImageURLDetailAuto,
					},
				},
			},
		}},
		MaxTokens: v.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai %s: %w", req.Model, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("openai %s: %w", req.Model, ErrEmptyResponse)
	}

	return resp.Choices[0].Message.Content, nil
}
