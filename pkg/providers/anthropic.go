package providers

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/qefaraki/loopback/pkg/loopback"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"

// AnthropicProvider sends the follow-up straight to Claude as a vision
// message with the images attached as base64 blocks. For hosts that
// loop back model-direct instead of through their own chat endpoint;
// the host remains responsible for recording the idempotency marker on
// the turn it stores.
type AnthropicProvider struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicProvider creates a provider using the given API key.
// An empty model selects the default.
func NewAnthropicProvider(apiKey, model string) *AnthropicProvider {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL("https://api.anthropic.com"),
	)
	if model == "" {
		model = defaultAnthropicModel
	}
	return &AnthropicProvider{client: &client, model: model, maxTokens: 4096}
}

// SendFollowup submits one user message containing the prompt followed
// by every image, in order, as base64 content blocks. Uploaded file ids
// have no Anthropic-side meaning; they are echoed in the status payload
// for the host's bookkeeping.
func (p *AnthropicProvider) SendFollowup(ctx context.Context, prompt string, uploaded []loopback.UploadedFile, imagesBase64 []string) (map[string]string, error) {
	blocks := []anthropic.ContentBlockParamUnion{
		anthropic.NewTextBlock(prompt),
	}
	for i, encoded := range imagesBase64 {
		mimeType := "image/png"
		if i < len(uploaded) {
			mimeType = uploaded[i].MimeType
		}
		blocks = append(blocks, anthropic.NewImageBlockBase64(mimeType, encoded))
	}

	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: p.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(blocks...),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("claude followup call: %w", err)
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.AsText().Text
		}
	}

	status := map[string]string{
		"status":   "ok",
		"id":       resp.ID,
		"response": content,
	}
	for i, file := range uploaded {
		status[fmt.Sprintf("file_%d", i)] = file.FileID
	}
	return status, nil
}
