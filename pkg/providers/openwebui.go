// Package providers implements VisionProvider collaborators that carry
// the automatic follow-up turn to a model endpoint.
package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/qefaraki/loopback/pkg/loopback"
)

const followupTimeout = 60 * time.Second

// OpenWebUIProvider submits the follow-up through the host's
// OpenAI-compatible chat completions endpoint. Uploaded file ids ride
// along as the host-specific "files" field and the idempotency marker
// is set in the request metadata so the host will not re-trigger
// loopback on the turn this creates.
type OpenWebUIProvider struct {
	client openai.Client
	model  string
	chatID string
}

// NewOpenWebUIProvider creates a provider for the given Open WebUI
// instance and model.
func NewOpenWebUIProvider(baseURL, apiKey, model string) *OpenWebUIProvider {
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/api/"),
		option.WithRequestTimeout(followupTimeout),
	)
	return &OpenWebUIProvider{client: client, model: model}
}

// SetChatID routes the follow-up into an existing conversation.
func (p *OpenWebUIProvider) SetChatID(chatID string) {
	p.chatID = chatID
}

// SendFollowup submits one user turn carrying the prompt and the inline
// base64 images, referencing the uploaded files by id.
func (p *OpenWebUIProvider) SendFollowup(ctx context.Context, prompt string, uploaded []loopback.UploadedFile, imagesBase64 []string) (map[string]string, error) {
	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(prompt),
	}
	for i, encoded := range imagesBase64 {
		mimeType := "image/png"
		if i < len(uploaded) {
			mimeType = uploaded[i].MimeType
		}
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: fmt.Sprintf("data:%s;base64,%s", mimeType, encoded),
		}))
	}

	files := make([]map[string]string, 0, len(uploaded))
	for _, file := range uploaded {
		files = append(files, map[string]string{"id": file.FileID})
	}

	opts := []option.RequestOption{
		option.WithJSONSet("files", files),
		option.WithJSONSet("metadata", map[string]any{loopback.MarkerKey: true}),
	}
	if p.chatID != "" {
		opts = append(opts, option.WithJSONSet("chat_id", p.chatID))
	}

	completion, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(parts),
		},
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("followup chat completion: %w", err)
	}

	return map[string]string{
		"status": "ok",
		"id":     completion.ID,
	}, nil
}
