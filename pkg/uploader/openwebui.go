// Package uploader provides FileUploader implementations for
// registering tool-generated images with a host before the follow-up
// turn references them.
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/qefaraki/loopback/pkg/loopback"
)

const uploadTimeout = 30 * time.Second

// OpenWebUI registers image bytes through Open WebUI's file API. The
// returned file id is what the follow-up payload references.
type OpenWebUI struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewOpenWebUI creates an uploader for the given Open WebUI instance.
func NewOpenWebUI(baseURL, apiKey string) *OpenWebUI {
	return &OpenWebUI{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: uploadTimeout},
	}
}

// SetClient overrides the HTTP client, mainly for tests.
func (u *OpenWebUI) SetClient(client *http.Client) {
	u.client = client
}

// Upload POSTs the image as multipart form data with processing
// disabled, so the server stores the bytes without running its
// ingestion pipeline on them.
func (u *OpenWebUI) Upload(ctx context.Context, image loopback.ToolImage) (loopback.UploadedFile, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="image"`)
	header.Set("Content-Type", image.MimeType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return loopback.UploadedFile{}, fmt.Errorf("building upload form: %w", err)
	}
	if _, err := part.Write(image.Data); err != nil {
		return loopback.UploadedFile{}, fmt.Errorf("building upload form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return loopback.UploadedFile{}, fmt.Errorf("building upload form: %w", err)
	}

	url := u.baseURL + "/api/v1/files/?process=false&process_in_background=false"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return loopback.UploadedFile{}, fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+u.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := u.client.Do(req)
	if err != nil {
		return loopback.UploadedFile{}, fmt.Errorf("uploading file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return loopback.UploadedFile{}, fmt.Errorf("uploading file: status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return loopback.UploadedFile{}, fmt.Errorf("reading upload response: %w", err)
	}
	var payload struct {
		ID     string `json:"id"`
		FileID string `json:"file_id"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return loopback.UploadedFile{}, fmt.Errorf("decoding upload response: %w", err)
	}
	fileID := payload.ID
	if fileID == "" {
		fileID = payload.FileID
	}
	if fileID == "" {
		return loopback.UploadedFile{}, fmt.Errorf("upload response missing file id")
	}

	return loopback.UploadedFile{
		FileID:   fileID,
		MimeType: image.MimeType,
		Size:     len(image.Data),
	}, nil
}
