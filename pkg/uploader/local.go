package uploader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/qefaraki/loopback/pkg/loopback"
)

// extensions maps accepted mime types to on-disk extensions.
var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Local persists images under a workspace directory and hands out
// generated file ids. Useful for hosts without a file API and for
// integration tests.
type Local struct {
	dir string
}

// NewLocal creates an uploader writing to workspace/uploads.
func NewLocal(workspace string) *Local {
	dir := filepath.Join(workspace, "uploads")
	os.MkdirAll(dir, 0755)
	return &Local{dir: dir}
}

// Upload writes the image bytes to disk under a fresh uuid.
func (u *Local) Upload(_ context.Context, image loopback.ToolImage) (loopback.UploadedFile, error) {
	ext := extensions[image.MimeType]
	if ext == "" {
		ext = ".bin"
	}
	fileID := uuid.NewString()

	path := filepath.Join(u.dir, fileID+ext)
	if err := os.WriteFile(path, image.Data, 0644); err != nil {
		return loopback.UploadedFile{}, fmt.Errorf("writing %s: %w", path, err)
	}

	return loopback.UploadedFile{
		FileID:   fileID,
		MimeType: image.MimeType,
		Size:     len(image.Data),
	}, nil
}
