package uploader

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLocal_Upload(t *testing.T) {
	workspace := t.TempDir()
	u := NewLocal(workspace)

	uploaded, err := u.Upload(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if uploaded.FileID == "" {
		t.Fatal("Expected a generated file id")
	}
	if uploaded.MimeType != "image/png" || uploaded.Size != len("image-bytes") {
		t.Errorf("Unexpected uploaded file: %+v", uploaded)
	}

	data, err := os.ReadFile(filepath.Join(workspace, "uploads", uploaded.FileID+".png"))
	if err != nil {
		t.Fatalf("Expected file on disk: %v", err)
	}
	if !bytes.Equal(data, []byte("image-bytes")) {
		t.Errorf("Persisted bytes mismatch: %q", data)
	}
}

func TestLocal_UploadDistinctIDs(t *testing.T) {
	u := NewLocal(t.TempDir())

	first, err := u.Upload(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	second, err := u.Upload(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if first.FileID == second.FileID {
		t.Error("Expected distinct file ids per upload")
	}
}
