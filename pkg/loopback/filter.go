package loopback

import (
	"encoding/base64"

	"github.com/qefaraki/loopback/pkg/config"
)

// FilterImages returns the images that satisfy the mime and size
// constraints, preserving input order, capped at cfg.MaxImages. Once
// the cap is reached later candidates are never inspected. Input is
// not mutated; an empty input yields an empty result.
func FilterImages(cfg config.Config, images []ToolImage) []ToolImage {
	filtered := make([]ToolImage, 0, min(len(images), cfg.MaxImages))
	for _, image := range images {
		if !cfg.MimeAllowed(image.MimeType) {
			continue
		}
		if len(image.Data) > cfg.MaxBytes {
			continue
		}
		filtered = append(filtered, image)
		if len(filtered) >= cfg.MaxImages {
			break
		}
	}
	return filtered
}

// EncodeBase64Images encodes each image's bytes to standard base64,
// in input order, for inline transport alongside the uploaded files.
func EncodeBase64Images(images []ToolImage) []string {
	encoded := make([]string, 0, len(images))
	for _, image := range images {
		encoded = append(encoded, base64.StdEncoding.EncodeToString(image.Data))
	}
	return encoded
}
