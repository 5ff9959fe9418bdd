// Package extract locates image payloads inside the loosely-structured
// nested document a chat host's tool-execution layer produces, and
// normalizes them into raw bytes plus a declared mime type.
package extract

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"sort"
	"time"
)

// DefaultFetchTimeout bounds the blocking request used to resolve a
// url-only image entry.
const DefaultFetchTimeout = 10 * time.Second

// ExtractedImage is one image pulled out of the raw document before the
// ToolResult abstraction is applied. Source names the tool whose result
// fragment carried it.
type ExtractedImage struct {
	MimeType string
	Data     []byte
	Source   string
}

// Options controls one extraction pass.
type Options struct {
	AllowedTools     []string
	AllowedMimeTypes []string
	AllowURLFetch    bool
	MaxImages        int

	// Client serves url-only image entries when AllowURLFetch is set.
	// Nil means a default client with DefaultFetchTimeout.
	Client *http.Client
}

// ExtractToolImages walks the document depth-first and collects images
// declared under allowlisted tool fragments, stopping as soon as
// MaxImages have been accumulated. Map keys are visited in sorted order
// so repeated extraction over the same document is identical.
//
// Malformed pieces are absorbed, never fatal: a string images field
// that is not JSON, a base64 payload that does not decode, a non-map
// element inside an images list, and a failed URL fetch each drop that
// single entry and the walk continues.
func ExtractToolImages(doc any, opts Options) []ExtractedImage {
	if opts.MaxImages <= 0 {
		return nil
	}
	w := &walker{opts: opts, client: opts.Client}
	if w.client == nil {
		w.client = &http.Client{Timeout: DefaultFetchTimeout}
	}
	w.walk(doc)
	return w.images
}

type walker struct {
	opts   Options
	client *http.Client
	images []ExtractedImage
}

// walk returns false once the image cap is reached so callers unwind
// immediately.
func (w *walker) walk(node any) bool {
	switch value := node.(type) {
	case map[string]any:
		if !w.visitMap(value) {
			return false
		}
		keys := make([]string, 0, len(value))
		for key := range value {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if !w.walk(value[key]) {
				return false
			}
		}
	case []any:
		for _, item := range value {
			if !w.walk(item) {
				return false
			}
		}
	}
	return true
}

// visitMap inspects a single map node for an allowlisted tool fragment
// and harvests its declared images. Children are recursed into by the
// caller regardless of what happens here.
func (w *walker) visitMap(node map[string]any) bool {
	toolName := firstString(node, "tool_name", "tool", "name")
	if toolName == "" || !slices.Contains(w.opts.AllowedTools, toolName) {
		return true
	}

	rawImages := firstValue(node, "images", "image")
	if rawImages == nil {
		if output, ok := node["output"].(map[string]any); ok {
			rawImages = firstValue(output, "images")
		}
	}
	if rawImages == nil {
		return true
	}

	if text, ok := rawImages.(string); ok {
		var parsed any
		if err := json.Unmarshal([]byte(text), &parsed); err != nil {
			return true
		}
		rawImages = parsed
	}

	var entries []any
	switch value := rawImages.(type) {
	case map[string]any:
		entries = []any{value}
	case []any:
		entries = value
	default:
		return true
	}

	for _, entry := range entries {
		image, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		w.collect(image, toolName)
		if len(w.images) >= w.opts.MaxImages {
			return false
		}
	}
	return true
}

// collect resolves one images-list element into bytes and appends it.
func (w *walker) collect(image map[string]any, toolName string) {
	mimeType := firstString(image, "mime_type", "content_type")
	if mimeType == "" {
		mimeType = "image/png"
	}
	if !slices.Contains(w.opts.AllowedMimeTypes, mimeType) {
		return
	}

	var data []byte
	for _, key := range []string{"b64_json", "data", "base64"} {
		encoded, ok := image[key].(string)
		if !ok {
			continue
		}
		if decoded := decodeBase64(encoded); decoded != nil {
			data = decoded
			break
		}
	}
	if data == nil && w.opts.AllowURLFetch {
		if url, ok := image["url"].(string); ok && url != "" {
			fetched, err := w.fetch(url)
			if err != nil {
				return
			}
			data = fetched
		}
	}
	if len(data) == 0 {
		return
	}

	w.images = append(w.images, ExtractedImage{
		MimeType: mimeType,
		Data:     data,
		Source:   toolName,
	})
}

func (w *walker) fetch(url string) ([]byte, error) {
	resp, err := w.client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetching image url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetching image url: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading image body: %w", err)
	}
	return body, nil
}

func decodeBase64(encoded string) []byte {
	if decoded, err := base64.StdEncoding.DecodeString(encoded); err == nil {
		return decoded
	}
	if decoded, err := base64.RawStdEncoding.DecodeString(encoded); err == nil {
		return decoded
	}
	return nil
}

// firstString returns the first non-empty string value among keys.
func firstString(node map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := node[key].(string); ok && value != "" {
			return value
		}
	}
	return ""
}

// firstValue returns the first present, non-empty value among keys.
// Empty strings, lists and maps fall through to the next candidate.
func firstValue(node map[string]any, keys ...string) any {
	for _, key := range keys {
		value, ok := node[key]
		if !ok || value == nil {
			continue
		}
		switch typed := value.(type) {
		case string:
			if typed == "" {
				continue
			}
		case []any:
			if len(typed) == 0 {
				continue
			}
		case map[string]any:
			if len(typed) == 0 {
				continue
			}
		}
		return value
	}
	return nil
}
