package extract

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func defaultOptions() Options {
	return Options{
		AllowedTools:     []string{"generate_image"},
		AllowedMimeTypes: []string{"image/png", "image/jpeg", "image/webp"},
		AllowURLFetch:    false,
		MaxImages:        2,
	}
}

func decodeDoc(t *testing.T, raw string) map[string]any {
	t.Helper()
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("Invalid test document: %v", err)
	}
	return doc
}

func TestExtractToolImages_FromToolOutput(t *testing.T) {
	doc := decodeDoc(t, `{
		"tool_results": [
			{
				"tool_name": "generate_image",
				"images": [{"mime_type": "image/png", "b64_json": "aW1hZ2UtYnl0ZXM="}]
			}
		]
	}`)
	opts := defaultOptions()
	opts.AllowedMimeTypes = []string{"image/png"}

	images := ExtractToolImages(doc, opts)

	if len(images) != 1 {
		t.Fatalf("Expected 1 image, got %d", len(images))
	}
	if images[0].MimeType != "image/png" {
		t.Errorf("Expected mime image/png, got %s", images[0].MimeType)
	}
	if !bytes.Equal(images[0].Data, []byte("image-bytes")) {
		t.Errorf("Expected data %q, got %q", "image-bytes", images[0].Data)
	}
	if images[0].Source != "generate_image" {
		t.Errorf("Expected source generate_image, got %s", images[0].Source)
	}
}

func TestExtractToolImages_Idempotent(t *testing.T) {
	doc := decodeDoc(t, `{
		"a": {"tool": "generate_image", "image": {"b64_json": "Zmlyc3Q="}},
		"b": {"name": "generate_image", "images": [{"data": "c2Vjb25k"}]},
		"c": [{"tool_name": "generate_image", "images": [{"base64": "dGhpcmQ="}]}]
	}`)
	opts := defaultOptions()
	opts.MaxImages = 10

	first := ExtractToolImages(doc, opts)
	second := ExtractToolImages(doc, opts)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Extraction is not deterministic:\n%+v\n%+v", first, second)
	}
	if len(first) != 3 {
		t.Errorf("Expected 3 images, got %d", len(first))
	}
}

func TestExtractToolImages_ToolNameKeyPriority(t *testing.T) {
	// tool_name wins over tool and name when several are present.
	doc := decodeDoc(t, `{
		"tool_name": "generate_image",
		"tool": "not_allowed",
		"name": "also_not_allowed",
		"images": [{"b64_json": "cGF5bG9hZA=="}]
	}`)

	images := ExtractToolImages(doc, defaultOptions())

	if len(images) != 1 {
		t.Fatalf("Expected 1 image, got %d", len(images))
	}
	if images[0].Source != "generate_image" {
		t.Errorf("Expected tool_name to win, got source %s", images[0].Source)
	}
}

func TestExtractToolImages_EmptyToolNameFallsThrough(t *testing.T) {
	doc := decodeDoc(t, `{
		"tool_name": "",
		"tool": "generate_image",
		"images": [{"b64_json": "cGF5bG9hZA=="}]
	}`)

	images := ExtractToolImages(doc, defaultOptions())

	if len(images) != 1 {
		t.Fatalf("Expected fallthrough to tool key, got %d images", len(images))
	}
}

func TestExtractToolImages_SkipsDisallowedTool(t *testing.T) {
	doc := decodeDoc(t, `{
		"outer": {
			"tool_name": "search_web",
			"images": [{"b64_json": "c2tpcHBlZA=="}],
			"nested": {"tool_name": "generate_image", "images": [{"b64_json": "a2VwdA=="}]}
		}
	}`)

	images := ExtractToolImages(doc, defaultOptions())

	// The disallowed node is skipped but its children are still walked.
	if len(images) != 1 {
		t.Fatalf("Expected 1 image from the nested node, got %d", len(images))
	}
	if !bytes.Equal(images[0].Data, []byte("kept")) {
		t.Errorf("Expected nested image, got %q", images[0].Data)
	}
}

func TestExtractToolImages_StringImagesFieldParsedAsJSON(t *testing.T) {
	doc := map[string]any{
		"tool_name": "generate_image",
		"images":    `[{"mime_type":"image/png","b64_json":"aW5saW5l"}]`,
	}

	images := ExtractToolImages(doc, defaultOptions())

	if len(images) != 1 {
		t.Fatalf("Expected 1 image from JSON string field, got %d", len(images))
	}
	if !bytes.Equal(images[0].Data, []byte("inline")) {
		t.Errorf("Expected decoded inline bytes, got %q", images[0].Data)
	}
}

func TestExtractToolImages_MalformedJSONStringAbsorbed(t *testing.T) {
	doc := map[string]any{
		"tool_name": "generate_image",
		"images":    "not valid json {",
	}

	images := ExtractToolImages(doc, defaultOptions())

	if len(images) != 0 {
		t.Errorf("Expected no images for malformed JSON, got %d", len(images))
	}
}

func TestExtractToolImages_SingleMapTreatedAsList(t *testing.T) {
	doc := decodeDoc(t, `{
		"tool_name": "generate_image",
		"image": {"content_type": "image/jpeg", "data": "c2luZ2xl"}
	}`)

	images := ExtractToolImages(doc, defaultOptions())

	if len(images) != 1 {
		t.Fatalf("Expected 1 image, got %d", len(images))
	}
	if images[0].MimeType != "image/jpeg" {
		t.Errorf("Expected content_type fallback, got %s", images[0].MimeType)
	}
}

func TestExtractToolImages_OutputImagesKey(t *testing.T) {
	doc := decodeDoc(t, `{
		"tool_name": "generate_image",
		"output": {"images": [{"b64_json": "bmVzdGVk"}]}
	}`)

	images := ExtractToolImages(doc, defaultOptions())

	if len(images) != 1 {
		t.Fatalf("Expected 1 image from output.images, got %d", len(images))
	}
}

func TestExtractToolImages_DefaultMimeRequiresAllowlisting(t *testing.T) {
	doc := decodeDoc(t, `{
		"tool_name": "generate_image",
		"images": [{"b64_json": "ZGVmYXVsdGVk"}]
	}`)
	opts := defaultOptions()
	opts.AllowedMimeTypes = []string{"image/jpeg"}

	// Mime defaults to image/png, which is not allowlisted here.
	images := ExtractToolImages(doc, opts)

	if len(images) != 0 {
		t.Errorf("Expected default png to be rejected, got %d images", len(images))
	}
}

func TestExtractToolImages_DecodeFailureFallsToNextKey(t *testing.T) {
	doc := decodeDoc(t, `{
		"tool_name": "generate_image",
		"images": [{"b64_json": "!!!not base64!!!", "data": "ZmFsbGJhY2s="}]
	}`)

	images := ExtractToolImages(doc, defaultOptions())

	if len(images) != 1 {
		t.Fatalf("Expected fallback to the data key, got %d images", len(images))
	}
	if !bytes.Equal(images[0].Data, []byte("fallback")) {
		t.Errorf("Expected fallback bytes, got %q", images[0].Data)
	}
}

func TestExtractToolImages_NonMapElementsSkipped(t *testing.T) {
	doc := decodeDoc(t, `{
		"tool_name": "generate_image",
		"images": ["just a string", 42, {"b64_json": "dmFsaWQ="}]
	}`)

	images := ExtractToolImages(doc, defaultOptions())

	if len(images) != 1 {
		t.Fatalf("Expected the lone valid element, got %d images", len(images))
	}
}

func TestExtractToolImages_MaxImagesIsGlobalCap(t *testing.T) {
	doc := decodeDoc(t, `{
		"a": {"tool_name": "generate_image", "images": [{"b64_json": "MQ=="}, {"b64_json": "Mg=="}]},
		"b": {"tool_name": "generate_image", "images": [{"b64_json": "Mw=="}]}
	}`)
	opts := defaultOptions()
	opts.MaxImages = 2

	images := ExtractToolImages(doc, opts)

	if len(images) != 2 {
		t.Fatalf("Expected global cap of 2, got %d", len(images))
	}
	// Sorted-key traversal: node "a" before node "b".
	if !bytes.Equal(images[0].Data, []byte("1")) || !bytes.Equal(images[1].Data, []byte("2")) {
		t.Errorf("Expected first two images in traversal order, got %q, %q", images[0].Data, images[1].Data)
	}
}

func TestExtractToolImages_URLFetchDisabled(t *testing.T) {
	doc := decodeDoc(t, `{
		"tool_name": "generate_image",
		"images": [{"url": "http://unreachable.invalid/image.png"}]
	}`)

	images := ExtractToolImages(doc, defaultOptions())

	if len(images) != 0 {
		t.Errorf("Expected url-only entry to yield nothing when fetch disabled, got %d", len(images))
	}
}

func TestExtractToolImages_URLFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fetched-bytes"))
	}))
	defer server.Close()

	doc := map[string]any{
		"tool_name": "generate_image",
		"images":    []any{map[string]any{"url": server.URL}},
	}
	opts := defaultOptions()
	opts.AllowURLFetch = true
	opts.Client = server.Client()

	images := ExtractToolImages(doc, opts)

	if len(images) != 1 {
		t.Fatalf("Expected fetched image, got %d", len(images))
	}
	if !bytes.Equal(images[0].Data, []byte("fetched-bytes")) {
		t.Errorf("Expected fetched bytes, got %q", images[0].Data)
	}
}

func TestExtractToolImages_URLFetchFailureDropsEntryOnly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	doc := map[string]any{
		"tool_name": "generate_image",
		"images": []any{
			map[string]any{"url": server.URL},
			map[string]any{"b64_json": "c3Vydml2b3I="},
		},
	}
	opts := defaultOptions()
	opts.AllowURLFetch = true
	opts.Client = server.Client()

	images := ExtractToolImages(doc, opts)

	if len(images) != 1 {
		t.Fatalf("Expected the walk to continue past the failed fetch, got %d images", len(images))
	}
	if !bytes.Equal(images[0].Data, []byte("survivor")) {
		t.Errorf("Expected surviving entry, got %q", images[0].Data)
	}
}
