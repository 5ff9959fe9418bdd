package loopback

import "context"

// MarkerKey is the metadata key hosts set on the follow-up message so a
// later evaluation sees alreadyLooped=true and the loop terminates.
const MarkerKey = "loopback_done"

// Decision reason codes. These are observable policy output; hosts and
// tests match on them, so the strings are fixed.
const (
	ReasonDisabled         = "loopback disabled"
	ReasonAlreadyPerformed = "loopback already performed"
	ReasonToolNotAllowed   = "tool not allowlisted"
	ReasonNoVisionSupport  = "model lacks vision support"
	ReasonNoImages         = "no images in tool result"
	ReasonEligible         = "eligible"
	ReasonNoImagesFiltered = "no images after filtering"
	ReasonApplied          = "loopback applied"
)

// ToolImage is one normalized image extracted from a tool result.
// Source names the tool that produced it.
type ToolImage struct {
	MimeType string
	Data     []byte
	Source   string
}

// ToolResult is the slice of one tool invocation's output relevant to
// loopback. The host constructs it from its own turn representation.
type ToolResult struct {
	ToolName string
	Images   []ToolImage
	Metadata map[string]string
}

// UploadedFile identifies an image registered with the host's file
// storage, one per accepted image, in upload order.
type UploadedFile struct {
	FileID   string
	MimeType string
	Size     int
}

// Decision is the terminal output of the pipeline, returned to the host
// for every outcome, accepted or rejected.
type Decision struct {
	ShouldLoopback bool
	Reason         string
	FollowupPrompt string
	UploadedFiles  []UploadedFile
}

// FileUploader registers image bytes with the host's file storage and
// returns a stable identifier. Implementations must return an error on
// any I/O failure so the orchestrator can abort.
type FileUploader interface {
	Upload(ctx context.Context, image ToolImage) (UploadedFile, error)
}

// VisionProvider submits the follow-up vision turn referencing the
// uploaded files and/or the inline base64 images. The returned payload
// is an opaque status mapping from the host's API.
type VisionProvider interface {
	SendFollowup(ctx context.Context, prompt string, uploaded []UploadedFile, imagesBase64 []string) (map[string]string, error)
}
