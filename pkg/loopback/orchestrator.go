package loopback

import (
	"context"
	"fmt"

	"github.com/qefaraki/loopback/pkg/config"
	"github.com/qefaraki/loopback/pkg/logger"
	"github.com/qefaraki/loopback/pkg/metrics"
)

// Orchestrator drives the full pipeline: gate, filter, upload each
// surviving image in order, base64-encode the same set, and submit one
// follow-up through the provider. Logger and Tracker are optional
// diagnostics collaborators; both default to doing nothing.
type Orchestrator struct {
	Uploader FileUploader
	Provider VisionProvider
	Logger   logger.Logger
	Tracker  *metrics.Tracker
}

// ApplyLoopback runs the pipeline with no diagnostics attached.
func ApplyLoopback(
	ctx context.Context,
	cfg config.Config,
	result ToolResult,
	alreadyLooped, modelSupportsVision bool,
	uploader FileUploader,
	provider VisionProvider,
) (Decision, error) {
	o := Orchestrator{Uploader: uploader, Provider: provider}
	return o.Apply(ctx, cfg, result, alreadyLooped, modelSupportsVision)
}

// Apply evaluates one tool result. Policy rejections come back as
// decisions; uploader or provider failures abort the whole call and
// propagate as errors. There are no retries and no rollback: files
// uploaded before a later failure stay uploaded, and the caller decides
// how to surface that.
func (o Orchestrator) Apply(
	ctx context.Context,
	cfg config.Config,
	result ToolResult,
	alreadyLooped, modelSupportsVision bool,
) (Decision, error) {
	log := logger.OrNop(o.Logger)

	decision := ShouldLoopback(cfg, result, alreadyLooped, modelSupportsVision)
	if !decision.ShouldLoopback {
		log.Info("loopback skipped: %s (tool=%s)", decision.Reason, result.ToolName)
		o.record(result, decision, len(result.Images))
		return decision, nil
	}

	filtered := FilterImages(cfg, result.Images)
	log.Debug("filtered %d images from %d candidates", len(filtered), len(result.Images))
	if len(filtered) == 0 {
		decision = Decision{Reason: ReasonNoImagesFiltered}
		log.Info("loopback skipped: %s (tool=%s)", decision.Reason, result.ToolName)
		o.record(result, decision, len(result.Images))
		return decision, nil
	}

	uploaded := make([]UploadedFile, 0, len(filtered))
	for _, image := range filtered {
		log.Debug("uploading image source=%s mime=%s bytes=%d", image.Source, image.MimeType, len(image.Data))
		file, err := o.Uploader.Upload(ctx, image)
		if err != nil {
			return Decision{}, fmt.Errorf("uploading %s image from %s: %w", image.MimeType, image.Source, err)
		}
		uploaded = append(uploaded, file)
	}

	imagesBase64 := EncodeBase64Images(filtered)
	prompt := decision.FollowupPrompt
	if prompt == "" {
		prompt = cfg.AutoFollowupPrompt
	}

	log.Info("sending followup with %d files and %d inline images", len(uploaded), len(imagesBase64))
	if _, err := o.Provider.SendFollowup(ctx, prompt, uploaded, imagesBase64); err != nil {
		return Decision{}, fmt.Errorf("sending followup: %w", err)
	}

	decision = Decision{
		ShouldLoopback: true,
		Reason:         ReasonApplied,
		FollowupPrompt: decision.FollowupPrompt,
		UploadedFiles:  uploaded,
	}
	log.Info("loopback applied with %d uploaded files", len(uploaded))
	o.record(result, decision, len(result.Images))
	return decision, nil
}

func (o Orchestrator) record(result ToolResult, decision Decision, candidates int) {
	if o.Tracker == nil {
		return
	}
	uploadedBytes := 0
	for _, file := range decision.UploadedFiles {
		uploadedBytes += file.Size
	}
	o.Tracker.Record(metrics.DecisionEvent{
		Tool:           result.ToolName,
		Reason:         decision.Reason,
		ShouldLoopback: decision.ShouldLoopback,
		Candidates:     candidates,
		Uploaded:       len(decision.UploadedFiles),
		UploadedBytes:  uploadedBytes,
	})
}
