package providers

import (
	"context"
	"fmt"

	"github.com/qefaraki/loopback/pkg/logger"
	"github.com/qefaraki/loopback/pkg/loopback"
)

// FallbackProvider wraps a primary and fallback VisionProvider.
// If the primary fails, it transparently retries with the fallback.
type FallbackProvider struct {
	primary  loopback.VisionProvider
	fallback loopback.VisionProvider
	log      logger.Logger
}

func NewFallbackProvider(primary, fallback loopback.VisionProvider, log logger.Logger) *FallbackProvider {
	return &FallbackProvider{
		primary:  primary,
		fallback: fallback,
		log:      logger.OrNop(log),
	}
}

func (p *FallbackProvider) SendFollowup(ctx context.Context, prompt string, uploaded []loopback.UploadedFile, imagesBase64 []string) (map[string]string, error) {
	status, err := p.primary.SendFollowup(ctx, prompt, uploaded, imagesBase64)
	if err == nil {
		return status, nil
	}

	p.log.Warn("primary provider failed, falling back: %v", err)

	fbStatus, fbErr := p.fallback.SendFollowup(ctx, prompt, uploaded, imagesBase64)
	if fbErr != nil {
		return nil, fmt.Errorf("primary failed: %w; fallback also failed: %v", err, fbErr)
	}
	return fbStatus, nil
}

// Primary returns the underlying primary provider.
func (p *FallbackProvider) Primary() loopback.VisionProvider {
	return p.primary
}

// Fallback returns the underlying fallback provider.
func (p *FallbackProvider) Fallback() loopback.VisionProvider {
	return p.fallback
}
