package loopback

import "github.com/qefaraki/loopback/pkg/config"

// ShouldLoopback decides whether a tool result is eligible for an
// automatic vision follow-up. It is pure: no uploads, no network.
//
// Checks run in a fixed order and short-circuit at the first failure,
// cheapest and most structural first. The order is observable through
// the reason code and must not change: disabled, already performed,
// tool allowlist, vision support, image presence.
func ShouldLoopback(cfg config.Config, result ToolResult, alreadyLooped, modelSupportsVision bool) Decision {
	if !cfg.Enabled {
		return Decision{Reason: ReasonDisabled}
	}
	if alreadyLooped {
		return Decision{Reason: ReasonAlreadyPerformed}
	}
	if !cfg.ToolAllowed(result.ToolName) {
		return Decision{Reason: ReasonToolNotAllowed}
	}
	if !modelSupportsVision {
		return Decision{Reason: ReasonNoVisionSupport}
	}
	if len(result.Images) == 0 {
		return Decision{Reason: ReasonNoImages}
	}
	return Decision{
		ShouldLoopback: true,
		Reason:         ReasonEligible,
		FollowupPrompt: cfg.AutoFollowupPrompt,
	}
}
