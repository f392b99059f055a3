package simplesubmission

import "context"

// NoopProbe is a MediaProbe that rejects every media file. It is installed
// when no real probe is configured so that forms without media constraints
// keep working while media-category uploads fail with a clear reason.
type NoopProbe struct{}

// NewNoopProbe creates a probe that reports media probing as unavailable.
func NewNoopProbe() *NoopProbe {
	return &NoopProbe{}
}

// Probe always returns a *ProbeError.
func (p *NoopProbe) Probe(ctx context.Context, path string, category Category) (*ProbeResult, error) {
	return nil, &ProbeError{Category: category, Cause: "media probing not configured"}
}
