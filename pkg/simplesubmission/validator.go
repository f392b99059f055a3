package simplesubmission

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Engine validates an uploaded file against a form's ConstraintSpec.
//
// Checks run in a fixed order and short-circuit on the first failure: size,
// then extension/MIME allow-lists, then the category-specific media check.
// Constraint failures are reported through the returned Verdict; only
// infrastructure failures (stat, probe launch) are returned as errors.
type Engine struct {
	probe MediaProbe
}

// NewEngine creates a validation engine backed by the given media probe.
func NewEngine(probe MediaProbe) *Engine {
	if probe == nil {
		probe = NewNoopProbe()
	}
	return &Engine{probe: probe}
}

func reject(reason string, metadata *ProbeResult) *Verdict {
	return &Verdict{Passed: false, Reasons: []string{reason}, Metadata: metadata}
}

// Validate inspects the file at path against spec. The declared mimeType and
// original filename drive the type check; the media check runs only for
// image/, video/ and audio/ MIME types.
func (e *Engine) Validate(ctx context.Context, path, mimeType, filename string, spec *ConstraintSpec) (*Verdict, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &StorageError{Op: "stat", Key: path, Err: err}
	}
	size := info.Size()

	// 1. Size check
	if spec.MinSizeBytes != nil && size < *spec.MinSizeBytes {
		return reject(fmt.Sprintf("File too small (min %d bytes)", *spec.MinSizeBytes), nil), nil
	}
	if spec.MaxSizeBytes != nil && size > *spec.MaxSizeBytes {
		return reject(fmt.Sprintf("File too large (max %d bytes)", *spec.MaxSizeBytes), nil), nil
	}

	// 2. Extension/MIME allow-lists
	if !spec.allowsFile(filename, mimeType) {
		display := mimeType
		if display == "" {
			display = "unknown"
		}
		return reject(fmt.Sprintf("File type %s not allowed", display), nil), nil
	}

	// 3. Category-specific media check
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return e.validateImage(ctx, path, spec.Image)
	case strings.HasPrefix(mimeType, "video/"):
		return e.validateVideo(ctx, path, spec.Video)
	case strings.HasPrefix(mimeType, "audio/"):
		return e.validateAudio(ctx, path, spec.Audio)
	}

	return &Verdict{Passed: true, Metadata: &ProbeResult{Category: CategoryOther}}, nil
}

func (e *Engine) validateImage(ctx context.Context, path string, c *ImageConstraints) (*Verdict, error) {
	result, err := e.probe.Probe(ctx, path, CategoryImage)
	if err != nil {
		var perr *ProbeError
		if errors.As(err, &perr) {
			return reject(fmt.Sprintf("Invalid image: %s", perr.Cause), nil), nil
		}
		return nil, err
	}
	if result.Image == nil {
		return reject("Invalid image: no image data found", nil), nil
	}

	img := result.Image
	if c != nil {
		if c.MinWidth != nil && img.Width < *c.MinWidth {
			return reject(fmt.Sprintf("Width %d < min %d", img.Width, *c.MinWidth), result), nil
		}
		if c.MaxWidth != nil && img.Width > *c.MaxWidth {
			return reject(fmt.Sprintf("Width %d > max %d", img.Width, *c.MaxWidth), result), nil
		}
		if c.MinHeight != nil && img.Height < *c.MinHeight {
			return reject(fmt.Sprintf("Height %d < min %d", img.Height, *c.MinHeight), result), nil
		}
		if c.MaxHeight != nil && img.Height > *c.MaxHeight {
			return reject(fmt.Sprintf("Height %d > max %d", img.Height, *c.MaxHeight), result), nil
		}
	}

	return &Verdict{Passed: true, Metadata: result}, nil
}

func (e *Engine) validateVideo(ctx context.Context, path string, c *VideoConstraints) (*Verdict, error) {
	result, err := e.probe.Probe(ctx, path, CategoryVideo)
	if err != nil {
		var perr *ProbeError
		if errors.As(err, &perr) {
			return reject(fmt.Sprintf("Invalid video file: %s", perr.Cause), nil), nil
		}
		return nil, err
	}
	if result.Video == nil {
		return reject("No video stream found", nil), nil
	}

	vid := result.Video
	if c == nil {
		return &Verdict{Passed: true, Metadata: result}, nil
	}

	// The first three checks predate the rest and their ordering is kept
	// stable for message compatibility.
	if c.MinWidth != nil && vid.Width < *c.MinWidth {
		return reject(fmt.Sprintf("Width %d < min %d", vid.Width, *c.MinWidth), result), nil
	}
	if c.MinHeight != nil && vid.Height < *c.MinHeight {
		return reject(fmt.Sprintf("Height %d < min %d", vid.Height, *c.MinHeight), result), nil
	}
	if c.MaxDurationSec != nil && vid.DurationSec > *c.MaxDurationSec {
		return reject(fmt.Sprintf("Duration %gs > max %gs", vid.DurationSec, *c.MaxDurationSec), result), nil
	}
	if c.MaxWidth != nil && vid.Width > *c.MaxWidth {
		return reject(fmt.Sprintf("Width %d > max %d", vid.Width, *c.MaxWidth), result), nil
	}
	if c.MaxHeight != nil && vid.Height > *c.MaxHeight {
		return reject(fmt.Sprintf("Height %d > max %d", vid.Height, *c.MaxHeight), result), nil
	}
	if c.MinDurationSec != nil && vid.DurationSec < *c.MinDurationSec {
		return reject(fmt.Sprintf("Duration %gs < min %gs", vid.DurationSec, *c.MinDurationSec), result), nil
	}

	// Fields the probe could not determine are zero and skipped.
	if vid.FrameRate > 0 {
		if c.MinFrameRate != nil && vid.FrameRate < *c.MinFrameRate {
			return reject(fmt.Sprintf("Frame rate %g < min %g", vid.FrameRate, *c.MinFrameRate), result), nil
		}
		if c.MaxFrameRate != nil && vid.FrameRate > *c.MaxFrameRate {
			return reject(fmt.Sprintf("Frame rate %g > max %g", vid.FrameRate, *c.MaxFrameRate), result), nil
		}
	}
	if vid.BitrateKbps > 0 {
		if c.MinBitrateKbps != nil && vid.BitrateKbps < *c.MinBitrateKbps {
			return reject(fmt.Sprintf("Bitrate %d kbps < min %d kbps", vid.BitrateKbps, *c.MinBitrateKbps), result), nil
		}
		if c.MaxBitrateKbps != nil && vid.BitrateKbps > *c.MaxBitrateKbps {
			return reject(fmt.Sprintf("Bitrate %d kbps > max %d kbps", vid.BitrateKbps, *c.MaxBitrateKbps), result), nil
		}
	}
	if vid.FrameCount > 0 {
		if c.MinFrames != nil && vid.FrameCount < *c.MinFrames {
			return reject(fmt.Sprintf("Frame count %d < min %d", vid.FrameCount, *c.MinFrames), result), nil
		}
		if c.MaxFrames != nil && vid.FrameCount > *c.MaxFrames {
			return reject(fmt.Sprintf("Frame count %d > max %d", vid.FrameCount, *c.MaxFrames), result), nil
		}
	}
	if len(c.AllowedCodecs) > 0 && !containsFold(c.AllowedCodecs, vid.Codec) {
		return reject(fmt.Sprintf("Codec %s not allowed", vid.Codec), result), nil
	}
	if len(c.AllowedAspectRatios) > 0 && vid.AspectRatio != "" && !containsFold(c.AllowedAspectRatios, vid.AspectRatio) {
		return reject(fmt.Sprintf("Aspect ratio %s not allowed", vid.AspectRatio), result), nil
	}

	if a := c.Audio; a != nil {
		if len(a.AllowedCodecs) > 0 && vid.AudioCodec != "" && !containsFold(a.AllowedCodecs, vid.AudioCodec) {
			return reject(fmt.Sprintf("Audio codec %s not allowed", vid.AudioCodec), result), nil
		}
		if vid.AudioSampleRateHz > 0 {
			if a.MinSampleRateHz != nil && vid.AudioSampleRateHz < *a.MinSampleRateHz {
				return reject(fmt.Sprintf("Audio sample rate %d Hz < min %d Hz", vid.AudioSampleRateHz, *a.MinSampleRateHz), result), nil
			}
			if a.MaxSampleRateHz != nil && vid.AudioSampleRateHz > *a.MaxSampleRateHz {
				return reject(fmt.Sprintf("Audio sample rate %d Hz > max %d Hz", vid.AudioSampleRateHz, *a.MaxSampleRateHz), result), nil
			}
		}
		if vid.AudioBitrateKbps > 0 {
			if a.MinBitrateKbps != nil && vid.AudioBitrateKbps < *a.MinBitrateKbps {
				return reject(fmt.Sprintf("Audio bitrate %d kbps < min %d kbps", vid.AudioBitrateKbps, *a.MinBitrateKbps), result), nil
			}
			if a.MaxBitrateKbps != nil && vid.AudioBitrateKbps > *a.MaxBitrateKbps {
				return reject(fmt.Sprintf("Audio bitrate %d kbps > max %d kbps", vid.AudioBitrateKbps, *a.MaxBitrateKbps), result), nil
			}
		}
		// a.AllowedChannels is accepted but not enforced.
	}

	return &Verdict{Passed: true, Metadata: result}, nil
}

func (e *Engine) validateAudio(ctx context.Context, path string, c *AudioConstraints) (*Verdict, error) {
	result, err := e.probe.Probe(ctx, path, CategoryAudio)
	if err != nil {
		var perr *ProbeError
		if errors.As(err, &perr) {
			return reject(fmt.Sprintf("Invalid audio file: %s", perr.Cause), nil), nil
		}
		return nil, err
	}
	if result.Audio == nil {
		return reject("No audio stream found", nil), nil
	}

	aud := result.Audio
	if c == nil {
		return &Verdict{Passed: true, Metadata: result}, nil
	}

	if len(c.AllowedCodecs) > 0 && !containsFold(c.AllowedCodecs, aud.Codec) {
		return reject(fmt.Sprintf("Codec %s not allowed", aud.Codec), result), nil
	}
	if c.MinDurationSec != nil && aud.DurationSec < *c.MinDurationSec {
		return reject(fmt.Sprintf("Duration %gs < min %gs", aud.DurationSec, *c.MinDurationSec), result), nil
	}
	if c.MaxDurationSec != nil && aud.DurationSec > *c.MaxDurationSec {
		return reject(fmt.Sprintf("Duration %gs > max %gs", aud.DurationSec, *c.MaxDurationSec), result), nil
	}
	if aud.SampleRateHz > 0 {
		if c.MinSampleRateHz != nil && aud.SampleRateHz < *c.MinSampleRateHz {
			return reject(fmt.Sprintf("Sample rate %d Hz < min %d Hz", aud.SampleRateHz, *c.MinSampleRateHz), result), nil
		}
		if c.MaxSampleRateHz != nil && aud.SampleRateHz > *c.MaxSampleRateHz {
			return reject(fmt.Sprintf("Sample rate %d Hz > max %d Hz", aud.SampleRateHz, *c.MaxSampleRateHz), result), nil
		}
	}
	if aud.BitrateKbps > 0 {
		if c.MinBitrateKbps != nil && aud.BitrateKbps < *c.MinBitrateKbps {
			return reject(fmt.Sprintf("Bitrate %d kbps < min %d kbps", aud.BitrateKbps, *c.MinBitrateKbps), result), nil
		}
		if c.MaxBitrateKbps != nil && aud.BitrateKbps > *c.MaxBitrateKbps {
			return reject(fmt.Sprintf("Bitrate %d kbps > max %d kbps", aud.BitrateKbps, *c.MaxBitrateKbps), result), nil
		}
	}
	// c.AllowedChannels is accepted but not enforced.

	return &Verdict{Passed: true, Metadata: result}, nil
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}
