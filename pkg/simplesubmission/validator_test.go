package simplesubmission_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-submission/pkg/simplesubmission"
)

func float64Ptr(v float64) *float64 { return &v }

// fakeProbe returns canned results keyed by category.
type fakeProbe struct {
	result *simplesubmission.ProbeResult
	err    error
}

func (p *fakeProbe) Probe(ctx context.Context, path string, category simplesubmission.Category) (*simplesubmission.ProbeResult, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.result, nil
}

func writeTempFile(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upload.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0644))
	return path
}

func TestValidateSizeBounds(t *testing.T) {
	engine := simplesubmission.NewEngine(nil)
	spec := &simplesubmission.ConstraintSpec{
		MinSizeBytes: int64Ptr(100),
		MaxSizeBytes: int64Ptr(200),
	}

	tests := []struct {
		name   string
		size   int
		passed bool
		reason string
	}{
		{"below minimum", 99, false, "File too small (min 100 bytes)"},
		{"at minimum", 100, true, ""},
		{"inside range", 150, true, ""},
		{"at maximum", 200, true, ""},
		{"above maximum", 201, false, "File too large (max 200 bytes)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTempFile(t, tt.size)
			verdict, err := engine.Validate(context.Background(), path, "application/pdf", "doc.pdf", spec)
			require.NoError(t, err)
			assert.Equal(t, tt.passed, verdict.Passed)
			if tt.reason != "" {
				require.Len(t, verdict.Reasons, 1)
				assert.Equal(t, tt.reason, verdict.Reasons[0])
			}
		})
	}
}

func TestValidateAllowAll(t *testing.T) {
	engine := simplesubmission.NewEngine(nil)
	path := writeTempFile(t, 10)

	verdict, err := engine.Validate(context.Background(), path, "application/x-whatever", "anything.xyz", &simplesubmission.ConstraintSpec{})
	require.NoError(t, err)
	assert.True(t, verdict.Passed)
}

func TestValidateTypeAllowLists(t *testing.T) {
	engine := simplesubmission.NewEngine(nil)
	path := writeTempFile(t, 10)

	t.Run("mime type not in list", func(t *testing.T) {
		spec := &simplesubmission.ConstraintSpec{AllowedTypes: []string{"application/pdf"}}
		verdict, err := engine.Validate(context.Background(), path, "image/jpeg", "photo.jpg", spec)
		require.NoError(t, err)
		assert.False(t, verdict.Passed)
		assert.Equal(t, []string{"File type image/jpeg not allowed"}, verdict.Reasons)
	})

	t.Run("unknown mime type display", func(t *testing.T) {
		spec := &simplesubmission.ConstraintSpec{AllowedTypes: []string{"application/pdf"}}
		verdict, err := engine.Validate(context.Background(), path, "", "mystery.bin", spec)
		require.NoError(t, err)
		assert.False(t, verdict.Passed)
		assert.Equal(t, []string{"File type unknown not allowed"}, verdict.Reasons)
	})

	t.Run("extension satisfies when mime does not", func(t *testing.T) {
		spec := &simplesubmission.ConstraintSpec{
			AllowedTypes:      []string{"application/pdf"},
			AllowedExtensions: []string{".csv"},
		}
		verdict, err := engine.Validate(context.Background(), path, "text/plain", "data.CSV", spec)
		require.NoError(t, err)
		assert.True(t, verdict.Passed)
	})

	t.Run("mime satisfies when extension does not", func(t *testing.T) {
		spec := &simplesubmission.ConstraintSpec{
			AllowedTypes:      []string{"application/pdf"},
			AllowedExtensions: []string{".csv"},
		}
		verdict, err := engine.Validate(context.Background(), path, "application/pdf", "report.pdf", spec)
		require.NoError(t, err)
		assert.True(t, verdict.Passed)
	})
}

func TestValidateImage(t *testing.T) {
	path := writeTempFile(t, 10)
	spec := &simplesubmission.ConstraintSpec{
		Image: &simplesubmission.ImageConstraints{
			MinWidth:  intPtr(800),
			MaxHeight: intPtr(1080),
		},
	}

	t.Run("too narrow", func(t *testing.T) {
		engine := simplesubmission.NewEngine(&fakeProbe{result: &simplesubmission.ProbeResult{
			Category: simplesubmission.CategoryImage,
			Image:    &simplesubmission.ImageMetadata{Width: 400, Height: 300, Format: "PNG"},
		}})
		verdict, err := engine.Validate(context.Background(), path, "image/png", "small.png", spec)
		require.NoError(t, err)
		assert.False(t, verdict.Passed)
		assert.Equal(t, []string{"Width 400 < min 800"}, verdict.Reasons)
	})

	t.Run("within bounds keeps metadata", func(t *testing.T) {
		engine := simplesubmission.NewEngine(&fakeProbe{result: &simplesubmission.ProbeResult{
			Category: simplesubmission.CategoryImage,
			Image:    &simplesubmission.ImageMetadata{Width: 1920, Height: 1080, Format: "JPEG"},
		}})
		verdict, err := engine.Validate(context.Background(), path, "image/jpeg", "big.jpg", spec)
		require.NoError(t, err)
		assert.True(t, verdict.Passed)
		require.NotNil(t, verdict.Metadata)
		require.NotNil(t, verdict.Metadata.Image)
		assert.Equal(t, 1920, verdict.Metadata.Image.Width)
	})

	t.Run("corrupt image rejects", func(t *testing.T) {
		engine := simplesubmission.NewEngine(&fakeProbe{err: &simplesubmission.ProbeError{
			Category: simplesubmission.CategoryImage,
			Cause:    "image: unknown format",
		}})
		verdict, err := engine.Validate(context.Background(), path, "image/png", "broken.png", spec)
		require.NoError(t, err)
		assert.False(t, verdict.Passed)
		assert.Equal(t, []string{"Invalid image: image: unknown format"}, verdict.Reasons)
	})
}

func TestValidateVideo(t *testing.T) {
	path := writeTempFile(t, 10)

	makeEngine := func(meta *simplesubmission.VideoMetadata) *simplesubmission.Engine {
		return simplesubmission.NewEngine(&fakeProbe{result: &simplesubmission.ProbeResult{
			Category: simplesubmission.CategoryVideo,
			Video:    meta,
		}})
	}

	spec := &simplesubmission.ConstraintSpec{
		Video: &simplesubmission.VideoConstraints{
			MinWidth:       intPtr(1280),
			MinHeight:      intPtr(720),
			MaxDurationSec: float64Ptr(60),
			AllowedCodecs:  []string{"h264", "hevc"},
		},
	}

	t.Run("accepts compliant video", func(t *testing.T) {
		engine := makeEngine(&simplesubmission.VideoMetadata{
			Width: 1920, Height: 1080, DurationSec: 30, Codec: "h264",
		})
		verdict, err := engine.Validate(context.Background(), path, "video/mp4", "clip.mp4", spec)
		require.NoError(t, err)
		assert.True(t, verdict.Passed)
	})

	t.Run("dimension check precedes duration", func(t *testing.T) {
		engine := makeEngine(&simplesubmission.VideoMetadata{
			Width: 640, Height: 480, DurationSec: 120, Codec: "h264",
		})
		verdict, err := engine.Validate(context.Background(), path, "video/mp4", "clip.mp4", spec)
		require.NoError(t, err)
		assert.False(t, verdict.Passed)
		assert.Equal(t, []string{"Width 640 < min 1280"}, verdict.Reasons)
	})

	t.Run("too long", func(t *testing.T) {
		engine := makeEngine(&simplesubmission.VideoMetadata{
			Width: 1920, Height: 1080, DurationSec: 61.5, Codec: "h264",
		})
		verdict, err := engine.Validate(context.Background(), path, "video/mp4", "clip.mp4", spec)
		require.NoError(t, err)
		assert.False(t, verdict.Passed)
		assert.Equal(t, []string{"Duration 61.5s > max 60s"}, verdict.Reasons)
	})

	t.Run("disallowed codec", func(t *testing.T) {
		engine := makeEngine(&simplesubmission.VideoMetadata{
			Width: 1920, Height: 1080, DurationSec: 30, Codec: "vp9",
		})
		verdict, err := engine.Validate(context.Background(), path, "video/webm", "clip.webm", spec)
		require.NoError(t, err)
		assert.False(t, verdict.Passed)
		assert.Equal(t, []string{"Codec vp9 not allowed"}, verdict.Reasons)
	})

	t.Run("codec comparison is case-insensitive", func(t *testing.T) {
		engine := makeEngine(&simplesubmission.VideoMetadata{
			Width: 1920, Height: 1080, DurationSec: 30, Codec: "H264",
		})
		verdict, err := engine.Validate(context.Background(), path, "video/mp4", "clip.mp4", spec)
		require.NoError(t, err)
		assert.True(t, verdict.Passed)
	})

	t.Run("no video stream", func(t *testing.T) {
		engine := simplesubmission.NewEngine(&fakeProbe{result: &simplesubmission.ProbeResult{
			Category: simplesubmission.CategoryVideo,
		}})
		verdict, err := engine.Validate(context.Background(), path, "video/mp4", "audio-only.mp4", spec)
		require.NoError(t, err)
		assert.False(t, verdict.Passed)
		assert.Equal(t, []string{"No video stream found"}, verdict.Reasons)
	})

	t.Run("unparseable file", func(t *testing.T) {
		engine := simplesubmission.NewEngine(&fakeProbe{err: &simplesubmission.ProbeError{
			Category: simplesubmission.CategoryVideo,
			Cause:    "moov atom not found",
		}})
		verdict, err := engine.Validate(context.Background(), path, "video/mp4", "broken.mp4", spec)
		require.NoError(t, err)
		assert.False(t, verdict.Passed)
		assert.Equal(t, []string{"Invalid video file: moov atom not found"}, verdict.Reasons)
	})

	t.Run("probe launch failure propagates", func(t *testing.T) {
		launchErr := errors.New("exec: ffprobe: not found")
		engine := simplesubmission.NewEngine(&fakeProbe{err: launchErr})
		verdict, err := engine.Validate(context.Background(), path, "video/mp4", "clip.mp4", spec)
		assert.Nil(t, verdict)
		assert.ErrorIs(t, err, launchErr)
	})

	t.Run("zero frame rate is skipped", func(t *testing.T) {
		frSpec := &simplesubmission.ConstraintSpec{
			Video: &simplesubmission.VideoConstraints{MinFrameRate: float64Ptr(24)},
		}
		engine := makeEngine(&simplesubmission.VideoMetadata{
			Width: 1920, Height: 1080, DurationSec: 30, FrameRate: 0,
		})
		verdict, err := engine.Validate(context.Background(), path, "video/mp4", "clip.mp4", frSpec)
		require.NoError(t, err)
		assert.True(t, verdict.Passed)
	})

	t.Run("nested audio constraints", func(t *testing.T) {
		audioSpec := &simplesubmission.ConstraintSpec{
			Video: &simplesubmission.VideoConstraints{
				Audio: &simplesubmission.AudioConstraints{
					AllowedCodecs:   []string{"aac"},
					MinSampleRateHz: intPtr(44100),
				},
			},
		}
		engine := makeEngine(&simplesubmission.VideoMetadata{
			Width: 1920, Height: 1080, DurationSec: 30,
			AudioCodec: "mp3", AudioSampleRateHz: 48000,
		})
		verdict, err := engine.Validate(context.Background(), path, "video/mp4", "clip.mp4", audioSpec)
		require.NoError(t, err)
		assert.False(t, verdict.Passed)
		assert.Equal(t, []string{"Audio codec mp3 not allowed"}, verdict.Reasons)
	})
}

func TestValidateAudio(t *testing.T) {
	path := writeTempFile(t, 10)
	spec := &simplesubmission.ConstraintSpec{
		Audio: &simplesubmission.AudioConstraints{
			AllowedCodecs:  []string{"mp3", "aac"},
			MaxDurationSec: float64Ptr(300),
		},
	}

	t.Run("accepts compliant audio", func(t *testing.T) {
		engine := simplesubmission.NewEngine(&fakeProbe{result: &simplesubmission.ProbeResult{
			Category: simplesubmission.CategoryAudio,
			Audio:    &simplesubmission.AudioMetadata{Codec: "mp3", DurationSec: 180},
		}})
		verdict, err := engine.Validate(context.Background(), path, "audio/mpeg", "track.mp3", spec)
		require.NoError(t, err)
		assert.True(t, verdict.Passed)
	})

	t.Run("too long", func(t *testing.T) {
		engine := simplesubmission.NewEngine(&fakeProbe{result: &simplesubmission.ProbeResult{
			Category: simplesubmission.CategoryAudio,
			Audio:    &simplesubmission.AudioMetadata{Codec: "mp3", DurationSec: 301},
		}})
		verdict, err := engine.Validate(context.Background(), path, "audio/mpeg", "track.mp3", spec)
		require.NoError(t, err)
		assert.False(t, verdict.Passed)
		assert.Equal(t, []string{"Duration 301s > max 300s"}, verdict.Reasons)
	})

	t.Run("no audio stream", func(t *testing.T) {
		engine := simplesubmission.NewEngine(&fakeProbe{result: &simplesubmission.ProbeResult{
			Category: simplesubmission.CategoryAudio,
		}})
		verdict, err := engine.Validate(context.Background(), path, "audio/mpeg", "silent.mp3", spec)
		require.NoError(t, err)
		assert.False(t, verdict.Passed)
		assert.Equal(t, []string{"No audio stream found"}, verdict.Reasons)
	})
}

func TestValidateNoopProbeRejectsMedia(t *testing.T) {
	engine := simplesubmission.NewEngine(nil)
	path := writeTempFile(t, 10)

	verdict, err := engine.Validate(context.Background(), path, "video/mp4", "clip.mp4", &simplesubmission.ConstraintSpec{})
	require.NoError(t, err)
	assert.False(t, verdict.Passed)
	require.Len(t, verdict.Reasons, 1)
	assert.Contains(t, verdict.Reasons[0], "Invalid video file")
}
