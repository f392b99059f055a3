// Package probe provides media probers for the simplesubmission validation
// engine: an ffprobe-backed prober for video and audio, and stdlib image
// decoding for image dimensions.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"math"
	"os"
	"strconv"
	"strings"

	execute "github.com/alexellis/go-execute/v2"

	"github.com/tendant/simple-submission/pkg/simplesubmission"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// FFProbe probes media files by invoking the ffprobe binary once per call.
// A non-zero exit maps to a *simplesubmission.ProbeError (the file is the
// problem); a launch failure propagates as a real error. No retries.
type FFProbe struct {
	binPath string
}

// Option configures an FFProbe.
type Option func(*FFProbe)

// WithBinary overrides the ffprobe binary path (default "ffprobe").
func WithBinary(path string) Option {
	return func(p *FFProbe) {
		p.binPath = path
	}
}

// New creates an ffprobe-backed media prober.
func New(opts ...Option) *FFProbe {
	p := &FFProbe{binPath: "ffprobe"}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ffprobeOutput mirrors the subset of `ffprobe -print_format json` consumed
// here. Numeric fields arrive as strings.
type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

type ffprobeStream struct {
	CodecType          string `json:"codec_type"`
	CodecName          string `json:"codec_name"`
	Width              int    `json:"width"`
	Height             int    `json:"height"`
	BitRate            string `json:"bit_rate"`
	RFrameRate         string `json:"r_frame_rate"`
	AvgFrameRate       string `json:"avg_frame_rate"`
	NbFrames           string `json:"nb_frames"`
	SampleRate         string `json:"sample_rate"`
	Channels           int    `json:"channels"`
	ChannelLayout      string `json:"channel_layout"`
	DisplayAspectRatio string `json:"display_aspect_ratio"`
	Duration           string `json:"duration"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
	BitRate  string `json:"bit_rate"`
}

// Probe extracts structural metadata from the file at path for the given
// category.
func (p *FFProbe) Probe(ctx context.Context, path string, category simplesubmission.Category) (*simplesubmission.ProbeResult, error) {
	switch category {
	case simplesubmission.CategoryImage:
		return probeImage(path)
	case simplesubmission.CategoryVideo, simplesubmission.CategoryAudio:
		out, err := p.run(ctx, path, category)
		if err != nil {
			return nil, err
		}
		if category == simplesubmission.CategoryVideo {
			return buildVideoResult(out), nil
		}
		return buildAudioResult(out), nil
	default:
		return &simplesubmission.ProbeResult{Category: simplesubmission.CategoryOther}, nil
	}
}

func (p *FFProbe) run(ctx context.Context, path string, category simplesubmission.Category) (*ffprobeOutput, error) {
	task := execute.ExecTask{
		Command: p.binPath,
		Args: []string{
			"-v", "error",
			"-print_format", "json",
			"-show_format",
			"-show_streams",
			path,
		},
		StreamStdio: false,
	}

	result, err := task.Execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to launch %s: %w", p.binPath, err)
	}
	if result.ExitCode != 0 {
		cause := strings.TrimSpace(result.Stderr)
		if cause == "" {
			cause = fmt.Sprintf("ffprobe exited with code %d", result.ExitCode)
		}
		return nil, &simplesubmission.ProbeError{Category: category, Cause: cause}
	}

	var out ffprobeOutput
	if err := json.Unmarshal([]byte(result.Stdout), &out); err != nil {
		return nil, &simplesubmission.ProbeError{Category: category, Cause: fmt.Sprintf("unparseable ffprobe output: %v", err)}
	}
	return &out, nil
}

func buildVideoResult(out *ffprobeOutput) *simplesubmission.ProbeResult {
	result := &simplesubmission.ProbeResult{Category: simplesubmission.CategoryVideo}

	video := findStream(out.Streams, "video")
	if video == nil {
		return result
	}

	meta := &simplesubmission.VideoMetadata{
		Width:       video.Width,
		Height:      video.Height,
		Codec:       video.CodecName,
		DurationSec: parseFloat(out.Format.Duration),
		FrameRate:   parseFrameRate(video.RFrameRate),
		FrameCount:  int(parseFloat(video.NbFrames)),
		AspectRatio: video.DisplayAspectRatio,
		BitrateKbps: parseBitrateKbps(video.BitRate, out.Format.BitRate),
	}
	if meta.FrameRate == 0 {
		meta.FrameRate = parseFrameRate(video.AvgFrameRate)
	}

	if audio := findStream(out.Streams, "audio"); audio != nil {
		meta.AudioCodec = audio.CodecName
		meta.AudioSampleRateHz = int(parseFloat(audio.SampleRate))
		meta.AudioChannels = audio.Channels
		meta.AudioBitrateKbps = parseBitrateKbps(audio.BitRate, "")
	}

	result.Video = meta
	return result
}

func buildAudioResult(out *ffprobeOutput) *simplesubmission.ProbeResult {
	result := &simplesubmission.ProbeResult{Category: simplesubmission.CategoryAudio}

	audio := findStream(out.Streams, "audio")
	if audio == nil {
		return result
	}

	duration := parseFloat(out.Format.Duration)
	if duration == 0 {
		duration = parseFloat(audio.Duration)
	}

	result.Audio = &simplesubmission.AudioMetadata{
		Codec:         audio.CodecName,
		SampleRateHz:  int(parseFloat(audio.SampleRate)),
		Channels:      audio.Channels,
		ChannelLayout: audio.ChannelLayout,
		DurationSec:   duration,
		BitrateKbps:   parseBitrateKbps(audio.BitRate, out.Format.BitRate),
	}
	return result
}

func findStream(streams []ffprobeStream, codecType string) *ffprobeStream {
	for i := range streams {
		if streams[i].CodecType == codecType {
			return &streams[i]
		}
	}
	return nil
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// parseFrameRate parses ffprobe's rational notation (e.g. "30000/1001").
func parseFrameRate(s string) float64 {
	num, den, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return parseFloat(s)
	}
	n := parseFloat(num)
	d := parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}

// parseBitrateKbps converts ffprobe's bits-per-second strings to kbps,
// falling back to the container-level rate when the stream lacks one.
func parseBitrateKbps(streamRate, formatRate string) int {
	bps := parseFloat(streamRate)
	if bps == 0 {
		bps = parseFloat(formatRate)
	}
	return int(bps / 1000)
}

func probeImage(path string) (*simplesubmission.ProbeResult, error) {
	cfg, format, err := decodeImageConfig(path)
	if err != nil {
		return nil, &simplesubmission.ProbeError{Category: simplesubmission.CategoryImage, Cause: err.Error()}
	}
	return &simplesubmission.ProbeResult{
		Category: simplesubmission.CategoryImage,
		Image: &simplesubmission.ImageMetadata{
			Width:  cfg.Width,
			Height: cfg.Height,
			Format: strings.ToUpper(format),
		},
	}, nil
}

func decodeImageConfig(path string) (image.Config, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Config{}, "", err
	}
	defer f.Close()
	return image.DecodeConfig(f)
}
