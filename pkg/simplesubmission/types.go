package simplesubmission

import (
	"time"

	"github.com/google/uuid"
)

// Category is the domain type for the kind of file a form accepts.
type Category string

// Category constants (typed).
const (
	CategoryImage Category = "image"
	CategoryVideo Category = "video"
	CategoryAudio Category = "audio"
	CategoryOther Category = "other"
)

// SubmissionStatus is the domain type for submission lifecycle states.
type SubmissionStatus string

// Submission status constants (typed).
const (
	SubmissionStatusProcessing SubmissionStatus = "processing"
	SubmissionStatusAccepted   SubmissionStatus = "accepted"
	SubmissionStatusRejected   SubmissionStatus = "rejected"
)

// MaxUploadSizeBytes is the system-wide ceiling on MaxSizeBytes (100 MiB).
const MaxUploadSizeBytes int64 = 100 << 20

// ConstraintSpec is the typed representation of a form's file-acceptance
// rules. It travels over the wire as camelCase JSON with exactly one nested
// sub-constraint block semantically active, selected by Category.
type ConstraintSpec struct {
	MinSizeBytes      *int64   `json:"minSizeBytes,omitempty"`
	MaxSizeBytes      *int64   `json:"maxSizeBytes,omitempty"`
	AllowedTypes      []string `json:"allowedTypes,omitempty"`
	AllowedExtensions []string `json:"allowedExtensions,omitempty"`

	// Category is resolved once at form-creation time, never re-inferred
	// during validation.
	Category Category `json:"category,omitempty"`

	Image *ImageConstraints `json:"image,omitempty"`
	Video *VideoConstraints `json:"video,omitempty"`
	Audio *AudioConstraints `json:"audio,omitempty"`
}

// ImageConstraints bound the pixel dimensions of an image submission.
type ImageConstraints struct {
	MinWidth  *int `json:"minWidth,omitempty"`
	MinHeight *int `json:"minHeight,omitempty"`
	MaxWidth  *int `json:"maxWidth,omitempty"`
	MaxHeight *int `json:"maxHeight,omitempty"`
}

// VideoConstraints bound the properties of a video submission, including an
// optional nested block for the video's audio track.
type VideoConstraints struct {
	MinFrameRate        *float64          `json:"minFrameRate,omitempty"`
	MaxFrameRate        *float64          `json:"maxFrameRate,omitempty"`
	MinWidth            *int              `json:"minWidth,omitempty"`
	MinHeight           *int              `json:"minHeight,omitempty"`
	MaxWidth            *int              `json:"maxWidth,omitempty"`
	MaxHeight           *int              `json:"maxHeight,omitempty"`
	MinBitrateKbps      *int              `json:"minBitrateKbps,omitempty"`
	MaxBitrateKbps      *int              `json:"maxBitrateKbps,omitempty"`
	MinDurationSec      *float64          `json:"minDurationSec,omitempty"`
	MaxDurationSec      *float64          `json:"maxDurationSec,omitempty"`
	MinFrames           *int              `json:"minFrames,omitempty"`
	MaxFrames           *int              `json:"maxFrames,omitempty"`
	AllowedCodecs       []string          `json:"allowedCodecs,omitempty"`
	AllowedAspectRatios []string          `json:"allowedAspectRatios,omitempty"`
	Audio               *AudioConstraints `json:"audio,omitempty"`
}

// AudioConstraints bound the properties of an audio submission or of a
// video's audio track.
//
// AllowedChannels is declared for wire compatibility but not enforced.
type AudioConstraints struct {
	MinDurationSec  *float64 `json:"minDurationSec,omitempty"`
	MaxDurationSec  *float64 `json:"maxDurationSec,omitempty"`
	MinSampleRateHz *int     `json:"minSampleRateHz,omitempty"`
	MaxSampleRateHz *int     `json:"maxSampleRateHz,omitempty"`
	MinBitrateKbps  *int     `json:"minBitrateKbps,omitempty"`
	MaxBitrateKbps  *int     `json:"maxBitrateKbps,omitempty"`
	AllowedCodecs   []string `json:"allowedCodecs,omitempty"`
	AllowedChannels []string `json:"allowedChannels,omitempty"`
}

// Form is a named, coded acceptance policy that submissions are validated
// against.
type Form struct {
	ID          uuid.UUID `json:"id"`
	Code        string    `json:"code"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	OwnerID     uuid.UUID `json:"createdBy"`

	Constraints ConstraintSpec `json:"constraints"`

	AllowMultipleSubmissionsPerUser bool `json:"allowMultipleSubmissionsPerUser"`
	MaxSubmissionsPerUser           int  `json:"maxSubmissionsPerUser,omitempty"`

	OpensAt  *time.Time `json:"opensAt,omitempty"`
	ClosesAt *time.Time `json:"closesAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Submission records one accepted upload. StorageKey is the SHA-256 content
// hash joining the submission to its deduplicated stored object; any number
// of submissions may share a key.
type Submission struct {
	ID          uuid.UUID        `json:"id"`
	FormID      uuid.UUID        `json:"formId"`
	SubmittedBy *uuid.UUID       `json:"submittedBy,omitempty"`
	Status      SubmissionStatus `json:"status"`
	FileName    string           `json:"filename"`
	StorageKey  string           `json:"storageKey"`
	SizeBytes   int64            `json:"sizeBytes"`
	MimeType    string           `json:"mimeType"`
	Metadata    *ProbeResult     `json:"metadata,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// ProbeResult is the category-tagged metadata record produced by a media
// probe. Exactly one of Image/Video/Audio is set for the media categories; a
// successful probe of a video file with no video stream leaves Video nil.
type ProbeResult struct {
	Category Category       `json:"category"`
	Image    *ImageMetadata `json:"image,omitempty"`
	Video    *VideoMetadata `json:"video,omitempty"`
	Audio    *AudioMetadata `json:"audio,omitempty"`
}

// ImageMetadata holds structural metadata extracted from an image file.
type ImageMetadata struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format,omitempty"`
}

// VideoMetadata holds structural metadata extracted from a video file.
// Fields that the probe could not determine are left at their zero value and
// skipped during constraint checking.
type VideoMetadata struct {
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	DurationSec       float64 `json:"duration"`
	Codec             string  `json:"codec,omitempty"`
	BitrateKbps       int     `json:"bitRateKbps,omitempty"`
	FrameRate         float64 `json:"frameRate,omitempty"`
	FrameCount        int     `json:"frameCount,omitempty"`
	AspectRatio       string  `json:"aspectRatio,omitempty"`
	AudioCodec        string  `json:"audioCodec,omitempty"`
	AudioSampleRateHz int     `json:"audioSampleRateHz,omitempty"`
	AudioChannels     int     `json:"audioChannels,omitempty"`
	AudioBitrateKbps  int     `json:"audioBitRateKbps,omitempty"`
}

// AudioMetadata holds structural metadata extracted from an audio file.
type AudioMetadata struct {
	Codec         string  `json:"codec,omitempty"`
	SampleRateHz  int     `json:"sampleRateHz,omitempty"`
	Channels      int     `json:"channels,omitempty"`
	ChannelLayout string  `json:"channelLayout,omitempty"`
	DurationSec   float64 `json:"duration"`
	BitrateKbps   int     `json:"bitRateKbps,omitempty"`
}

// Verdict is the outcome of validating one upload against a ConstraintSpec.
// Reasons holds exactly one entry when validation short-circuited on the
// first failing check.
type Verdict struct {
	Passed   bool         `json:"passed"`
	Reasons  []string     `json:"reasons,omitempty"`
	Metadata *ProbeResult `json:"metadata,omitempty"`
}
