package simplesubmission

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// BlobStore defines the interface for storage backends. Object keys are
// content hashes, so an Upload that races another Upload of the same key is
// idempotent by construction.
type BlobStore interface {
	// Upload writes content under the given key
	Upload(ctx context.Context, objectKey string, reader io.Reader) error

	// Download returns a reader for the content at the given key
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Delete removes the content at the given key. Returns ErrObjectNotFound
	// when no object exists at the key.
	Delete(ctx context.Context, objectKey string) error

	// Exists reports whether an object exists at the given key
	Exists(ctx context.Context, objectKey string) (bool, error)

	// GetObjectMeta retrieves metadata for a stored object
	GetObjectMeta(ctx context.Context, objectKey string) (*ObjectMeta, error)
}

// Repository defines the interface for form and submission persistence
type Repository interface {
	// Form operations
	CreateForm(ctx context.Context, form *Form) error
	GetForm(ctx context.Context, id uuid.UUID) (*Form, error)
	GetFormByCode(ctx context.Context, code string) (*Form, error)
	ListFormsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Form, error)
	UpdateForm(ctx context.Context, form *Form) error
	// DeleteForm removes the form and all of its submission rows.
	DeleteForm(ctx context.Context, id uuid.UUID) error

	// Submission operations
	CreateSubmission(ctx context.Context, submission *Submission) error
	GetSubmission(ctx context.Context, id uuid.UUID) (*Submission, error)
	ListSubmissionsByForm(ctx context.Context, formID uuid.UUID) ([]*Submission, error)
	ListSubmissionsBySubmitter(ctx context.Context, submitterID uuid.UUID) ([]*Submission, error)
	CountSubmissionsByFormAndSubmitter(ctx context.Context, formID, submitterID uuid.UUID) (int, error)
	DeleteSubmission(ctx context.Context, id uuid.UUID) error

	// CountSubmissionsByStorageKey returns the number of submissions across
	// all forms referencing the given content hash. Deletion of stored bytes
	// is gated on this count reaching zero.
	CountSubmissionsByStorageKey(ctx context.Context, storageKey string) (int, error)
}

// MediaProbe extracts structural metadata from a media file. A *ProbeError
// return means the file itself could not be parsed; any other error is an
// infrastructure failure (e.g. the probe binary could not be launched).
// Probing is one-shot: implementations must not retry.
type MediaProbe interface {
	Probe(ctx context.Context, path string, category Category) (*ProbeResult, error)
}

// ObjectMeta contains metadata about an object in storage
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
	Metadata    map[string]string
}
