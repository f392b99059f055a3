package simplesubmission

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Service defines the main interface for the simple-submission library
type Service interface {
	// Form operations
	CreateForm(ctx context.Context, req CreateFormRequest) (*Form, error)
	GetForm(ctx context.Context, id uuid.UUID) (*Form, error)
	GetFormByCode(ctx context.Context, code string) (*Form, error)
	ListForms(ctx context.Context, ownerID uuid.UUID) ([]*Form, error)
	UpdateForm(ctx context.Context, req UpdateFormRequest) (*Form, error)
	DeleteForm(ctx context.Context, id uuid.UUID) error

	// ResolveCode checks whether the coded form currently accepts
	// submissions (existence plus open/close window).
	ResolveCode(ctx context.Context, code string) (*CodeStatus, error)

	// Submission operations
	Submit(ctx context.Context, req SubmitRequest) (*UploadResult, error)
	GetSubmission(ctx context.Context, id uuid.UUID) (*Submission, error)
	ListFormSubmissions(ctx context.Context, formID uuid.UUID) ([]*Submission, error)
	ListUserSubmissions(ctx context.Context, submitterID uuid.UUID) ([]*Submission, error)
	DeleteSubmission(ctx context.Context, id uuid.UUID) error

	// OpenSubmission returns the stored file bytes for a submission.
	OpenSubmission(ctx context.Context, id uuid.UUID) (io.ReadCloser, *Submission, error)
}
