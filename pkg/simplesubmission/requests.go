package simplesubmission

import (
	"io"
	"time"

	"github.com/google/uuid"
)

// Request/Response DTOs

// CreateFormRequest contains parameters for creating a new form. Code is
// optional; a random six-character code is generated when empty.
type CreateFormRequest struct {
	OwnerID     uuid.UUID
	Title       string
	Description string
	Code        string

	Constraints ConstraintSpec

	AllowMultipleSubmissionsPerUser bool
	MaxSubmissionsPerUser           int

	OpensAt  *time.Time
	ClosesAt *time.Time
}

// UpdateFormRequest contains parameters for updating a form. Nil fields are
// left unchanged; a non-nil Constraints replaces the whole constraint set.
type UpdateFormRequest struct {
	FormID uuid.UUID

	Title       *string
	Description *string
	Code        *string

	Constraints *ConstraintSpec

	AllowMultipleSubmissionsPerUser *bool
	MaxSubmissionsPerUser           *int

	OpensAt  *time.Time
	ClosesAt *time.Time
}

// SubmitRequest contains parameters for submitting a file to a form.
type SubmitRequest struct {
	FormID      uuid.UUID
	SubmittedBy *uuid.UUID
	FileName    string
	MimeType    string
	Reader      io.Reader
}

// UploadResult is the outcome of a submission attempt. A rejected upload has
// OK false and the violated constraints in Errors; it is not an error.
type UploadResult struct {
	OK         bool        `json:"ok"`
	Submission *Submission `json:"submission,omitempty"`
	Errors     []string    `json:"errors,omitempty"`
}

// CodeStatus reports whether a form code currently accepts submissions.
type CodeStatus struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
	Form   *Form  `json:"form,omitempty"`
}
