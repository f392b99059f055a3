package simplesubmission

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrFormNotFound indicates a form was not found
	ErrFormNotFound = errors.New("form not found")

	// ErrSubmissionNotFound indicates a submission was not found
	ErrSubmissionNotFound = errors.New("submission not found")

	// ErrObjectNotFound indicates a stored object was not found
	ErrObjectNotFound = errors.New("object not found")

	// ErrDuplicateCode indicates a form code is already taken
	ErrDuplicateCode = errors.New("form code already in use")

	// ErrFormNotOpen indicates the form's submission window has not opened
	ErrFormNotOpen = errors.New("submissions not open yet")

	// ErrFormClosed indicates the form's submission window has closed
	ErrFormClosed = errors.New("submissions closed")

	// ErrSubmissionLimitReached indicates the submitter hit the form's
	// per-user submission limit
	ErrSubmissionLimitReached = errors.New("submission limit reached")
)

// StorageError represents an error related to blob storage operations
type StorageError struct {
	Key string
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ProbeError indicates the media probe could not parse or open a file. It is
// a constraint-level failure: the validation engine maps it to a rejection
// reason rather than propagating it.
type ProbeError struct {
	Category Category
	Cause    string
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe failed for %s file: %s", e.Category, e.Cause)
}
