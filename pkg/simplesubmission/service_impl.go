package simplesubmission

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// service implements the Service interface
type service struct {
	repository Repository
	store      *Store
	engine     *Engine
	probe      MediaProbe
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore sets the blob storage backend used for content-addressed
// persistence
func WithBlobStore(backend BlobStore) Option {
	return func(s *service) {
		s.store = NewStore(backend)
	}
}

// WithProbe sets the media probe used for image/video/audio inspection
func WithProbe(probe MediaProbe) Option {
	return func(s *service) {
		s.probe = probe
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.store == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	s.engine = NewEngine(s.probe)

	return s, nil
}

// Form operations

func (s *service) CreateForm(ctx context.Context, req CreateFormRequest) (*Form, error) {
	constraints := req.Constraints
	constraints.Normalize()
	if err := constraints.Validate(); err != nil {
		return nil, fmt.Errorf("invalid constraints: %w", err)
	}

	code := strings.ToLower(req.Code)
	if code == "" {
		code = generateCode()
	}

	now := time.Now().UTC()
	form := &Form{
		ID:          uuid.New(),
		Code:        code,
		Title:       req.Title,
		Description: req.Description,
		OwnerID:     req.OwnerID,
		Constraints: constraints,

		AllowMultipleSubmissionsPerUser: req.AllowMultipleSubmissionsPerUser,
		MaxSubmissionsPerUser:           req.MaxSubmissionsPerUser,

		OpensAt:  req.OpensAt,
		ClosesAt: req.ClosesAt,

		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repository.CreateForm(ctx, form); err != nil {
		return nil, err
	}
	return form, nil
}

func (s *service) GetForm(ctx context.Context, id uuid.UUID) (*Form, error) {
	return s.repository.GetForm(ctx, id)
}

func (s *service) GetFormByCode(ctx context.Context, code string) (*Form, error) {
	return s.repository.GetFormByCode(ctx, strings.ToLower(code))
}

func (s *service) ListForms(ctx context.Context, ownerID uuid.UUID) ([]*Form, error) {
	return s.repository.ListFormsByOwner(ctx, ownerID)
}

func (s *service) UpdateForm(ctx context.Context, req UpdateFormRequest) (*Form, error) {
	form, err := s.repository.GetForm(ctx, req.FormID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		form.Title = *req.Title
	}
	if req.Description != nil {
		form.Description = *req.Description
	}
	if req.Code != nil {
		form.Code = strings.ToLower(*req.Code)
	}
	if req.AllowMultipleSubmissionsPerUser != nil {
		form.AllowMultipleSubmissionsPerUser = *req.AllowMultipleSubmissionsPerUser
	}
	if req.MaxSubmissionsPerUser != nil {
		form.MaxSubmissionsPerUser = *req.MaxSubmissionsPerUser
	}
	if req.OpensAt != nil {
		form.OpensAt = req.OpensAt
	}
	if req.ClosesAt != nil {
		form.ClosesAt = req.ClosesAt
	}
	if req.Constraints != nil {
		constraints := *req.Constraints
		constraints.Normalize()
		if err := constraints.Validate(); err != nil {
			return nil, fmt.Errorf("invalid constraints: %w", err)
		}
		form.Constraints = constraints
	}
	form.UpdatedAt = time.Now().UTC()

	if err := s.repository.UpdateForm(ctx, form); err != nil {
		return nil, err
	}
	return form, nil
}

func (s *service) DeleteForm(ctx context.Context, id uuid.UUID) error {
	submissions, err := s.repository.ListSubmissionsByForm(ctx, id)
	if err != nil {
		return err
	}

	// Remove the form and its submission rows first; stored bytes are only
	// reclaimed once the database no longer references them. A crash between
	// the two steps leaks storage but never corrupts references.
	if err := s.repository.DeleteForm(ctx, id); err != nil {
		return err
	}

	seen := make(map[string]struct{})
	for _, sub := range submissions {
		if _, ok := seen[sub.StorageKey]; ok {
			continue
		}
		seen[sub.StorageKey] = struct{}{}
		s.reclaimStorageKey(ctx, sub.StorageKey)
	}
	return nil
}

func (s *service) ResolveCode(ctx context.Context, code string) (*CodeStatus, error) {
	form, err := s.repository.GetFormByCode(ctx, strings.ToLower(code))
	if err != nil {
		return nil, err
	}
	if reason := submissionWindowError(form, time.Now().UTC()); reason != nil {
		return &CodeStatus{OK: false, Reason: reason.Error(), Form: form}, nil
	}
	return &CodeStatus{OK: true, Form: form}, nil
}

// Submission operations

func (s *service) Submit(ctx context.Context, req SubmitRequest) (*UploadResult, error) {
	form, err := s.repository.GetForm(ctx, req.FormID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := submissionWindowError(form, now); err != nil {
		return nil, err
	}
	if err := s.checkSubmissionLimit(ctx, form, req.SubmittedBy); err != nil {
		return nil, err
	}

	// Stage the upload so it can be hashed and probed from a local path.
	staged, size, err := stageUpload(req.Reader)
	if err != nil {
		return nil, err
	}
	defer os.Remove(staged)

	key, isNew, err := s.store.PutFile(ctx, staged)
	if err != nil {
		return nil, err
	}

	verdict, err := s.engine.Validate(ctx, staged, req.MimeType, req.FileName, &form.Constraints)
	if err != nil {
		s.purgeIfNew(ctx, key, isNew)
		return nil, err
	}

	if !verdict.Passed {
		// Purge freshly-written bytes nobody references; deduplicated
		// content stays because an earlier submission still points at it.
		s.purgeIfNew(ctx, key, isNew)
		return &UploadResult{OK: false, Errors: verdict.Reasons}, nil
	}

	submission := &Submission{
		ID:          uuid.New(),
		FormID:      form.ID,
		SubmittedBy: req.SubmittedBy,
		Status:      SubmissionStatusAccepted,
		FileName:    sanitizeFileName(req.FileName),
		StorageKey:  key,
		SizeBytes:   size,
		MimeType:    req.MimeType,
		Metadata:    verdict.Metadata,
		CreatedAt:   now,
	}
	if err := s.repository.CreateSubmission(ctx, submission); err != nil {
		s.purgeIfNew(ctx, key, isNew)
		return nil, err
	}

	return &UploadResult{OK: true, Submission: submission}, nil
}

func (s *service) GetSubmission(ctx context.Context, id uuid.UUID) (*Submission, error) {
	return s.repository.GetSubmission(ctx, id)
}

func (s *service) ListFormSubmissions(ctx context.Context, formID uuid.UUID) ([]*Submission, error) {
	if _, err := s.repository.GetForm(ctx, formID); err != nil {
		return nil, err
	}
	return s.repository.ListSubmissionsByForm(ctx, formID)
}

func (s *service) ListUserSubmissions(ctx context.Context, submitterID uuid.UUID) ([]*Submission, error) {
	return s.repository.ListSubmissionsBySubmitter(ctx, submitterID)
}

func (s *service) DeleteSubmission(ctx context.Context, id uuid.UUID) error {
	submission, err := s.repository.GetSubmission(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repository.DeleteSubmission(ctx, id); err != nil {
		return err
	}

	s.reclaimStorageKey(ctx, submission.StorageKey)
	return nil
}

func (s *service) OpenSubmission(ctx context.Context, id uuid.UUID) (io.ReadCloser, *Submission, error) {
	submission, err := s.repository.GetSubmission(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.store.Open(ctx, submission.StorageKey)
	if err != nil {
		return nil, nil, err
	}
	return rc, submission, nil
}

// reclaimStorageKey deletes the stored object when no submission references
// it anymore. The count is recomputed after the row removal committed, so a
// concurrent upload that re-references the key keeps it alive. Failures are
// logged, not returned: the rows are gone and a leaked object is recoverable.
func (s *service) reclaimStorageKey(ctx context.Context, key string) {
	count, err := s.repository.CountSubmissionsByStorageKey(ctx, key)
	if err != nil {
		slog.Error("failed to count storage key references", "key", key, "error", err)
		return
	}
	if count > 0 {
		return
	}
	if err := s.store.Delete(ctx, key); err != nil {
		slog.Error("failed to delete unreferenced object", "key", key, "error", err)
	}
}

// purgeIfNew removes bytes that were first written by the current request.
func (s *service) purgeIfNew(ctx context.Context, key string, isNew bool) {
	if !isNew {
		return
	}
	if err := s.store.Delete(ctx, key); err != nil {
		slog.Error("failed to purge rejected upload", "key", key, "error", err)
	}
}

func (s *service) checkSubmissionLimit(ctx context.Context, form *Form, submitterID *uuid.UUID) error {
	if submitterID == nil {
		return nil
	}
	count, err := s.repository.CountSubmissionsByFormAndSubmitter(ctx, form.ID, *submitterID)
	if err != nil {
		return err
	}
	if !form.AllowMultipleSubmissionsPerUser && count >= 1 {
		return ErrSubmissionLimitReached
	}
	if form.MaxSubmissionsPerUser > 0 && count >= form.MaxSubmissionsPerUser {
		return ErrSubmissionLimitReached
	}
	return nil
}

// submissionWindowError returns the window violation for the form at the
// given time, or nil when submissions are open.
func submissionWindowError(form *Form, now time.Time) error {
	if form.OpensAt != nil && now.Before(*form.OpensAt) {
		return ErrFormNotOpen
	}
	if form.ClosesAt != nil && now.After(*form.ClosesAt) {
		return ErrFormClosed
	}
	return nil
}

// stageUpload copies the upload to a temporary file and returns its path and
// size. The caller removes the file when done.
func stageUpload(r io.Reader) (string, int64, error) {
	tmp, err := os.CreateTemp("", "simplesubmission-upload-*")
	if err != nil {
		return "", 0, &StorageError{Op: "stage", Err: err}
	}
	defer tmp.Close()

	buf := make([]byte, hashChunkSize)
	size, err := io.CopyBuffer(tmp, r, buf)
	if err != nil {
		os.Remove(tmp.Name())
		return "", 0, &StorageError{Op: "stage", Err: err}
	}
	return tmp.Name(), size, nil
}

// sanitizeFileName keeps only the base name of the client-supplied filename.
func sanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	return strings.TrimSpace(name)
}

// generateCode produces a short lowercase share code.
func generateCode() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:6]
}
