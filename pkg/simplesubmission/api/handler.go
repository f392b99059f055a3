// Package api exposes the submission service over HTTP using chi.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/tendant/simple-submission/pkg/simplesubmission"
)

// Handler handles HTTP requests for forms and submissions
type Handler struct {
	service simplesubmission.Service
}

// NewHandler creates a new submission API handler
func NewHandler(service simplesubmission.Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the routes for the submission API
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/forms", func(r chi.Router) {
		r.Post("/", h.CreateForm)
		r.Get("/", h.ListForms)
		r.Get("/code/{code}", h.GetFormByCode)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetForm)
			r.Put("/", h.UpdateForm)
			r.Delete("/", h.DeleteForm)
			r.Get("/submissions", h.ListFormSubmissions)
		})
	})

	r.Route("/submit/{code}", func(r chi.Router) {
		r.Post("/", h.Submit)
		r.Get("/validate", h.ValidateCode)
	})

	r.Route("/submissions/{id}", func(r chi.Router) {
		r.Get("/", h.GetSubmission)
		r.Delete("/", h.DeleteSubmission)
		r.Get("/download", h.DownloadSubmission)
	})

	r.Get("/me/submissions", h.ListMySubmissions)

	return r
}

// CreateFormRequest is the request body for creating a form
type CreateFormRequest struct {
	Title       string                        `json:"title"`
	Description string                        `json:"description,omitempty"`
	Code        string                        `json:"code,omitempty"`
	CreatedBy   string                        `json:"createdBy"`
	Constraints simplesubmission.ConstraintSpec `json:"constraints"`

	AllowMultipleSubmissionsPerUser bool `json:"allowMultipleSubmissionsPerUser,omitempty"`
	MaxSubmissionsPerUser           int  `json:"maxSubmissionsPerUser,omitempty"`

	OpensAt  *time.Time `json:"opensAt,omitempty"`
	ClosesAt *time.Time `json:"closesAt,omitempty"`
}

// UpdateFormRequest is the request body for updating a form. Absent fields
// are left unchanged.
type UpdateFormRequest struct {
	Title       *string                          `json:"title,omitempty"`
	Description *string                          `json:"description,omitempty"`
	Code        *string                          `json:"code,omitempty"`
	Constraints *simplesubmission.ConstraintSpec `json:"constraints,omitempty"`

	AllowMultipleSubmissionsPerUser *bool `json:"allowMultipleSubmissionsPerUser,omitempty"`
	MaxSubmissionsPerUser           *int  `json:"maxSubmissionsPerUser,omitempty"`

	OpensAt  *time.Time `json:"opensAt,omitempty"`
	ClosesAt *time.Time `json:"closesAt,omitempty"`
}

// CreateForm creates a new form
func (h *Handler) CreateForm(w http.ResponseWriter, r *http.Request) {
	var req CreateFormRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ownerID, err := uuid.Parse(req.CreatedBy)
	if err != nil {
		slog.Error("Invalid owner ID", "created_by", req.CreatedBy, "error", err)
		http.Error(w, "Invalid owner ID", http.StatusBadRequest)
		return
	}

	form, err := h.service.CreateForm(r.Context(), simplesubmission.CreateFormRequest{
		OwnerID:     ownerID,
		Title:       req.Title,
		Description: req.Description,
		Code:        req.Code,
		Constraints: req.Constraints,

		AllowMultipleSubmissionsPerUser: req.AllowMultipleSubmissionsPerUser,
		MaxSubmissionsPerUser:           req.MaxSubmissionsPerUser,

		OpensAt:  req.OpensAt,
		ClosesAt: req.ClosesAt,
	})
	if err != nil {
		if errors.Is(err, simplesubmission.ErrDuplicateCode) {
			http.Error(w, "Form code already in use", http.StatusConflict)
			return
		}
		slog.Error("Failed to create form", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	slog.Info("Form created", "form_id", form.ID.String(), "code", form.Code)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, form)
}

// GetForm retrieves a form by ID
func (h *Handler) GetForm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "Invalid form ID")
	if !ok {
		return
	}

	form, err := h.service.GetForm(r.Context(), id)
	if err != nil {
		h.renderFormError(w, r, id.String(), err)
		return
	}

	render.JSON(w, r, form)
}

// GetFormByCode retrieves a form by its short code
func (h *Handler) GetFormByCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	form, err := h.service.GetFormByCode(r.Context(), code)
	if err != nil {
		h.renderFormError(w, r, code, err)
		return
	}

	render.JSON(w, r, form)
}

// ListForms lists forms owned by the requesting user
func (h *Handler) ListForms(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	forms, err := h.service.ListForms(r.Context(), ownerID)
	if err != nil {
		slog.Error("Failed to list forms", "owner_id", ownerID.String(), "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if forms == nil {
		forms = []*simplesubmission.Form{}
	}

	render.JSON(w, r, forms)
}

// UpdateForm updates an existing form
func (h *Handler) UpdateForm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "Invalid form ID")
	if !ok {
		return
	}

	var req UpdateFormRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	form, err := h.service.UpdateForm(r.Context(), simplesubmission.UpdateFormRequest{
		FormID:      id,
		Title:       req.Title,
		Description: req.Description,
		Code:        req.Code,
		Constraints: req.Constraints,

		AllowMultipleSubmissionsPerUser: req.AllowMultipleSubmissionsPerUser,
		MaxSubmissionsPerUser:           req.MaxSubmissionsPerUser,

		OpensAt:  req.OpensAt,
		ClosesAt: req.ClosesAt,
	})
	if err != nil {
		if errors.Is(err, simplesubmission.ErrDuplicateCode) {
			http.Error(w, "Form code already in use", http.StatusConflict)
			return
		}
		h.renderFormError(w, r, id.String(), err)
		return
	}

	render.JSON(w, r, form)
}

// DeleteForm deletes a form, its submissions, and any stored files no longer
// referenced by other submissions
func (h *Handler) DeleteForm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "Invalid form ID")
	if !ok {
		return
	}

	if err := h.service.DeleteForm(r.Context(), id); err != nil {
		h.renderFormError(w, r, id.String(), err)
		return
	}

	slog.Info("Form deleted", "form_id", id.String())
	w.WriteHeader(http.StatusNoContent)
}

// ValidateCode reports whether a form code currently accepts submissions.
// An unknown code is a 404; a known-but-closed code is a 200 with ok=false.
func (h *Handler) ValidateCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	status, err := h.service.ResolveCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, simplesubmission.ErrFormNotFound) {
			http.Error(w, "Form not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to resolve form code", "code", code, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	render.JSON(w, r, status)
}

// Submit accepts a multipart upload against a form code. A rejected upload is
// a 200 with ok=false and the violated constraints; only infrastructure
// failures produce a 5xx.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	form, err := h.service.GetFormByCode(r.Context(), code)
	if err != nil {
		h.renderFormError(w, r, code, err)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "Invalid multipart request", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	mimeType, reader, err := resolveMimeType(header.Header.Get("Content-Type"), file)
	if err != nil {
		slog.Error("Failed to sniff file type", "file_name", header.Filename, "error", err)
		http.Error(w, "Failed to read upload", http.StatusInternalServerError)
		return
	}

	var submittedBy *uuid.UUID
	if raw := r.Header.Get("X-User-ID"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "Invalid X-User-ID header", http.StatusBadRequest)
			return
		}
		submittedBy = &id
	}

	result, err := h.service.Submit(r.Context(), simplesubmission.SubmitRequest{
		FormID:      form.ID,
		SubmittedBy: submittedBy,
		FileName:    header.Filename,
		MimeType:    mimeType,
		Reader:      reader,
	})
	if err != nil {
		switch {
		case errors.Is(err, simplesubmission.ErrFormNotOpen),
			errors.Is(err, simplesubmission.ErrFormClosed),
			errors.Is(err, simplesubmission.ErrSubmissionLimitReached):
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, simplesubmission.UploadResult{OK: false, Errors: []string{err.Error()}})
			return
		}
		slog.Error("Failed to process submission", "code", code, "file_name", header.Filename, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if result.OK {
		slog.Info("Submission accepted", "code", code,
			"submission_id", result.Submission.ID.String(), "file_name", header.Filename)
		render.Status(r, http.StatusCreated)
	} else {
		slog.Info("Submission rejected", "code", code,
			"file_name", header.Filename, "reasons", result.Errors)
	}
	render.JSON(w, r, result)
}

// GetSubmission retrieves a submission by ID
func (h *Handler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "Invalid submission ID")
	if !ok {
		return
	}

	submission, err := h.service.GetSubmission(r.Context(), id)
	if err != nil {
		h.renderSubmissionError(w, r, id.String(), err)
		return
	}

	render.JSON(w, r, submission)
}

// ListFormSubmissions lists all submissions made to a form
func (h *Handler) ListFormSubmissions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "Invalid form ID")
	if !ok {
		return
	}

	submissions, err := h.service.ListFormSubmissions(r.Context(), id)
	if err != nil {
		h.renderFormError(w, r, id.String(), err)
		return
	}
	if submissions == nil {
		submissions = []*simplesubmission.Submission{}
	}

	render.JSON(w, r, submissions)
}

// ListMySubmissions lists submissions made by the requesting user
func (h *Handler) ListMySubmissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	submissions, err := h.service.ListUserSubmissions(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to list submissions", "user_id", userID.String(), "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if submissions == nil {
		submissions = []*simplesubmission.Submission{}
	}

	render.JSON(w, r, submissions)
}

// DeleteSubmission deletes a submission; the stored file is removed only when
// no other submission references it
func (h *Handler) DeleteSubmission(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "Invalid submission ID")
	if !ok {
		return
	}

	if err := h.service.DeleteSubmission(r.Context(), id); err != nil {
		h.renderSubmissionError(w, r, id.String(), err)
		return
	}

	slog.Info("Submission deleted", "submission_id", id.String())
	w.WriteHeader(http.StatusNoContent)
}

// DownloadSubmission streams the stored file for a submission
func (h *Handler) DownloadSubmission(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "Invalid submission ID")
	if !ok {
		return
	}

	reader, submission, err := h.service.OpenSubmission(r.Context(), id)
	if err != nil {
		h.renderSubmissionError(w, r, id.String(), err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", submission.MimeType)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", submission.SizeBytes))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", submission.FileName))

	if _, err := io.Copy(w, reader); err != nil {
		slog.Error("Failed to stream submission", "submission_id", id.String(), "error", err)
	}
}

// sniffLen matches the amount mimetype reads when detecting from a stream.
const sniffLen = 3072

// resolveMimeType trusts the declared content type when present and falls
// back to content sniffing otherwise. The returned reader yields the full
// upload including any sniffed prefix.
func resolveMimeType(declared string, file io.Reader) (string, io.Reader, error) {
	if declared != "" && declared != "application/octet-stream" {
		return declared, file, nil
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", nil, err
	}
	head = head[:n]

	detected := mimetype.Detect(head).String()
	// Constraint allow-lists hold bare media types, so drop any parameters
	// (e.g. "; charset=utf-8") the sniffer attaches.
	if mt, _, err := mime.ParseMediaType(detected); err == nil {
		detected = mt
	}
	return detected, io.MultiReader(bytes.NewReader(head), file), nil
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request, message string) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		slog.Error(message, "id", idStr, "error", err)
		http.Error(w, message, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		http.Error(w, "Missing X-User-ID header", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, "Invalid X-User-ID header", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) renderFormError(w http.ResponseWriter, r *http.Request, ref string, err error) {
	if errors.Is(err, simplesubmission.ErrFormNotFound) {
		http.Error(w, "Form not found", http.StatusNotFound)
		return
	}
	slog.Error("Form operation failed", "form", ref, "error", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func (h *Handler) renderSubmissionError(w http.ResponseWriter, r *http.Request, ref string, err error) {
	if errors.Is(err, simplesubmission.ErrSubmissionNotFound) ||
		errors.Is(err, simplesubmission.ErrObjectNotFound) {
		http.Error(w, "Submission not found", http.StatusNotFound)
		return
	}
	slog.Error("Submission operation failed", "submission", ref, "error", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
