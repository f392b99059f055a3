// Package memory implements simplesubmission.Repository with in-memory maps.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/simple-submission/pkg/simplesubmission"
)

// Repository implements simplesubmission.Repository using in-memory storage
type Repository struct {
	mu          sync.RWMutex
	forms       map[uuid.UUID]*simplesubmission.Form
	formsByCode map[string]uuid.UUID
	submissions map[uuid.UUID]*simplesubmission.Submission
}

// New creates a new in-memory repository
func New() simplesubmission.Repository {
	return &Repository{
		forms:       make(map[uuid.UUID]*simplesubmission.Form),
		formsByCode: make(map[string]uuid.UUID),
		submissions: make(map[uuid.UUID]*simplesubmission.Submission),
	}
}

// Form operations

func (r *Repository) CreateForm(ctx context.Context, form *simplesubmission.Form) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	code := strings.ToLower(form.Code)
	if _, exists := r.formsByCode[code]; exists {
		return simplesubmission.ErrDuplicateCode
	}

	// Store a copy to avoid external modifications
	formCopy := *form
	r.forms[form.ID] = &formCopy
	r.formsByCode[code] = form.ID

	return nil
}

func (r *Repository) GetForm(ctx context.Context, id uuid.UUID) (*simplesubmission.Form, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	form, exists := r.forms[id]
	if !exists {
		return nil, simplesubmission.ErrFormNotFound
	}
	formCopy := *form
	return &formCopy, nil
}

func (r *Repository) GetFormByCode(ctx context.Context, code string) (*simplesubmission.Form, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.formsByCode[strings.ToLower(code)]
	if !exists {
		return nil, simplesubmission.ErrFormNotFound
	}
	formCopy := *r.forms[id]
	return &formCopy, nil
}

func (r *Repository) ListFormsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*simplesubmission.Form, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*simplesubmission.Form
	for _, form := range r.forms {
		if form.OwnerID == ownerID {
			formCopy := *form
			result = append(result, &formCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (r *Repository) UpdateForm(ctx context.Context, form *simplesubmission.Form) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.forms[form.ID]
	if !exists {
		return simplesubmission.ErrFormNotFound
	}

	newCode := strings.ToLower(form.Code)
	oldCode := strings.ToLower(existing.Code)
	if newCode != oldCode {
		if _, taken := r.formsByCode[newCode]; taken {
			return simplesubmission.ErrDuplicateCode
		}
		delete(r.formsByCode, oldCode)
		r.formsByCode[newCode] = form.ID
	}

	formCopy := *form
	r.forms[form.ID] = &formCopy

	return nil
}

func (r *Repository) DeleteForm(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	form, exists := r.forms[id]
	if !exists {
		return simplesubmission.ErrFormNotFound
	}

	delete(r.formsByCode, strings.ToLower(form.Code))
	delete(r.forms, id)

	// Cascade to submission rows
	for subID, sub := range r.submissions {
		if sub.FormID == id {
			delete(r.submissions, subID)
		}
	}

	return nil
}

// Submission operations

func (r *Repository) CreateSubmission(ctx context.Context, submission *simplesubmission.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	subCopy := *submission
	r.submissions[submission.ID] = &subCopy

	return nil
}

func (r *Repository) GetSubmission(ctx context.Context, id uuid.UUID) (*simplesubmission.Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	submission, exists := r.submissions[id]
	if !exists {
		return nil, simplesubmission.ErrSubmissionNotFound
	}
	subCopy := *submission
	return &subCopy, nil
}

func (r *Repository) ListSubmissionsByForm(ctx context.Context, formID uuid.UUID) ([]*simplesubmission.Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*simplesubmission.Submission
	for _, sub := range r.submissions {
		if sub.FormID == formID {
			subCopy := *sub
			result = append(result, &subCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (r *Repository) ListSubmissionsBySubmitter(ctx context.Context, submitterID uuid.UUID) ([]*simplesubmission.Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*simplesubmission.Submission
	for _, sub := range r.submissions {
		if sub.SubmittedBy != nil && *sub.SubmittedBy == submitterID {
			subCopy := *sub
			result = append(result, &subCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (r *Repository) CountSubmissionsByFormAndSubmitter(ctx context.Context, formID, submitterID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, sub := range r.submissions {
		if sub.FormID == formID && sub.SubmittedBy != nil && *sub.SubmittedBy == submitterID {
			count++
		}
	}
	return count, nil
}

func (r *Repository) DeleteSubmission(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.submissions[id]; !exists {
		return simplesubmission.ErrSubmissionNotFound
	}
	delete(r.submissions, id)
	return nil
}

func (r *Repository) CountSubmissionsByStorageKey(ctx context.Context, storageKey string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, sub := range r.submissions {
		if sub.StorageKey == storageKey {
			count++
		}
	}
	return count, nil
}
