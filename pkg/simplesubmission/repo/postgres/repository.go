// Package postgres implements simplesubmission.Repository on PostgreSQL
// using pgx. Constraint specs and extracted metadata are stored as JSONB;
// the schema lives in migrations/postgres.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-submission/pkg/simplesubmission"
)

// DBTX is an interface that allows us to use either a database connection or
// a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements simplesubmission.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) simplesubmission.Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) simplesubmission.Repository {
	return &Repository{db: pool}
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if strings.Contains(pgErr.ConstraintName, "code") {
				return simplesubmission.ErrDuplicateCode
			}
			return fmt.Errorf("duplicate entry")
		case "23503": // foreign_key_violation
			return fmt.Errorf("referenced record not found")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Form operations

func (r *Repository) CreateForm(ctx context.Context, form *simplesubmission.Form) error {
	constraints, err := json.Marshal(form.Constraints)
	if err != nil {
		return fmt.Errorf("failed to encode constraints: %w", err)
	}

	query := `
		INSERT INTO forms (
			id, code, title, description, owner_id, constraints,
			allow_multiple_submissions, max_submissions_per_user,
			opens_at, closes_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = r.db.Exec(ctx, query,
		form.ID, strings.ToLower(form.Code), form.Title, form.Description,
		form.OwnerID, constraints,
		form.AllowMultipleSubmissionsPerUser, form.MaxSubmissionsPerUser,
		form.OpensAt, form.ClosesAt, form.CreatedAt, form.UpdatedAt)

	if err != nil {
		return r.handlePostgresError("create form", err)
	}

	return nil
}

const formColumns = `
	id, code, title, description, owner_id, constraints,
	allow_multiple_submissions, max_submissions_per_user,
	opens_at, closes_at, created_at, updated_at`

func (r *Repository) scanForm(row pgx.Row) (*simplesubmission.Form, error) {
	var form simplesubmission.Form
	var constraints []byte

	err := row.Scan(
		&form.ID, &form.Code, &form.Title, &form.Description,
		&form.OwnerID, &constraints,
		&form.AllowMultipleSubmissionsPerUser, &form.MaxSubmissionsPerUser,
		&form.OpensAt, &form.ClosesAt, &form.CreatedAt, &form.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplesubmission.ErrFormNotFound
		}
		return nil, err
	}

	if len(constraints) > 0 {
		if err := json.Unmarshal(constraints, &form.Constraints); err != nil {
			return nil, fmt.Errorf("failed to decode constraints: %w", err)
		}
	}
	return &form, nil
}

func (r *Repository) GetForm(ctx context.Context, id uuid.UUID) (*simplesubmission.Form, error) {
	query := `SELECT` + formColumns + ` FROM forms WHERE id = $1`
	return r.scanForm(r.db.QueryRow(ctx, query, id))
}

func (r *Repository) GetFormByCode(ctx context.Context, code string) (*simplesubmission.Form, error) {
	query := `SELECT` + formColumns + ` FROM forms WHERE code = $1`
	return r.scanForm(r.db.QueryRow(ctx, query, strings.ToLower(code)))
}

func (r *Repository) ListFormsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*simplesubmission.Form, error) {
	query := `SELECT` + formColumns + ` FROM forms WHERE owner_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, r.handlePostgresError("list forms", err)
	}
	defer rows.Close()

	var forms []*simplesubmission.Form
	for rows.Next() {
		form, err := r.scanForm(rows)
		if err != nil {
			return nil, err
		}
		forms = append(forms, form)
	}
	return forms, rows.Err()
}

func (r *Repository) UpdateForm(ctx context.Context, form *simplesubmission.Form) error {
	constraints, err := json.Marshal(form.Constraints)
	if err != nil {
		return fmt.Errorf("failed to encode constraints: %w", err)
	}

	query := `
		UPDATE forms SET
			code = $2, title = $3, description = $4, constraints = $5,
			allow_multiple_submissions = $6, max_submissions_per_user = $7,
			opens_at = $8, closes_at = $9, updated_at = $10
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		form.ID, strings.ToLower(form.Code), form.Title, form.Description, constraints,
		form.AllowMultipleSubmissionsPerUser, form.MaxSubmissionsPerUser,
		form.OpensAt, form.ClosesAt, form.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("update form", err)
	}
	if tag.RowsAffected() == 0 {
		return simplesubmission.ErrFormNotFound
	}
	return nil
}

func (r *Repository) DeleteForm(ctx context.Context, id uuid.UUID) error {
	// Submission rows cascade via the foreign key.
	tag, err := r.db.Exec(ctx, `DELETE FROM forms WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete form", err)
	}
	if tag.RowsAffected() == 0 {
		return simplesubmission.ErrFormNotFound
	}
	return nil
}

// Submission operations

func (r *Repository) CreateSubmission(ctx context.Context, submission *simplesubmission.Submission) error {
	var metadata []byte
	if submission.Metadata != nil {
		var err error
		metadata, err = json.Marshal(submission.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}
	}

	query := `
		INSERT INTO submissions (
			id, form_id, submitted_by, status, file_name, storage_key,
			size_bytes, mime_type, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(ctx, query,
		submission.ID, submission.FormID, submission.SubmittedBy,
		submission.Status, submission.FileName, submission.StorageKey,
		submission.SizeBytes, submission.MimeType, metadata, submission.CreatedAt)

	if err != nil {
		return r.handlePostgresError("create submission", err)
	}

	return nil
}

const submissionColumns = `
	id, form_id, submitted_by, status, file_name, storage_key,
	size_bytes, mime_type, metadata, created_at`

func (r *Repository) scanSubmission(row pgx.Row) (*simplesubmission.Submission, error) {
	var sub simplesubmission.Submission
	var metadata []byte

	err := row.Scan(
		&sub.ID, &sub.FormID, &sub.SubmittedBy, &sub.Status,
		&sub.FileName, &sub.StorageKey, &sub.SizeBytes, &sub.MimeType,
		&metadata, &sub.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplesubmission.ErrSubmissionNotFound
		}
		return nil, err
	}

	if len(metadata) > 0 {
		sub.Metadata = &simplesubmission.ProbeResult{}
		if err := json.Unmarshal(metadata, sub.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
	return &sub, nil
}

func (r *Repository) GetSubmission(ctx context.Context, id uuid.UUID) (*simplesubmission.Submission, error) {
	query := `SELECT` + submissionColumns + ` FROM submissions WHERE id = $1`
	return r.scanSubmission(r.db.QueryRow(ctx, query, id))
}

func (r *Repository) listSubmissions(ctx context.Context, query string, arg interface{}) ([]*simplesubmission.Submission, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, r.handlePostgresError("list submissions", err)
	}
	defer rows.Close()

	var subs []*simplesubmission.Submission
	for rows.Next() {
		sub, err := r.scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (r *Repository) ListSubmissionsByForm(ctx context.Context, formID uuid.UUID) ([]*simplesubmission.Submission, error) {
	query := `SELECT` + submissionColumns + ` FROM submissions WHERE form_id = $1 ORDER BY created_at DESC`
	return r.listSubmissions(ctx, query, formID)
}

func (r *Repository) ListSubmissionsBySubmitter(ctx context.Context, submitterID uuid.UUID) ([]*simplesubmission.Submission, error) {
	query := `SELECT` + submissionColumns + ` FROM submissions WHERE submitted_by = $1 ORDER BY created_at DESC`
	return r.listSubmissions(ctx, query, submitterID)
}

func (r *Repository) CountSubmissionsByFormAndSubmitter(ctx context.Context, formID, submitterID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM submissions WHERE form_id = $1 AND submitted_by = $2`,
		formID, submitterID).Scan(&count)
	if err != nil {
		return 0, r.handlePostgresError("count submissions", err)
	}
	return count, nil
}

func (r *Repository) DeleteSubmission(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM submissions WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete submission", err)
	}
	if tag.RowsAffected() == 0 {
		return simplesubmission.ErrSubmissionNotFound
	}
	return nil
}

func (r *Repository) CountSubmissionsByStorageKey(ctx context.Context, storageKey string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM submissions WHERE storage_key = $1`,
		storageKey).Scan(&count)
	if err != nil {
		return 0, r.handlePostgresError("count storage key references", err)
	}
	return count, nil
}
