package postgres

import (
	"context"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-submission/pkg/simplesubmission"
)

// recordingDB captures every SQL string handed to the driver so tests can
// inspect the assembled queries without a live database.
type recordingDB struct {
	queries []string
}

func (db *recordingDB) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	db.queries = append(db.queries, sql)
	return pgconn.NewCommandTag("DELETE 1"), nil
}

func (db *recordingDB) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	db.queries = append(db.queries, sql)
	return emptyRows{}, nil
}

func (db *recordingDB) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	db.queries = append(db.queries, sql)
	return errRow{err: pgx.ErrNoRows}
}

type errRow struct{ err error }

func (r errRow) Scan(...interface{}) error { return r.err }

type emptyRows struct{}

func (emptyRows) Close()                                       {}
func (emptyRows) Err() error                                   { return nil }
func (emptyRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (emptyRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (emptyRows) Next() bool                                   { return false }
func (emptyRows) Scan(...interface{}) error                    { return nil }
func (emptyRows) Values() ([]interface{}, error)               { return nil, nil }
func (emptyRows) RawValues() [][]byte                          { return nil }
func (emptyRows) Conn() *pgx.Conn                              { return nil }

// A column list concatenated flush against the next keyword produces SQL like
// "updated_atFROM forms", which Postgres rejects at parse time.
var keywordRunOn = regexp.MustCompile(`[a-z_0-9)](SELECT|FROM|WHERE|ORDER|VALUES|SET)\b`)

func TestReadQueriesAreWellFormed(t *testing.T) {
	db := &recordingDB{}
	repo := &Repository{db: db}
	ctx := context.Background()
	id := uuid.New()

	_, _ = repo.GetForm(ctx, id)
	_, _ = repo.GetFormByCode(ctx, "abc123")
	_, _ = repo.ListFormsByOwner(ctx, id)
	_, _ = repo.GetSubmission(ctx, id)
	_, _ = repo.ListSubmissionsByForm(ctx, id)
	_, _ = repo.ListSubmissionsBySubmitter(ctx, id)

	require.Len(t, db.queries, 6)
	for _, q := range db.queries {
		assert.NotRegexp(t, keywordRunOn, q, "query: %s", q)
	}

	assert.Contains(t, db.queries[0], " FROM forms WHERE id = $1")
	assert.Contains(t, db.queries[1], " FROM forms WHERE code = $1")
	assert.Contains(t, db.queries[2], " FROM forms WHERE owner_id = $1")
	assert.Contains(t, db.queries[3], " FROM submissions WHERE id = $1")
	assert.Contains(t, db.queries[4], " FROM submissions WHERE form_id = $1")
	assert.Contains(t, db.queries[5], " FROM submissions WHERE submitted_by = $1")
}

func TestWriteQueriesAreWellFormed(t *testing.T) {
	db := &recordingDB{}
	repo := &Repository{db: db}
	ctx := context.Background()

	form := &simplesubmission.Form{ID: uuid.New(), Code: "abc123", OwnerID: uuid.New()}
	require.NoError(t, repo.CreateForm(ctx, form))
	require.NoError(t, repo.UpdateForm(ctx, form))

	sub := &simplesubmission.Submission{ID: uuid.New(), FormID: form.ID}
	require.NoError(t, repo.CreateSubmission(ctx, sub))

	for _, q := range db.queries {
		assert.NotRegexp(t, keywordRunOn, q, "query: %s", q)
	}
}

func TestNoRowsMapsToSentinels(t *testing.T) {
	repo := New(&recordingDB{})
	ctx := context.Background()

	_, err := repo.GetForm(ctx, uuid.New())
	assert.ErrorIs(t, err, simplesubmission.ErrFormNotFound)

	_, err = repo.GetFormByCode(ctx, "nosuch")
	assert.ErrorIs(t, err, simplesubmission.ErrFormNotFound)

	_, err = repo.GetSubmission(ctx, uuid.New())
	assert.ErrorIs(t, err, simplesubmission.ErrSubmissionNotFound)
}

func TestHandlePostgresError(t *testing.T) {
	r := &Repository{}

	t.Run("code unique violation", func(t *testing.T) {
		err := r.handlePostgresError("create form", &pgconn.PgError{
			Code:           "23505",
			ConstraintName: "forms_code_key",
		})
		assert.ErrorIs(t, err, simplesubmission.ErrDuplicateCode)
	})

	t.Run("other unique violation", func(t *testing.T) {
		err := r.handlePostgresError("create form", &pgconn.PgError{
			Code:           "23505",
			ConstraintName: "submissions_pkey",
		})
		assert.NotErrorIs(t, err, simplesubmission.ErrDuplicateCode)
		assert.Error(t, err)
	})
}
